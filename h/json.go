package h

import "github.com/tidwall/gjson"

// JsonValue reads fields out of a JSON document by gjson path without
// decoding it into a type.
type JsonValue struct {
	value string
}

func NewJsonValue(value string) JsonValue {
	return JsonValue{value: value}
}

func (j JsonValue) Get(path string) any {
	value := gjson.Get(j.value, path)
	if !value.Exists() {
		return nil
	}
	return value.Value()
}

func (j JsonValue) String(path string) string {
	return gjson.Get(j.value, path).String()
}

func (j JsonValue) Int(path string) int64 {
	return gjson.Get(j.value, path).Int()
}

// Len is the length of the array at path, 0 when it is not an array.
func (j JsonValue) Len(path string) int {
	value := gjson.Get(j.value, path)
	if !value.IsArray() {
		return 0
	}
	return len(value.Array())
}

func (j JsonValue) Exists(path string) bool {
	return gjson.Get(j.value, path).Exists()
}

func (j JsonValue) Valid() bool {
	return gjson.Valid(j.value)
}
