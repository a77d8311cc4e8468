package h

import "github.com/thoas/go-funk"

func ContainsString(array []string, value string) bool {
	if len(array) == 0 || value == "" {
		return false
	}
	return funk.ContainsString(array, value)
}

// UniqueStrings drops duplicates and empty values, keeping first-seen order.
// The result is never nil.
func UniqueStrings(values []string) []string {
	nonEmpty := funk.FilterString(values, func(v string) bool {
		return v != ""
	})
	unique := funk.UniqString(nonEmpty)
	if unique == nil {
		return []string{}
	}
	return unique
}
