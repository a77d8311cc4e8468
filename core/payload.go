package f

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Payload is the closed set of job payloads. Each kind has exactly one
// payload type.
type Payload interface {
	Kind() JobKind
	sealed()
}

type FetchOptions struct {
	Method  string            `json:"method,omitempty" validate:"omitempty,oneof=GET POST PUT PATCH DELETE HEAD OPTIONS"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    string            `json:"body,omitempty"`
}

type FetchPayload struct {
	URL     string       `json:"url" validate:"required,url"`
	Options FetchOptions `json:"options"`
}

type RefreshIndexPayload struct {
	LevelID string `json:"levelId" validate:"required"`
}

type CalcPlayAttemptsPayload struct {
	LevelID string `json:"levelId" validate:"required"`
}

func (FetchPayload) Kind() JobKind            { return KindFetch }
func (RefreshIndexPayload) Kind() JobKind     { return KindRefreshIndexCalculations }
func (CalcPlayAttemptsPayload) Kind() JobKind { return KindCalcPlayAttempts }

func (FetchPayload) sealed()            {}
func (RefreshIndexPayload) sealed()     {}
func (CalcPlayAttemptsPayload) sealed() {}

// EncodePayload validates p and returns its stored JSON form.
func EncodePayload(p Payload) (string, error) {
	if p == nil {
		return "", fmt.Errorf("payload is required")
	}
	if err := validate.Struct(p); err != nil {
		return "", fmt.Errorf("%s: %w", p.Kind(), err)
	}
	b, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodePayload parses and validates the stored JSON form of a kind's payload.
func DecodePayload(kind JobKind, raw string) (Payload, error) {
	var (
		p   Payload
		err error
	)
	switch kind {
	case KindFetch:
		var v FetchPayload
		err = json.Unmarshal([]byte(raw), &v)
		p = v
	case KindRefreshIndexCalculations:
		var v RefreshIndexPayload
		err = json.Unmarshal([]byte(raw), &v)
		p = v
	case KindCalcPlayAttempts:
		var v CalcPlayAttemptsPayload
		err = json.Unmarshal([]byte(raw), &v)
		p = v
	default:
		return nil, fmt.Errorf("%w: %s", ErrNoHandler, kind)
	}
	if err != nil {
		return nil, err
	}
	if err := validate.Struct(p); err != nil {
		return nil, err
	}
	return p, nil
}
