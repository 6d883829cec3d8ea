package humastar

import (
	"encoding/json"

	"github.com/danielgtaylor/huma/v2"
)

// Signals is the flat JSON object of signal values Datastar posts.
type Signals map[string]any

// ParseSignals decodes a request body into Signals.
func ParseSignals(body []byte) (Signals, error) {
	var signals Signals
	if err := json.Unmarshal(body, &signals); err != nil {
		return nil, err
	}
	return signals, nil
}

func lookup[T any](s Signals, key string) T {
	v, _ := s[key].(T)
	return v
}

// String returns the signal as a string, or "".
func (s Signals) String(key string) string { return lookup[string](s, key) }

// Bool returns the signal as a bool, or false.
func (s Signals) Bool(key string) bool { return lookup[bool](s, key) }

// Float returns the signal as a float64, or 0.
func (s Signals) Float(key string) float64 { return lookup[float64](s, key) }

// Int returns a numeric signal truncated to int, or 0.
func (s Signals) Int(key string) int { return int(s.Float(key)) }

// Has reports whether the signal was sent, even as a zero value.
func (s Signals) Has(key string) bool {
	_, ok := s[key]
	return ok
}

// EmptyInput is the input of operations without parameters.
type EmptyInput struct{}

// SignalsInput captures the raw body so signals can be parsed before streaming.
type SignalsInput struct {
	RawBody []byte
}

// Parse decodes the signals.
func (i *SignalsInput) Parse() (Signals, error) {
	return ParseSignals(i.RawBody)
}

// MustParse decodes the signals or returns a 400.
func (i *SignalsInput) MustParse() (Signals, error) {
	signals, err := i.Parse()
	if err != nil {
		return nil, huma.Error400BadRequest("Invalid request data: " + err.Error())
	}
	return signals, nil
}
