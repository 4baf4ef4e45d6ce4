// Package timex provides a time.Duration wrapper that decodes from JSON as
// either a Go duration string ("15m") or an integer number of nanoseconds.
package timex

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Duration is a JSON-friendly time.Duration.
type Duration struct {
	time.Duration
}

// MarshalJSON encodes the duration as its string form.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts "1h30m" style strings and plain integers.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value)
		return nil
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", value, err)
		}
		d.Duration = parsed
		return nil
	default:
		return errors.New("invalid duration")
	}
}

// IsSet reports whether the value was present in the decoded document.
func (d Duration) IsSet() bool {
	return d.Duration != 0
}
