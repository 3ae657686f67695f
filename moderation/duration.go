package moderation

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration is a validated restriction duration: either the "permanent"
// sentinel (bans only) or a positive number of seconds. Malformed input is
// rejected at the boundary instead of being clamped deep inside storage.
type Duration struct {
	Permanent bool
	Seconds   int64
}

// Permanent is the wire sentinel for a never-expiring ban.
const permanentSentinel = "permanent"

// ParseDuration parses the wire form of a duration: "permanent" or a
// positive integer of seconds. Returns a validation error otherwise.
func ParseDuration(s string) (Duration, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, permanentSentinel) {
		return Duration{Permanent: true}, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return Duration{}, fmt.Errorf("%w: duration must be %q or a positive integer of seconds, got %q", ErrValidation, permanentSentinel, s)
	}
	if n <= 0 {
		return Duration{}, fmt.Errorf("%w: duration must be positive, got %d", ErrValidation, n)
	}
	return Duration{Seconds: n}, nil
}

// DurationSeconds returns a bounded duration of n seconds. Callers that
// already hold an integer can skip the string round-trip; validation still
// applies.
func DurationSeconds(n int64) (Duration, error) {
	if n <= 0 {
		return Duration{}, fmt.Errorf("%w: duration must be positive, got %d", ErrValidation, n)
	}
	return Duration{Seconds: n}, nil
}

// ExpiryFrom returns the expiry timestamp for a restriction created at t,
// or nil for a permanent one.
func (d Duration) ExpiryFrom(t time.Time) *time.Time {
	if d.Permanent {
		return nil
	}
	exp := t.Add(time.Duration(d.Seconds) * time.Second)
	return &exp
}

// UnmarshalJSON accepts both the JSON string form ("permanent", "300") and
// a bare number (300), matching what admin tooling actually sends.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("%w: invalid duration: %v", ErrValidation, err)
	}
	switch v := raw.(type) {
	case string:
		parsed, err := ParseDuration(v)
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	case float64:
		if v != float64(int64(v)) {
			return fmt.Errorf("%w: duration must be a whole number of seconds, got %v", ErrValidation, v)
		}
		parsed, err := DurationSeconds(int64(v))
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	default:
		return fmt.Errorf("%w: duration must be a string or number", ErrValidation)
	}
}

// MarshalJSON emits the wire form used by the admin API.
func (d Duration) MarshalJSON() ([]byte, error) {
	if d.Permanent {
		return json.Marshal(permanentSentinel)
	}
	return json.Marshal(d.Seconds)
}
