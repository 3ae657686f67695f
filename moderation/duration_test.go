package moderation

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in        string
		want      Duration
		wantError bool
	}{
		{"permanent", Duration{Permanent: true}, false},
		{"PERMANENT", Duration{Permanent: true}, false},
		{" permanent ", Duration{Permanent: true}, false},
		{"300", Duration{Seconds: 300}, false},
		{"1", Duration{Seconds: 1}, false},
		{"0", Duration{}, true},
		{"-60", Duration{}, true},
		{"forever", Duration{}, true},
		{"", Duration{}, true},
		{"12.5", Duration{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDuration(tt.in)
			if tt.wantError {
				if err == nil {
					t.Fatalf("ParseDuration(%q) expected error, got %+v", tt.in, got)
				}
				if !errors.Is(err, ErrValidation) {
					t.Errorf("error should wrap ErrValidation, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDuration(%q) error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseDuration(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestDurationExpiryFrom(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	if got := (Duration{Permanent: true}).ExpiryFrom(now); got != nil {
		t.Errorf("permanent expiry = %v, want nil", got)
	}
	got := (Duration{Seconds: 300}).ExpiryFrom(now)
	if got == nil || !got.Equal(now.Add(5*time.Minute)) {
		t.Errorf("expiry = %v, want %v", got, now.Add(5*time.Minute))
	}
}

func TestDurationUnmarshalJSON(t *testing.T) {
	tests := []struct {
		name      string
		in        string
		want      Duration
		wantError bool
	}{
		{"string seconds", `"300"`, Duration{Seconds: 300}, false},
		{"string permanent", `"permanent"`, Duration{Permanent: true}, false},
		{"bare number", `300`, Duration{Seconds: 300}, false},
		{"fractional number", `12.5`, Duration{}, true},
		{"negative number", `-10`, Duration{}, true},
		{"bool", `true`, Duration{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Duration
			err := json.Unmarshal([]byte(tt.in), &d)
			if tt.wantError {
				if err == nil {
					t.Fatalf("expected error for %s, got %+v", tt.in, d)
				}
				return
			}
			if err != nil {
				t.Fatalf("unmarshal %s: %v", tt.in, err)
			}
			if d != tt.want {
				t.Errorf("unmarshal %s = %+v, want %+v", tt.in, d, tt.want)
			}
		})
	}
}

func TestDurationMarshalJSON(t *testing.T) {
	b, err := json.Marshal(Duration{Permanent: true})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `"permanent"` {
		t.Errorf("marshal permanent = %s", b)
	}
	b, err = json.Marshal(Duration{Seconds: 60})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `60` {
		t.Errorf("marshal 60s = %s", b)
	}
}
