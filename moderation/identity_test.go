package moderation

import "testing"

func TestResolveIdentity(t *testing.T) {
	tests := []struct {
		name        string
		fingerprint string
		address     string
		want        Identity
	}{
		{"both present", "fp1", "203.0.113.7", Identity{Fingerprint: "fp1", Address: "203.0.113.7"}},
		{"whitespace trimmed", "  fp1  ", " 203.0.113.7\n", Identity{Fingerprint: "fp1", Address: "203.0.113.7"}},
		{"fingerprint only", "fp1", "", Identity{Fingerprint: "fp1"}},
		{"address only", "", "203.0.113.7", Identity{Address: "203.0.113.7"}},
		{"whitespace only becomes empty", "   ", "\t", Identity{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveIdentity(tt.fingerprint, tt.address); got != tt.want {
				t.Errorf("ResolveIdentity(%q, %q) = %+v, want %+v", tt.fingerprint, tt.address, got, tt.want)
			}
		})
	}
}

func TestIdentityEmpty(t *testing.T) {
	if !(Identity{}).Empty() {
		t.Error("zero identity should be empty")
	}
	if (Identity{Fingerprint: "fp1"}).Empty() {
		t.Error("identity with fingerprint is not empty")
	}
	if (Identity{Address: "203.0.113.7"}).Empty() {
		t.Error("identity with address is not empty")
	}
}
