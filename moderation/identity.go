package moderation

import "strings"

// Identity is the restriction-matching key derived per request from a
// connection's client fingerprint and network address. It is never stored
// as such; restriction records carry their own copies of the two fields.
// Either field may be empty: a fresh connection may only have an address,
// and a proxied one may only have a fingerprint.
type Identity struct {
	Fingerprint string
	Address     string
}

// ResolveIdentity normalizes raw connection attributes into an Identity.
// Pure and total: absent fields are carried as empty strings.
func ResolveIdentity(fingerprint, address string) Identity {
	return Identity{
		Fingerprint: strings.TrimSpace(fingerprint),
		Address:     strings.TrimSpace(address),
	}
}

// Empty reports whether the identity carries nothing to match on.
func (id Identity) Empty() bool {
	return id.Fingerprint == "" && id.Address == ""
}
