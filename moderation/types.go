package moderation

import (
	"time"
)

// Category classifies an audit entry. The moderation service writes the
// first five; collaborators (chat transport, stream ingest) record the rest
// through the same audit log.
type Category string

const (
	CategoryBan            Category = "ban"
	CategoryUnban          Category = "unban"
	CategoryMute           Category = "mute"
	CategoryUnmute         Category = "unmute"
	CategoryMessageDeleted Category = "message_deleted"
	CategoryConnection     Category = "connection"
	CategoryChatMessage    Category = "chat_message"
	CategoryStreamStart    Category = "stream_start"
	CategoryStreamEnd      Category = "stream_end"
)

// Severity orders audit entries for the admin dashboard.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// SystemActor is recorded as the audit actor for automated events.
const SystemActor = "system"

// BanRecord is one ban issuance. Lifting a ban sets ExpiresAt to the lift
// time rather than deleting the row, so history stays auditable.
type BanRecord struct {
	ID          int64      `json:"id"`
	Fingerprint string     `json:"fingerprint"`
	Address     string     `json:"ip"`
	DisplayName string     `json:"username"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   *time.Time `json:"expires_at"` // nil = permanent
	Reason      string     `json:"reason,omitempty"`
	IssuedBy    string     `json:"issued_by"`
}

// ActiveAt reports whether the ban is in force at t. Expiry is exclusive:
// a ban whose ExpiresAt equals t is no longer active.
func (r BanRecord) ActiveAt(t time.Time) bool {
	return r.ExpiresAt == nil || r.ExpiresAt.After(t)
}

// Matches applies the OR-matching policy: the record matches an incoming
// identity if the stored fingerprint equals the incoming one (both
// non-empty) or the stored address equals the incoming one (both
// non-empty). Matching by address alone is deliberately supported so an
// operator can ban an actor who has no stable fingerprint yet; the
// shared-NAT overreach this allows is an accepted tradeoff.
func (r BanRecord) Matches(id Identity) bool {
	if r.Fingerprint != "" && id.Fingerprint != "" && r.Fingerprint == id.Fingerprint {
		return true
	}
	return r.Address != "" && id.Address != "" && r.Address == id.Address
}

// MuteRecord is one mute issuance. Mutes are always time-bounded and are
// scoped to a fingerprint; address is carried for display only.
type MuteRecord struct {
	ID              int64     `json:"id"`
	Fingerprint     string    `json:"fingerprint"`
	Address         string    `json:"ip"`
	DisplayName     string    `json:"username"`
	CreatedAt       time.Time `json:"created_at"`
	ExpiresAt       time.Time `json:"expires_at"`
	Reason          string    `json:"reason,omitempty"`
	IssuedBy        string    `json:"issued_by"`
	EscalationCount int       `json:"escalation_count"`
}

// ActiveAt reports whether the mute is in force at t (exclusive expiry).
func (r MuteRecord) ActiveAt(t time.Time) bool {
	return r.ExpiresAt.After(t)
}

// Matches reports whether the mute applies to an incoming identity. Mutes
// never match by address alone; that would be too coarse for temporary
// silencing behind shared NAT.
func (r MuteRecord) Matches(id Identity) bool {
	return r.Fingerprint != "" && id.Fingerprint != "" && r.Fingerprint == id.Fingerprint
}

// AuditEntry is an append-only record of a moderation-relevant event. It
// references identities by value so it stays meaningful after the
// restriction it describes has been lifted or purged.
type AuditEntry struct {
	ID          int64          `json:"id"`
	Category    Category       `json:"category"`
	Fingerprint string         `json:"fingerprint,omitempty"`
	Address     string         `json:"ip,omitempty"`
	DisplayName string         `json:"username,omitempty"`
	Detail      map[string]any `json:"detail,omitempty"`
	Severity    Severity       `json:"severity"`
	Actor       string         `json:"actor"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Verdict is the outcome of an access check. Reason is only ever "banned"
// or "muted"; internal details never leak to chat users.
type Verdict struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

const (
	ReasonBanned = "banned"
	ReasonMuted  = "muted"
)

// ChatMessage is the slice of a chat message the engine needs when the
// transport records one through RecordMessage.
type ChatMessage struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"username"`
	Text        string    `json:"message"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	Address     string    `json:"ip,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
