package moderation

import (
	"context"
	"errors"
	"time"
)

// ErrValidation marks a request rejected before any storage call. The HTTP
// layer maps it to a 400; everything else is a 500.
var ErrValidation = errors.New("invalid moderation request")

// Store is the storage port for restriction and audit records. Every read
// takes the caller's clock so the write and read paths agree on "now";
// implementations must never depend on a purge having run.
//
// Two backends exist: the Postgres store in the db package and MemoryStore
// here. InsertMute owns the escalation-count read-modify-write and must
// make it atomic per fingerprint (a transaction with an identity-scoped
// lock in Postgres, a mutex in memory), so two concurrent mutes can never
// compute the same count.
type Store interface {
	// InsertBan persists a new ban and returns it with ID and CreatedAt set.
	InsertBan(ctx context.Context, rec BanRecord) (BanRecord, error)
	// ActiveBan returns the most recent ban active at now that matches id
	// under the OR policy, or nil.
	ActiveBan(ctx context.Context, id Identity, now time.Time) (*BanRecord, error)
	// ActiveBans lists all bans active at now, newest first.
	ActiveBans(ctx context.Context, now time.Time) ([]BanRecord, error)
	// LiftBans sets ExpiresAt=now on every ban active at now that matches
	// id, returning the number affected. Zero is not an error.
	LiftBans(ctx context.Context, id Identity, now time.Time) (int64, error)

	// InsertMute persists a new mute. The stored EscalationCount is the
	// prior active count for the fingerprint plus one, computed atomically.
	InsertMute(ctx context.Context, rec MuteRecord) (MuteRecord, error)
	// ActiveMute returns the most recent mute active at now for the
	// fingerprint, or nil.
	ActiveMute(ctx context.Context, fingerprint string, now time.Time) (*MuteRecord, error)
	// ActiveMutes lists all mutes active at now, newest first.
	ActiveMutes(ctx context.Context, now time.Time) ([]MuteRecord, error)
	// LiftMutes sets ExpiresAt=now on every active mute for the
	// fingerprint, returning the number affected.
	LiftMutes(ctx context.Context, fingerprint string, now time.Time) (int64, error)
	// DeleteExpiredMutes removes rows whose expiry has passed. Storage
	// compaction only; correctness never depends on it.
	DeleteExpiredMutes(ctx context.Context, now time.Time) (int64, error)

	// AppendAudit persists an audit entry. Entries are never updated or
	// deleted.
	AppendAudit(ctx context.Context, e AuditEntry) error
	// RecentAudit returns up to limit entries, newest first.
	RecentAudit(ctx context.Context, limit int) ([]AuditEntry, error)
}

// MessageStore is the chat message collaborator the service delegates to.
// The chat package provides the Postgres implementation.
type MessageStore interface {
	Append(ctx context.Context, msg ChatMessage) error
	// Delete removes a message by ID and returns the number of rows
	// affected; deleting an unknown ID is not an error.
	Delete(ctx context.Context, id string) (int64, error)
}
