package moderation

import (
	"context"
	"fmt"
	"time"
)

// Registry owns the ban and mute record sets. It validates input, stamps
// records with its clock, and delegates persistence to the Store. All
// lookups evaluate expiry at call time.
type Registry struct {
	store Store
	now   func() time.Time
}

// NewRegistry returns a Registry over the given store using the wall clock.
func NewRegistry(store Store) *Registry {
	return &Registry{store: store, now: time.Now}
}

// WithClock overrides the registry clock. Test helper.
func (r *Registry) WithClock(now func() time.Time) *Registry {
	r.now = now
	return r
}

// IsBanned returns the most recent active ban matching id under the OR
// policy, or nil.
func (r *Registry) IsBanned(ctx context.Context, id Identity) (*BanRecord, error) {
	if id.Empty() {
		return nil, nil
	}
	return r.store.ActiveBan(ctx, id, r.now().UTC())
}

// IsMuted returns the most recent active mute for id's fingerprint, or nil.
// Mutes never match by address alone.
func (r *Registry) IsMuted(ctx context.Context, id Identity) (*MuteRecord, error) {
	if id.Fingerprint == "" {
		return nil, nil
	}
	return r.store.ActiveMute(ctx, id.Fingerprint, r.now().UTC())
}

// Ban creates a new ban record. Overlapping bans are permitted; IsBanned
// always returns the most recent one. A permanent duration stores a nil
// expiry.
func (r *Registry) Ban(ctx context.Context, id Identity, displayName, reason string, d Duration, issuedBy string) (BanRecord, error) {
	if id.Empty() {
		return BanRecord{}, fmt.Errorf("%w: ban requires a fingerprint or an ip", ErrValidation)
	}
	if !d.Permanent && d.Seconds <= 0 {
		return BanRecord{}, fmt.Errorf("%w: ban requires a duration", ErrValidation)
	}
	now := r.now().UTC()
	rec := BanRecord{
		Fingerprint: id.Fingerprint,
		Address:     id.Address,
		DisplayName: displayName,
		CreatedAt:   now,
		ExpiresAt:   d.ExpiryFrom(now),
		Reason:      reason,
		IssuedBy:    issuedBy,
	}
	created, err := r.store.InsertBan(ctx, rec)
	if err != nil {
		return BanRecord{}, fmt.Errorf("insert ban: %w", err)
	}
	return created, nil
}

// Unban deactivates every active ban matching id and returns the count.
// Idempotent: lifting nothing yields zero, not an error.
func (r *Registry) Unban(ctx context.Context, id Identity) (int64, error) {
	if id.Empty() {
		return 0, fmt.Errorf("%w: unban requires a fingerprint or an ip", ErrValidation)
	}
	n, err := r.store.LiftBans(ctx, id, r.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("lift bans: %w", err)
	}
	return n, nil
}

// Mute creates a new mute record. Mutes require a fingerprint and are
// always time-bounded. If a mute is already active for the fingerprint the
// new record's escalation count is the prior count plus one; the store
// performs that read-modify-write atomically.
func (r *Registry) Mute(ctx context.Context, id Identity, displayName, reason string, d Duration, issuedBy string) (MuteRecord, error) {
	if id.Fingerprint == "" {
		return MuteRecord{}, fmt.Errorf("%w: mute requires a fingerprint", ErrValidation)
	}
	if d.Permanent {
		return MuteRecord{}, fmt.Errorf("%w: mutes cannot be permanent", ErrValidation)
	}
	if d.Seconds <= 0 {
		return MuteRecord{}, fmt.Errorf("%w: mute requires a duration", ErrValidation)
	}
	now := r.now().UTC()
	rec := MuteRecord{
		Fingerprint: id.Fingerprint,
		Address:     id.Address,
		DisplayName: displayName,
		CreatedAt:   now,
		ExpiresAt:   *d.ExpiryFrom(now),
		Reason:      reason,
		IssuedBy:    issuedBy,
	}
	created, err := r.store.InsertMute(ctx, rec)
	if err != nil {
		return MuteRecord{}, fmt.Errorf("insert mute: %w", err)
	}
	return created, nil
}

// Unmute deactivates every active mute for id's fingerprint. Idempotent.
func (r *Registry) Unmute(ctx context.Context, id Identity) (int64, error) {
	if id.Fingerprint == "" {
		return 0, fmt.Errorf("%w: unmute requires a fingerprint", ErrValidation)
	}
	n, err := r.store.LiftMutes(ctx, id.Fingerprint, r.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("lift mutes: %w", err)
	}
	return n, nil
}

// PurgeExpiredMutes removes mute rows whose expiry has passed. Best-effort
// compaction; safe to run on any schedule or never.
func (r *Registry) PurgeExpiredMutes(ctx context.Context) (int64, error) {
	n, err := r.store.DeleteExpiredMutes(ctx, r.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("purge expired mutes: %w", err)
	}
	return n, nil
}

// ActiveBans lists all currently active bans, newest first.
func (r *Registry) ActiveBans(ctx context.Context) ([]BanRecord, error) {
	return r.store.ActiveBans(ctx, r.now().UTC())
}

// ActiveMutes lists all currently active mutes, newest first.
func (r *Registry) ActiveMutes(ctx context.Context) ([]MuteRecord, error) {
	return r.store.ActiveMutes(ctx, r.now().UTC())
}
