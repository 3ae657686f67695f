package moderation

import (
	"context"
	"fmt"
	"time"
)

const (
	defaultAuditLimit = 100
	maxAuditLimit     = 500
)

// AuditLog appends and reads moderation audit entries. Collaborators that
// record non-moderation events (connections, stream lifecycle) go through
// the same log.
type AuditLog struct {
	store Store
	now   func() time.Time
}

// NewAuditLog returns an AuditLog over the given store.
func NewAuditLog(store Store) *AuditLog {
	return &AuditLog{store: store, now: time.Now}
}

// Append persists one entry, stamping CreatedAt and defaulting the actor
// to the system sentinel when empty.
func (l *AuditLog) Append(ctx context.Context, e AuditEntry) error {
	if e.Category == "" {
		return fmt.Errorf("%w: audit entry requires a category", ErrValidation)
	}
	if e.Severity == "" {
		e.Severity = SeverityLow
	}
	if e.Actor == "" {
		e.Actor = SystemActor
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = l.now().UTC()
	}
	if err := l.store.AppendAudit(ctx, e); err != nil {
		return fmt.Errorf("append audit: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first. Non-positive limits
// fall back to the default; oversized ones are clamped.
func (l *AuditLog) Recent(ctx context.Context, limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = defaultAuditLimit
	}
	if limit > maxAuditLimit {
		limit = maxAuditLimit
	}
	entries, err := l.store.RecentAudit(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("recent audit: %w", err)
	}
	return entries, nil
}
