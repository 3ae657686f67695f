package moderation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/casthouse/streamgate/backend/telemetry"
)

// Service orchestrates the registry and audit log for the chat transport
// (access checks) and the admin API (ban/mute commands). It is stateless
// between calls: every check consults current storage state rather than an
// in-process cache, trading a lookup per message for not having to
// invalidate anything on admin actions.
type Service struct {
	registry *Registry
	audit    *AuditLog
	messages MessageStore // optional; nil disables message operations
}

// NewService wires a Service over a storage backend. messages may be nil
// when no chat message store is attached (RecordMessage and
// RecordMessageDeleted then fail explicitly).
func NewService(store Store, messages MessageStore) *Service {
	return &Service{
		registry: NewRegistry(store),
		audit:    NewAuditLog(store),
		messages: messages,
	}
}

// Registry exposes the underlying registry for listing endpoints and
// maintenance jobs.
func (s *Service) Registry() *Registry { return s.registry }

// Audit exposes the audit log for collaborators recording their own events.
func (s *Service) Audit() *AuditLog { return s.audit }

// CheckAccess decides whether the identity may participate. Bans are
// evaluated before mutes: a banned user must never learn that their
// fingerprint is also recognized by a mute.
func (s *Service) CheckAccess(ctx context.Context, id Identity) (Verdict, error) {
	start := time.Now()
	ban, err := s.registry.IsBanned(ctx, id)
	if err != nil {
		return Verdict{}, fmt.Errorf("check ban: %w", err)
	}
	if ban != nil {
		telemetry.ObserveAccessCheck(false, ReasonBanned, time.Since(start))
		return Verdict{Allowed: false, Reason: ReasonBanned}, nil
	}
	mute, err := s.registry.IsMuted(ctx, id)
	if err != nil {
		return Verdict{}, fmt.Errorf("check mute: %w", err)
	}
	if mute != nil {
		telemetry.ObserveAccessCheck(false, ReasonMuted, time.Since(start))
		return Verdict{Allowed: false, Reason: ReasonMuted}, nil
	}
	telemetry.ObserveAccessCheck(true, "", time.Since(start))
	return Verdict{Allowed: true}, nil
}

// Ban issues a ban and records it. The audit entry is written even though
// the ban cannot be a no-op; severity is fixed at high.
func (s *Service) Ban(ctx context.Context, id Identity, displayName, reason string, d Duration, issuedBy string) (BanRecord, error) {
	rec, err := s.registry.Ban(ctx, id, displayName, reason, d, issuedBy)
	if err != nil {
		return BanRecord{}, err
	}
	telemetry.CountModerationAction(string(CategoryBan))
	detail := map[string]any{"reason": reason, "permanent": rec.ExpiresAt == nil}
	if rec.ExpiresAt != nil {
		detail["expires_at"] = rec.ExpiresAt.Format(time.RFC3339)
	}
	s.appendAudit(ctx, AuditEntry{
		Category:    CategoryBan,
		Fingerprint: id.Fingerprint,
		Address:     id.Address,
		DisplayName: displayName,
		Detail:      detail,
		Severity:    SeverityHigh,
		Actor:       issuedBy,
	})
	return rec, nil
}

// Unban lifts all active bans matching the identity. A zero-affected
// unban is still audited: an admin attempting to lift a ban that is not
// there is itself a signal.
func (s *Service) Unban(ctx context.Context, id Identity, issuedBy string) (int64, error) {
	affected, err := s.registry.Unban(ctx, id)
	if err != nil {
		return 0, err
	}
	telemetry.CountModerationAction(string(CategoryUnban))
	s.appendAudit(ctx, AuditEntry{
		Category:    CategoryUnban,
		Fingerprint: id.Fingerprint,
		Address:     id.Address,
		Detail:      map[string]any{"affected": affected},
		Severity:    SeverityLow,
		Actor:       issuedBy,
	})
	return affected, nil
}

// Mute issues a time-bounded mute and records it at medium severity.
func (s *Service) Mute(ctx context.Context, id Identity, displayName, reason string, d Duration, issuedBy string) (MuteRecord, error) {
	rec, err := s.registry.Mute(ctx, id, displayName, reason, d, issuedBy)
	if err != nil {
		return MuteRecord{}, err
	}
	telemetry.CountModerationAction(string(CategoryMute))
	s.appendAudit(ctx, AuditEntry{
		Category:    CategoryMute,
		Fingerprint: id.Fingerprint,
		Address:     id.Address,
		DisplayName: displayName,
		Detail: map[string]any{
			"reason":           reason,
			"expires_at":       rec.ExpiresAt.Format(time.RFC3339),
			"escalation_count": rec.EscalationCount,
		},
		Severity: SeverityMedium,
		Actor:    issuedBy,
	})
	return rec, nil
}

// Unmute lifts all active mutes for the identity's fingerprint. Audited
// regardless of effect, like Unban.
func (s *Service) Unmute(ctx context.Context, id Identity, issuedBy string) (int64, error) {
	affected, err := s.registry.Unmute(ctx, id)
	if err != nil {
		return 0, err
	}
	telemetry.CountModerationAction(string(CategoryUnmute))
	s.appendAudit(ctx, AuditEntry{
		Category:    CategoryUnmute,
		Fingerprint: id.Fingerprint,
		Detail:      map[string]any{"affected": affected},
		Severity:    SeverityLow,
		Actor:       issuedBy,
	})
	return affected, nil
}

// RecordMessageDeleted deletes a chat message through the message store and
// audits the deletion. The audit entry is only written once the delete has
// succeeded.
func (s *Service) RecordMessageDeleted(ctx context.Context, messageID, actor string) error {
	if s.messages == nil {
		return fmt.Errorf("no message store configured")
	}
	if messageID == "" {
		return fmt.Errorf("%w: message id required", ErrValidation)
	}
	affected, err := s.messages.Delete(ctx, messageID)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	telemetry.CountModerationAction(string(CategoryMessageDeleted))
	s.appendAudit(ctx, AuditEntry{
		Category: CategoryMessageDeleted,
		Detail:   map[string]any{"message_id": messageID, "affected": affected},
		Severity: SeverityMedium,
		Actor:    actor,
	})
	return nil
}

// RecordMessage is the transport hot path: it checks access and, when the
// verdict allows, persists the message. The caller enforces the verdict
// either way.
func (s *Service) RecordMessage(ctx context.Context, id Identity, displayName, text string) (Verdict, error) {
	verdict, err := s.CheckAccess(ctx, id)
	if err != nil {
		return Verdict{}, err
	}
	if !verdict.Allowed {
		return verdict, nil
	}
	if s.messages == nil {
		return Verdict{}, fmt.Errorf("no message store configured")
	}
	msg := ChatMessage{
		ID:          uuid.New().String(),
		DisplayName: displayName,
		Text:        text,
		Fingerprint: id.Fingerprint,
		Address:     id.Address,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.messages.Append(ctx, msg); err != nil {
		return Verdict{}, fmt.Errorf("append message: %w", err)
	}
	return verdict, nil
}

// appendAudit records an entry best-effort. A failed audit write never
// rolls back the restriction it describes; the restriction taking effect
// wins over the trail being complete, and the failure is surfaced in logs
// and metrics instead.
func (s *Service) appendAudit(ctx context.Context, e AuditEntry) {
	if err := s.audit.Append(ctx, e); err != nil {
		telemetry.CountAuditFailure()
		slog.Error("audit write failed", slog.Any("err", err),
			slog.String("category", string(e.Category)),
			slog.String("component", "moderation"))
	}
}
