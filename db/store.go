package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/casthouse/streamgate/backend/moderation"
)

// identityMatch is the OR-matching predicate over the two nullable-ish
// identity columns: a row matches when its fingerprint equals the incoming
// one or its ip equals the incoming one, empty values never matching.
// Placeholders: $1 fingerprint, $2 ip.
const identityMatch = `(($1 <> '' AND fingerprint = $1) OR ($2 <> '' AND ip = $2))`

// ModerationStore is the Postgres implementation of moderation.Store.
// Expiry is evaluated lazily inside each query against the caller's clock,
// so reads never depend on a purge having run.
type ModerationStore struct {
	DB *sql.DB
}

// NewModerationStore wraps an open connection pool.
func NewModerationStore(db *sql.DB) *ModerationStore {
	return &ModerationStore{DB: db}
}

var _ moderation.Store = (*ModerationStore)(nil)

func (s *ModerationStore) InsertBan(ctx context.Context, rec moderation.BanRecord) (moderation.BanRecord, error) {
	var end sql.NullTime
	if rec.ExpiresAt != nil {
		end = sql.NullTime{Time: *rec.ExpiresAt, Valid: true}
	}
	err := s.DB.QueryRowContext(ctx,
		`INSERT INTO banned_users (fingerprint, ip, username, banned_at, ban_end_time, reason, banned_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		rec.Fingerprint, rec.Address, rec.DisplayName, rec.CreatedAt, end, rec.Reason, rec.IssuedBy,
	).Scan(&rec.ID)
	if err != nil {
		return moderation.BanRecord{}, err
	}
	return rec, nil
}

func (s *ModerationStore) ActiveBan(ctx context.Context, id moderation.Identity, now time.Time) (*moderation.BanRecord, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT id, fingerprint, ip, username, banned_at, ban_end_time, reason, banned_by
		 FROM banned_users
		 WHERE `+identityMatch+`
		   AND (ban_end_time IS NULL OR ban_end_time > $3)
		 ORDER BY banned_at DESC, id DESC LIMIT 1`,
		id.Fingerprint, id.Address, now)
	rec, err := scanBan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *ModerationStore) ActiveBans(ctx context.Context, now time.Time) ([]moderation.BanRecord, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, fingerprint, ip, username, banned_at, ban_end_time, reason, banned_by
		 FROM banned_users
		 WHERE ban_end_time IS NULL OR ban_end_time > $1
		 ORDER BY banned_at DESC, id DESC`, now)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows)
	out := make([]moderation.BanRecord, 0)
	for rows.Next() {
		rec, err := scanBan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *ModerationStore) LiftBans(ctx context.Context, id moderation.Identity, now time.Time) (int64, error) {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE banned_users SET ban_end_time = $3
		 WHERE `+identityMatch+`
		   AND (ban_end_time IS NULL OR ban_end_time > $3)`,
		id.Fingerprint, id.Address, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// InsertMute performs the escalation-count read-modify-write inside a
// transaction guarded by an advisory lock keyed on the fingerprint, so two
// concurrent mutes for the same identity serialize instead of both reading
// the same prior count.
func (s *ModerationStore) InsertMute(ctx context.Context, rec moderation.MuteRecord) (moderation.MuteRecord, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return moderation.MuteRecord{}, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, rec.Fingerprint); err != nil {
		return moderation.MuteRecord{}, fmt.Errorf("acquire mute lock: %w", err)
	}

	var prior int
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(mute_count), 0) FROM muted_users
		 WHERE fingerprint = $1 AND mute_end_time > $2`,
		rec.Fingerprint, rec.CreatedAt).Scan(&prior)
	if err != nil {
		return moderation.MuteRecord{}, err
	}
	rec.EscalationCount = prior + 1

	err = tx.QueryRowContext(ctx,
		`INSERT INTO muted_users (fingerprint, username, ip, muted_at, mute_end_time, reason, muted_by, mute_count)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		rec.Fingerprint, rec.DisplayName, rec.Address, rec.CreatedAt, rec.ExpiresAt, rec.Reason, rec.IssuedBy, rec.EscalationCount,
	).Scan(&rec.ID)
	if err != nil {
		return moderation.MuteRecord{}, err
	}
	if err := tx.Commit(); err != nil {
		return moderation.MuteRecord{}, err
	}
	return rec, nil
}

func (s *ModerationStore) ActiveMute(ctx context.Context, fingerprint string, now time.Time) (*moderation.MuteRecord, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT id, fingerprint, username, ip, muted_at, mute_end_time, reason, muted_by, mute_count
		 FROM muted_users
		 WHERE fingerprint = $1 AND mute_end_time > $2
		 ORDER BY muted_at DESC, id DESC LIMIT 1`,
		fingerprint, now)
	rec, err := scanMute(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *ModerationStore) ActiveMutes(ctx context.Context, now time.Time) ([]moderation.MuteRecord, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, fingerprint, username, ip, muted_at, mute_end_time, reason, muted_by, mute_count
		 FROM muted_users
		 WHERE mute_end_time > $1
		 ORDER BY muted_at DESC, id DESC`, now)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows)
	out := make([]moderation.MuteRecord, 0)
	for rows.Next() {
		rec, err := scanMute(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *ModerationStore) LiftMutes(ctx context.Context, fingerprint string, now time.Time) (int64, error) {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE muted_users SET mute_end_time = $2
		 WHERE fingerprint = $1 AND mute_end_time > $2`,
		fingerprint, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *ModerationStore) DeleteExpiredMutes(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.DB.ExecContext(ctx,
		`DELETE FROM muted_users WHERE mute_end_time <= $1`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *ModerationStore) AppendAudit(ctx context.Context, e moderation.AuditEntry) error {
	details := "{}"
	if len(e.Detail) > 0 {
		b, err := json.Marshal(e.Detail)
		if err != nil {
			return fmt.Errorf("marshal audit detail: %w", err)
		}
		details = string(b)
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO activity_logs (action_type, username, ip_address, fingerprint, details, severity, admin_username, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		string(e.Category), e.DisplayName, e.Address, e.Fingerprint, details, string(e.Severity), e.Actor, e.CreatedAt)
	return err
}

func (s *ModerationStore) RecentAudit(ctx context.Context, limit int) ([]moderation.AuditEntry, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, action_type, username, ip_address, fingerprint, details, severity, admin_username, created_at
		 FROM activity_logs
		 ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows)
	out := make([]moderation.AuditEntry, 0, limit)
	for rows.Next() {
		var e moderation.AuditEntry
		var category, severity, details string
		if err := rows.Scan(&e.ID, &category, &e.DisplayName, &e.Address, &e.Fingerprint, &details, &severity, &e.Actor, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Category = moderation.Category(category)
		e.Severity = moderation.Severity(severity)
		if details != "" && details != "{}" {
			if err := json.Unmarshal([]byte(details), &e.Detail); err != nil {
				// A malformed payload shouldn't hide the rest of the entry.
				e.Detail = map[string]any{"raw": details}
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBan(row rowScanner) (moderation.BanRecord, error) {
	var rec moderation.BanRecord
	var end sql.NullTime
	err := row.Scan(&rec.ID, &rec.Fingerprint, &rec.Address, &rec.DisplayName, &rec.CreatedAt, &end, &rec.Reason, &rec.IssuedBy)
	if err != nil {
		return moderation.BanRecord{}, err
	}
	if end.Valid {
		t := end.Time
		rec.ExpiresAt = &t
	}
	return rec, nil
}

func scanMute(row rowScanner) (moderation.MuteRecord, error) {
	var rec moderation.MuteRecord
	err := row.Scan(&rec.ID, &rec.Fingerprint, &rec.DisplayName, &rec.Address, &rec.CreatedAt, &rec.ExpiresAt, &rec.Reason, &rec.IssuedBy, &rec.EscalationCount)
	if err != nil {
		return moderation.MuteRecord{}, err
	}
	return rec, nil
}

func closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		slog.Warn("failed to close rows", slog.Any("err", err))
	}
}
