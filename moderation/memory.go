package moderation

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is the in-process Store backend. It applies the same pure
// matching and expiry predicates as the records themselves, which keeps it
// interchangeable with the Postgres store in the db package. A single
// mutex covers all mutations, so the mute escalation read-modify-write is
// trivially atomic.
type MemoryStore struct {
	mu      sync.Mutex
	banSeq  int64
	muteSeq int64
	audSeq  int64
	bans    []BanRecord
	mutes   []MuteRecord
	audits  []AuditEntry
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) InsertBan(_ context.Context, rec BanRecord) (BanRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.banSeq++
	rec.ID = m.banSeq
	m.bans = append(m.bans, rec)
	return rec, nil
}

func (m *MemoryStore) ActiveBan(_ context.Context, id Identity, now time.Time) (*BanRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *BanRecord
	for i := range m.bans {
		rec := m.bans[i]
		if !rec.ActiveAt(now) || !rec.Matches(id) {
			continue
		}
		if best == nil || rec.CreatedAt.After(best.CreatedAt) ||
			(rec.CreatedAt.Equal(best.CreatedAt) && rec.ID > best.ID) {
			cp := rec
			best = &cp
		}
	}
	return best, nil
}

func (m *MemoryStore) ActiveBans(_ context.Context, now time.Time) ([]BanRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]BanRecord, 0)
	for _, rec := range m.bans {
		if rec.ActiveAt(now) {
			out = append(out, rec)
		}
	}
	sortBansNewestFirst(out)
	return out, nil
}

func (m *MemoryStore) LiftBans(_ context.Context, id Identity, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for i := range m.bans {
		if m.bans[i].ActiveAt(now) && m.bans[i].Matches(id) {
			exp := now
			m.bans[i].ExpiresAt = &exp
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) InsertMute(_ context.Context, rec MuteRecord) (MuteRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prior := 0
	for _, existing := range m.mutes {
		if existing.Fingerprint == rec.Fingerprint && existing.ActiveAt(rec.CreatedAt) && existing.EscalationCount > prior {
			prior = existing.EscalationCount
		}
	}
	rec.EscalationCount = prior + 1
	m.muteSeq++
	rec.ID = m.muteSeq
	m.mutes = append(m.mutes, rec)
	return rec, nil
}

func (m *MemoryStore) ActiveMute(_ context.Context, fingerprint string, now time.Time) (*MuteRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := Identity{Fingerprint: fingerprint}
	var best *MuteRecord
	for i := range m.mutes {
		rec := m.mutes[i]
		if !rec.ActiveAt(now) || !rec.Matches(id) {
			continue
		}
		if best == nil || rec.CreatedAt.After(best.CreatedAt) ||
			(rec.CreatedAt.Equal(best.CreatedAt) && rec.ID > best.ID) {
			cp := rec
			best = &cp
		}
	}
	return best, nil
}

func (m *MemoryStore) ActiveMutes(_ context.Context, now time.Time) ([]MuteRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MuteRecord, 0)
	for _, rec := range m.mutes {
		if rec.ActiveAt(now) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (m *MemoryStore) LiftMutes(_ context.Context, fingerprint string, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for i := range m.mutes {
		if m.mutes[i].Fingerprint == fingerprint && m.mutes[i].ActiveAt(now) {
			m.mutes[i].ExpiresAt = now
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) DeleteExpiredMutes(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.mutes[:0]
	var removed int64
	for _, rec := range m.mutes {
		if rec.ActiveAt(now) {
			kept = append(kept, rec)
		} else {
			removed++
		}
	}
	m.mutes = kept
	return removed, nil
}

func (m *MemoryStore) AppendAudit(_ context.Context, e AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audSeq++
	e.ID = m.audSeq
	m.audits = append(m.audits, e)
	return nil
}

func (m *MemoryStore) RecentAudit(_ context.Context, limit int) ([]AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]AuditEntry, 0, limit)
	for i := len(m.audits) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.audits[i])
	}
	return out, nil
}

func sortBansNewestFirst(recs []BanRecord) {
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].CreatedAt.After(recs[j].CreatedAt)
		}
		return recs[i].ID > recs[j].ID
	})
}
