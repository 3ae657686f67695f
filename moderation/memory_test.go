package moderation

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMemoryStoreTieBreakSameCreatedAt(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// Two active bans with identical CreatedAt; the higher id wins.
	if _, err := store.InsertBan(ctx, BanRecord{Fingerprint: "fp1", CreatedAt: t0, Reason: "first"}); err != nil {
		t.Fatal(err)
	}
	if _, err := store.InsertBan(ctx, BanRecord{Fingerprint: "fp1", CreatedAt: t0, Reason: "second"}); err != nil {
		t.Fatal(err)
	}

	got, err := store.ActiveBan(ctx, Identity{Fingerprint: "fp1"}, t0)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.Reason != "second" {
		t.Errorf("ActiveBan = %+v, want the later insert (reason=second)", got)
	}
}

func TestMemoryStoreConcurrentMutes(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	const workers = 20
	var wg sync.WaitGroup
	counts := make(chan int, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec, err := store.InsertMute(ctx, MuteRecord{
				Fingerprint: "fp1",
				CreatedAt:   t0,
				ExpiresAt:   t0.Add(time.Hour),
			})
			if err != nil {
				t.Errorf("InsertMute: %v", err)
				return
			}
			counts <- rec.EscalationCount
		}()
	}
	wg.Wait()
	close(counts)

	// Every escalation count must be unique: the read-modify-write is
	// atomic, so concurrent mutes serialize into 1..N.
	seen := make(map[int]bool)
	for c := range counts {
		if seen[c] {
			t.Errorf("duplicate escalation count %d", c)
		}
		seen[c] = true
	}
	for i := 1; i <= workers; i++ {
		if !seen[i] {
			t.Errorf("missing escalation count %d", i)
		}
	}
}

func TestMemoryStoreLiftBansSetsExpiryToNow(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	if _, err := store.InsertBan(ctx, BanRecord{Fingerprint: "fp1", CreatedAt: t0}); err != nil {
		t.Fatal(err)
	}

	liftAt := t0.Add(time.Minute)
	n, err := store.LiftBans(ctx, Identity{Fingerprint: "fp1"}, liftAt)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("lifted = %d, want 1", n)
	}

	// Row is kept for history, just no longer active.
	if got, _ := store.ActiveBan(ctx, Identity{Fingerprint: "fp1"}, liftAt); got != nil {
		t.Errorf("ban still active after lift: %+v", got)
	}
}

func TestMemoryStoreActiveBansNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	if _, err := store.InsertBan(ctx, BanRecord{Fingerprint: "fp1", CreatedAt: t0}); err != nil {
		t.Fatal(err)
	}
	if _, err := store.InsertBan(ctx, BanRecord{Fingerprint: "fp2", CreatedAt: t0.Add(time.Minute)}); err != nil {
		t.Fatal(err)
	}

	bans, err := store.ActiveBans(ctx, t0.Add(2*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if len(bans) != 2 {
		t.Fatalf("bans = %d, want 2", len(bans))
	}
	if bans[0].Fingerprint != "fp2" || bans[1].Fingerprint != "fp1" {
		t.Errorf("order = [%s %s], want newest first", bans[0].Fingerprint, bans[1].Fingerprint)
	}
}

func TestMemoryStoreRecentAuditNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	for _, cat := range []Category{CategoryBan, CategoryMute, CategoryUnban} {
		if err := store.AppendAudit(ctx, AuditEntry{Category: cat}); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := store.RecentAudit(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].Category != CategoryUnban || entries[1].Category != CategoryMute {
		t.Errorf("order = [%s %s], want newest first", entries[0].Category, entries[1].Category)
	}
}
