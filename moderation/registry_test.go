package moderation

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testClock(t0 time.Time) func() time.Time {
	return func() time.Time { return t0 }
}

func TestRegistryBanAndCheck(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	r := NewRegistry(NewMemoryStore()).WithClock(testClock(t0))

	rec, err := r.Ban(ctx, Identity{Fingerprint: "fp1", Address: "203.0.113.7"}, "troll", "spam", Duration{Seconds: 600}, "mod")
	if err != nil {
		t.Fatalf("Ban: %v", err)
	}
	if rec.ID == 0 {
		t.Error("ban record should get an id")
	}
	if rec.ExpiresAt == nil || !rec.ExpiresAt.Equal(t0.Add(10*time.Minute)) {
		t.Errorf("ExpiresAt = %v, want %v", rec.ExpiresAt, t0.Add(10*time.Minute))
	}

	// Same fingerprint, different address
	got, err := r.IsBanned(ctx, Identity{Fingerprint: "fp1", Address: "198.51.100.1"})
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Error("expected ban by fingerprint")
	}

	// Same address, different fingerprint
	got, err = r.IsBanned(ctx, Identity{Fingerprint: "fp2", Address: "203.0.113.7"})
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Error("expected ban by address")
	}

	// Neither matches
	got, err = r.IsBanned(ctx, Identity{Fingerprint: "fp2", Address: "198.51.100.1"})
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("expected no ban, got %+v", got)
	}
}

func TestRegistryBanExpiry(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := t0
	r := NewRegistry(NewMemoryStore()).WithClock(func() time.Time { return now })

	if _, err := r.Ban(ctx, Identity{Fingerprint: "fp1"}, "", "", Duration{Seconds: 60}, "mod"); err != nil {
		t.Fatal(err)
	}

	got, _ := r.IsBanned(ctx, Identity{Fingerprint: "fp1"})
	if got == nil {
		t.Fatal("ban should be active before expiry")
	}

	// Exactly at expiry: exclusive comparison, no longer active.
	now = t0.Add(60 * time.Second)
	got, _ = r.IsBanned(ctx, Identity{Fingerprint: "fp1"})
	if got != nil {
		t.Error("ban should be inactive at its expiry instant")
	}
}

func TestRegistryPermanentBan(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := t0
	r := NewRegistry(NewMemoryStore()).WithClock(func() time.Time { return now })

	rec, err := r.Ban(ctx, Identity{Fingerprint: "fp1"}, "", "", Duration{Permanent: true}, "mod")
	if err != nil {
		t.Fatal(err)
	}
	if rec.ExpiresAt != nil {
		t.Errorf("permanent ban ExpiresAt = %v, want nil", rec.ExpiresAt)
	}

	now = t0.Add(10 * 365 * 24 * time.Hour)
	got, _ := r.IsBanned(ctx, Identity{Fingerprint: "fp1"})
	if got == nil {
		t.Error("permanent ban should still be active years later")
	}
}

func TestRegistryBanValidation(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(NewMemoryStore())

	_, err := r.Ban(ctx, Identity{}, "", "", Duration{Seconds: 60}, "mod")
	if !errors.Is(err, ErrValidation) {
		t.Errorf("ban with empty identity: err = %v, want ErrValidation", err)
	}

	// A zero-value duration (what an omitted request field produces) must be
	// rejected, not stored as an instantly-expired ban.
	_, err = r.Ban(ctx, Identity{Fingerprint: "fp1"}, "", "", Duration{}, "mod")
	if !errors.Is(err, ErrValidation) {
		t.Errorf("ban with zero duration: err = %v, want ErrValidation", err)
	}
	if bans, _ := r.ActiveBans(ctx); len(bans) != 0 {
		t.Errorf("rejected ban must not reach storage, got %d records", len(bans))
	}
}

func TestRegistryUnbanIdempotent(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	r := NewRegistry(NewMemoryStore()).WithClock(testClock(t0))

	if _, err := r.Ban(ctx, Identity{Fingerprint: "fp1"}, "", "", Duration{Permanent: true}, "mod"); err != nil {
		t.Fatal(err)
	}

	n, err := r.Unban(ctx, Identity{Fingerprint: "fp1"})
	if err != nil {
		t.Fatalf("first unban: %v", err)
	}
	if n != 1 {
		t.Errorf("first unban affected = %d, want 1", n)
	}

	// Second unban affects nothing but must not error.
	n, err = r.Unban(ctx, Identity{Fingerprint: "fp1"})
	if err != nil {
		t.Fatalf("second unban: %v", err)
	}
	if n != 0 {
		t.Errorf("second unban affected = %d, want 0", n)
	}

	if got, _ := r.IsBanned(ctx, Identity{Fingerprint: "fp1"}); got != nil {
		t.Error("ban should be lifted")
	}
}

func TestRegistryUnbanLiftsAllMatching(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	r := NewRegistry(NewMemoryStore()).WithClock(testClock(t0))

	// Two overlapping bans that both match the identity.
	if _, err := r.Ban(ctx, Identity{Fingerprint: "fp1"}, "", "first", Duration{Permanent: true}, "mod"); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Ban(ctx, Identity{Fingerprint: "fp1", Address: "203.0.113.7"}, "", "second", Duration{Seconds: 3600}, "mod"); err != nil {
		t.Fatal(err)
	}

	n, err := r.Unban(ctx, Identity{Fingerprint: "fp1"})
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("unban affected = %d, want 2", n)
	}
}

func TestRegistryMuteEscalation(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	r := NewRegistry(NewMemoryStore()).WithClock(testClock(t0))

	first, err := r.Mute(ctx, Identity{Fingerprint: "fp1"}, "chatter", "caps", Duration{Seconds: 300}, "mod")
	if err != nil {
		t.Fatalf("first mute: %v", err)
	}
	if first.EscalationCount != 1 {
		t.Errorf("first mute escalation = %d, want 1", first.EscalationCount)
	}

	// Second mute while the first is still active escalates.
	second, err := r.Mute(ctx, Identity{Fingerprint: "fp1"}, "chatter", "still caps", Duration{Seconds: 300}, "mod")
	if err != nil {
		t.Fatalf("second mute: %v", err)
	}
	if second.EscalationCount != 2 {
		t.Errorf("second mute escalation = %d, want 2", second.EscalationCount)
	}

	// A different fingerprint starts at 1.
	other, err := r.Mute(ctx, Identity{Fingerprint: "fp2"}, "", "", Duration{Seconds: 300}, "mod")
	if err != nil {
		t.Fatal(err)
	}
	if other.EscalationCount != 1 {
		t.Errorf("other fingerprint escalation = %d, want 1", other.EscalationCount)
	}
}

func TestRegistryMuteValidation(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(NewMemoryStore())

	// Mute requires a fingerprint, address alone is not enough.
	_, err := r.Mute(ctx, Identity{Address: "203.0.113.7"}, "", "", Duration{Seconds: 60}, "mod")
	if !errors.Is(err, ErrValidation) {
		t.Errorf("mute without fingerprint: err = %v, want ErrValidation", err)
	}

	// Mutes cannot be permanent.
	_, err = r.Mute(ctx, Identity{Fingerprint: "fp1"}, "", "", Duration{Permanent: true}, "mod")
	if !errors.Is(err, ErrValidation) {
		t.Errorf("permanent mute: err = %v, want ErrValidation", err)
	}

	// A zero-value duration is rejected before any storage call.
	_, err = r.Mute(ctx, Identity{Fingerprint: "fp1"}, "", "", Duration{}, "mod")
	if !errors.Is(err, ErrValidation) {
		t.Errorf("mute with zero duration: err = %v, want ErrValidation", err)
	}
	if mutes, _ := r.ActiveMutes(ctx); len(mutes) != 0 {
		t.Errorf("rejected mute must not reach storage, got %d records", len(mutes))
	}
}

func TestRegistryMuteDoesNotMatchByAddress(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	r := NewRegistry(NewMemoryStore()).WithClock(testClock(t0))

	if _, err := r.Mute(ctx, Identity{Fingerprint: "fp1", Address: "203.0.113.7"}, "", "", Duration{Seconds: 300}, "mod"); err != nil {
		t.Fatal(err)
	}

	got, err := r.IsMuted(ctx, Identity{Fingerprint: "fp2", Address: "203.0.113.7"})
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Error("mute must not match a different fingerprint via shared address")
	}

	if got, _ := r.IsMuted(ctx, Identity{Address: "203.0.113.7"}); got != nil {
		t.Error("mute lookup without fingerprint must return nil")
	}
}

func TestRegistryUnmuteIdempotent(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	r := NewRegistry(NewMemoryStore()).WithClock(testClock(t0))

	if _, err := r.Mute(ctx, Identity{Fingerprint: "fp1"}, "", "", Duration{Seconds: 300}, "mod"); err != nil {
		t.Fatal(err)
	}

	n, err := r.Unmute(ctx, Identity{Fingerprint: "fp1"})
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("unmute affected = %d, want 1", n)
	}
	n, err = r.Unmute(ctx, Identity{Fingerprint: "fp1"})
	if err != nil {
		t.Fatalf("second unmute: %v", err)
	}
	if n != 0 {
		t.Errorf("second unmute affected = %d, want 0", n)
	}
}

func TestRegistryPurgeExpiredMutes(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := t0
	r := NewRegistry(NewMemoryStore()).WithClock(func() time.Time { return now })

	if _, err := r.Mute(ctx, Identity{Fingerprint: "fp1"}, "", "", Duration{Seconds: 60}, "mod"); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Mute(ctx, Identity{Fingerprint: "fp2"}, "", "", Duration{Seconds: 3600}, "mod"); err != nil {
		t.Fatal(err)
	}

	now = t0.Add(10 * time.Minute)
	removed, err := r.PurgeExpiredMutes(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Errorf("purge removed = %d, want 1", removed)
	}

	mutes, err := r.ActiveMutes(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(mutes) != 1 || mutes[0].Fingerprint != "fp2" {
		t.Errorf("ActiveMutes after purge = %+v, want only fp2", mutes)
	}
}

func TestRegistryMostRecentBanWins(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := t0
	r := NewRegistry(NewMemoryStore()).WithClock(func() time.Time { return now })

	if _, err := r.Ban(ctx, Identity{Fingerprint: "fp1"}, "", "first", Duration{Permanent: true}, "mod"); err != nil {
		t.Fatal(err)
	}
	now = t0.Add(time.Minute)
	if _, err := r.Ban(ctx, Identity{Fingerprint: "fp1"}, "", "second", Duration{Permanent: true}, "mod"); err != nil {
		t.Fatal(err)
	}

	got, err := r.IsBanned(ctx, Identity{Fingerprint: "fp1"})
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.Reason != "second" {
		t.Errorf("IsBanned = %+v, want most recent ban (reason=second)", got)
	}
}
