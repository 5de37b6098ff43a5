package leaderboard

import (
	"context"
	"errors"
	"testing"

	"github.com/ninerlabs/ninerscore/internal/score"
)

func entryFixture(fid int64, username string, s int) *Entry {
	return &Entry{
		FID:      fid,
		Username: username,
		Score:    s,
		Tier:     score.TierForScore(s),
	}
}

func TestMemoryUpsertInsertThenUpdate(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	stored, prev, inserted, err := store.UpsertScore(ctx, entryFixture(1, "alice", 300))
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if !inserted || prev != "" {
		t.Fatalf("first upsert: inserted=%v prev=%q, want insert with empty prev", inserted, prev)
	}
	if stored.CreatedAt.IsZero() || stored.UpdatedAt.IsZero() {
		t.Error("timestamps not set")
	}

	stored, prev, inserted, err = store.UpsertScore(ctx, entryFixture(1, "alice", 600))
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if inserted {
		t.Error("second upsert must not insert")
	}
	if prev != score.TierSilver {
		t.Errorf("previous tier = %s, want silver", prev)
	}
	if stored.Score != 600 || stored.Tier != score.TierGold {
		t.Errorf("stored = %d/%s, want 600/gold", stored.Score, stored.Tier)
	}
}

func TestMemoryUpsertDoesNotTouchBaseOrMintState(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, _, _, _ = store.UpsertScore(ctx, entryFixture(1, "alice", 300))
	if _, err := store.UpdateBaseScore(ctx, 1, 400, []string{"0xabc"}); err != nil {
		t.Fatalf("update base: %v", err)
	}
	if _, err := store.RecordMint(ctx, 1, "1-1700000000", "0xhash"); err != nil {
		t.Fatalf("mint: %v", err)
	}

	stored, _, _, err := store.UpsertScore(ctx, entryFixture(1, "alice", 310))
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if stored.BaseScore == nil || *stored.BaseScore != 400 {
		t.Errorf("baseScore = %v, want 400 untouched", stored.BaseScore)
	}
	if !stored.NFTMinted || stored.NFTTokenID != "1-1700000000" {
		t.Error("mint state should survive score refresh")
	}
	if len(stored.WalletAddresses) != 1 {
		t.Error("wallets should survive score refresh")
	}
}

func TestMemoryUpdateBaseScoreCombines(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, _, _, _ = store.UpsertScore(ctx, entryFixture(1, "alice", 890))
	entry, err := store.UpdateBaseScore(ctx, 1, 760, []string{"0xabc"})
	if err != nil {
		t.Fatalf("update base: %v", err)
	}
	if entry.CombinedScore == nil || *entry.CombinedScore != 851 {
		t.Fatalf("combined = %v, want 851", entry.CombinedScore)
	}
	if entry.CombinedTier() != score.TierDiamond {
		t.Errorf("combined tier = %s, want diamond", entry.CombinedTier())
	}
}

func TestMemoryUpdateBaseScoreMissingRow(t *testing.T) {
	store := NewMemoryStore()
	if _, err := store.UpdateBaseScore(context.Background(), 99, 100, nil); !errors.Is(err, ErrNotInLeaderboard) {
		t.Fatalf("err = %v, want ErrNotInLeaderboard", err)
	}
}

func TestMemoryRecordMintTwice(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, _, _, _ = store.UpsertScore(ctx, entryFixture(1, "alice", 300))
	if _, err := store.RecordMint(ctx, 1, "1-1", "0xaa"); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := store.RecordMint(ctx, 1, "1-2", "0xbb"); !errors.Is(err, ErrAlreadyMinted) {
		t.Fatalf("err = %v, want ErrAlreadyMinted", err)
	}
}

func TestMemoryGetByUsernameCaseInsensitive(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, _, _, _ = store.UpsertScore(ctx, entryFixture(1, "Alice", 300))
	entry, err := store.GetByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if entry.FID != 1 {
		t.Errorf("fid = %d, want 1", entry.FID)
	}

	if _, err := store.GetByUsername(ctx, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestMemoryTopOrdering(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, _, _, _ = store.UpsertScore(ctx, entryFixture(1, "a", 100))
	_, _, _, _ = store.UpsertScore(ctx, entryFixture(2, "b", 900))
	_, _, _, _ = store.UpsertScore(ctx, entryFixture(3, "c", 500))
	_, _, _, _ = store.UpsertScore(ctx, entryFixture(4, "d", 500)) // tie with fid 3

	top, err := store.Top(ctx, 10, SortByScore)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	gotFIDs := make([]int64, 0, len(top))
	for _, e := range top {
		gotFIDs = append(gotFIDs, e.FID)
	}
	want := []int64{2, 3, 4, 1}
	for i := range want {
		if gotFIDs[i] != want[i] {
			t.Fatalf("order = %v, want %v", gotFIDs, want)
		}
	}

	top, err = store.Top(ctx, 2, SortByScore)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("got %d entries, want limit 2", len(top))
	}
}

func TestMemoryTopByCombinedSkipsUnlinked(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, _, _, _ = store.UpsertScore(ctx, entryFixture(1, "a", 999)) // no wallet linked
	_, _, _, _ = store.UpsertScore(ctx, entryFixture(2, "b", 100))
	if _, err := store.UpdateBaseScore(ctx, 2, 1000, []string{"0xabc"}); err != nil {
		t.Fatalf("update base: %v", err)
	}

	top, err := store.Top(ctx, 10, SortByCombined)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if len(top) != 1 || top[0].FID != 2 {
		t.Fatalf("combined board = %+v, want only fid 2", top)
	}
}

func TestMemoryCopiesAreIsolated(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, _, _, _ = store.UpsertScore(ctx, entryFixture(1, "alice", 300))
	got, _ := store.GetByFID(ctx, 1)
	got.Score = 999
	got.Username = "tampered"

	again, _ := store.GetByFID(ctx, 1)
	if again.Score != 300 || again.Username != "alice" {
		t.Error("mutating a returned entry must not affect the store")
	}
}
