package activity

import (
	"context"
	"fmt"
	"testing"
)

func TestMemoryStoreAppendAssignsIDs(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	e1 := &Event{FID: 1, Username: "alice", ActionType: ActionJoined, ActionData: ActionData{Score: 420, Tier: "silver"}}
	e2 := &Event{FID: 1, Username: "alice", ActionType: ActionScoreUpdated, ActionData: ActionData{Score: 430, Tier: "silver"}}

	if err := store.Append(ctx, e1); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := store.Append(ctx, e2); err != nil {
		t.Fatalf("append: %v", err)
	}

	if e1.ID == 0 || e2.ID == 0 {
		t.Fatal("expected assigned IDs")
	}
	if e2.ID <= e1.ID {
		t.Fatalf("IDs not monotonic: %d then %d", e1.ID, e2.ID)
	}
	if e1.CreatedAt.IsZero() {
		t.Fatal("expected CreatedAt to be set")
	}
}

func TestMemoryStoreRecentNewestFirst(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 30; i++ {
		e := &Event{FID: int64(i + 1), Username: fmt.Sprintf("user%d", i), ActionType: ActionJoined}
		if err := store.Append(ctx, e); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	events, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(events) != 10 {
		t.Fatalf("got %d events, want 10", len(events))
	}
	for i := 1; i < len(events); i++ {
		if events[i].ID >= events[i-1].ID {
			t.Fatalf("events not newest-first at index %d", i)
		}
	}
	if events[0].FID != 30 {
		t.Fatalf("newest event fid = %d, want 30", events[0].FID)
	}
}

func TestMemoryStoreRecentDefaultLimit(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_ = store.Append(ctx, &Event{FID: int64(i + 1), ActionType: ActionScoreUpdated})
	}
	events, err := store.Recent(ctx, 0)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(events) != 5 {
		t.Fatalf("got %d events, want 5", len(events))
	}
}
