package realtime

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/ninerlabs/ninerscore/internal/activity"
)

func testHub() *Hub {
	return NewHub(slog.New(slog.DiscardHandler))
}

func feedMessage(ev *activity.Event) *Message {
	return &Message{Type: "activity", Timestamp: time.Now(), Event: ev}
}

func TestShouldSend_DefaultSubscription(t *testing.T) {
	h := testHub()
	client := &Client{} // zero subscription receives everything

	msg := feedMessage(&activity.Event{FID: 1, ActionType: activity.ActionJoined})
	if !h.shouldSend(client, msg) {
		t.Error("default subscription should receive all events")
	}
}

func TestShouldSend_ActionTypeFilter(t *testing.T) {
	h := testHub()
	client := &Client{sub: Subscription{
		ActionTypes: []activity.ActionType{activity.ActionTierAchieved, activity.ActionNFTMinted},
	}}

	if !h.shouldSend(client, feedMessage(&activity.Event{ActionType: activity.ActionTierAchieved})) {
		t.Error("should receive tier_achieved events")
	}
	if !h.shouldSend(client, feedMessage(&activity.Event{ActionType: activity.ActionNFTMinted})) {
		t.Error("should receive nft_minted events")
	}
	if h.shouldSend(client, feedMessage(&activity.Event{ActionType: activity.ActionScoreUpdated})) {
		t.Error("should NOT receive score_updated events")
	}
}

func TestShouldSend_FIDFilter(t *testing.T) {
	h := testHub()
	client := &Client{sub: Subscription{FIDs: []int64{42}}}

	if !h.shouldSend(client, feedMessage(&activity.Event{FID: 42, ActionType: activity.ActionJoined})) {
		t.Error("should match watched fid")
	}
	if h.shouldSend(client, feedMessage(&activity.Event{FID: 7, ActionType: activity.ActionJoined})) {
		t.Error("should NOT match other fids")
	}
}

func TestShouldSend_MinScoreFilter(t *testing.T) {
	h := testHub()
	client := &Client{sub: Subscription{MinScore: 500}}

	high := feedMessage(&activity.Event{ActionType: activity.ActionScoreUpdated, ActionData: activity.ActionData{Score: 890}})
	low := feedMessage(&activity.Event{ActionType: activity.ActionScoreUpdated, ActionData: activity.ActionData{Score: 120}})

	if !h.shouldSend(client, high) {
		t.Error("should receive high-score events")
	}
	if h.shouldSend(client, low) {
		t.Error("should NOT receive low-score events")
	}
}

func TestShouldSend_NilEvent(t *testing.T) {
	h := testHub()
	client := &Client{}
	if h.shouldSend(client, &Message{Type: "activity"}) {
		t.Error("message without event should never send")
	}
}

func TestBroadcastReachesHub(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	h.BroadcastActivity(&activity.Event{FID: 42, ActionType: activity.ActionJoined})

	deadline := time.After(time.Second)
	for h.totalEvents.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("broadcast never processed")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestBroadcastDropsWhenBufferFull(t *testing.T) {
	h := testHub() // Run not started, buffer fills up
	for i := 0; i < 300; i++ {
		h.BroadcastActivity(&activity.Event{FID: int64(i), ActionType: activity.ActionScoreUpdated})
	}
	// No deadlock is the assertion.
}

func TestStats(t *testing.T) {
	h := testHub()
	stats := h.Stats()
	if stats["connectedClients"] != 0 {
		t.Errorf("connectedClients = %v, want 0", stats["connectedClients"])
	}
}
