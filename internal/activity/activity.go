// Package activity implements the append-only activity log behind the live feed.
//
// One event is recorded per successful leaderboard write: a user joining,
// a score refresh, a tier change, or an NFT mint. Events are never updated
// or deleted.
package activity

import (
	"context"
	"time"
)

// ActionType identifies what happened.
type ActionType string

const (
	ActionJoined       ActionType = "joined"
	ActionScoreUpdated ActionType = "score_updated"
	ActionTierAchieved ActionType = "tier_achieved"
	ActionNFTMinted    ActionType = "nft_minted"
)

// ActionData is the small structured payload attached to an event.
// PreviousTier is set only for tier_achieved events.
type ActionData struct {
	Score        int    `json:"score,omitempty"`
	Tier         string `json:"tier,omitempty"`
	PreviousTier string `json:"previousTier,omitempty"`
	TokenID      string `json:"tokenId,omitempty"`
}

// Event is one immutable activity record.
type Event struct {
	ID         int64      `json:"id"`
	FID        int64      `json:"fid"`
	Username   string     `json:"username"`
	AvatarURL  string     `json:"avatarUrl,omitempty"`
	ActionType ActionType `json:"actionType"`
	ActionData ActionData `json:"actionData"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// Store persists activity events.
type Store interface {
	// Append records one event. The store assigns ID and CreatedAt.
	Append(ctx context.Context, event *Event) error
	// Recent returns up to limit events, newest first.
	Recent(ctx context.Context, limit int) ([]*Event, error)
}
