// Package leaderboard implements the durable score leaderboard.
//
// One row exists per Farcaster identity (fid). Score and all social-derived
// fields are only ever written by the server-side scoring computation; the
// identity behind a request is re-verified against the social provider
// before any write. Rows are created and refreshed through a single
// idempotent upsert keyed on fid.
package leaderboard

import (
	"context"
	"errors"
	"time"

	"github.com/ninerlabs/ninerscore/internal/score"
)

var (
	// ErrNotFound means no leaderboard entry exists for the identity.
	ErrNotFound = errors.New("leaderboard: entry not found")
	// ErrNotInLeaderboard means a base-score or mint operation arrived before
	// the identity ever submitted a social score. The row must originate from
	// the social-score path; nothing is created out of band.
	ErrNotInLeaderboard = errors.New("leaderboard: user not in leaderboard yet")
	// ErrAlreadyMinted rejects a second mint for the same identity.
	ErrAlreadyMinted = errors.New("leaderboard: nft already minted")
	// ErrUsernameMismatch means the claimed username does not belong to the fid.
	ErrUsernameMismatch = errors.New("leaderboard: username does not match fid")
	// ErrInvalidInput rejects malformed identities, hashes, or token IDs
	// before storage is touched.
	ErrInvalidInput = errors.New("leaderboard: invalid input")
)

// Entry is one leaderboard row.
//
// BaseScore and CombinedScore are nil until a wallet is linked: a user with
// no linked wallet is never shown with a spurious zero base score.
type Entry struct {
	FID         int64  `json:"fid"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName,omitempty"`
	AvatarURL   string `json:"avatarUrl,omitempty"`

	Score      int        `json:"score"`
	Tier       score.Tier `json:"tier"`
	Casts      int        `json:"casts"`
	Followers  int        `json:"followers"`
	Engagement float64    `json:"engagement"`

	BaseScore       *int     `json:"baseScore,omitempty"`
	CombinedScore   *int     `json:"combinedScore,omitempty"`
	WalletAddresses []string `json:"walletAddresses,omitempty"`

	NFTMinted          bool   `json:"nftMinted"`
	NFTTokenID         string `json:"nftTokenId,omitempty"`
	NFTTransactionHash string `json:"nftTransactionHash,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CombinedTier returns the combined-score tier, or "" when no wallet is linked.
func (e *Entry) CombinedTier() score.Tier {
	if e.CombinedScore == nil {
		return ""
	}
	return score.CombinedTierForScore(*e.CombinedScore)
}

// SortOrder selects the leaderboard ranking column.
type SortOrder string

const (
	SortByScore    SortOrder = "score"
	SortByCombined SortOrder = "combined"
)

// Store persists leaderboard entries.
//
// Implementations must make UpsertScore safe under concurrent submissions
// for the same fid: two racing submissions must end as one insert and one
// update, never two rows and never two inserted=true results.
type Store interface {
	// UpsertScore inserts or refreshes the score row for entry.FID. Only the
	// identity display fields and the social-derived score fields are
	// written; base-score and NFT state on an existing row are untouched.
	// It returns the stored row, the tier the row held before the write
	// ("" if the row was absent), and whether the row was inserted.
	UpsertScore(ctx context.Context, entry *Entry) (stored *Entry, previousTier score.Tier, inserted bool, err error)

	// UpdateBaseScore links wallets and caches the base score on an existing
	// row, deriving the combined score from the row's current social score
	// in the same logical unit. Returns ErrNotInLeaderboard if the row is
	// absent.
	UpdateBaseScore(ctx context.Context, fid int64, baseScore int, wallets []string) (*Entry, error)

	// RecordMint marks the one-time NFT mint, updating only the three NFT
	// fields. Returns ErrNotInLeaderboard if the row is absent and
	// ErrAlreadyMinted on a repeat mint.
	RecordMint(ctx context.Context, fid int64, tokenID, txHash string) (*Entry, error)

	GetByFID(ctx context.Context, fid int64) (*Entry, error)
	GetByUsername(ctx context.Context, username string) (*Entry, error)

	// Top returns up to limit entries ranked by the given order, descending.
	// SortByCombined ranks only rows with a combined score.
	Top(ctx context.Context, limit int, order SortOrder) ([]*Entry, error)
}
