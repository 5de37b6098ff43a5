package leaderboard

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/codes"

	"github.com/ninerlabs/ninerscore/internal/activity"
	"github.com/ninerlabs/ninerscore/internal/basechain"
	"github.com/ninerlabs/ninerscore/internal/farcaster"
	"github.com/ninerlabs/ninerscore/internal/metrics"
	"github.com/ninerlabs/ninerscore/internal/score"
	"github.com/ninerlabs/ninerscore/internal/traces"
	"github.com/ninerlabs/ninerscore/internal/validation"
)

// Broadcaster pushes activity events to live feed subscribers.
type Broadcaster interface {
	BroadcastActivity(event *activity.Event)
}

// Service implements the scoring and leaderboard business logic.
//
// Scores are always recomputed server-side from provider data; nothing a
// client sends can set a score directly.
type Service struct {
	store       Store
	social      farcaster.Provider
	chain       basechain.Provider
	activities  activity.Store
	broadcaster Broadcaster
	logger      *slog.Logger
}

// NewService creates a new leaderboard service.
func NewService(store Store, social farcaster.Provider, chain basechain.Provider, activities activity.Store, logger *slog.Logger) *Service {
	return &Service{
		store:      store,
		social:     social,
		chain:      chain,
		activities: activities,
		logger:     logger,
	}
}

// WithBroadcaster adds a live feed broadcaster.
func (s *Service) WithBroadcaster(b Broadcaster) *Service {
	s.broadcaster = b
	return s
}

// SubmitResult is the outcome of one score submission.
type SubmitResult struct {
	Entry     *Entry          `json:"entry"`
	Breakdown score.Breakdown `json:"breakdown"`
	Inserted  bool            `json:"-"`
}

// SubmitScore recomputes the niner score for the given identity and upserts
// its leaderboard row. The username must match what the social provider
// reports for the fid; a mismatch means the caller is trying to score as
// someone else.
//
// Resubmission is idempotent on the row: the same identity always maps to the
// same row, refreshed in place.
func (s *Service) SubmitScore(ctx context.Context, fid int64, username string) (*SubmitResult, error) {
	if !validation.IsValidFID(fid) {
		return nil, fmt.Errorf("%w: fid %d out of range", ErrInvalidInput, fid)
	}
	if !validation.IsValidUsername(username) {
		return nil, fmt.Errorf("%w: malformed username", ErrInvalidInput)
	}

	ctx, span := traces.StartSpan(ctx, "leaderboard.SubmitScore",
		traces.FID(fid), traces.Username(username))
	defer span.End()

	user, err := s.social.UserByFID(ctx, fid)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "social provider lookup failed")
		return nil, err
	}
	if !strings.EqualFold(user.Username, validation.SanitizeUsername(username)) {
		return nil, ErrUsernameMismatch
	}

	stats, err := s.social.CastStats(ctx, fid)
	if err != nil {
		return nil, err
	}

	breakdown := score.NinerScoreBreakdown(score.SocialMetrics{
		Followers:  user.FollowerCount,
		Following:  user.FollowingCount,
		Casts:      stats.TotalCasts,
		Replies:    stats.TotalReplies,
		Recasts:    stats.TotalRecasts,
		Likes:      stats.TotalLikes,
		PowerBadge: user.PowerBadge,
	})
	tier := score.TierForScore(breakdown.Total)

	entry := &Entry{
		FID:         fid,
		Username:    user.Username,
		DisplayName: user.DisplayName,
		AvatarURL:   user.AvatarURL,
		Score:       breakdown.Total,
		Tier:        tier,
		Casts:       stats.TotalCasts,
		Followers:   user.FollowerCount,
		Engagement:  score.Engagement(stats.TotalLikes, stats.TotalRecasts, stats.TotalCasts, user.FollowerCount),
	}

	stored, previousTier, inserted, err := s.store.UpsertScore(ctx, entry)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "leaderboard upsert failed")
		return nil, fmt.Errorf("upsert score: %w", err)
	}
	span.SetAttributes(traces.Score(stored.Score), traces.Tier(string(stored.Tier)))
	metrics.ScoreSubmissionsTotal.WithLabelValues(string(tier)).Inc()

	s.emit(ctx, submissionEvent(stored, previousTier, inserted))

	return &SubmitResult{Entry: stored, Breakdown: breakdown, Inserted: inserted}, nil
}

// submissionEvent picks the one event a submission produces: joined for a new
// row, tier_achieved when the tier moved, score_updated otherwise.
func submissionEvent(stored *Entry, previousTier score.Tier, inserted bool) *activity.Event {
	ev := &activity.Event{
		FID:       stored.FID,
		Username:  stored.Username,
		AvatarURL: stored.AvatarURL,
		ActionData: activity.ActionData{
			Score: stored.Score,
			Tier:  string(stored.Tier),
		},
	}
	switch {
	case inserted:
		ev.ActionType = activity.ActionJoined
	case previousTier != stored.Tier:
		ev.ActionType = activity.ActionTierAchieved
		ev.ActionData.PreviousTier = string(previousTier)
	default:
		ev.ActionType = activity.ActionScoreUpdated
	}
	return ev
}

// CacheBaseScore aggregates on-chain activity for the given wallets, computes
// the base score server-side, and caches it on the identity's existing row
// together with the derived combined score. The identity must already be on
// the leaderboard.
func (s *Service) CacheBaseScore(ctx context.Context, fid int64, wallets []string) (*Entry, *basechain.Activity, error) {
	if !validation.IsValidFID(fid) {
		return nil, nil, fmt.Errorf("%w: fid %d out of range", ErrInvalidInput, fid)
	}
	wallets = validation.SanitizeAddresses(wallets)
	if len(wallets) == 0 {
		return nil, nil, fmt.Errorf("%w: no valid wallet addresses", ErrInvalidInput)
	}

	ctx, span := traces.StartSpan(ctx, "leaderboard.CacheBaseScore",
		traces.FID(fid), traces.Wallet(wallets[0]))
	defer span.End()

	act, err := s.chain.Activity(ctx, wallets)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "chain activity fetch failed")
		metrics.ProviderErrorsTotal.WithLabelValues("base_rpc").Inc()
		return nil, nil, err
	}
	baseScore := score.ComputeBaseScore(act.ChainActivity())

	entry, err := s.store.UpdateBaseScore(ctx, fid, baseScore, wallets)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "base score update failed")
		return nil, nil, err
	}
	span.SetAttributes(traces.Score(baseScore))
	metrics.BaseScoreUpdatesTotal.Inc()

	return entry, act, nil
}

// BaseActivity returns raw aggregated wallet activity without touching the
// leaderboard.
func (s *Service) BaseActivity(ctx context.Context, wallets []string) (*basechain.Activity, error) {
	wallets = validation.SanitizeAddresses(wallets)
	if len(wallets) == 0 {
		return nil, fmt.Errorf("%w: no valid wallet addresses", ErrInvalidInput)
	}
	act, err := s.chain.Activity(ctx, wallets)
	if err != nil {
		metrics.ProviderErrorsTotal.WithLabelValues("base_rpc").Inc()
		return nil, err
	}
	return act, nil
}

// RecordMint records the identity's one-time score NFT mint.
func (s *Service) RecordMint(ctx context.Context, fid int64, tokenID, txHash string) (*Entry, error) {
	if !validation.IsValidFID(fid) {
		return nil, fmt.Errorf("%w: fid %d out of range", ErrInvalidInput, fid)
	}
	if !validation.IsValidTokenID(tokenID) {
		return nil, fmt.Errorf("%w: malformed token id", ErrInvalidInput)
	}
	if !validation.IsValidTxHash(txHash) {
		return nil, fmt.Errorf("%w: malformed transaction hash", ErrInvalidInput)
	}

	ctx, span := traces.StartSpan(ctx, "leaderboard.RecordMint", traces.FID(fid))
	defer span.End()

	entry, err := s.store.RecordMint(ctx, fid, tokenID, txHash)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "mint record failed")
		return nil, err
	}
	metrics.NFTMintsTotal.Inc()

	s.emit(ctx, &activity.Event{
		FID:        entry.FID,
		Username:   entry.Username,
		AvatarURL:  entry.AvatarURL,
		ActionType: activity.ActionNFTMinted,
		ActionData: activity.ActionData{
			Score:   entry.Score,
			Tier:    string(entry.Tier),
			TokenID: tokenID,
		},
	})

	return entry, nil
}

// GetByFID returns the leaderboard entry for a fid.
func (s *Service) GetByFID(ctx context.Context, fid int64) (*Entry, error) {
	if !validation.IsValidFID(fid) {
		return nil, fmt.Errorf("%w: fid %d out of range", ErrInvalidInput, fid)
	}
	return s.store.GetByFID(ctx, fid)
}

// GetByUsername returns the leaderboard entry for a username.
func (s *Service) GetByUsername(ctx context.Context, username string) (*Entry, error) {
	if !validation.IsValidUsername(username) {
		return nil, fmt.Errorf("%w: malformed username", ErrInvalidInput)
	}
	return s.store.GetByUsername(ctx, validation.SanitizeUsername(username))
}

// Top returns the ranked leaderboard.
func (s *Service) Top(ctx context.Context, limit int, order SortOrder) ([]*Entry, error) {
	return s.store.Top(ctx, limit, order)
}

// emit appends an activity event and fans it out to the live feed.
// Emission is best-effort: the leaderboard write already committed, so a
// failed append is logged, never propagated.
func (s *Service) emit(ctx context.Context, ev *activity.Event) {
	if err := s.activities.Append(ctx, ev); err != nil {
		s.logger.Warn("activity append failed",
			"fid", ev.FID, "action", ev.ActionType, "error", err)
		return
	}
	metrics.ActivityEventsTotal.WithLabelValues(string(ev.ActionType)).Inc()
	if s.broadcaster != nil {
		s.broadcaster.BroadcastActivity(ev)
	}
}
