package leaderboard

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/ninerlabs/ninerscore/internal/activity"
	"github.com/ninerlabs/ninerscore/internal/basechain"
	"github.com/ninerlabs/ninerscore/internal/farcaster"
	"github.com/ninerlabs/ninerscore/internal/score"
)

type fakeSocial struct {
	users map[int64]*farcaster.User
	stats map[int64]farcaster.CastStats
	err   error
}

func (f *fakeSocial) UserByFID(_ context.Context, fid int64) (*farcaster.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	if u, ok := f.users[fid]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, farcaster.ErrNotFound
}

func (f *fakeSocial) UserByUsername(_ context.Context, username string) (*farcaster.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, u := range f.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, farcaster.ErrNotFound
}

func (f *fakeSocial) CastStats(_ context.Context, fid int64) (farcaster.CastStats, error) {
	if f.err != nil {
		return farcaster.CastStats{}, f.err
	}
	return f.stats[fid], nil
}

type fakeChainProvider struct {
	act *basechain.Activity
	err error
}

func (f *fakeChainProvider) Activity(_ context.Context, _ []string) (*basechain.Activity, error) {
	if f.err != nil {
		return nil, f.err
	}
	cp := *f.act
	return &cp, nil
}

func newTestService(social *fakeSocial, chain *fakeChainProvider) (*Service, *activity.MemoryStore) {
	activities := activity.NewMemoryStore()
	svc := NewService(NewMemoryStore(), social, chain, activities, slog.New(slog.DiscardHandler))
	return svc, activities
}

func alice() *fakeSocial {
	return &fakeSocial{
		users: map[int64]*farcaster.User{
			42: {FID: 42, Username: "alice", DisplayName: "Alice", FollowerCount: 100},
		},
		stats: map[int64]farcaster.CastStats{},
	}
}

func TestSubmitScoreJoinsThenUpdates(t *testing.T) {
	svc, activities := newTestService(alice(), &fakeChainProvider{})
	ctx := context.Background()

	first, err := svc.SubmitScore(ctx, 42, "alice")
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if !first.Inserted {
		t.Error("first submission should insert")
	}
	if first.Entry.Score != 50 { // 100 followers * 0.5
		t.Errorf("score = %d, want 50", first.Entry.Score)
	}
	if first.Entry.Tier != score.TierBronze {
		t.Errorf("tier = %s, want bronze", first.Entry.Tier)
	}

	second, err := svc.SubmitScore(ctx, 42, "alice")
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}
	if second.Inserted {
		t.Error("resubmission must not insert a second row")
	}

	events, _ := activities.Recent(ctx, 10)
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	// Newest first: score_updated then joined.
	if events[0].ActionType != activity.ActionScoreUpdated {
		t.Errorf("second event = %s, want score_updated", events[0].ActionType)
	}
	if events[1].ActionType != activity.ActionJoined {
		t.Errorf("first event = %s, want joined", events[1].ActionType)
	}
}

func TestSubmitScoreTierChangeEmitsTierAchieved(t *testing.T) {
	social := alice()
	svc, activities := newTestService(social, &fakeChainProvider{})
	ctx := context.Background()

	if _, err := svc.SubmitScore(ctx, 42, "alice"); err != nil {
		t.Fatalf("first submit: %v", err)
	}

	// Growth pushes the score over the silver boundary.
	social.users[42].FollowerCount = 1000
	social.stats[42] = farcaster.CastStats{TotalCasts: 10}

	result, err := svc.SubmitScore(ctx, 42, "alice")
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}
	if result.Entry.Tier != score.TierSilver {
		t.Fatalf("tier = %s, want silver", result.Entry.Tier)
	}

	events, _ := activities.Recent(ctx, 1)
	if events[0].ActionType != activity.ActionTierAchieved {
		t.Fatalf("event = %s, want tier_achieved", events[0].ActionType)
	}
	if events[0].ActionData.PreviousTier != string(score.TierBronze) {
		t.Errorf("previousTier = %q, want bronze", events[0].ActionData.PreviousTier)
	}
}

func TestSubmitScoreUsernameMismatch(t *testing.T) {
	svc, activities := newTestService(alice(), &fakeChainProvider{})

	_, err := svc.SubmitScore(context.Background(), 42, "mallory")
	if !errors.Is(err, ErrUsernameMismatch) {
		t.Fatalf("err = %v, want ErrUsernameMismatch", err)
	}
	if events, _ := activities.Recent(context.Background(), 10); len(events) != 0 {
		t.Error("rejected submission must not emit events")
	}
}

func TestSubmitScoreUnknownUser(t *testing.T) {
	svc, _ := newTestService(alice(), &fakeChainProvider{})
	if _, err := svc.SubmitScore(context.Background(), 7, "ghost"); !errors.Is(err, farcaster.ErrNotFound) {
		t.Fatalf("err = %v, want farcaster.ErrNotFound", err)
	}
}

func TestSubmitScoreProviderDown(t *testing.T) {
	svc, _ := newTestService(&fakeSocial{err: farcaster.ErrUnavailable}, &fakeChainProvider{})
	if _, err := svc.SubmitScore(context.Background(), 42, "alice"); !errors.Is(err, farcaster.ErrUnavailable) {
		t.Fatalf("err = %v, want farcaster.ErrUnavailable", err)
	}
}

func TestSubmitScoreInvalidInput(t *testing.T) {
	svc, _ := newTestService(alice(), &fakeChainProvider{})
	ctx := context.Background()

	if _, err := svc.SubmitScore(ctx, 0, "alice"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("fid 0: err = %v, want ErrInvalidInput", err)
	}
	if _, err := svc.SubmitScore(ctx, 42, "not a user!"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("bad username: err = %v, want ErrInvalidInput", err)
	}
}

func TestCacheBaseScoreDerivesCombined(t *testing.T) {
	chain := &fakeChainProvider{act: &basechain.Activity{
		BalanceEth:           0.5,
		TransactionCount:     50,
		NFTCount:             5,
		ContractInteractions: 7,
	}}
	svc, _ := newTestService(alice(), chain)
	ctx := context.Background()

	if _, err := svc.SubmitScore(ctx, 42, "alice"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	entry, act, err := svc.CacheBaseScore(ctx, 42, []string{"0x1111111111111111111111111111111111111111"})
	if err != nil {
		t.Fatalf("cache base score: %v", err)
	}
	if entry.BaseScore == nil || *entry.BaseScore != 470 {
		t.Fatalf("baseScore = %v, want 470", entry.BaseScore)
	}
	want := score.Combine(entry.Score, 470)
	if entry.CombinedScore == nil || *entry.CombinedScore != want {
		t.Fatalf("combinedScore = %v, want %d", entry.CombinedScore, want)
	}
	if act.TransactionCount != 50 {
		t.Errorf("activity txCount = %d, want 50", act.TransactionCount)
	}
	if len(entry.WalletAddresses) != 1 {
		t.Errorf("wallets = %v, want one linked", entry.WalletAddresses)
	}
}

func TestCacheBaseScoreRequiresMembership(t *testing.T) {
	chain := &fakeChainProvider{act: &basechain.Activity{}}
	svc, _ := newTestService(alice(), chain)

	_, _, err := svc.CacheBaseScore(context.Background(), 42, []string{"0x1111111111111111111111111111111111111111"})
	if !errors.Is(err, ErrNotInLeaderboard) {
		t.Fatalf("err = %v, want ErrNotInLeaderboard", err)
	}
}

func TestCacheBaseScoreRejectsBadWallets(t *testing.T) {
	svc, _ := newTestService(alice(), &fakeChainProvider{act: &basechain.Activity{}})
	_, _, err := svc.CacheBaseScore(context.Background(), 42, []string{"nonsense"})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestResubmissionPreservesBaseScore(t *testing.T) {
	chain := &fakeChainProvider{act: &basechain.Activity{TransactionCount: 50}}
	svc, _ := newTestService(alice(), chain)
	ctx := context.Background()

	if _, err := svc.SubmitScore(ctx, 42, "alice"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, _, err := svc.CacheBaseScore(ctx, 42, []string{"0x1111111111111111111111111111111111111111"}); err != nil {
		t.Fatalf("cache base score: %v", err)
	}

	result, err := svc.SubmitScore(ctx, 42, "alice")
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if result.Entry.BaseScore == nil || *result.Entry.BaseScore != 150 {
		t.Fatalf("baseScore = %v, want 150 preserved across resubmission", result.Entry.BaseScore)
	}
	if len(result.Entry.WalletAddresses) != 1 {
		t.Error("wallets should survive resubmission")
	}
}

func TestRecordMintOnce(t *testing.T) {
	svc, activities := newTestService(alice(), &fakeChainProvider{})
	ctx := context.Background()

	if _, err := svc.SubmitScore(ctx, 42, "alice"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	txHash := "0x" + strings.Repeat("ab", 32)
	entry, err := svc.RecordMint(ctx, 42, "42-1700000000", txHash)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if !entry.NFTMinted || entry.NFTTokenID != "42-1700000000" {
		t.Fatalf("unexpected mint state: %+v", entry)
	}

	if _, err := svc.RecordMint(ctx, 42, "42-1700000001", txHash); !errors.Is(err, ErrAlreadyMinted) {
		t.Fatalf("err = %v, want ErrAlreadyMinted", err)
	}

	events, _ := activities.Recent(ctx, 1)
	if events[0].ActionType != activity.ActionNFTMinted {
		t.Fatalf("event = %s, want nft_minted", events[0].ActionType)
	}
	if events[0].ActionData.TokenID != "42-1700000000" {
		t.Errorf("event tokenId = %q", events[0].ActionData.TokenID)
	}
}

func TestRecordMintValidation(t *testing.T) {
	svc, _ := newTestService(alice(), &fakeChainProvider{})
	ctx := context.Background()

	if _, err := svc.RecordMint(ctx, 42, "bogus", "0xdeadbeef"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
	if _, err := svc.RecordMint(ctx, 42, "42-1", "0xdeadbeef"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("short hash: err = %v, want ErrInvalidInput", err)
	}
}
