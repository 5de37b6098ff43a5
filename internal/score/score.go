// Package score holds the scoring formulas.
//
// All three calculators are pure functions over already-fetched inputs, so the
// exact numbers here are testable without network access. Every persisted
// score in the system comes from this package; no other code does score math.
package score

import "math"

// Score ceilings. The social score is capped at 999 ("niner"), the on-chain
// score at 1000.
const (
	MaxNinerScore = 999
	MaxBaseScore  = 1000
)

// Tier buckets a score for display and for tier-change activity events.
type Tier string

const (
	TierBronze     Tier = "bronze"
	TierSilver     Tier = "silver"
	TierGold       Tier = "gold"
	TierDiamond    Tier = "diamond"
	TierDiamondPro Tier = "diamond-pro" // combined score only
)

// SocialMetrics is the social-graph input to the niner score.
type SocialMetrics struct {
	Followers  int
	Following  int
	Casts      int
	Replies    int
	Recasts    int
	Likes      int
	PowerBadge bool
}

// ChainActivity is the on-chain input to the base score.
type ChainActivity struct {
	BalanceEth           float64
	TransactionCount     int
	NFTCount             int
	ContractInteractions int
}

// Breakdown itemizes the niner score by contribution.
type Breakdown struct {
	Followers  float64 `json:"followers"`
	Ratio      float64 `json:"ratio"`
	Casts      float64 `json:"casts"`
	Replies    float64 `json:"replies"`
	Recasts    float64 `json:"recasts"`
	Likes      float64 `json:"likes"`
	PowerBadge float64 `json:"powerBadge"`
	Total      int     `json:"total"`
}

// ComputeNinerScore computes the social score in [0, 999].
func ComputeNinerScore(m SocialMetrics) int {
	return NinerScoreBreakdown(m).Total
}

// NinerScoreBreakdown computes the social score with per-factor contributions.
// Each factor is capped individually; the rounded sum is clipped to the
// ceiling.
func NinerScoreBreakdown(m SocialMetrics) Breakdown {
	b := Breakdown{
		Followers: math.Min(float64(m.Followers)*0.5, 250),
		Casts:     math.Min(float64(m.Casts)*1.5, 150),
		Replies:   math.Min(float64(m.Replies)*2, 100),
		Recasts:   math.Min(float64(m.Recasts)*3, 200),
		Likes:     math.Min(float64(m.Likes)*0.5, 150),
	}
	if m.Following > 0 {
		ratio := float64(m.Followers) / float64(m.Following)
		b.Ratio = math.Min(ratio*10, 50)
	}
	if m.PowerBadge {
		b.PowerBadge = 100
	}

	total := int(math.Round(b.Followers + b.Ratio + b.Casts + b.Replies + b.Recasts + b.Likes + b.PowerBadge))
	if total > MaxNinerScore {
		total = MaxNinerScore
	}
	if total < 0 {
		total = 0
	}
	b.Total = total
	return b
}

// ComputeBaseScore computes the on-chain score in [0, 1000].
func ComputeBaseScore(a ChainActivity) int {
	total := min(int(a.BalanceEth*300), 300)
	total += min(a.TransactionCount*3, 300)
	total += min(a.NFTCount*20, 200)
	total += min(a.ContractInteractions*10, 200)
	if total > MaxBaseScore {
		total = MaxBaseScore
	}
	if total < 0 {
		total = 0
	}
	return total
}

// Combine blends the social and on-chain scores 70/30.
func Combine(ninerScore, baseScore int) int {
	return int(math.Round(float64(ninerScore)*0.7 + float64(baseScore)*0.3))
}

// TierForScore buckets a niner score.
func TierForScore(s int) Tier {
	switch {
	case s >= 801:
		return TierDiamond
	case s >= 501:
		return TierGold
	case s >= 251:
		return TierSilver
	default:
		return TierBronze
	}
}

// CombinedTierForScore buckets a combined score. The combined scale reaches
// past the niner ceiling, so it gets one extra top bucket.
func CombinedTierForScore(s int) Tier {
	if s >= 900 {
		return TierDiamondPro
	}
	return TierForScore(s)
}

// Engagement is the average reactions per cast, rounded to one decimal.
// An account with no followers reads as zero regardless of cast activity.
func Engagement(likes, recasts, casts, followers int) float64 {
	if followers <= 0 {
		return 0
	}
	perCast := float64(likes+recasts) / float64(max(casts, 1))
	return math.Round(perCast*10) / 10
}
