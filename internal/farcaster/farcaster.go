// Package farcaster fetches social-graph data from the Neynar API.
//
// It is the service's only source of social metrics: scores are always
// computed from data fetched here, never from client-supplied values.
// Upstream failures surface as ErrUnavailable so callers can refuse to
// score against zeroed metrics.
package farcaster

import (
	"context"
	"errors"
)

var (
	// ErrNotFound means the fid or username does not exist on Farcaster.
	ErrNotFound = errors.New("farcaster: user not found")
	// ErrUnavailable means the upstream data provider failed or is being
	// skipped by the circuit breaker. Never score against it.
	ErrUnavailable = errors.New("farcaster: data provider unavailable")
)

// User is a Farcaster profile as reported by the provider.
type User struct {
	FID               int64    `json:"fid"`
	Username          string   `json:"username"`
	DisplayName       string   `json:"displayName"`
	AvatarURL         string   `json:"avatarUrl"`
	Bio               string   `json:"bio,omitempty"`
	FollowerCount     int      `json:"followerCount"`
	FollowingCount    int      `json:"followingCount"`
	PowerBadge        bool     `json:"powerBadge"`
	VerifiedAddresses []string `json:"verifiedAddresses,omitempty"`
}

// CastStats aggregates a user's recent casting activity.
// Replies counts casts that are themselves replies; recasts and likes are
// reactions received on the user's casts.
type CastStats struct {
	TotalCasts   int `json:"totalCasts"`
	TotalReplies int `json:"totalReplies"`
	TotalRecasts int `json:"totalRecasts"`
	TotalLikes   int `json:"totalLikes"`
}

// Provider is the social-graph data source the scoring service depends on.
type Provider interface {
	UserByFID(ctx context.Context, fid int64) (*User, error)
	UserByUsername(ctx context.Context, username string) (*User, error)
	CastStats(ctx context.Context, fid int64) (CastStats, error)
}
