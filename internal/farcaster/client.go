package farcaster

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ninerlabs/ninerscore/internal/circuitbreaker"
)

// breakerKey identifies Neynar in the shared circuit breaker.
const breakerKey = "neynar"

// castFeedLimit is how many recent casts feed into the activity stats.
const castFeedLimit = 100

// Compile-time check that Client implements Provider.
var _ Provider = (*Client)(nil)

// Client talks to the Neynar v2 API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	breaker *circuitbreaker.Breaker
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client (for testing).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithBreaker sets a shared circuit breaker.
func WithBreaker(b *circuitbreaker.Breaker) Option {
	return func(c *Client) { c.breaker = b }
}

// NewClient creates a Neynar API client.
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.breaker == nil {
		c.breaker = circuitbreaker.New(5, 30*time.Second)
	}
	return c
}

// Wire types for the Neynar v2 API.

type neynarUser struct {
	FID            int64  `json:"fid"`
	Username       string `json:"username"`
	DisplayName    string `json:"display_name"`
	PfpURL         string `json:"pfp_url"`
	FollowerCount  int    `json:"follower_count"`
	FollowingCount int    `json:"following_count"`
	PowerBadge     bool   `json:"power_badge"`
	Profile        struct {
		Bio struct {
			Text string `json:"text"`
		} `json:"bio"`
	} `json:"profile"`
	VerifiedAddresses struct {
		EthAddresses []string `json:"eth_addresses"`
	} `json:"verified_addresses"`
}

type bulkUsersResponse struct {
	Users []neynarUser `json:"users"`
}

type singleUserResponse struct {
	User *neynarUser `json:"user"`
}

type castsResponse struct {
	Casts []struct {
		ParentHash *string `json:"parent_hash"`
		Reactions  struct {
			LikesCount   int `json:"likes_count"`
			RecastsCount int `json:"recasts_count"`
		} `json:"reactions"`
	} `json:"casts"`
}

// UserByFID fetches a user profile by Farcaster ID.
func (c *Client) UserByFID(ctx context.Context, fid int64) (*User, error) {
	var resp bulkUsersResponse
	path := fmt.Sprintf("/v2/farcaster/user/bulk?fids=%d", fid)
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	if len(resp.Users) == 0 {
		return nil, ErrNotFound
	}
	return fromNeynar(&resp.Users[0]), nil
}

// UserByUsername fetches a user profile by username.
func (c *Client) UserByUsername(ctx context.Context, username string) (*User, error) {
	var resp singleUserResponse
	path := "/v2/farcaster/user/by_username?username=" + url.QueryEscape(username)
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	if resp.User == nil {
		return nil, ErrNotFound
	}
	return fromNeynar(resp.User), nil
}

// CastStats aggregates activity from the user's recent cast feed.
func (c *Client) CastStats(ctx context.Context, fid int64) (CastStats, error) {
	var resp castsResponse
	path := fmt.Sprintf("/v2/farcaster/feed/user/casts?fid=%d&limit=%d", fid, castFeedLimit)
	if err := c.get(ctx, path, &resp); err != nil {
		return CastStats{}, err
	}

	stats := CastStats{TotalCasts: len(resp.Casts)}
	for _, cast := range resp.Casts {
		if cast.ParentHash != nil && *cast.ParentHash != "" {
			stats.TotalReplies++
		}
		stats.TotalRecasts += cast.Reactions.RecastsCount
		stats.TotalLikes += cast.Reactions.LikesCount
	}
	return stats, nil
}

// get performs an authenticated GET and decodes the JSON response,
// recording the outcome with the circuit breaker.
func (c *Client) get(ctx context.Context, path string, out any) error {
	if !c.breaker.Allow(breakerKey) {
		return ErrUnavailable
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		c.breaker.RecordFailure(breakerKey)
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		// Provider is fine, the user just doesn't exist.
		c.breaker.RecordSuccess(breakerKey)
		return ErrNotFound
	case resp.StatusCode != http.StatusOK:
		c.breaker.RecordFailure(breakerKey)
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.breaker.RecordFailure(breakerKey)
		return fmt.Errorf("%w: decode: %v", ErrUnavailable, err)
	}
	c.breaker.RecordSuccess(breakerKey)
	return nil
}

func fromNeynar(u *neynarUser) *User {
	return &User{
		FID:               u.FID,
		Username:          u.Username,
		DisplayName:       u.DisplayName,
		AvatarURL:         u.PfpURL,
		Bio:               u.Profile.Bio.Text,
		FollowerCount:     u.FollowerCount,
		FollowingCount:    u.FollowingCount,
		PowerBadge:        u.PowerBadge,
		VerifiedAddresses: u.VerifiedAddresses.EthAddresses,
	}
}
