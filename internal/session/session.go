// Package session provides short-lived auth sessions for the API.
//
// A session proves that a client claiming a Farcaster identity was verified
// against the social provider recently. Sessions are bearer tokens with a
// TTL; storage is in-memory only, so restarting the server logs everyone
// out, which is acceptable for tokens this short-lived.
package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/ninerlabs/ninerscore/internal/idgen"
	"github.com/ninerlabs/ninerscore/internal/metrics"
)

var (
	// ErrNoToken means no session token was presented.
	ErrNoToken = errors.New("session: token required")
	// ErrInvalidToken means the token is unknown, expired, or malformed.
	ErrInvalidToken = errors.New("session: invalid or expired token")
)

// Session is one live auth session.
type Session struct {
	ID        string    `json:"id"`
	FID       int64     `json:"fid"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Manager issues and validates sessions. Tokens are stored hashed; a leaked
// store dump cannot be replayed.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session // keyed by token hash
	ttl      time.Duration
	stop     chan struct{}
	stopOnce sync.Once
}

// DefaultTTL is how long a session lives without renewal.
const DefaultTTL = 15 * time.Minute

// NewManager creates a session manager and starts its expiry sweep.
func NewManager(ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	m := &Manager{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		stop:     make(chan struct{}),
	}
	go m.sweep()
	return m
}

// sweep drops expired sessions periodically.
func (m *Manager) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			m.mu.Lock()
			for hash, s := range m.sessions {
				if now.After(s.ExpiresAt) {
					delete(m.sessions, hash)
				}
			}
			metrics.ActiveSessions.Set(float64(len(m.sessions)))
			m.mu.Unlock()
		case <-m.stop:
			return
		}
	}
}

// Stop stops the expiry sweep.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

// Create issues a session for a verified identity. Returns the raw bearer
// token (shown once) and the session metadata.
func (m *Manager) Create(_ context.Context, fid int64, username string) (string, *Session) {
	token := idgen.WithPrefix("sess_")
	now := time.Now().UTC()
	s := &Session{
		ID:        idgen.WithPrefix("sid_"),
		FID:       fid,
		Username:  username,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}

	m.mu.Lock()
	m.sessions[hashToken(token)] = s
	metrics.ActiveSessions.Set(float64(len(m.sessions)))
	m.mu.Unlock()

	return token, s
}

// Validate checks a bearer token and returns its session.
func (m *Manager) Validate(_ context.Context, rawToken string) (*Session, error) {
	rawToken = strings.TrimSpace(strings.TrimPrefix(rawToken, "Bearer "))
	if rawToken == "" {
		return nil, ErrNoToken
	}
	if !strings.HasPrefix(rawToken, "sess_") {
		return nil, ErrInvalidToken
	}

	m.mu.RLock()
	s, ok := m.sessions[hashToken(rawToken)]
	m.mu.RUnlock()

	if !ok || time.Now().After(s.ExpiresAt) {
		return nil, ErrInvalidToken
	}
	cp := *s
	return &cp, nil
}

// Revoke drops a session immediately.
func (m *Manager) Revoke(_ context.Context, rawToken string) {
	rawToken = strings.TrimSpace(strings.TrimPrefix(rawToken, "Bearer "))

	m.mu.Lock()
	delete(m.sessions, hashToken(rawToken))
	metrics.ActiveSessions.Set(float64(len(m.sessions)))
	m.mu.Unlock()
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
