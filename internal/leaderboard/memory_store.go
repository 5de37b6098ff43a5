package leaderboard

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ninerlabs/ninerscore/internal/score"
)

// Compile-time check that MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-memory leaderboard for demo/development mode.
// A single mutex stands in for the row locks the Postgres store takes.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[int64]*Entry // by fid
}

// NewMemoryStore creates a new in-memory leaderboard store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[int64]*Entry)}
}

func (m *MemoryStore) UpsertScore(ctx context.Context, entry *Entry) (*Entry, score.Tier, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	existing, ok := m.entries[entry.FID]
	if !ok {
		cp := *entry
		cp.WalletAddresses = append([]string(nil), entry.WalletAddresses...)
		cp.CreatedAt = now
		cp.UpdatedAt = now
		m.entries[entry.FID] = &cp
		out := cp
		return &out, "", true, nil
	}

	previousTier := existing.Tier
	existing.Username = entry.Username
	existing.DisplayName = entry.DisplayName
	existing.AvatarURL = entry.AvatarURL
	existing.Score = entry.Score
	existing.Tier = entry.Tier
	existing.Casts = entry.Casts
	existing.Followers = entry.Followers
	existing.Engagement = entry.Engagement
	existing.UpdatedAt = now

	out := *existing
	return &out, previousTier, false, nil
}

func (m *MemoryStore) UpdateBaseScore(ctx context.Context, fid int64, baseScore int, wallets []string) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.entries[fid]
	if !ok {
		return nil, ErrNotInLeaderboard
	}

	combined := score.Combine(existing.Score, baseScore)
	existing.BaseScore = &baseScore
	existing.CombinedScore = &combined
	existing.WalletAddresses = append([]string(nil), wallets...)
	existing.UpdatedAt = time.Now().UTC()

	out := copyEntry(existing)
	return out, nil
}

func (m *MemoryStore) RecordMint(ctx context.Context, fid int64, tokenID, txHash string) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.entries[fid]
	if !ok {
		return nil, ErrNotInLeaderboard
	}
	if existing.NFTMinted {
		return nil, ErrAlreadyMinted
	}

	existing.NFTMinted = true
	existing.NFTTokenID = tokenID
	existing.NFTTransactionHash = txHash
	existing.UpdatedAt = time.Now().UTC()

	out := copyEntry(existing)
	return out, nil
}

func (m *MemoryStore) GetByFID(ctx context.Context, fid int64) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	existing, ok := m.entries[fid]
	if !ok {
		return nil, ErrNotFound
	}
	return copyEntry(existing), nil
}

func (m *MemoryStore) GetByUsername(ctx context.Context, username string) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, e := range m.entries {
		if strings.EqualFold(e.Username, username) {
			return copyEntry(e), nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) Top(ctx context.Context, limit int, order SortOrder) ([]*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}

	var out []*Entry
	for _, e := range m.entries {
		if order == SortByCombined && e.CombinedScore == nil {
			continue
		}
		out = append(out, copyEntry(e))
	}

	sort.Slice(out, func(i, j int) bool {
		if order == SortByCombined {
			if *out[i].CombinedScore != *out[j].CombinedScore {
				return *out[i].CombinedScore > *out[j].CombinedScore
			}
		} else if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].FID < out[j].FID // stable order for ties
	})

	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func copyEntry(e *Entry) *Entry {
	cp := *e
	cp.WalletAddresses = append([]string(nil), e.WalletAddresses...)
	if e.BaseScore != nil {
		v := *e.BaseScore
		cp.BaseScore = &v
	}
	if e.CombinedScore != nil {
		v := *e.CombinedScore
		cp.CombinedScore = &v
	}
	return &cp
}
