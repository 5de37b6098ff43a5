package leaderboard

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/ninerlabs/ninerscore/internal/score"
)

// Compile-time check that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)

// PostgresStore implements Store backed by PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed leaderboard store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the leaderboard table if it doesn't exist.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS leaderboard (
			fid                  BIGINT PRIMARY KEY,
			username             TEXT NOT NULL,
			display_name         TEXT NOT NULL DEFAULT '',
			avatar_url           TEXT NOT NULL DEFAULT '',
			score                INTEGER NOT NULL,
			tier                 VARCHAR(20) NOT NULL,
			casts                INTEGER NOT NULL DEFAULT 0,
			followers            INTEGER NOT NULL DEFAULT 0,
			engagement           DOUBLE PRECISION NOT NULL DEFAULT 0,
			base_score           INTEGER,
			combined_score       INTEGER,
			wallet_addresses     TEXT[] NOT NULL DEFAULT '{}',
			nft_minted           BOOLEAN NOT NULL DEFAULT FALSE,
			nft_token_id         TEXT NOT NULL DEFAULT '',
			nft_transaction_hash TEXT NOT NULL DEFAULT '',
			created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_leaderboard_score ON leaderboard(score DESC);
		CREATE INDEX IF NOT EXISTS idx_leaderboard_username ON leaderboard(LOWER(username));
		CREATE INDEX IF NOT EXISTS idx_leaderboard_combined ON leaderboard(combined_score DESC)
			WHERE combined_score IS NOT NULL;
	`)
	return err
}

const entryColumns = `fid, username, display_name, avatar_url, score, tier,
	casts, followers, engagement, base_score, combined_score, wallet_addresses,
	nft_minted, nft_token_id, nft_transaction_hash, created_at, updated_at`

// UpsertScore inserts or refreshes the score row for entry.FID in one
// transaction. The row lock taken by the initial SELECT serializes racing
// submissions for the same fid; the ON CONFLICT upsert guarantees two
// concurrent first submissions produce one insert and one update.
func (p *PostgresStore) UpsertScore(ctx context.Context, entry *Entry) (*Entry, score.Tier, bool, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, "", false, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var previousTier score.Tier
	err = tx.QueryRowContext(ctx, `
		SELECT tier FROM leaderboard WHERE fid = $1 FOR UPDATE
	`, entry.FID).Scan(&previousTier)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, "", false, fmt.Errorf("read previous tier: %w", err)
	}

	// xmax = 0 distinguishes a fresh insert from a conflict-update.
	row := tx.QueryRowContext(ctx, `
		INSERT INTO leaderboard (fid, username, display_name, avatar_url, score, tier, casts, followers, engagement)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (fid) DO UPDATE SET
			username     = EXCLUDED.username,
			display_name = EXCLUDED.display_name,
			avatar_url   = EXCLUDED.avatar_url,
			score        = EXCLUDED.score,
			tier         = EXCLUDED.tier,
			casts        = EXCLUDED.casts,
			followers    = EXCLUDED.followers,
			engagement   = EXCLUDED.engagement,
			updated_at   = NOW()
		RETURNING `+entryColumns+`, (xmax = 0)
	`, entry.FID, entry.Username, entry.DisplayName, entry.AvatarURL,
		entry.Score, string(entry.Tier), entry.Casts, entry.Followers, entry.Engagement)

	stored := &Entry{}
	var inserted bool
	if err := scanEntry(row, stored, &inserted); err != nil {
		return nil, "", false, fmt.Errorf("upsert score: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, "", false, fmt.Errorf("commit: %w", err)
	}
	return stored, previousTier, inserted, nil
}

// UpdateBaseScore reads the row's social score and writes the base and
// combined scores under the same row lock. The combined score can still go
// stale against a social-score refresh that lands after this transaction;
// that window is an accepted relaxation, not a correctness bug.
func (p *PostgresStore) UpdateBaseScore(ctx context.Context, fid int64, baseScore int, wallets []string) (*Entry, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var socialScore int
	err = tx.QueryRowContext(ctx, `
		SELECT score FROM leaderboard WHERE fid = $1 FOR UPDATE
	`, fid).Scan(&socialScore)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotInLeaderboard
	}
	if err != nil {
		return nil, fmt.Errorf("read social score: %w", err)
	}

	combined := score.Combine(socialScore, baseScore)
	row := tx.QueryRowContext(ctx, `
		UPDATE leaderboard
		SET base_score = $2, combined_score = $3, wallet_addresses = $4, updated_at = NOW()
		WHERE fid = $1
		RETURNING `+entryColumns+`, FALSE
	`, fid, baseScore, combined, pq.Array(wallets))

	stored := &Entry{}
	var discard bool
	if err := scanEntry(row, stored, &discard); err != nil {
		return nil, fmt.Errorf("update base score: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return stored, nil
}

// RecordMint marks the one-time mint, touching only the three NFT columns.
func (p *PostgresStore) RecordMint(ctx context.Context, fid int64, tokenID, txHash string) (*Entry, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var minted bool
	err = tx.QueryRowContext(ctx, `
		SELECT nft_minted FROM leaderboard WHERE fid = $1 FOR UPDATE
	`, fid).Scan(&minted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotInLeaderboard
	}
	if err != nil {
		return nil, fmt.Errorf("read mint status: %w", err)
	}
	if minted {
		return nil, ErrAlreadyMinted
	}

	row := tx.QueryRowContext(ctx, `
		UPDATE leaderboard
		SET nft_minted = TRUE, nft_token_id = $2, nft_transaction_hash = $3, updated_at = NOW()
		WHERE fid = $1
		RETURNING `+entryColumns+`, FALSE
	`, fid, tokenID, txHash)

	stored := &Entry{}
	var discard bool
	if err := scanEntry(row, stored, &discard); err != nil {
		return nil, fmt.Errorf("record mint: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return stored, nil
}

func (p *PostgresStore) GetByFID(ctx context.Context, fid int64) (*Entry, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT `+entryColumns+`, FALSE FROM leaderboard WHERE fid = $1
	`, fid)

	entry := &Entry{}
	var discard bool
	err := scanEntry(row, entry, &discard)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get by fid: %w", err)
	}
	return entry, nil
}

func (p *PostgresStore) GetByUsername(ctx context.Context, username string) (*Entry, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT `+entryColumns+`, FALSE FROM leaderboard WHERE LOWER(username) = LOWER($1)
	`, username)

	entry := &Entry{}
	var discard bool
	err := scanEntry(row, entry, &discard)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get by username: %w", err)
	}
	return entry, nil
}

func (p *PostgresStore) Top(ctx context.Context, limit int, order SortOrder) ([]*Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + entryColumns + `, FALSE FROM leaderboard ORDER BY score DESC, fid ASC LIMIT $1`
	if order == SortByCombined {
		query = `SELECT ` + entryColumns + `, FALSE FROM leaderboard
			WHERE combined_score IS NOT NULL
			ORDER BY combined_score DESC, fid ASC LIMIT $1`
	}

	rows, err := p.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []*Entry
	for rows.Next() {
		entry := &Entry{}
		var discard bool
		if err := scanEntry(rows, entry, &discard); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner, e *Entry, inserted *bool) error {
	var tier string
	var baseScore, combinedScore sql.NullInt64
	err := s.Scan(
		&e.FID, &e.Username, &e.DisplayName, &e.AvatarURL, &e.Score, &tier,
		&e.Casts, &e.Followers, &e.Engagement, &baseScore, &combinedScore,
		pq.Array(&e.WalletAddresses),
		&e.NFTMinted, &e.NFTTokenID, &e.NFTTransactionHash,
		&e.CreatedAt, &e.UpdatedAt,
		inserted,
	)
	if err != nil {
		return err
	}
	e.Tier = score.Tier(tier)
	if baseScore.Valid {
		v := int(baseScore.Int64)
		e.BaseScore = &v
	}
	if combinedScore.Valid {
		v := int(combinedScore.Int64)
		e.CombinedScore = &v
	}
	return nil
}
