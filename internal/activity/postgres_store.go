package activity

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// Compile-time check that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)

// PostgresStore implements Store backed by PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed activity store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the activities table if it doesn't exist.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS activities (
			id          BIGSERIAL PRIMARY KEY,
			fid         BIGINT NOT NULL,
			username    TEXT NOT NULL,
			avatar_url  TEXT NOT NULL DEFAULT '',
			action_type VARCHAR(20) NOT NULL,
			action_data JSONB NOT NULL DEFAULT '{}',
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_activities_created_at ON activities(created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_activities_fid ON activities(fid);
	`)
	return err
}

func (p *PostgresStore) Append(ctx context.Context, event *Event) error {
	data, err := json.Marshal(event.ActionData)
	if err != nil {
		return fmt.Errorf("marshal action data: %w", err)
	}

	err = p.db.QueryRowContext(ctx, `
		INSERT INTO activities (fid, username, avatar_url, action_type, action_data, created_at)
		VALUES ($1, $2, $3, $4, $5::JSONB, NOW())
		RETURNING id, created_at
	`, event.FID, event.Username, event.AvatarURL, string(event.ActionType), string(data)).
		Scan(&event.ID, &event.CreatedAt)
	if err != nil {
		return fmt.Errorf("append activity: %w", err)
	}
	return nil
}

func (p *PostgresStore) Recent(ctx context.Context, limit int) ([]*Event, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT id, fid, username, COALESCE(avatar_url, ''), action_type, action_data::TEXT, created_at
		FROM activities
		ORDER BY id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query activities: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []*Event
	for rows.Next() {
		e := &Event{}
		var actionType, actionData string
		if err := rows.Scan(&e.ID, &e.FID, &e.Username, &e.AvatarURL, &actionType, &actionData, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.ActionType = ActionType(actionType)
		if err := json.Unmarshal([]byte(actionData), &e.ActionData); err != nil {
			return nil, fmt.Errorf("decode action data for event %d: %w", e.ID, err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
