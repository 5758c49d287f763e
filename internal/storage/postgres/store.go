package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"stakeScope/internal/cache"
	"stakeScope/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS sync_cache (
	cache_key  TEXT PRIMARY KEY,
	mirror     JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS sync_snapshots (
	id             BIGSERIAL PRIMARY KEY,
	endpoint       TEXT NOT NULL,
	contract       TEXT NOT NULL,
	connected      BOOLEAN NOT NULL,
	height         BIGINT NOT NULL,
	captured_at_ms BIGINT NOT NULL,
	snapshot       JSONB NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Store persists cache mirrors and delivered snapshots in Postgres.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the tables used by the store.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Load returns the cache mirror stored under key.
func (s *Store) Load(ctx context.Context, key string) (cache.Mirror, bool, error) {
	if key == "" {
		return cache.Mirror{}, false, fmt.Errorf("cache key required")
	}
	var raw []byte
	row := s.pool.QueryRow(ctx, `SELECT mirror FROM sync_cache WHERE cache_key=$1`, key)
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return cache.Mirror{}, false, nil
		}
		return cache.Mirror{}, false, err
	}

	var mirror cache.Mirror
	if err := json.Unmarshal(raw, &mirror); err != nil {
		return cache.Mirror{}, false, fmt.Errorf("decode cache mirror: %w", err)
	}
	return mirror, true, nil
}

// Save upserts the cache mirror for key.
func (s *Store) Save(ctx context.Context, key string, mirror cache.Mirror) error {
	if key == "" {
		return fmt.Errorf("cache key required")
	}
	raw, err := json.Marshal(mirror)
	if err != nil {
		return fmt.Errorf("encode cache mirror: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO sync_cache (cache_key, mirror, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (cache_key) DO UPDATE
		SET mirror = EXCLUDED.mirror, updated_at = now()
	`, key, raw)
	return err
}

// PutSnapshots appends snapshots to sync_snapshots in one batch.
func (s *Store) PutSnapshots(ctx context.Context, snapshots []model.SyncSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, snapshot := range snapshots {
		raw, err := json.Marshal(snapshot)
		if err != nil {
			return fmt.Errorf("encode snapshot: %w", err)
		}
		batch.Queue(`
			INSERT INTO sync_snapshots (
				endpoint, contract, connected, height, captured_at_ms, snapshot, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, now())
		`,
			snapshot.Endpoint,
			snapshot.Contract,
			snapshot.Connected,
			int64(snapshot.Height),
			snapshot.CapturedAtUnixMillis,
			raw,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range snapshots {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}
