package production

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/comalice/hfsm"
	"github.com/comalice/hfsm/internal/core"
)

var ErrPostgresNotReady = errors.New("failed to open postgres connection")

// ConnectPostgres opens a pool and pings it, backing off linearly between
// attempts.
func ConnectPostgres(ctx context.Context, url string, attempts int, interval time.Duration) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	for i := range max(attempts, 1) {
		pool, err := pgxpool.NewWithConfig(ctx, cfg)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				return pool, nil
			}
			pool.Close()
		}
		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrPostgresNotReady, ctx.Err())
		case <-time.After(time.Duration(i+1) * interval):
		}
	}
	return nil, ErrPostgresNotReady
}

// DB is the subset of *pgxpool.Pool the persister needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresPersister keeps one row per entity, laid out like the ObjectState
// record itself.
type PostgresPersister struct {
	db    DB
	table string
}

func NewPostgresPersister(db DB, table string) *PostgresPersister {
	if table == "" {
		table = "hfsm_entities"
	}
	return &PostgresPersister{db: db, table: table}
}

// EnsureSchema creates the table when missing.
func (p *PostgresPersister) EnsureSchema(ctx context.Context) error {
	_, err := p.db.Exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	entity_id         TEXT PRIMARY KEY,
	nest_depth        INTEGER NOT NULL,
	nested_state_ids  INTEGER[] NOT NULL,
	previous_state_id INTEGER NOT NULL,
	updated_at        TIMESTAMPTZ NOT NULL
)`, pgx.Identifier{p.table}.Sanitize()))
	return err
}

func (p *PostgresPersister) Save(ctx context.Context, snapshot core.Snapshot) error {
	ids := make([]int32, hfsm.MaxNestDepth)
	for i, id := range snapshot.State.NestedStateIDs {
		ids[i] = int32(id)
	}
	_, err := p.db.Exec(ctx, fmt.Sprintf(`INSERT INTO %s (entity_id, nest_depth, nested_state_ids, previous_state_id, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (entity_id) DO UPDATE SET
	nest_depth = EXCLUDED.nest_depth,
	nested_state_ids = EXCLUDED.nested_state_ids,
	previous_state_id = EXCLUDED.previous_state_id,
	updated_at = EXCLUDED.updated_at`, pgx.Identifier{p.table}.Sanitize()),
		snapshot.EntityID, snapshot.State.NestDepth, ids, int32(snapshot.State.PreviousStateID), snapshot.Timestamp)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", snapshot.EntityID, err)
	}
	return nil
}

func (p *PostgresPersister) Load(ctx context.Context, entityID string) (core.Snapshot, error) {
	var (
		depth    int32
		ids      []int32
		previous int32
		updated  time.Time
	)
	err := p.db.QueryRow(ctx, fmt.Sprintf(`SELECT nest_depth, nested_state_ids, previous_state_id, updated_at
FROM %s WHERE entity_id = $1`, pgx.Identifier{p.table}.Sanitize()), entityID).
		Scan(&depth, &ids, &previous, &updated)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Snapshot{}, fmt.Errorf("entity %q: %w", entityID, core.ErrNotFound)
	}
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("select %s: %w", entityID, err)
	}
	if len(ids) != hfsm.MaxNestDepth {
		return core.Snapshot{}, fmt.Errorf("entity %q: stored stack has %d entries", entityID, len(ids))
	}

	snap := core.Snapshot{EntityID: entityID, Timestamp: updated}
	snap.State.NestDepth = int(depth)
	snap.State.PreviousStateID = hfsm.StateID(previous)
	for i, id := range ids {
		snap.State.NestedStateIDs[i] = hfsm.StateID(id)
	}
	return snap, nil
}

func (p *PostgresPersister) Delete(ctx context.Context, entityID string) error {
	_, err := p.db.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE entity_id = $1`, pgx.Identifier{p.table}.Sanitize()), entityID)
	return err
}
