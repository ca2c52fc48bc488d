package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/xhad/instructai/internal/models"
)

// PostgresSnapshotter keeps the snapshot in a pgvector table. Save replaces
// the table contents inside one transaction, so readers of the table never
// see a partial snapshot.
type PostgresSnapshotter struct {
	pool  *pgxpool.Pool
	table string
}

func NewPostgresSnapshotter(ctx context.Context, connString, table string) (*PostgresSnapshotter, error) {
	if table == "" {
		table = "chunks"
	}

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	ps := &PostgresSnapshotter{pool: pool, table: table}
	if err := ps.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return ps, nil
}

func (ps *PostgresSnapshotter) Location() string {
	return "postgres:" + ps.table
}

func (ps *PostgresSnapshotter) chunksTable() string {
	return pgx.Identifier{ps.table}.Sanitize()
}

func (ps *PostgresSnapshotter) metaTable() string {
	return pgx.Identifier{ps.table + "_meta"}.Sanitize()
}

func (ps *PostgresSnapshotter) initialize(ctx context.Context) error {
	// Enable pgvector extension
	if _, err := ps.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	createChunks := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			position INTEGER PRIMARY KEY,
			id TEXT UNIQUE NOT NULL,
			content TEXT NOT NULL,
			metadata JSONB NOT NULL,
			embedding vector NOT NULL
		)`, ps.chunksTable())
	if _, err := ps.pool.Exec(ctx, createChunks); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	createMeta := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`, ps.metaTable())
	if _, err := ps.pool.Exec(ctx, createMeta); err != nil {
		return fmt.Errorf("failed to create meta table: %w", err)
	}

	return nil
}

func (ps *PostgresSnapshotter) Load(ctx context.Context) (*Snapshot, error) {
	var dimValue string
	err := ps.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT value FROM %s WHERE key = 'dimension'`, ps.metaTable()),
	).Scan(&dimValue)
	if errors.Is(err, pgx.ErrNoRows) {
		var rows int
		if err := ps.pool.QueryRow(ctx,
			fmt.Sprintf(`SELECT count(*) FROM %s`, ps.chunksTable()),
		).Scan(&rows); err != nil {
			return nil, fmt.Errorf("failed to count chunks: %w", err)
		}
		if rows > 0 {
			return nil, fmt.Errorf("%s holds %d chunks but no dimension record", ps.chunksTable(), rows)
		}
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot dimension: %w", err)
	}

	dim, err := strconv.Atoi(dimValue)
	if err != nil {
		return nil, fmt.Errorf("invalid snapshot dimension %q: %w", dimValue, err)
	}

	rows, err := ps.pool.Query(ctx, fmt.Sprintf(`
		SELECT id, content, metadata, embedding
		FROM %s
		ORDER BY position`, ps.chunksTable()))
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	snap := &Snapshot{Version: snapshotVersion, Dimension: dim}
	for rows.Next() {
		var (
			c   models.Chunk
			vec pgvector.Vector
		)
		if err := rows.Scan(&c.ID, &c.Text, &c.Metadata, &vec); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		c.Vector = vec.Slice()
		snap.Chunks = append(snap.Chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read chunks: %w", err)
	}

	return snap, nil
}

func (ps *PostgresSnapshotter) Save(ctx context.Context, snap *Snapshot) error {
	tx, err := ps.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s", ps.chunksTable())); err != nil {
		return fmt.Errorf("failed to clear chunks: %w", err)
	}

	insert := fmt.Sprintf(`
		INSERT INTO %s (position, id, content, metadata, embedding)
		VALUES ($1, $2, $3, $4, $5)`, ps.chunksTable())

	batch := &pgx.Batch{}
	for i, c := range snap.Chunks {
		batch.Queue(insert, i, c.ID, c.Text, c.Metadata, pgvector.NewVector(c.Vector))
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert chunks: %w", err)
	}

	upsertDim := fmt.Sprintf(`
		INSERT INTO %s (key, value) VALUES ('dimension', $1)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`, ps.metaTable())
	if _, err := tx.Exec(ctx, upsertDim, strconv.Itoa(snap.Dimension)); err != nil {
		return fmt.Errorf("failed to store dimension: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (ps *PostgresSnapshotter) Close() {
	if ps.pool != nil {
		ps.pool.Close()
	}
}
