// Package entdriver implements storage.Driver on ent's SQL dialect layer.
// Queries are built with entsql so the same code serves SQLite and
// PostgreSQL; the embedding drivers only open the connection.
package entdriver

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/papercomputeco/researcher/pkg/storage"
)

const (
	chunksTable   = "chunks"
	queriesTable  = "query_embeddings"
	settingsTable = "settings"

	settingsKey = "db"

	// insertBatch bounds rows per INSERT to stay under SQLite's variable limit.
	insertBatch = 100
)

var chunkColumns = []string{
	"id", "position", "doc_id", "original_uuid", "chunk_id",
	"original_index", "original_content", "contextualized_content",
}

// EntDriver provides storage operations using an ent SQL driver.
// It is database-agnostic and can be embedded by specific drivers.
type EntDriver struct {
	Driver *entsql.Driver
}

// New wraps db for the given ent dialect and creates the schema.
func New(ctx context.Context, dialectName string, db *sql.DB) (*EntDriver, error) {
	ed := &EntDriver{Driver: entsql.OpenDB(dialectName, db)}
	if err := ed.Migrate(ctx); err != nil {
		return nil, err
	}
	return ed, nil
}

func (ed *EntDriver) builder() *entsql.DialectBuilder {
	return entsql.Dialect(ed.Driver.Dialect())
}

// Migrate creates the tables if they do not exist. Schema changes are
// append-only.
func (ed *EntDriver) Migrate(ctx context.Context) error {
	b := ed.builder()
	text := "TEXT"
	integer := "INTEGER"

	tables := []*entsql.TableBuilder{
		b.CreateTable(chunksTable).IfNotExists().
			Columns(
				b.Column("id").Type(text).Attr("NOT NULL"),
				b.Column("position").Type(integer).Attr("NOT NULL"),
				b.Column("doc_id").Type(text).Attr("NOT NULL"),
				b.Column("original_uuid").Type(text),
				b.Column("chunk_id").Type(text),
				b.Column("original_index").Type(integer),
				b.Column("original_content").Type(text),
				b.Column("contextualized_content").Type(text),
			).
			PrimaryKey("id"),
		b.CreateTable(queriesTable).IfNotExists().
			Columns(
				b.Column("cache_key").Type(text).Attr("NOT NULL"),
				b.Column("embedding").Type(text).Attr("NOT NULL"),
				b.Column("created_at").Type(text),
			).
			PrimaryKey("cache_key"),
		b.CreateTable(settingsTable).IfNotExists().
			Columns(
				b.Column("name").Type(text).Attr("NOT NULL"),
				b.Column("value").Type(text).Attr("NOT NULL"),
			).
			PrimaryKey("name"),
	}

	for _, t := range tables {
		query, args := t.Query()
		if err := ed.Driver.Exec(ctx, query, args, nil); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// PutChunks upserts chunks in a single transaction.
func (ed *EntDriver) PutChunks(ctx context.Context, chunks []storage.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := ed.Driver.Tx(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	for start := 0; start < len(chunks); start += insertBatch {
		end := min(start+insertBatch, len(chunks))

		insert := ed.builder().Insert(chunksTable).Columns(chunkColumns...)
		for _, c := range chunks[start:end] {
			insert.Values(c.ID, c.Position, c.DocID, c.OriginalUUID, c.ChunkID,
				c.OriginalIndex, c.OriginalContent, c.ContextualizedContent)
		}
		insert.OnConflict(entsql.ConflictColumns("id"), entsql.ResolveWithNewValues())

		query, args := insert.Query()
		if err := tx.Exec(ctx, query, args, nil); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("could not upsert chunks: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing chunks: %w", err)
	}
	return nil
}

// GetChunks returns the chunks for ids in the order requested.
func (ed *EntDriver) GetChunks(ctx context.Context, ids []string) ([]storage.Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	b := ed.builder()
	sel := b.Select(chunkColumns...).From(b.Table(chunksTable)).Where(entsql.In("id", args...))
	found, err := ed.queryChunks(ctx, sel)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]storage.Chunk, len(found))
	for _, c := range found {
		byID[c.ID] = c
	}

	out := make([]storage.Chunk, 0, len(found))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// ListChunks returns all chunks ordered by position.
func (ed *EntDriver) ListChunks(ctx context.Context) ([]storage.Chunk, error) {
	b := ed.builder()
	return ed.queryChunks(ctx, b.Select(chunkColumns...).From(b.Table(chunksTable)).OrderBy("position"))
}

func (ed *EntDriver) queryChunks(ctx context.Context, sel *entsql.Selector) ([]storage.Chunk, error) {
	query, args := sel.Query()

	var rows entsql.Rows
	if err := ed.Driver.Query(ctx, query, args, &rows); err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var out []storage.Chunk
	for rows.Next() {
		var (
			c                        storage.Chunk
			originalUUID, chunkID    sql.NullString
			originalIndex            sql.NullInt64
			original, contextualized sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.Position, &c.DocID, &originalUUID, &chunkID,
			&originalIndex, &original, &contextualized); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		c.OriginalUUID = originalUUID.String
		c.ChunkID = chunkID.String
		c.OriginalIndex = int(originalIndex.Int64)
		c.OriginalContent = original.String
		c.ContextualizedContent = contextualized.String
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate chunks: %w", err)
	}
	return out, nil
}

// CountChunks returns the number of stored chunks.
func (ed *EntDriver) CountChunks(ctx context.Context) (int, error) {
	b := ed.builder()
	query, args := b.Select(entsql.Count("*")).From(b.Table(chunksTable)).Query()

	var rows entsql.Rows
	if err := ed.Driver.Query(ctx, query, args, &rows); err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	defer rows.Close()

	n, err := entsql.ScanInt(rows)
	if err != nil {
		return 0, fmt.Errorf("failed to scan chunk count: %w", err)
	}
	return n, nil
}

// GetQueryEmbedding returns a cached query embedding.
func (ed *EntDriver) GetQueryEmbedding(ctx context.Context, key string) ([]float32, error) {
	raw, err := ed.getValue(ctx, queriesTable, "cache_key", "embedding", key)
	if err != nil {
		return nil, err
	}

	var emb []float32
	if err := json.Unmarshal([]byte(raw), &emb); err != nil {
		return nil, fmt.Errorf("failed to decode query embedding: %w", err)
	}
	return emb, nil
}

// PutQueryEmbedding upserts a query embedding.
func (ed *EntDriver) PutQueryEmbedding(ctx context.Context, key string, embedding []float32) error {
	raw, err := json.Marshal(embedding)
	if err != nil {
		return fmt.Errorf("failed to encode query embedding: %w", err)
	}

	query, args := ed.builder().Insert(queriesTable).
		Columns("cache_key", "embedding", "created_at").
		Values(key, string(raw), time.Now().UTC().Format(time.RFC3339)).
		OnConflict(entsql.ConflictColumns("cache_key"), entsql.ResolveWithNewValues()).
		Query()
	if err := ed.Driver.Exec(ctx, query, args, nil); err != nil {
		return fmt.Errorf("failed to store query embedding: %w", err)
	}
	return nil
}

// GetSettings returns the persisted settings.
func (ed *EntDriver) GetSettings(ctx context.Context) (*storage.Settings, error) {
	raw, err := ed.getValue(ctx, settingsTable, "name", "value", settingsKey)
	if err != nil {
		return nil, err
	}

	var settings storage.Settings
	if err := json.Unmarshal([]byte(raw), &settings); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	return &settings, nil
}

// PutSettings replaces the persisted settings.
func (ed *EntDriver) PutSettings(ctx context.Context, settings *storage.Settings) error {
	if settings == nil {
		return errors.New("cannot store nil settings")
	}

	raw, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	query, args := ed.builder().Insert(settingsTable).
		Columns("name", "value").
		Values(settingsKey, string(raw)).
		OnConflict(entsql.ConflictColumns("name"), entsql.ResolveWithNewValues()).
		Query()
	if err := ed.Driver.Exec(ctx, query, args, nil); err != nil {
		return fmt.Errorf("failed to store settings: %w", err)
	}
	return nil
}

// Reset deletes every row from every table.
func (ed *EntDriver) Reset(ctx context.Context) error {
	for _, table := range []string{chunksTable, queriesTable, settingsTable} {
		query, args := ed.builder().Delete(table).Query()
		if err := ed.Driver.Exec(ctx, query, args, nil); err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
	}
	return nil
}

// Close closes the underlying database.
func (ed *EntDriver) Close() error {
	return ed.Driver.Close()
}

func (ed *EntDriver) getValue(ctx context.Context, table, keyColumn, valueColumn, key string) (string, error) {
	b := ed.builder()
	query, args := b.Select(valueColumn).From(b.Table(table)).Where(entsql.EQ(keyColumn, key)).Query()

	var rows entsql.Rows
	if err := ed.Driver.Query(ctx, query, args, &rows); err != nil {
		return "", fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return "", fmt.Errorf("failed to query %s: %w", table, err)
		}
		return "", storage.ErrNotFound{ID: key}
	}

	var value string
	if err := rows.Scan(&value); err != nil {
		return "", fmt.Errorf("failed to scan %s: %w", table, err)
	}
	return value, nil
}

var _ storage.Driver = (*EntDriver)(nil)
