// Package index stores chunk embeddings with their metadata in Postgres via
// pgvector and serves metadata-filtered similarity search. Transactions give
// the atomicity the callers rely on: a concurrent search sees either the
// pre- or post-commit chunk set, never rows from an open write.
package index

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/avikara/ragchain/embeddings"
)

// Chunk is a unit of text to store, with all of its metadata.
type Chunk struct {
	BlobID      string
	Filename    string
	Index       int
	TotalChunks int
	Owner       string
	IsPublic    bool
	Text        string
}

// Match is a retrieved chunk ordered by similarity.
type Match struct {
	BlobID     string
	Filename   string
	ChunkIndex int
	Text       string
	Score      float64
}

type Index struct {
	pool     *pgxpool.Pool
	embedder embeddings.Embedder
	logger   *log.Logger
}

func New(pool *pgxpool.Pool, embedder embeddings.Embedder, logger *log.Logger) *Index {
	if logger == nil {
		logger = log.Default()
	}

	return &Index{
		pool:     pool,
		embedder: embedder,
		logger:   logger,
	}
}

// Upsert embeds every chunk and writes all rows in one transaction, after
// deleting any rows previously stored for the same blob identifiers, so
// re-ingesting a document replaces it instead of accumulating duplicates.
// Embedding happens before the transaction opens; no lock is held while
// waiting on the provider.
func (ix *Index) Upsert(ctx context.Context, chunks []Chunk) (err error) {
	if len(chunks) == 0 {
		return nil
	}
	if ix.embedder == nil {
		return fmt.Errorf("embedder not configured")
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	vectors, err := ix.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("generate embeddings: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedding count mismatch: have %d chunks, %d embeddings", len(chunks), len(vectors))
	}

	tx, err := ix.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				ix.logger.Printf("rollback error: %v", rbErr)
			}
		}
	}()

	for _, blobID := range distinctBlobIDs(chunks) {
		if _, err = tx.Exec(ctx, "DELETE FROM doc_chunks WHERE blob_id = $1", blobID); err != nil {
			return fmt.Errorf("clear existing chunks for %s: %w", blobID, err)
		}
	}

	for i, chunk := range chunks {
		if _, err = tx.Exec(ctx, `
			INSERT INTO doc_chunks (id, blob_id, filename, chunk_index, total_chunks, owner, is_public, content, embedding, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		`, uuid.New(), chunk.BlobID, chunk.Filename, chunk.Index, chunk.TotalChunks, chunk.Owner, chunk.IsPublic, chunk.Text, pgvector.NewVector(vectors[i])); err != nil {
			return fmt.Errorf("insert chunk %d of %s: %w", chunk.Index, chunk.BlobID, err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// Search embeds the query and returns the k nearest chunks, optionally
// restricted to the given blob identifiers. Results come back in descending
// similarity; ties fall back to insertion order.
func (ix *Index) Search(ctx context.Context, query string, k int, blobIDs []string) ([]Match, error) {
	if ix.embedder == nil {
		return nil, fmt.Errorf("embedder not configured")
	}
	if k <= 0 {
		k = 5
	}

	vectors, err := ix.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedder returned no vectors")
	}

	conn, err := ix.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	probes := k * 10
	if probes < 10 {
		probes = 10
	}
	if _, err := conn.Exec(ctx, fmt.Sprintf("SET ivfflat.probes = %d", probes)); err != nil {
		return nil, fmt.Errorf("set ivfflat probes: %w", err)
	}

	sql := `
		SELECT blob_id, filename, chunk_index, content, (embedding <-> $1::vector) AS distance
		FROM doc_chunks`
	args := []any{pgvector.NewVector(vectors[0])}
	if len(blobIDs) > 0 {
		sql += `
		WHERE blob_id = ANY($2)`
		args = append(args, blobIDs)
	}
	sql += fmt.Sprintf(`
		ORDER BY embedding <-> $1::vector, seq
		LIMIT $%d`, len(args)+1)
	args = append(args, k)

	rows, err := conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query similar chunks: %w", err)
	}
	defer rows.Close()

	matches := make([]Match, 0, k)
	for rows.Next() {
		var m Match
		var distance float64
		if scanErr := rows.Scan(&m.BlobID, &m.Filename, &m.ChunkIndex, &m.Text, &distance); scanErr != nil {
			return nil, fmt.Errorf("scan similar chunk: %w", scanErr)
		}
		m.Score = 1 / (1 + distance)
		matches = append(matches, m)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return matches, nil
}

// DeleteByBlobID removes every chunk of the blob in one statement and
// reports how many rows went away. An unknown blob id deletes zero rows and
// is not an error.
func (ix *Index) DeleteByBlobID(ctx context.Context, blobID string) (int64, error) {
	tag, err := ix.pool.Exec(ctx, "DELETE FROM doc_chunks WHERE blob_id = $1", blobID)
	if err != nil {
		return 0, fmt.Errorf("delete chunks for %s: %w", blobID, err)
	}
	return tag.RowsAffected(), nil
}

func (ix *Index) CountByBlobID(ctx context.Context, blobID string) (int64, error) {
	var count int64
	if err := ix.pool.QueryRow(ctx, "SELECT COUNT(*) FROM doc_chunks WHERE blob_id = $1", blobID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count chunks for %s: %w", blobID, err)
	}
	return count, nil
}

func distinctBlobIDs(chunks []Chunk) []string {
	seen := make(map[string]struct{}, 1)
	ids := make([]string, 0, 1)
	for _, chunk := range chunks {
		if _, ok := seen[chunk.BlobID]; ok {
			continue
		}
		seen[chunk.BlobID] = struct{}{}
		ids = append(ids, chunk.BlobID)
	}
	return ids
}
