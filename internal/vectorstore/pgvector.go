package vectorstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

type PgVectorStore struct {
	db *pgxpool.Pool
}

func NewPgVectorStore(db *pgxpool.Pool) *PgVectorStore {
	return &PgVectorStore{db: db}
}

func (s *PgVectorStore) Upsert(ctx context.Context, entries []Entry) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, e := range entries {
		embedding := pgvector.NewVector(e.Embedding)

		_, err := tx.Exec(ctx,
			`INSERT INTO version_embeddings (version_id, prompt_id, embedding)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (version_id) DO UPDATE SET embedding = $3`,
			e.VersionID, e.PromptID, embedding,
		)
		if err != nil {
			return fmt.Errorf("upsert embedding for version %s: %w", e.VersionID, err)
		}
	}

	return tx.Commit(ctx)
}

// SimilaritySearch returns the versions closest to the query vector by
// cosine distance, scoped to one prompt when opts.PromptID is set.
func (s *PgVectorStore) SimilaritySearch(ctx context.Context, query []float32, opts SearchOptions) ([]SearchResult, error) {
	if opts.TopK <= 0 {
		opts.TopK = 10
	}

	embedding := pgvector.NewVector(query)

	q := `SELECT e.version_id, e.prompt_id, v.version, v.content,
	             1 - (e.embedding <=> $1) AS score
	      FROM version_embeddings e
	      JOIN prompt_versions v ON v.id = e.version_id`
	args := []any{embedding}
	if opts.PromptID != uuid.Nil {
		q += ` WHERE e.prompt_id = $2 ORDER BY e.embedding <=> $1 LIMIT $3`
		args = append(args, opts.PromptID, opts.TopK)
	} else {
		q += ` ORDER BY e.embedding <=> $1 LIMIT $2`
		args = append(args, opts.TopK)
	}

	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.VersionID, &r.PromptID, &r.Version, &r.Content, &r.Score); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		if opts.MinScore > 0 && r.Score < opts.MinScore {
			continue
		}
		results = append(results, r)
	}
	return results, nil
}

func (s *PgVectorStore) Delete(ctx context.Context, versionID uuid.UUID) error {
	_, err := s.db.Exec(ctx, "DELETE FROM version_embeddings WHERE version_id = $1", versionID)
	return err
}
