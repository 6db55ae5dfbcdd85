package pgvector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/govern-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/govern-lab/mnemosyne/pkg/domain/model"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/m-mizutani/goerr/v2"
	pgv "github.com/pgvector/pgvector-go"
)

// VectorIndex is the PostgreSQL pgvector nearest-neighbor backend. The
// embedding column dimension is fixed at migration time, so the index
// rejects entries of any other dimension.
type VectorIndex struct {
	pool      *pgxpool.Pool
	table     string
	dimension int
}

var _ interfaces.VectorIndex = &VectorIndex{}

type Option func(*VectorIndex)

func WithTable(table string) Option {
	return func(x *VectorIndex) {
		x.table = table
	}
}

func New(ctx context.Context, dsn string, dimension int, opts ...Option) (*VectorIndex, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to connect to postgres")
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, goerr.Wrap(err, "failed to ping postgres")
	}

	x := &VectorIndex{
		pool:      pool,
		table:     "vectors",
		dimension: dimension,
	}

	for _, opt := range opts {
		opt(x)
	}

	return x, nil
}

// Schema returns the DDL statements the migrate command applies. The
// ivfflat index uses cosine ops to match the search operator.
func (x *VectorIndex) Schema() []string {
	return []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	chunk_id TEXT PRIMARY KEY,
	embedding vector(%d) NOT NULL,
	session_id TEXT NOT NULL,
	track TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
)`, x.table, x.dimension),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_embedding_idx
	ON %s
	USING ivfflat (embedding vector_cosine_ops)
	WITH (lists = 100)`, x.table, x.table),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_session_idx ON %s (session_id)", x.table, x.table),
	}
}

func (x *VectorIndex) Migrate(ctx context.Context) error {
	for _, stmt := range x.Schema() {
		if _, err := x.pool.Exec(ctx, stmt); err != nil {
			return goerr.Wrap(err, "failed to apply schema statement", goerr.V("statement", stmt))
		}
	}
	return nil
}

func (x *VectorIndex) Upsert(ctx context.Context, entries []*model.VectorEntry) error {
	if len(entries) == 0 {
		return nil
	}

	for _, e := range entries {
		if len(e.Embedding) != x.dimension {
			return goerr.New("embedding dimension mismatch",
				goerr.V("chunkID", e.ChunkID),
				goerr.V("got", len(e.Embedding)),
				goerr.V("want", x.dimension))
		}
	}

	tx, err := x.pool.Begin(ctx)
	if err != nil {
		return goerr.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	stmt := fmt.Sprintf(`INSERT INTO %s (chunk_id, embedding, session_id, track, created_at)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (chunk_id) DO UPDATE SET
		embedding = EXCLUDED.embedding,
		session_id = EXCLUDED.session_id,
		track = EXCLUDED.track,
		created_at = EXCLUDED.created_at`, x.table)

	for _, e := range entries {
		createdAt := e.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		_, err := tx.Exec(ctx, stmt,
			string(e.ChunkID),
			pgv.NewVector(e.Embedding),
			string(e.SessionID),
			e.Track,
			createdAt,
		)
		if err != nil {
			return goerr.Wrap(err, "failed to upsert vector entry", goerr.V("chunkID", e.ChunkID))
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return goerr.Wrap(err, "failed to commit transaction")
	}

	return nil
}

func (x *VectorIndex) Search(ctx context.Context, vector []float32, limit int, filter *model.VectorFilter) ([]*model.VectorMatch, error) {
	args := []any{pgv.NewVector(vector)}
	var conds []string

	if filter != nil {
		if filter.SessionID != "" {
			args = append(args, string(filter.SessionID))
			conds = append(conds, fmt.Sprintf("session_id = $%d", len(args)))
		}
		if filter.Track != "" {
			args = append(args, filter.Track)
			conds = append(conds, fmt.Sprintf("track = $%d", len(args)))
		}
		if !filter.Since.IsZero() {
			args = append(args, filter.Since)
			conds = append(conds, fmt.Sprintf("created_at >= $%d", len(args)))
		}
		if !filter.Until.IsZero() {
			args = append(args, filter.Until)
			conds = append(conds, fmt.Sprintf("created_at <= $%d", len(args)))
		}
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	args = append(args, limit)
	query := fmt.Sprintf(`SELECT chunk_id, 1 - (embedding <=> $1) AS similarity
	FROM %s%s
	ORDER BY embedding <=> $1
	LIMIT $%d`, x.table, where, len(args))

	rows, err := x.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query vectors")
	}
	defer rows.Close()

	var matches []*model.VectorMatch
	for rows.Next() {
		var chunkID string
		var similarity float64
		if err := rows.Scan(&chunkID, &similarity); err != nil {
			return nil, goerr.Wrap(err, "failed to scan vector match")
		}
		matches = append(matches, &model.VectorMatch{
			ChunkID:    model.ChunkID(chunkID),
			Similarity: model.ClampSimilarity(similarity),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate vector matches")
	}

	return matches, nil
}

func (x *VectorIndex) Fetch(ctx context.Context, ids []model.ChunkID) ([]*model.VectorEntry, error) {
	if len(ids) == 0 {
		return []*model.VectorEntry{}, nil
	}

	values := make([]string, 0, len(ids))
	for _, id := range ids {
		values = append(values, string(id))
	}

	query := fmt.Sprintf(`SELECT chunk_id, embedding, session_id, track, created_at
	FROM %s
	WHERE chunk_id = ANY($1)`, x.table)

	rows, err := x.pool.Query(ctx, query, values)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query vector entries")
	}
	defer rows.Close()

	var entries []*model.VectorEntry
	for rows.Next() {
		var (
			chunkID   string
			embedding pgv.Vector
			sessionID string
			track     string
			createdAt time.Time
		)
		if err := rows.Scan(&chunkID, &embedding, &sessionID, &track, &createdAt); err != nil {
			return nil, goerr.Wrap(err, "failed to scan vector entry")
		}
		entries = append(entries, &model.VectorEntry{
			ChunkID:   model.ChunkID(chunkID),
			Embedding: embedding.Slice(),
			SessionID: model.SessionID(sessionID),
			Track:     track,
			CreatedAt: createdAt,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate vector entries")
	}

	return entries, nil
}

func (x *VectorIndex) Delete(ctx context.Context, ids []model.ChunkID) error {
	if len(ids) == 0 {
		return nil
	}

	values := make([]string, 0, len(ids))
	for _, id := range ids {
		values = append(values, string(id))
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE chunk_id = ANY($1)", x.table)
	if _, err := x.pool.Exec(ctx, query, values); err != nil {
		return goerr.Wrap(err, "failed to delete vector entries")
	}

	return nil
}

func (x *VectorIndex) Close() error {
	if x.pool != nil {
		x.pool.Close()
	}
	return nil
}
