package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/esgpipe/esgpipe/internal/model"
	appErr "github.com/esgpipe/esgpipe/internal/pkg/errors"
)

// VectorRepo owns the chunk_embeddings table: per-chunk vector upserts and
// cosine nearest-neighbor search with filterable document metadata.
type VectorRepo struct {
	db *sql.DB
}

func NewVectorRepo(db *sql.DB) *VectorRepo {
	return &VectorRepo{db: db}
}

func (r *VectorRepo) Upsert(ctx context.Context, emb *model.ChunkEmbedding) error {
	const query = `
		INSERT INTO chunk_embeddings (chunk_id, document_id, embedding, model_name, mtime)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (chunk_id) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			model_name = EXCLUDED.model_name,
			mtime = EXCLUDED.mtime
	`
	_, err := r.db.ExecContext(ctx, query,
		emb.ChunkID,
		emb.DocumentID,
		pgvector.NewVector(emb.Embedding),
		emb.ModelName,
		emb.Mtime,
	)
	return err
}

func (r *VectorRepo) GetEmbedding(ctx context.Context, chunkID string) ([]float32, error) {
	const query = `SELECT embedding FROM chunk_embeddings WHERE chunk_id = $1`
	row := r.db.QueryRowContext(ctx, query, chunkID)
	var embedding pgvector.Vector
	if err := row.Scan(&embedding); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return embedding.Slice(), nil
}

type VectorQuery struct {
	Embedding       []float32
	Limit           int
	Filters         model.SearchFilters
	ExcludeChunk    string
	ExcludeDocument string
}

// Search returns candidates ordered by cosine distance. Score is mapped to
// [0,1] as 1 - distance/2 so unrelated vectors do not go negative.
func (r *VectorRepo) Search(ctx context.Context, q VectorQuery) ([]model.SearchResult, error) {
	query := `
		SELECT c.id, c.document_id, c.chunk_index, c.content, c.schema_elements,
			d.filename, d.document_type, d.schema_type,
			e.embedding <=> $1 AS distance
		FROM chunk_embeddings e
		JOIN chunks c ON c.id = e.chunk_id
		JOIN documents d ON d.id = c.document_id
	`
	args := []interface{}{pgvector.NewVector(q.Embedding)}
	conds := ""
	addCond := func(cond string, value interface{}) {
		args = append(args, value)
		if conds == "" {
			conds = " WHERE "
		} else {
			conds += " AND "
		}
		conds += fmt.Sprintf(cond, len(args))
	}
	if q.Filters.DocumentType != "" {
		addCond("d.document_type = $%d", q.Filters.DocumentType)
	}
	if q.Filters.SchemaType != "" {
		addCond("d.schema_type = $%d", q.Filters.SchemaType)
	}
	if q.Filters.Status != "" {
		addCond("d.status = $%d", q.Filters.Status)
	}
	if q.Filters.FilenameContains != "" {
		addCond("d.filename ILIKE $%d", "%"+q.Filters.FilenameContains+"%")
	}
	if q.ExcludeChunk != "" {
		addCond("c.id != $%d", q.ExcludeChunk)
	}
	if q.ExcludeDocument != "" {
		addCond("c.document_id != $%d", q.ExcludeDocument)
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 10
	}
	args = append(args, limit)
	query += conds + fmt.Sprintf(" ORDER BY distance ASC LIMIT $%d", len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []model.SearchResult
	for rows.Next() {
		var res model.SearchResult
		var elements string
		var distance float64
		if err := rows.Scan(&res.ChunkID, &res.DocumentID, &res.ChunkIndex, &res.Content,
			&elements, &res.Filename, &res.DocumentType, &res.SchemaType, &distance); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(elements), &res.SchemaElements); err != nil {
			return nil, err
		}
		score := 1 - distance/2
		if score < 0 {
			score = 0
		}
		if score > 1 {
			score = 1
		}
		res.VectorScore = score
		res.Score = score
		results = append(results, res)
	}
	return results, rows.Err()
}

func (r *VectorRepo) DeleteByDocument(ctx context.Context, documentID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM chunk_embeddings WHERE document_id = $1`, documentID)
	return err
}

func (r *VectorRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
