package repo

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/didi/gendry/builder"

	"github.com/esgpipe/esgpipe/internal/model"
	"github.com/esgpipe/esgpipe/internal/pkg/dbutil"
	appErr "github.com/esgpipe/esgpipe/internal/pkg/errors"
)

type ChunkRepo struct {
	db *sql.DB
}

func NewChunkRepo(db *sql.DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

// ReplaceForDocument swaps the full chunk set of a document in one
// transaction so reprocessing can never leave a mixed old/new sequence.
func (r *ChunkRepo) ReplaceForDocument(ctx context.Context, documentID string, chunks []*model.Chunk) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunk_embeddings WHERE document_id = $1`, documentID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID); err != nil {
		return err
	}
	if len(chunks) > 0 {
		rows := make([]map[string]interface{}, 0, len(chunks))
		for _, chunk := range chunks {
			elements, err := json.Marshal(chunk.SchemaElements)
			if err != nil {
				return err
			}
			rows = append(rows, map[string]interface{}{
				"id":              chunk.ID,
				"document_id":     chunk.DocumentID,
				"chunk_index":     chunk.Index,
				"content":         chunk.Content,
				"token_count":     chunk.TokenCount,
				"schema_elements": string(elements),
				"ctime":           chunk.Ctime,
			})
		}
		sqlStr, args, err := builder.BuildInsert("chunks", rows)
		if err != nil {
			return err
		}
		sqlStr, args = dbutil.Finalize(sqlStr, args)
		if _, err := tx.ExecContext(ctx, sqlStr, args...); err != nil {
			return err
		}
	}
	return tx.Commit()
}

const chunkSelect = `
	SELECT c.id, c.document_id, c.chunk_index, c.content, c.token_count, c.schema_elements, c.ctime,
		EXISTS (SELECT 1 FROM chunk_embeddings e WHERE e.chunk_id = c.id) AS has_embedding
	FROM chunks c
`

func scanChunk(scanner interface{ Scan(...interface{}) error }) (*model.Chunk, error) {
	var chunk model.Chunk
	var elements string
	if err := scanner.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Index, &chunk.Content,
		&chunk.TokenCount, &elements, &chunk.Ctime, &chunk.HasEmbedding); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(elements), &chunk.SchemaElements); err != nil {
		return nil, err
	}
	return &chunk, nil
}

func (r *ChunkRepo) GetByID(ctx context.Context, chunkID string) (*model.Chunk, error) {
	row := r.db.QueryRowContext(ctx, chunkSelect+` WHERE c.id = $1`, chunkID)
	chunk, err := scanChunk(row)
	if err == sql.ErrNoRows {
		return nil, appErr.ErrNotFound
	}
	return chunk, err
}

func (r *ChunkRepo) ListByDocument(ctx context.Context, documentID string) ([]*model.Chunk, error) {
	rows, err := r.db.QueryContext(ctx, chunkSelect+` WHERE c.document_id = $1 ORDER BY c.chunk_index ASC`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var chunks []*model.Chunk
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

func (r *ChunkRepo) UpdateSchemaElements(ctx context.Context, chunkID string, elements []string) error {
	blob, err := json.Marshal(elements)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `UPDATE chunks SET schema_elements = $1 WHERE id = $2`, string(blob), chunkID)
	return err
}

// ListMissingEmbeddings returns chunks of completed documents that still lack
// a stored vector, oldest first, for the resync job.
func (r *ChunkRepo) ListMissingEmbeddings(ctx context.Context, limit int) ([]*model.Chunk, error) {
	const query = chunkSelect + `
		JOIN documents d ON d.id = c.document_id
		WHERE d.status = $1
			AND NOT EXISTS (SELECT 1 FROM chunk_embeddings e WHERE e.chunk_id = c.id)
		ORDER BY c.ctime ASC, c.chunk_index ASC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, model.DocumentStatusCompleted, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var chunks []*model.Chunk
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}
