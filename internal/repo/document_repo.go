package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/didi/gendry/builder"

	"github.com/esgpipe/esgpipe/internal/model"
	"github.com/esgpipe/esgpipe/internal/pkg/dbutil"
	appErr "github.com/esgpipe/esgpipe/internal/pkg/errors"
)

type DocumentRepo struct {
	db *sql.DB
}

func NewDocumentRepo(db *sql.DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

func (r *DocumentRepo) Create(ctx context.Context, doc *model.Document) error {
	data := map[string]interface{}{
		"id":              doc.ID,
		"filename":        doc.Filename,
		"document_type":   doc.DocumentType,
		"schema_type":     doc.SchemaType,
		"status":          doc.Status,
		"source_text_ref": doc.SourceTextRef,
		"error":           doc.Error,
		"ctime":           doc.Ctime,
		"mtime":           doc.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("documents", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	if dbutil.IsConflict(err) {
		return appErr.ErrConflict
	}
	return err
}

func (r *DocumentRepo) Get(ctx context.Context, id string) (*model.Document, error) {
	where := map[string]interface{}{"id": id}
	fields := []string{"id", "filename", "document_type", "schema_type", "status", "source_text_ref", "error", "ctime", "mtime"}
	sqlStr, args, err := builder.BuildSelect("documents", where, fields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	row := r.db.QueryRowContext(ctx, sqlStr, args...)
	var doc model.Document
	if err := row.Scan(&doc.ID, &doc.Filename, &doc.DocumentType, &doc.SchemaType,
		&doc.Status, &doc.SourceTextRef, &doc.Error, &doc.Ctime, &doc.Mtime); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return &doc, nil
}

// Claim atomically moves a document into processing. Exactly one caller wins;
// a second claim while processing fails with ErrAlreadyProcessing.
func (r *DocumentRepo) Claim(ctx context.Context, id string) error {
	const query = `
		UPDATE documents
		SET status = $1, error = '', mtime = $2
		WHERE id = $3 AND status != $1
	`
	res, err := r.db.ExecContext(ctx, query, model.DocumentStatusProcessing, time.Now().UnixMilli(), id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		if _, err := r.Get(ctx, id); err != nil {
			return err
		}
		return appErr.ErrAlreadyProcessing
	}
	return nil
}

func (r *DocumentRepo) UpdateStatus(ctx context.Context, id, status, errMsg string) error {
	where := map[string]interface{}{"id": id}
	update := map[string]interface{}{
		"status": status,
		"error":  errMsg,
		"mtime":  time.Now().UnixMilli(),
	}
	sqlStr, args, err := builder.BuildUpdate("documents", where, update)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	res, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

// ReclaimStuck resets documents stuck in processing past the cutoff back to
// pending so an orchestrator crash cannot orphan them.
func (r *DocumentRepo) ReclaimStuck(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan).UnixMilli()
	const query = `
		UPDATE documents
		SET status = $1, error = $2, mtime = $3
		WHERE status = $4 AND mtime < $5
	`
	res, err := r.db.ExecContext(ctx, query,
		model.DocumentStatusPending,
		"reclaimed: processing exceeded deadline",
		time.Now().UnixMilli(),
		model.DocumentStatusProcessing,
		cutoff,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *DocumentRepo) List(ctx context.Context, status string, limit int) ([]model.Document, error) {
	where := map[string]interface{}{
		"_orderby": "mtime desc",
		"_limit":   []uint{0, uint(limit)},
	}
	if status != "" {
		where["status"] = status
	}
	fields := []string{"id", "filename", "document_type", "schema_type", "status", "source_text_ref", "error", "ctime", "mtime"}
	sqlStr, args, err := builder.BuildSelect("documents", where, fields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var docs []model.Document
	for rows.Next() {
		var doc model.Document
		if err := rows.Scan(&doc.ID, &doc.Filename, &doc.DocumentType, &doc.SchemaType,
			&doc.Status, &doc.SourceTextRef, &doc.Error, &doc.Ctime, &doc.Mtime); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}
