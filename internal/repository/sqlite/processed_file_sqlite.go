package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"xmlrelay/internal/model"
	"xmlrelay/internal/repository"
)

// processedFileRow mirrors the processed_files table. Dates are stored as RFC3339 text.
type processedFileRow struct {
	ID            int64  `db:"id"`
	FileName      string `db:"file_name"`
	ProcessedDate string `db:"processed_date"`
	FileContent   string `db:"file_content"`
}

func (r processedFileRow) toModel() (model.ProcessedFile, error) {
	ts, err := time.Parse(time.RFC3339Nano, r.ProcessedDate)
	if err != nil {
		return model.ProcessedFile{}, fmt.Errorf("parse processed_date of %d: %w", r.ID, err)
	}
	return model.ProcessedFile{
		ID:            r.ID,
		FileName:      r.FileName,
		ProcessedDate: ts.UTC(),
		FileContent:   r.FileContent,
	}, nil
}

// ProcessedFileSQLite is a SQLite implementation of repository.ProcessedFileRepository.
// AUTOINCREMENT guarantees ids are never reused after a delete.
type ProcessedFileSQLite struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewProcessedFileSQLite creates a new ProcessedFileSQLite repository.
func NewProcessedFileSQLite(db *sqlx.DB) *ProcessedFileSQLite {
	return &ProcessedFileSQLite{db: db, now: time.Now}
}

var _ repository.ProcessedFileRepository = (*ProcessedFileSQLite)(nil)

func (r *ProcessedFileSQLite) Create(ctx context.Context, file *model.ProcessedFile) (*model.ProcessedFile, error) {
	const q = `INSERT INTO processed_files (file_name, processed_date, file_content) VALUES (?, ?, ?)`
	now := r.now().UTC()
	res, err := r.db.ExecContext(ctx, q, file.FileName, now.Format(time.RFC3339Nano), file.FileContent)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &model.ProcessedFile{
		ID:            id,
		FileName:      file.FileName,
		ProcessedDate: now,
		FileContent:   file.FileContent,
	}, nil
}

func (r *ProcessedFileSQLite) FindByID(ctx context.Context, id int64) (*model.ProcessedFile, error) {
	const q = `SELECT id, file_name, processed_date, file_content FROM processed_files WHERE id = ?`
	var row processedFileRow
	if err := r.db.GetContext(ctx, &row, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	f, err := row.toModel()
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *ProcessedFileSQLite) List(ctx context.Context) ([]model.ProcessedFile, error) {
	const q = `SELECT id, file_name, processed_date, file_content FROM processed_files ORDER BY id`
	var rows []processedFileRow
	if err := r.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, err
	}
	items := make([]model.ProcessedFile, 0, len(rows))
	for _, row := range rows {
		f, err := row.toModel()
		if err != nil {
			return nil, err
		}
		items = append(items, f)
	}
	return items, nil
}

func (r *ProcessedFileSQLite) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM processed_files WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *ProcessedFileSQLite) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM processed_files`); err != nil {
		return 0, err
	}
	return n, nil
}
