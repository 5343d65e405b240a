package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"xmlrelay/internal/model"
	"xmlrelay/internal/repository"
)

// ProcessedFilePostgres is a PostgreSQL implementation of repository.ProcessedFileRepository.
// Ids come from an identity column, so they are never reused after a delete.
type ProcessedFilePostgres struct {
	db  *sql.DB
	now func() time.Time
}

// NewProcessedFilePostgres creates a new ProcessedFilePostgres repository.
func NewProcessedFilePostgres(db *sql.DB) *ProcessedFilePostgres {
	return &ProcessedFilePostgres{db: db, now: time.Now}
}

var _ repository.ProcessedFileRepository = (*ProcessedFilePostgres)(nil)

// Create inserts a new row and returns the stored record with its assigned id.
func (r *ProcessedFilePostgres) Create(ctx context.Context, file *model.ProcessedFile) (*model.ProcessedFile, error) {
	const q = `
		INSERT INTO processed_files (file_name, processed_date, file_content)
		VALUES ($1, $2, $3)
		RETURNING id, file_name, processed_date, file_content
	`
	row := r.db.QueryRowContext(ctx, q,
		file.FileName,
		r.now().UTC(),
		file.FileContent,
	)
	var out model.ProcessedFile
	if err := row.Scan(
		&out.ID,
		&out.FileName,
		&out.ProcessedDate,
		&out.FileContent,
	); err != nil {
		return nil, err
	}
	return &out, nil
}

// FindByID fetches a single record by its id.
func (r *ProcessedFilePostgres) FindByID(ctx context.Context, id int64) (*model.ProcessedFile, error) {
	const q = `
		SELECT id, file_name, processed_date, file_content
		FROM processed_files
		WHERE id = $1
	`
	var f model.ProcessedFile
	if err := r.db.QueryRowContext(ctx, q, id).Scan(
		&f.ID,
		&f.FileName,
		&f.ProcessedDate,
		&f.FileContent,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &f, nil
}

// List returns every record ordered by id.
func (r *ProcessedFilePostgres) List(ctx context.Context) ([]model.ProcessedFile, error) {
	const q = `
		SELECT id, file_name, processed_date, file_content
		FROM processed_files
		ORDER BY id
	`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.ProcessedFile, 0)
	for rows.Next() {
		var f model.ProcessedFile
		if err := rows.Scan(
			&f.ID,
			&f.FileName,
			&f.ProcessedDate,
			&f.FileContent,
		); err != nil {
			return nil, err
		}
		items = append(items, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// Delete removes a record in a single statement; zero affected rows means not found.
func (r *ProcessedFilePostgres) Delete(ctx context.Context, id int64) error {
	const q = `DELETE FROM processed_files WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, id)
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

// Count returns the number of rows.
func (r *ProcessedFilePostgres) Count(ctx context.Context) (int, error) {
	const q = `SELECT COUNT(*) FROM processed_files`
	var n int
	if err := r.db.QueryRowContext(ctx, q).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
