package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/GTDGit/passport_api/internal/models"
)

const passportColumns = `id, created_at, updated_at, filename, full_name, passport_number, file_hash, data`

// PassportRepository handles passport record database operations
type PassportRepository struct {
	db *sqlx.DB
}

// NewPassportRepository creates a new passport repository
func NewPassportRepository(db *sqlx.DB) *PassportRepository {
	return &PassportRepository{db: db}
}

// Create inserts the record unless its file hash is already stored. On conflict the
// existing record is returned with created=false.
func (r *PassportRepository) Create(ctx context.Context, rec *models.PassportRecord) (*models.PassportRecord, bool, error) {
	query := `
		INSERT INTO passport_records (filename, full_name, passport_number, file_hash, data)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (file_hash) DO NOTHING
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRowContext(ctx, query,
		rec.Filename,
		rec.FullName,
		rec.PassportNumber,
		rec.FileHash,
		rec.Data,
	).Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		existing, err := r.GetByFileHash(ctx, rec.FileHash)
		if err != nil {
			return nil, false, err
		}
		if existing == nil {
			return nil, false, errors.New("conflicting record disappeared before it could be read")
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

// GetByID retrieves a passport record by ID
func (r *PassportRepository) GetByID(ctx context.Context, id int64) (*models.PassportRecord, error) {
	query := `SELECT ` + passportColumns + ` FROM passport_records WHERE id = $1`

	var rec models.PassportRecord
	if err := r.db.GetContext(ctx, &rec, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// GetByFileHash retrieves a passport record by content fingerprint
func (r *PassportRepository) GetByFileHash(ctx context.Context, hash string) (*models.PassportRecord, error) {
	query := `SELECT ` + passportColumns + ` FROM passport_records WHERE file_hash = $1`

	var rec models.PassportRecord
	if err := r.db.GetContext(ctx, &rec, query, hash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// listedRecord carries the window count alongside each row of a page.
type listedRecord struct {
	models.PassportRecord
	TotalCount int `db:"total_count"`
}

// List returns records newest first together with the total count.
// The count comes from the same statement as the page.
func (r *PassportRepository) List(ctx context.Context, offset, limit int) ([]*models.PassportRecord, int, error) {
	query := `
		SELECT ` + passportColumns + `, COUNT(*) OVER() AS total_count
		FROM passport_records
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`
	var rows []listedRecord
	if err := r.db.SelectContext(ctx, &rows, query, limit, offset); err != nil {
		return nil, 0, err
	}

	records := make([]*models.PassportRecord, 0, len(rows))
	for i := range rows {
		records = append(records, &rows[i].PassportRecord)
	}
	if len(rows) > 0 {
		return records, rows[0].TotalCount, nil
	}

	// Past the last page the window yields no rows
	var total int
	if offset > 0 {
		if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM passport_records`); err != nil {
			return nil, 0, err
		}
	}
	return records, total, nil
}

// UpdateData replaces the payload and re-derives the summary columns
func (r *PassportRepository) UpdateData(ctx context.Context, id int64, data *models.Payload) (*models.PassportRecord, error) {
	query := `
		UPDATE passport_records
		SET data = $2, full_name = $3, passport_number = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + passportColumns

	var rec models.PassportRecord
	err := r.db.GetContext(ctx, &rec, query,
		id,
		data,
		models.NullableString(data.FullName()),
		models.NullableString(data.PassportNumber()),
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// Delete removes a record and reports whether it existed
func (r *PassportRepository) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM passport_records WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
