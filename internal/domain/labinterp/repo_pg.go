package labinterp

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type labResultRepoPG struct{ db queryable }

func NewLabResultRepoPG(pool *pgxpool.Pool) LabResultRepository { return &labResultRepoPG{db: pool} }

const labResultCols = `id, patient_id, encounter_id, ordered_by, category, test_name, status,
	raw_results, collected_at, note, created_at, updated_at`

func (r *labResultRepoPG) scanLabResult(row pgx.Row) (*LabResult, error) {
	var lr LabResult
	var raw []byte
	err := row.Scan(&lr.ID, &lr.PatientID, &lr.EncounterID, &lr.OrderedBy, &lr.Category, &lr.TestName, &lr.Status,
		&raw, &lr.CollectedAt, &lr.Note, &lr.CreatedAt, &lr.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	lr.RawResults = raw
	return &lr, nil
}

func (r *labResultRepoPG) Create(ctx context.Context, lr *LabResult) error {
	lr.ID = uuid.New()
	err := r.db.QueryRow(ctx, `
		INSERT INTO lab_result (id, patient_id, encounter_id, ordered_by, category, test_name, status,
			raw_results, collected_at, note)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at, updated_at`,
		lr.ID, lr.PatientID, lr.EncounterID, lr.OrderedBy, lr.Category, lr.TestName, lr.Status,
		[]byte(lr.RawResults), lr.CollectedAt, lr.Note).Scan(&lr.CreatedAt, &lr.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert lab result: %w", err)
	}
	return nil
}

func (r *labResultRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*LabResult, error) {
	return r.scanLabResult(r.db.QueryRow(ctx, `SELECT `+labResultCols+` FROM lab_result WHERE id = $1`, id))
}

func (r *labResultRepoPG) Update(ctx context.Context, lr *LabResult) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE lab_result SET encounter_id=$2, ordered_by=$3, category=$4, test_name=$5, status=$6,
			raw_results=$7, collected_at=$8, note=$9, updated_at=NOW()
		WHERE id = $1`,
		lr.ID, lr.EncounterID, lr.OrderedBy, lr.Category, lr.TestName, lr.Status,
		[]byte(lr.RawResults), lr.CollectedAt, lr.Note)
	if err != nil {
		return fmt.Errorf("update lab result: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *labResultRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx, `DELETE FROM lab_result WHERE id = $1`, id)
	return err
}

func (r *labResultRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*LabResult, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM lab_result WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.db.Query(ctx, `SELECT `+labResultCols+` FROM lab_result WHERE patient_id = $1
		ORDER BY COALESCE(collected_at, created_at) DESC, id LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*LabResult
	for rows.Next() {
		lr, err := r.scanLabResult(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, lr)
	}
	return items, total, rows.Err()
}
