package encounter

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wardflow/wardflow/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func (r *repoPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const encCols = `id, patient_id, practitioner_id, department_id, status, reason_text,
	planned_at, arrived_at, triaged_at, started_at, finished_at, cancelled_at,
	cancel_reason, length_hours, length_days, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, enc *Encounter) error {
	enc.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO encounter (
			id, patient_id, practitioner_id, department_id, status, reason_text,
			planned_at, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		enc.ID, enc.PatientID, enc.PractitionerID, enc.DepartmentID, enc.Status,
		enc.ReasonText, enc.PlannedAt, enc.CreatedAt, enc.UpdatedAt,
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Encounter, error) {
	return scanEncounter(r.conn(ctx).QueryRow(ctx,
		`SELECT `+encCols+` FROM encounter WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, enc *Encounter) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE encounter SET
			status = $2, reason_text = $3,
			arrived_at = $4, triaged_at = $5, started_at = $6, finished_at = $7,
			cancelled_at = $8, cancel_reason = $9,
			length_hours = $10, length_days = $11, updated_at = $12
		WHERE id = $1`,
		enc.ID, enc.Status, enc.ReasonText,
		enc.ArrivedAt, enc.TriagedAt, enc.StartedAt, enc.FinishedAt,
		enc.CancelledAt, enc.CancelReason,
		enc.LengthHours, enc.LengthDays, enc.UpdatedAt,
	)
	return err
}

func (r *repoPG) UpdateFromStatus(ctx context.Context, enc *Encounter, from string) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE encounter SET
			status = $2, reason_text = $3,
			arrived_at = $4, triaged_at = $5, started_at = $6, finished_at = $7,
			cancelled_at = $8, cancel_reason = $9,
			length_hours = $10, length_days = $11, updated_at = $12
		WHERE id = $1 AND status = $13`,
		enc.ID, enc.Status, enc.ReasonText,
		enc.ArrivedAt, enc.TriagedAt, enc.StartedAt, enc.FinishedAt,
		enc.CancelledAt, enc.CancelReason,
		enc.LengthHours, enc.LengthDays, enc.UpdatedAt,
		from,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return db.ErrStaleRow
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Encounter, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM encounter`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+encCols+` FROM encounter
		ORDER BY planned_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	encs, err := collectEncounters(rows)
	return encs, total, err
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Encounter, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM encounter WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+encCols+` FROM encounter
		WHERE patient_id = $1
		ORDER BY planned_at DESC LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	encs, err := collectEncounters(rows)
	return encs, total, err
}

func collectEncounters(rows pgx.Rows) ([]*Encounter, error) {
	var encs []*Encounter
	for rows.Next() {
		enc, err := scanEncounter(rows)
		if err != nil {
			return nil, err
		}
		encs = append(encs, enc)
	}
	return encs, rows.Err()
}

func scanEncounter(row pgx.Row) (*Encounter, error) {
	var enc Encounter
	err := row.Scan(
		&enc.ID, &enc.PatientID, &enc.PractitionerID, &enc.DepartmentID, &enc.Status,
		&enc.ReasonText, &enc.PlannedAt, &enc.ArrivedAt, &enc.TriagedAt, &enc.StartedAt,
		&enc.FinishedAt, &enc.CancelledAt, &enc.CancelReason,
		&enc.LengthHours, &enc.LengthDays, &enc.CreatedAt, &enc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &enc, nil
}
