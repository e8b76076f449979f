package procedure

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

const actCols = `id, patient_id, encounter_id, kind, description, status, resource_id,
	scheduled_start, scheduled_end, reschedule_count, started_at, completed_at,
	cancelled_at, cancel_reason, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, a *Activity) error {
	a.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO activity (
			id, patient_id, encounter_id, kind, description, status, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		a.ID, a.PatientID, a.EncounterID, a.Kind, a.Description, a.Status, a.CreatedAt, a.UpdatedAt,
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Activity, error) {
	return scanActivity(r.conn(ctx).QueryRow(ctx,
		`SELECT `+actCols+` FROM activity WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, a *Activity) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE activity SET
			status = $2, description = $3, resource_id = $4,
			scheduled_start = $5, scheduled_end = $6, reschedule_count = $7,
			started_at = $8, completed_at = $9,
			cancelled_at = $10, cancel_reason = $11, updated_at = $12
		WHERE id = $1`,
		a.ID, a.Status, a.Description, a.ResourceID,
		a.ScheduledStart, a.ScheduledEnd, a.RescheduleCount,
		a.StartedAt, a.CompletedAt,
		a.CancelledAt, a.CancelReason, a.UpdatedAt,
	)
	return err
}

func (r *repoPG) UpdateFromStatus(ctx context.Context, a *Activity, from string) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE activity SET
			status = $2, description = $3, resource_id = $4,
			scheduled_start = $5, scheduled_end = $6, reschedule_count = $7,
			started_at = $8, completed_at = $9,
			cancelled_at = $10, cancel_reason = $11, updated_at = $12
		WHERE id = $1 AND status = $13`,
		a.ID, a.Status, a.Description, a.ResourceID,
		a.ScheduledStart, a.ScheduledEnd, a.RescheduleCount,
		a.StartedAt, a.CompletedAt,
		a.CancelledAt, a.CancelReason, a.UpdatedAt,
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

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Activity, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM activity`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+actCols+` FROM activity
		ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	acts, err := collectActivities(rows)
	return acts, total, err
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Activity, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM activity WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+actCols+` FROM activity
		WHERE patient_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	acts, err := collectActivities(rows)
	return acts, total, err
}

func collectActivities(rows pgx.Rows) ([]*Activity, error) {
	var acts []*Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		acts = append(acts, a)
	}
	return acts, rows.Err()
}

func scanActivity(row pgx.Row) (*Activity, error) {
	var a Activity
	err := row.Scan(
		&a.ID, &a.PatientID, &a.EncounterID, &a.Kind, &a.Description, &a.Status,
		&a.ResourceID, &a.ScheduledStart, &a.ScheduledEnd, &a.RescheduleCount,
		&a.StartedAt, &a.CompletedAt, &a.CancelledAt, &a.CancelReason,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
