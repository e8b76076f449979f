package transfer

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

const trCols = `id, patient_id, encounter_id, from_department_id, to_department_id, status,
	reason_text, requested_at, submitted_at, approved_at, accepted_at, departed_at,
	completed_at, rejected_at, reject_reason, cancelled_at, cancel_reason,
	created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, tr *Transfer) error {
	tr.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO department_transfer (
			id, patient_id, encounter_id, from_department_id, to_department_id,
			status, reason_text, requested_at, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		tr.ID, tr.PatientID, tr.EncounterID, tr.FromDepartmentID, tr.ToDepartmentID,
		tr.Status, tr.ReasonText, tr.RequestedAt, tr.CreatedAt, tr.UpdatedAt,
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Transfer, error) {
	return scanTransfer(r.conn(ctx).QueryRow(ctx,
		`SELECT `+trCols+` FROM department_transfer WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, tr *Transfer) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE department_transfer SET
			status = $2, reason_text = $3,
			submitted_at = $4, approved_at = $5, accepted_at = $6, departed_at = $7,
			completed_at = $8, rejected_at = $9, reject_reason = $10,
			cancelled_at = $11, cancel_reason = $12, updated_at = $13
		WHERE id = $1`,
		tr.ID, tr.Status, tr.ReasonText,
		tr.SubmittedAt, tr.ApprovedAt, tr.AcceptedAt, tr.DepartedAt,
		tr.CompletedAt, tr.RejectedAt, tr.RejectReason,
		tr.CancelledAt, tr.CancelReason, tr.UpdatedAt,
	)
	return err
}

func (r *repoPG) UpdateFromStatus(ctx context.Context, tr *Transfer, from string) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE department_transfer SET
			status = $2, reason_text = $3,
			submitted_at = $4, approved_at = $5, accepted_at = $6, departed_at = $7,
			completed_at = $8, rejected_at = $9, reject_reason = $10,
			cancelled_at = $11, cancel_reason = $12, updated_at = $13
		WHERE id = $1 AND status = $14`,
		tr.ID, tr.Status, tr.ReasonText,
		tr.SubmittedAt, tr.ApprovedAt, tr.AcceptedAt, tr.DepartedAt,
		tr.CompletedAt, tr.RejectedAt, tr.RejectReason,
		tr.CancelledAt, tr.CancelReason, tr.UpdatedAt,
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

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Transfer, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM department_transfer`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+trCols+` FROM department_transfer
		ORDER BY requested_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	trs, err := collectTransfers(rows)
	return trs, total, err
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Transfer, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM department_transfer WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+trCols+` FROM department_transfer
		WHERE patient_id = $1
		ORDER BY requested_at DESC LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	trs, err := collectTransfers(rows)
	return trs, total, err
}

func collectTransfers(rows pgx.Rows) ([]*Transfer, error) {
	var trs []*Transfer
	for rows.Next() {
		tr, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		trs = append(trs, tr)
	}
	return trs, rows.Err()
}

func scanTransfer(row pgx.Row) (*Transfer, error) {
	var tr Transfer
	err := row.Scan(
		&tr.ID, &tr.PatientID, &tr.EncounterID, &tr.FromDepartmentID, &tr.ToDepartmentID,
		&tr.Status, &tr.ReasonText, &tr.RequestedAt, &tr.SubmittedAt, &tr.ApprovedAt,
		&tr.AcceptedAt, &tr.DepartedAt, &tr.CompletedAt, &tr.RejectedAt, &tr.RejectReason,
		&tr.CancelledAt, &tr.CancelReason, &tr.CreatedAt, &tr.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &tr, nil
}
