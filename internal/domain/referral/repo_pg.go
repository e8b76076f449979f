package referral

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

const letterCols = `id, patient_id, encounter_id, practitioner_id, target_facility, diagnosis,
	reason_text, status, submitted_at, signed_at, sent_at, accepted_at, transferred_at,
	completed_at, rejected_at, reject_reason, cancelled_at, cancel_reason,
	created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, l *Letter) error {
	l.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO referral_letter (
			id, patient_id, encounter_id, practitioner_id, target_facility,
			diagnosis, reason_text, status, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		l.ID, l.PatientID, l.EncounterID, l.PractitionerID, l.TargetFacility,
		l.Diagnosis, l.ReasonText, l.Status, l.CreatedAt, l.UpdatedAt,
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Letter, error) {
	return scanLetter(r.conn(ctx).QueryRow(ctx,
		`SELECT `+letterCols+` FROM referral_letter WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, l *Letter) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE referral_letter SET
			status = $2, diagnosis = $3, reason_text = $4,
			submitted_at = $5, signed_at = $6, sent_at = $7, accepted_at = $8,
			transferred_at = $9, completed_at = $10,
			rejected_at = $11, reject_reason = $12,
			cancelled_at = $13, cancel_reason = $14, updated_at = $15
		WHERE id = $1`,
		l.ID, l.Status, l.Diagnosis, l.ReasonText,
		l.SubmittedAt, l.SignedAt, l.SentAt, l.AcceptedAt,
		l.TransferredAt, l.CompletedAt,
		l.RejectedAt, l.RejectReason,
		l.CancelledAt, l.CancelReason, l.UpdatedAt,
	)
	return err
}

func (r *repoPG) UpdateFromStatus(ctx context.Context, l *Letter, from string) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE referral_letter SET
			status = $2, diagnosis = $3, reason_text = $4,
			submitted_at = $5, signed_at = $6, sent_at = $7, accepted_at = $8,
			transferred_at = $9, completed_at = $10,
			rejected_at = $11, reject_reason = $12,
			cancelled_at = $13, cancel_reason = $14, updated_at = $15
		WHERE id = $1 AND status = $16`,
		l.ID, l.Status, l.Diagnosis, l.ReasonText,
		l.SubmittedAt, l.SignedAt, l.SentAt, l.AcceptedAt,
		l.TransferredAt, l.CompletedAt,
		l.RejectedAt, l.RejectReason,
		l.CancelledAt, l.CancelReason, l.UpdatedAt,
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

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Letter, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM referral_letter`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+letterCols+` FROM referral_letter
		ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	letters, err := collectLetters(rows)
	return letters, total, err
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Letter, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM referral_letter WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+letterCols+` FROM referral_letter
		WHERE patient_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	letters, err := collectLetters(rows)
	return letters, total, err
}

func collectLetters(rows pgx.Rows) ([]*Letter, error) {
	var letters []*Letter
	for rows.Next() {
		l, err := scanLetter(rows)
		if err != nil {
			return nil, err
		}
		letters = append(letters, l)
	}
	return letters, rows.Err()
}

func scanLetter(row pgx.Row) (*Letter, error) {
	var l Letter
	err := row.Scan(
		&l.ID, &l.PatientID, &l.EncounterID, &l.PractitionerID, &l.TargetFacility,
		&l.Diagnosis, &l.ReasonText, &l.Status, &l.SubmittedAt, &l.SignedAt,
		&l.SentAt, &l.AcceptedAt, &l.TransferredAt, &l.CompletedAt,
		&l.RejectedAt, &l.RejectReason, &l.CancelledAt, &l.CancelReason,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}
