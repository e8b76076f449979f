package statushistory

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

const entryCols = `id, entity_id, entity_kind, from_status, to_status, changed_by, reason, notes, seq, changed_at`

func (r *repoPG) Append(ctx context.Context, e *Entry) error {
	e.ID = uuid.New()
	// seq comes from a sequence so concurrent appends stay totally ordered
	// even when changed_at collides.
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO status_history (id, entity_id, entity_kind, from_status, to_status, changed_by, reason, notes, changed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING seq`,
		e.ID, e.EntityID, e.EntityKind, e.FromStatus, e.ToStatus, e.ChangedBy, e.Reason, e.Notes, e.ChangedAt,
	).Scan(&e.Seq)
}

func (r *repoPG) ListByEntity(ctx context.Context, entityID uuid.UUID) ([]*Entry, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+entryCols+` FROM status_history
		WHERE entity_id = $1 ORDER BY changed_at, seq`, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *repoPG) Latest(ctx context.Context, entityID uuid.UUID) (*Entry, error) {
	e, err := scanEntry(r.conn(ctx).QueryRow(ctx, `
		SELECT `+entryCols+` FROM status_history
		WHERE entity_id = $1 ORDER BY changed_at DESC, seq DESC LIMIT 1`, entityID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return e, err
}

func scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	err := row.Scan(&e.ID, &e.EntityID, &e.EntityKind, &e.FromStatus, &e.ToStatus,
		&e.ChangedBy, &e.Reason, &e.Notes, &e.Seq, &e.ChangedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
