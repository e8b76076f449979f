package facility

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

const resCols = `id, name, kind, location, operational, available, max_bookings_per_day, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, res *Resource) error {
	res.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO resource (id, name, kind, location, operational, available, max_bookings_per_day, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		res.ID, res.Name, res.Kind, res.Location, res.Operational, res.Available,
		res.MaxBookingsPerDay, res.CreatedAt, res.UpdatedAt,
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Resource, error) {
	return scanResource(r.conn(ctx).QueryRow(ctx,
		`SELECT `+resCols+` FROM resource WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, res *Resource) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE resource SET
			name = $2, kind = $3, location = $4, operational = $5, available = $6,
			max_bookings_per_day = $7, updated_at = $8
		WHERE id = $1`,
		res.ID, res.Name, res.Kind, res.Location, res.Operational, res.Available,
		res.MaxBookingsPerDay, res.UpdatedAt,
	)
	return err
}

func (r *repoPG) List(ctx context.Context, kind string, limit, offset int) ([]*Resource, int, error) {
	var total int
	var rows pgx.Rows
	var err error

	if kind != "" {
		if err = r.conn(ctx).QueryRow(ctx,
			`SELECT COUNT(*) FROM resource WHERE kind = $1`, kind).Scan(&total); err != nil {
			return nil, 0, err
		}
		rows, err = r.conn(ctx).Query(ctx, `
			SELECT `+resCols+` FROM resource WHERE kind = $1
			ORDER BY name LIMIT $2 OFFSET $3`, kind, limit, offset)
	} else {
		if err = r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM resource`).Scan(&total); err != nil {
			return nil, 0, err
		}
		rows, err = r.conn(ctx).Query(ctx, `
			SELECT `+resCols+` FROM resource
			ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	}
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var resources []*Resource
	for rows.Next() {
		res, err := scanResource(rows)
		if err != nil {
			return nil, 0, err
		}
		resources = append(resources, res)
	}
	return resources, total, rows.Err()
}

func scanResource(row pgx.Row) (*Resource, error) {
	var res Resource
	err := row.Scan(
		&res.ID, &res.Name, &res.Kind, &res.Location, &res.Operational,
		&res.Available, &res.MaxBookingsPerDay, &res.CreatedAt, &res.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &res, nil
}
