package party

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-ops/meridian/internal/shared"
)

// Repository persists parties in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const partyColumns = `id, business_id, name, role, gstin, email, phone, address,
	is_active, deleted_at, created_at, updated_at`

// Insert creates the party row. The partial unique index on
// (business_id, gstin) backs up the service-level check.
func (r *Repository) Insert(ctx context.Context, p Party) (Party, error) {
	var gstin *string
	if p.GSTIN != "" {
		gstin = &p.GSTIN
	}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO parties (business_id, name, role, gstin, email, phone, address, is_active)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		 RETURNING id, created_at, updated_at`,
		p.BusinessID, p.Name, string(p.Role), gstin, p.Email, p.Phone, p.Address, p.IsActive).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Party{}, shared.ConflictErrorf("gstin %s already registered", p.GSTIN)
		}
		return Party{}, err
	}
	return p, nil
}

// Get fetches one party.
func (r *Repository) Get(ctx context.Context, businessID, id int64) (Party, error) {
	return scanParty(r.pool.QueryRow(ctx,
		`SELECT `+partyColumns+` FROM parties WHERE business_id=$1 AND id=$2`,
		businessID, id), id)
}

// List pages through parties, optionally restricted to one role. Parties
// with role "both" match either restriction.
func (r *Repository) List(ctx context.Context, businessID int64, role Role, page shared.PageRequest) ([]Party, error) {
	query := `SELECT ` + partyColumns + ` FROM parties WHERE business_id=$1 AND is_active=TRUE`
	args := []any{businessID}
	if role != "" {
		args = append(args, string(role))
		query += ` AND (role=$2 OR role='both')`
	}
	args = append(args, page.Limit())
	query += ` ORDER BY name LIMIT $` + strconv.Itoa(len(args))
	args = append(args, page.Offset())
	query += ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var parties []Party
	for rows.Next() {
		p, err := scanParty(rows, 0)
		if err != nil {
			return nil, err
		}
		parties = append(parties, p)
	}
	return parties, rows.Err()
}

// Update writes the editable fields.
func (r *Repository) Update(ctx context.Context, p Party) error {
	var gstin *string
	if p.GSTIN != "" {
		gstin = &p.GSTIN
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE parties SET name=$3, gstin=$4, email=$5, phone=$6, address=$7, updated_at=NOW()
		 WHERE business_id=$1 AND id=$2`,
		p.BusinessID, p.ID, p.Name, gstin, p.Email, p.Phone, p.Address)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return shared.ConflictErrorf("gstin %s already registered", p.GSTIN)
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFoundErrorf("party %d", p.ID)
	}
	return nil
}

// Deactivate soft-deletes the party.
func (r *Repository) Deactivate(ctx context.Context, businessID, id int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE parties SET is_active=FALSE, deleted_at=NOW(), updated_at=NOW()
		 WHERE business_id=$1 AND id=$2 AND is_active=TRUE`,
		businessID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFoundErrorf("party %d", id)
	}
	return nil
}

// GSTINInUse checks the GSTIN against every party of the business, deleted
// ones included.
func (r *Repository) GSTINInUse(ctx context.Context, businessID int64, gstin string, excludeID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM parties WHERE business_id=$1 AND gstin=$2 AND id<>$3)`,
		businessID, gstin, excludeID).Scan(&exists)
	return exists, err
}

// OpenPurchaseOrderNumbers lists order numbers still referencing the party
// in a non-terminal status.
func (r *Repository) OpenPurchaseOrderNumbers(ctx context.Context, businessID, partyID int64) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT order_no FROM purchase_orders
		 WHERE business_id=$1 AND supplier_id=$2
		   AND status NOT IN ('closed','cancelled','fully_received')
		 ORDER BY order_no`,
		businessID, partyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var numbers []string
	for rows.Next() {
		var no string
		if err := rows.Scan(&no); err != nil {
			return nil, err
		}
		numbers = append(numbers, no)
	}
	return numbers, rows.Err()
}

func scanParty(row pgx.Row, id int64) (Party, error) {
	var p Party
	var role string
	var gstin *string
	err := row.Scan(&p.ID, &p.BusinessID, &p.Name, &role, &gstin, &p.Email, &p.Phone,
		&p.Address, &p.IsActive, &p.DeletedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Party{}, shared.NotFoundErrorf("party %d", id)
		}
		return Party{}, err
	}
	p.Role = Role(role)
	if gstin != nil {
		p.GSTIN = *gstin
	}
	return p, nil
}
