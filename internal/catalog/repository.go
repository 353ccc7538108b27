package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-ops/meridian/internal/shared"
)

// Repository persists products in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const productColumns = `id, business_id, sku, name, unit,
	opening_stock, inward_addition, deduction, auto_addition, auto_deduction, blocked_stock,
	created_at, updated_at`

// Insert creates the product row. A duplicate SKU within the business maps
// to a conflict error.
func (r *Repository) Insert(ctx context.Context, p Product) (Product, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO products (business_id, sku, name, unit, opening_stock)
		 VALUES ($1,$2,$3,$4,$5)
		 RETURNING id, created_at, updated_at`,
		p.BusinessID, p.SKU, p.Name, p.Unit, p.Counters.OpeningStock).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Product{}, shared.ConflictErrorf("sku %q already exists", p.SKU)
		}
		return Product{}, err
	}
	return p, nil
}

// Get fetches one product.
func (r *Repository) Get(ctx context.Context, businessID, id int64) (Product, error) {
	return scanProduct(r.pool.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE business_id=$1 AND id=$2`,
		businessID, id))
}

// GetBySKU fetches a product by canonical SKU.
func (r *Repository) GetBySKU(ctx context.Context, businessID int64, sku string) (Product, error) {
	return scanProduct(r.pool.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE business_id=$1 AND sku=$2`,
		businessID, sku))
}

// List pages through products ordered by SKU.
func (r *Repository) List(ctx context.Context, businessID int64, page shared.PageRequest) ([]Product, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+productColumns+` FROM products WHERE business_id=$1
		 ORDER BY sku LIMIT $2 OFFSET $3`,
		businessID, page.Limit(), page.Offset())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// ExistingSKUs maps each known SKU of the given set to its product id.
func (r *Repository) ExistingSKUs(ctx context.Context, businessID int64, skus []string) (map[string]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT sku, id FROM products WHERE business_id=$1 AND sku = ANY($2)`,
		businessID, skus)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	found := make(map[string]int64, len(skus))
	for rows.Next() {
		var sku string
		var id int64
		if err := rows.Scan(&sku, &id); err != nil {
			return nil, err
		}
		found[sku] = id
	}
	return found, rows.Err()
}

// UpdateName updates the display fields.
func (r *Repository) UpdateName(ctx context.Context, businessID, id int64, name, unit string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE products SET name=$3, unit=$4, updated_at=NOW() WHERE business_id=$1 AND id=$2`,
		businessID, id, name, unit)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFoundErrorf("product %d", id)
	}
	return nil
}

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.BusinessID, &p.SKU, &p.Name, &p.Unit,
		&p.Counters.OpeningStock, &p.Counters.InwardAddition, &p.Counters.Deduction,
		&p.Counters.AutoAddition, &p.Counters.AutoDeduction, &p.Counters.BlockedStock,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, shared.NotFoundErrorf("product")
		}
		return Product{}, err
	}
	return p, nil
}
