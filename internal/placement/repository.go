package placement

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads placements from PostgreSQL. The rows themselves are
// written by the receiving module inside its stock transactions.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const placementColumns = `id, business_id, product_id, warehouse_id, zone_id, rack_id, shelf_id,
	warehouse_name, zone_name, rack_name, shelf_name, quantity, create_upcs,
	last_movement_reason, last_movement_reference, updated_at`

// ListForProduct lists placements with stock, ordered by location path.
func (r *Repository) ListForProduct(ctx context.Context, businessID, productID int64) ([]Placement, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+placementColumns+` FROM placements
		 WHERE business_id=$1 AND product_id=$2 AND quantity > 0
		 ORDER BY zone_name, rack_name, shelf_name`,
		businessID, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var placements []Placement
	for rows.Next() {
		p, err := scanPlacement(rows)
		if err != nil {
			return nil, err
		}
		placements = append(placements, p)
	}
	return placements, rows.Err()
}

func scanPlacement(row pgx.Row) (Placement, error) {
	var p Placement
	err := row.Scan(&p.ID, &p.BusinessID, &p.ProductID,
		&p.Location.WarehouseID, &p.Location.ZoneID, &p.Location.RackID, &p.Location.ShelfID,
		&p.Location.WarehouseName, &p.Location.ZoneName, &p.Location.RackName, &p.Location.ShelfName,
		&p.Quantity, &p.CreateUPCs, &p.LastMovementReason, &p.LastMovementReference, &p.UpdatedAt)
	return p, err
}
