package receiving

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-ops/meridian/internal/ledger"
	"github.com/meridian-ops/meridian/internal/placement"
	"github.com/meridian-ops/meridian/internal/platform/db"
	"github.com/meridian-ops/meridian/internal/purchasing"
	"github.com/meridian-ops/meridian/internal/shared"
)

// Repository persists GRNs and serves the cross-domain transactional port:
// one transaction spans grns, purchase orders, products, stock movements
// and placements.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const grnColumns = `id, business_id, grn_no, order_id, status,
	total_expected_qty, total_received_qty, total_not_received_qty, total_received_value,
	inwarded_at, inwarded_by, inward_location, created_by, created_at, updated_at`

// GetGRN fetches one GRN with its lines.
func (r *Repository) GetGRN(ctx context.Context, businessID, id int64) (GRN, error) {
	grn, err := scanGRN(r.pool.QueryRow(ctx,
		`SELECT `+grnColumns+` FROM grns WHERE business_id=$1 AND id=$2`,
		businessID, id), id)
	if err != nil {
		return GRN{}, err
	}
	grn.Items, err = listGRNItems(ctx, r.pool, id)
	return grn, err
}

// ListGRNs pages through GRN headers newest first.
func (r *Repository) ListGRNs(ctx context.Context, businessID int64, status Status, page shared.PageRequest) ([]GRN, error) {
	query := `SELECT ` + grnColumns + ` FROM grns WHERE business_id=$1`
	args := []any{businessID}
	if status != "" {
		args = append(args, string(status))
		query += ` AND status=$2`
	}
	args = append(args, page.Limit())
	query += ` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(len(args))
	args = append(args, page.Offset())
	query += ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var grns []GRN
	for rows.Next() {
		g, err := scanGRN(rows, 0)
		if err != nil {
			return nil, err
		}
		grns = append(grns, g)
	}
	return grns, rows.Err()
}

func (r *txRepo) GetGRNForUpdate(ctx context.Context, businessID, id int64) (GRN, error) {
	grn, err := scanGRN(r.tx.QueryRow(ctx,
		`SELECT `+grnColumns+` FROM grns WHERE business_id=$1 AND id=$2 FOR UPDATE`,
		businessID, id), id)
	if err != nil {
		return GRN{}, err
	}
	grn.Items, err = listGRNItems(ctx, r.tx, id)
	return grn, err
}

func (r *txRepo) InsertGRN(ctx context.Context, g GRN) (GRN, error) {
	err := r.tx.QueryRow(ctx,
		`INSERT INTO grns (business_id, grn_no, order_id, status, created_by)
		 VALUES ($1, 'GRN-' || nextval('grn_no_seq'), $2, $3, $4)
		 RETURNING id, grn_no, created_at, updated_at`,
		g.BusinessID, g.OrderID, string(g.Status), g.CreatedBy).
		Scan(&g.ID, &g.GRNNo, &g.CreatedAt, &g.UpdatedAt)
	return g, err
}

func (r *txRepo) ReplaceGRNItems(ctx context.Context, grnID int64, items []Item) ([]Item, error) {
	if _, err := r.tx.Exec(ctx, `DELETE FROM grn_items WHERE grn_id=$1`, grnID); err != nil {
		return nil, err
	}
	out := make([]Item, 0, len(items))
	for _, it := range items {
		it.GRNID = grnID
		err := r.tx.QueryRow(ctx,
			`INSERT INTO grn_items (grn_id, product_id, sku, expected_qty, received_qty,
			 accepted_qty, rejected_qty, not_received_qty, unit_cost, total_cost)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) RETURNING id`,
			grnID, it.ProductID, it.SKU, it.ExpectedQty, it.ReceivedQty,
			it.AcceptedQty, it.RejectedQty, it.NotReceivedQty, it.UnitCost, it.TotalCost).Scan(&it.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, nil
}

func (r *txRepo) UpdateGRNHeader(ctx context.Context, g GRN) error {
	tag, err := r.tx.Exec(ctx,
		`UPDATE grns SET status=$2, total_expected_qty=$3, total_received_qty=$4,
		 total_not_received_qty=$5, total_received_value=$6,
		 inwarded_at=$7, inwarded_by=$8, inward_location=$9, updated_at=NOW()
		 WHERE id=$1`,
		g.ID, string(g.Status), g.Totals.ExpectedQty, g.Totals.ReceivedQty,
		g.Totals.NotReceivedQty, g.Totals.ReceivedValue,
		g.InwardedAt, nullableID(g.InwardedBy), g.InwardLocation)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFoundErrorf("grn %d", g.ID)
	}
	return nil
}

func (r *txRepo) GetOrderForUpdate(ctx context.Context, businessID, id int64) (purchasing.Order, error) {
	var o purchasing.Order
	var status string
	err := r.tx.QueryRow(ctx,
		`SELECT id, business_id, order_no, supplier_id, supplier_name, status, notes, created_by, created_at, updated_at
		 FROM purchase_orders WHERE business_id=$1 AND id=$2 FOR UPDATE`,
		businessID, id).
		Scan(&o.ID, &o.BusinessID, &o.OrderNo, &o.SupplierID, &o.SupplierName,
			&status, &o.Notes, &o.CreatedBy, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return purchasing.Order{}, shared.NotFoundErrorf("purchase order %d", id)
		}
		return purchasing.Order{}, err
	}
	o.Status = purchasing.Status(status)

	rows, err := r.tx.Query(ctx,
		`SELECT id, order_id, product_id, sku, ordered_qty, received_qty, rejected_qty, unit_cost, status
		 FROM purchase_order_items WHERE order_id=$1 ORDER BY id FOR UPDATE`, id)
	if err != nil {
		return purchasing.Order{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var it purchasing.Item
		var itemStatus string
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.SKU,
			&it.OrderedQty, &it.ReceivedQty, &it.RejectedQty, &it.UnitCost, &itemStatus); err != nil {
			return purchasing.Order{}, err
		}
		it.Status = purchasing.ItemStatus(itemStatus)
		o.Items = append(o.Items, it)
	}
	return o, rows.Err()
}

func (r *txRepo) UpdateOrderItems(ctx context.Context, items []purchasing.Item) error {
	for _, it := range items {
		tag, err := r.tx.Exec(ctx,
			`UPDATE purchase_order_items SET received_qty=$2, rejected_qty=$3, status=$4 WHERE id=$1`,
			it.ID, it.ReceivedQty, it.RejectedQty, string(it.Status))
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.NotFoundErrorf("purchase order line %d", it.ID)
		}
	}
	return nil
}

func (r *txRepo) UpdateOrderStatus(ctx context.Context, orderID int64, status purchasing.Status) error {
	tag, err := r.tx.Exec(ctx,
		`UPDATE purchase_orders SET status=$2, updated_at=NOW() WHERE id=$1`,
		orderID, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFoundErrorf("purchase order %d", orderID)
	}
	return nil
}

func (r *txRepo) GetCountersForUpdate(ctx context.Context, businessID, productID int64) (ledger.Counters, error) {
	var c ledger.Counters
	err := r.tx.QueryRow(ctx,
		`SELECT opening_stock, inward_addition, deduction, auto_addition, auto_deduction, blocked_stock
		 FROM products WHERE business_id=$1 AND id=$2 FOR UPDATE`,
		businessID, productID).
		Scan(&c.OpeningStock, &c.InwardAddition, &c.Deduction,
			&c.AutoAddition, &c.AutoDeduction, &c.BlockedStock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ledger.Counters{}, shared.NotFoundErrorf("product %d", productID)
		}
		return ledger.Counters{}, err
	}
	return c, nil
}

func (r *txRepo) UpdateCounters(ctx context.Context, businessID, productID int64, c ledger.Counters) error {
	tag, err := r.tx.Exec(ctx,
		`UPDATE products SET opening_stock=$3, inward_addition=$4, deduction=$5,
		 auto_addition=$6, auto_deduction=$7, blocked_stock=$8, updated_at=NOW()
		 WHERE business_id=$1 AND id=$2`,
		businessID, productID, c.OpeningStock, c.InwardAddition, c.Deduction,
		c.AutoAddition, c.AutoDeduction, c.BlockedStock)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFoundErrorf("product %d", productID)
	}
	return nil
}

func (r *txRepo) InsertMovement(ctx context.Context, m ledger.Movement) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx,
		`INSERT INTO stock_movements (business_id, product_id, kind, qty, counter,
		 old_value, new_value, physical_before, physical_after,
		 available_before, available_after, reason, reference, actor_id, occurred_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		 RETURNING id`,
		m.BusinessID, m.ProductID, string(m.Kind), m.Qty, m.Counter,
		m.OldValue, m.NewValue, m.PhysicalBefore, m.PhysicalAfter,
		m.AvailableBefore, m.AvailableAfter, m.Reason, m.Reference,
		m.ActorID, m.OccurredAt).Scan(&id)
	return id, err
}

func (r *txRepo) GetPlacementForUpdate(ctx context.Context, businessID, productID, shelfID int64) (placement.Placement, error) {
	var p placement.Placement
	err := r.tx.QueryRow(ctx,
		`SELECT id, business_id, product_id, warehouse_id, zone_id, rack_id, shelf_id,
		 warehouse_name, zone_name, rack_name, shelf_name, quantity, create_upcs,
		 last_movement_reason, last_movement_reference, updated_at
		 FROM placements WHERE business_id=$1 AND product_id=$2 AND shelf_id=$3 FOR UPDATE`,
		businessID, productID, shelfID).
		Scan(&p.ID, &p.BusinessID, &p.ProductID,
			&p.Location.WarehouseID, &p.Location.ZoneID, &p.Location.RackID, &p.Location.ShelfID,
			&p.Location.WarehouseName, &p.Location.ZoneName, &p.Location.RackName, &p.Location.ShelfName,
			&p.Quantity, &p.CreateUPCs,
			&p.LastMovementReason, &p.LastMovementReference, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return placement.Placement{}, placement.ErrPlacementNotFound
		}
		return placement.Placement{}, err
	}
	return p, nil
}

func (r *txRepo) InsertPlacement(ctx context.Context, p placement.Placement) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx,
		`INSERT INTO placements (business_id, product_id, warehouse_id, zone_id, rack_id, shelf_id,
		 warehouse_name, zone_name, rack_name, shelf_name, quantity, create_upcs,
		 last_movement_reason, last_movement_reference)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		 RETURNING id`,
		p.BusinessID, p.ProductID,
		p.Location.WarehouseID, p.Location.ZoneID, p.Location.RackID, p.Location.ShelfID,
		p.Location.WarehouseName, p.Location.ZoneName, p.Location.RackName, p.Location.ShelfName,
		p.Quantity, p.CreateUPCs, p.LastMovementReason, p.LastMovementReference).Scan(&id)
	return id, err
}

func (r *txRepo) UpdatePlacement(ctx context.Context, p placement.Placement) error {
	tag, err := r.tx.Exec(ctx,
		`UPDATE placements SET quantity=$2, create_upcs=$3,
		 last_movement_reason=$4, last_movement_reference=$5, updated_at=NOW()
		 WHERE id=$1`,
		p.ID, p.Quantity, p.CreateUPCs, p.LastMovementReason, p.LastMovementReference)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFoundErrorf("placement %d", p.ID)
	}
	return nil
}

func (r *txRepo) RecordAudit(ctx context.Context, log shared.AuditLog) error {
	return shared.RecordAudit(ctx, r.tx, log)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func listGRNItems(ctx context.Context, q querier, grnID int64) ([]Item, error) {
	rows, err := q.Query(ctx,
		`SELECT id, grn_id, product_id, sku, expected_qty, received_qty,
		 accepted_qty, rejected_qty, not_received_qty, unit_cost, total_cost
		 FROM grn_items WHERE grn_id=$1 ORDER BY id`, grnID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.GRNID, &it.ProductID, &it.SKU,
			&it.ExpectedQty, &it.ReceivedQty, &it.AcceptedQty, &it.RejectedQty,
			&it.NotReceivedQty, &it.UnitCost, &it.TotalCost); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func scanGRN(row pgx.Row, id int64) (GRN, error) {
	var g GRN
	var status string
	var inwardedBy *int64
	var inwardLocation *string
	err := row.Scan(&g.ID, &g.BusinessID, &g.GRNNo, &g.OrderID, &status,
		&g.Totals.ExpectedQty, &g.Totals.ReceivedQty, &g.Totals.NotReceivedQty, &g.Totals.ReceivedValue,
		&g.InwardedAt, &inwardedBy, &inwardLocation, &g.CreatedBy, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return GRN{}, shared.NotFoundErrorf("grn %d", id)
		}
		return GRN{}, err
	}
	g.Status = Status(status)
	if inwardedBy != nil {
		g.InwardedBy = *inwardedBy
	}
	if inwardLocation != nil {
		g.InwardLocation = *inwardLocation
	}
	return g, nil
}

func nullableID(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}
