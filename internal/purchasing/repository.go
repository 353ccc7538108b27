package purchasing

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-ops/meridian/internal/platform/db"
	"github.com/meridian-ops/meridian/internal/shared"
)

// Repository persists purchase orders in PostgreSQL.
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

const orderColumns = `id, business_id, order_no, supplier_id, supplier_name, status, notes,
	created_by, created_at, updated_at`

// GetOrder fetches one order with its lines.
func (r *Repository) GetOrder(ctx context.Context, businessID, id int64) (Order, error) {
	order, err := scanOrder(r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM purchase_orders WHERE business_id=$1 AND id=$2`,
		businessID, id), id)
	if err != nil {
		return Order{}, err
	}
	order.Items, err = listItems(ctx, r.pool, id)
	return order, err
}

// ListOrders pages through order headers newest first.
func (r *Repository) ListOrders(ctx context.Context, businessID int64, status Status, page shared.PageRequest) ([]Order, error) {
	query := `SELECT ` + orderColumns + ` FROM purchase_orders WHERE business_id=$1`
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

	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows, 0)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (r *txRepo) GetOrderForUpdate(ctx context.Context, businessID, id int64) (Order, error) {
	order, err := scanOrder(r.tx.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM purchase_orders WHERE business_id=$1 AND id=$2 FOR UPDATE`,
		businessID, id), id)
	if err != nil {
		return Order{}, err
	}
	order.Items, err = listItems(ctx, r.tx, id)
	return order, err
}

func (r *txRepo) InsertOrder(ctx context.Context, o Order) (Order, error) {
	err := r.tx.QueryRow(ctx,
		`INSERT INTO purchase_orders (business_id, order_no, supplier_id, supplier_name, status, notes, created_by)
		 VALUES ($1, 'PO-' || nextval('purchase_order_no_seq'), $2, $3, $4, $5, $6)
		 RETURNING id, order_no, created_at, updated_at`,
		o.BusinessID, o.SupplierID, o.SupplierName, string(o.Status), o.Notes, o.CreatedBy).
		Scan(&o.ID, &o.OrderNo, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

func (r *txRepo) InsertItems(ctx context.Context, orderID int64, items []Item) ([]Item, error) {
	out := make([]Item, 0, len(items))
	for _, it := range items {
		it.OrderID = orderID
		err := r.tx.QueryRow(ctx,
			`INSERT INTO purchase_order_items (order_id, product_id, sku, ordered_qty, received_qty, rejected_qty, unit_cost, status)
			 VALUES ($1,$2,$3,$4,0,0,$5,$6) RETURNING id`,
			orderID, it.ProductID, it.SKU, it.OrderedQty, it.UnitCost, string(it.Status)).Scan(&it.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, nil
}

func (r *txRepo) UpdateStatus(ctx context.Context, orderID int64, status Status) error {
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

func (r *txRepo) RecordAudit(ctx context.Context, log shared.AuditLog) error {
	return shared.RecordAudit(ctx, r.tx, log)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func listItems(ctx context.Context, q querier, orderID int64) ([]Item, error) {
	rows, err := q.Query(ctx,
		`SELECT id, order_id, product_id, sku, ordered_qty, received_qty, rejected_qty, unit_cost, status
		 FROM purchase_order_items WHERE order_id=$1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		var status string
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.SKU,
			&it.OrderedQty, &it.ReceivedQty, &it.RejectedQty, &it.UnitCost, &status); err != nil {
			return nil, err
		}
		it.Status = ItemStatus(status)
		items = append(items, it)
	}
	return items, rows.Err()
}

func scanOrder(row pgx.Row, id int64) (Order, error) {
	var o Order
	var status string
	err := row.Scan(&o.ID, &o.BusinessID, &o.OrderNo, &o.SupplierID, &o.SupplierName,
		&status, &o.Notes, &o.CreatedBy, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, shared.NotFoundErrorf("purchase order %d", id)
		}
		return Order{}, err
	}
	o.Status = Status(status)
	return o, nil
}
