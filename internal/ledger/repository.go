package ledger

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-ops/meridian/internal/platform/db"
	"github.com/meridian-ops/meridian/internal/shared"
)

// Repository persists ledger data in PostgreSQL. The six counters live on
// the product row; every movement is appended to stock_movements.
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

const countersColumns = `opening_stock, inward_addition, deduction, auto_addition, auto_deduction, blocked_stock`

// GetCounters reads the counters without locking.
func (r *Repository) GetCounters(ctx context.Context, businessID, productID int64) (Counters, error) {
	return scanCounters(r.pool.QueryRow(ctx,
		`SELECT `+countersColumns+` FROM products WHERE business_id=$1 AND id=$2`,
		businessID, productID), productID)
}

// ListMovements lists movement log entries newest first.
func (r *Repository) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	query := `SELECT id, business_id, product_id, kind, qty, counter, old_value, new_value,
		physical_before, physical_after, available_before, available_after,
		reason, reference, actor_id, occurred_at
		FROM stock_movements WHERE business_id=$1 AND product_id=$2`
	args := []any{filter.BusinessID, filter.ProductID}
	if filter.Kind != "" {
		args = append(args, string(filter.Kind))
		query += ` AND kind=$3`
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		query += ` AND occurred_at >= $` + strconv.Itoa(len(args))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		query += ` AND occurred_at <= $` + strconv.Itoa(len(args))
	}
	args = append(args, filter.Limit)
	query += ` ORDER BY occurred_at DESC LIMIT $` + strconv.Itoa(len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var movements []Movement
	for rows.Next() {
		var m Movement
		var kind string
		if err := rows.Scan(&m.ID, &m.BusinessID, &m.ProductID, &kind, &m.Qty, &m.Counter,
			&m.OldValue, &m.NewValue, &m.PhysicalBefore, &m.PhysicalAfter,
			&m.AvailableBefore, &m.AvailableAfter, &m.Reason, &m.Reference,
			&m.ActorID, &m.OccurredAt); err != nil {
			return nil, err
		}
		m.Kind = Kind(kind)
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

func (r *txRepo) GetCountersForUpdate(ctx context.Context, businessID, productID int64) (Counters, error) {
	return scanCounters(r.tx.QueryRow(ctx,
		`SELECT `+countersColumns+` FROM products WHERE business_id=$1 AND id=$2 FOR UPDATE`,
		businessID, productID), productID)
}

func (r *txRepo) UpdateCounters(ctx context.Context, businessID, productID int64, c Counters) error {
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

func (r *txRepo) InsertMovement(ctx context.Context, m Movement) (int64, error) {
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

func (r *txRepo) RecordAudit(ctx context.Context, log shared.AuditLog) error {
	return shared.RecordAudit(ctx, r.tx, log)
}

func scanCounters(row pgx.Row, productID int64) (Counters, error) {
	var c Counters
	err := row.Scan(&c.OpeningStock, &c.InwardAddition, &c.Deduction,
		&c.AutoAddition, &c.AutoDeduction, &c.BlockedStock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Counters{}, shared.NotFoundErrorf("product %d", productID)
		}
		return Counters{}, err
	}
	return c, nil
}

