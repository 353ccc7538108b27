package hierarchy

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-ops/meridian/internal/platform/db"
	"github.com/meridian-ops/meridian/internal/shared"
)

// Repository persists the warehouse hierarchy in PostgreSQL. Each level has
// its own table; ancestor names are denormalized onto descendants so reads
// never join upward.
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

const (
	warehouseColumns = `id, business_id, name, address, is_deleted, deleted_at, created_at, updated_at`
	zoneColumns      = `id, business_id, warehouse_id, name, warehouse_name, is_deleted, deleted_at, created_at, updated_at`
	rackColumns      = `id, business_id, warehouse_id, zone_id, name, warehouse_name, zone_name, position, is_deleted, deleted_at, created_at, updated_at`
	shelfColumns     = `id, business_id, warehouse_id, zone_id, rack_id, name, warehouse_name, zone_name, rack_name, position, is_deleted, deleted_at, created_at, updated_at`
)

// GetWarehouse fetches a warehouse by id.
func (r *Repository) GetWarehouse(ctx context.Context, businessID, id int64) (Warehouse, error) {
	return scanWarehouse(r.pool.QueryRow(ctx,
		`SELECT `+warehouseColumns+` FROM warehouses WHERE business_id=$1 AND id=$2`,
		businessID, id), id)
}

// GetZone fetches a zone by id.
func (r *Repository) GetZone(ctx context.Context, businessID, id int64) (Zone, error) {
	return scanZone(r.pool.QueryRow(ctx,
		`SELECT `+zoneColumns+` FROM zones WHERE business_id=$1 AND id=$2`,
		businessID, id), id)
}

// GetRack fetches a rack by id.
func (r *Repository) GetRack(ctx context.Context, businessID, id int64) (Rack, error) {
	return scanRack(r.pool.QueryRow(ctx,
		`SELECT `+rackColumns+` FROM racks WHERE business_id=$1 AND id=$2`,
		businessID, id), id)
}

// GetShelf fetches a shelf by id.
func (r *Repository) GetShelf(ctx context.Context, businessID, id int64) (Shelf, error) {
	return scanShelf(r.pool.QueryRow(ctx,
		`SELECT `+shelfColumns+` FROM shelves WHERE business_id=$1 AND id=$2`,
		businessID, id), id)
}

// ListZones lists active zones of a warehouse.
func (r *Repository) ListZones(ctx context.Context, businessID, warehouseID int64) ([]Zone, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+zoneColumns+` FROM zones
		 WHERE business_id=$1 AND warehouse_id=$2 AND is_deleted=FALSE ORDER BY id`,
		businessID, warehouseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var zones []Zone
	for rows.Next() {
		z, err := scanZone(rows, 0)
		if err != nil {
			return nil, err
		}
		zones = append(zones, z)
	}
	return zones, rows.Err()
}

// ListRacks lists active racks of a zone in position order.
func (r *Repository) ListRacks(ctx context.Context, businessID, zoneID int64) ([]Rack, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+rackColumns+` FROM racks
		 WHERE business_id=$1 AND zone_id=$2 AND is_deleted=FALSE ORDER BY position`,
		businessID, zoneID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var racks []Rack
	for rows.Next() {
		rk, err := scanRack(rows, 0)
		if err != nil {
			return nil, err
		}
		racks = append(racks, rk)
	}
	return racks, rows.Err()
}

// ListShelves lists active shelves of a rack in position order.
func (r *Repository) ListShelves(ctx context.Context, businessID, rackID int64) ([]Shelf, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+shelfColumns+` FROM shelves
		 WHERE business_id=$1 AND rack_id=$2 AND is_deleted=FALSE ORDER BY position`,
		businessID, rackID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var shelves []Shelf
	for rows.Next() {
		sh, err := scanShelf(rows, 0)
		if err != nil {
			return nil, err
		}
		shelves = append(shelves, sh)
	}
	return shelves, rows.Err()
}

// WarehouseRollup recounts the active containers of a warehouse subtree.
func (r *Repository) WarehouseRollup(ctx context.Context, warehouseID int64) (Stats, error) {
	var stats Stats
	err := r.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM zones WHERE warehouse_id=$1 AND is_deleted=FALSE),
			(SELECT COUNT(*) FROM racks WHERE warehouse_id=$1 AND is_deleted=FALSE),
			(SELECT COUNT(*) FROM shelves WHERE warehouse_id=$1 AND is_deleted=FALSE)`,
		warehouseID).Scan(&stats.Zones, &stats.Racks, &stats.Shelves)
	return stats, err
}

// CreateGrid writes the warehouse and its full zone/rack/shelf layout in a
// single transaction, chunking inserts into batches of batchSize statements.
func (r *Repository) CreateGrid(ctx context.Context, warehouse Warehouse, counts GridCounts, batchSize int) (GridResult, error) {
	var result GridResult
	err := db.WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		return r.createGrid(ctx, tx, warehouse, counts, batchSize, &result)
	})
	return result, err
}

func (r *Repository) createGrid(ctx context.Context, tx pgx.Tx, warehouse Warehouse, counts GridCounts, batchSize int, result *GridResult) error {
	tr := &txRepo{tx: tx}
	warehouseID, err := tr.InsertWarehouse(ctx, warehouse)
	if err != nil {
		return err
	}

	// Zones are inserted one by one to learn their ids; racks and shelves
	// ride pgx batches sized to the configured write limit.
	zoneIDs := make([]int64, counts.Zones)
	zoneNames := make([]string, counts.Zones)
	for i := 0; i < counts.Zones; i++ {
		zoneNames[i] = fmt.Sprintf("Zone %d", i+1)
		zoneIDs[i], err = tr.InsertZone(ctx, Zone{
			BusinessID:    warehouse.BusinessID,
			WarehouseID:   warehouseID,
			Name:          zoneNames[i],
			WarehouseName: warehouse.Name,
		})
		if err != nil {
			return err
		}
	}

	b := newBatcher(ctx, tx, batchSize)

	rackIDs := make([][]int64, counts.Zones)
	for zi, zoneID := range zoneIDs {
		rackIDs[zi] = make([]int64, counts.RacksPerZone)
		for ri := 0; ri < counts.RacksPerZone; ri++ {
			var err error
			rackIDs[zi][ri], err = tr.InsertRack(ctx, Rack{
				BusinessID:    warehouse.BusinessID,
				WarehouseID:   warehouseID,
				ZoneID:        zoneID,
				Name:          fmt.Sprintf("Rack %d", ri+1),
				WarehouseName: warehouse.Name,
				ZoneName:      zoneNames[zi],
				Position:      ri + 1,
			})
			if err != nil {
				return err
			}
		}
	}

	for zi, zoneID := range zoneIDs {
		for ri, rackID := range rackIDs[zi] {
			for si := 0; si < counts.ShelvesPerRack; si++ {
				b.queue(
					`INSERT INTO shelves (business_id, warehouse_id, zone_id, rack_id, name,
					 warehouse_name, zone_name, rack_name, position)
					 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
					warehouse.BusinessID, warehouseID, zoneID, rackID,
					fmt.Sprintf("Shelf %d", si+1), warehouse.Name, zoneNames[zi],
					fmt.Sprintf("Rack %d", ri+1), si+1)
			}
		}
	}
	if err := b.flush(); err != nil {
		return err
	}

	*result = GridResult{
		WarehouseID:   warehouseID,
		TotalEntities: counts.TotalEntities(),
		BatchesUsed:   b.flushed,
	}
	return nil
}

// batcher accumulates inserts into pgx batches of at most size statements.
type batcher struct {
	ctx     context.Context
	tx      pgx.Tx
	size    int
	batch   *pgx.Batch
	flushed int
	err     error
}

func newBatcher(ctx context.Context, tx pgx.Tx, size int) *batcher {
	return &batcher{ctx: ctx, tx: tx, size: size, batch: &pgx.Batch{}}
}

func (b *batcher) queue(sql string, args ...any) {
	if b.err != nil {
		return
	}
	b.batch.Queue(sql, args...)
	if b.batch.Len() >= b.size {
		b.err = b.send()
	}
}

func (b *batcher) flush() error {
	if b.err != nil {
		return b.err
	}
	if b.batch.Len() > 0 {
		b.err = b.send()
	}
	return b.err
}

func (b *batcher) send() error {
	if err := b.tx.SendBatch(b.ctx, b.batch).Close(); err != nil {
		return err
	}
	b.flushed++
	b.batch = &pgx.Batch{}
	return nil
}

func (r *txRepo) GetZoneForUpdate(ctx context.Context, businessID, id int64) (Zone, error) {
	return scanZone(r.tx.QueryRow(ctx,
		`SELECT `+zoneColumns+` FROM zones WHERE business_id=$1 AND id=$2 FOR UPDATE`,
		businessID, id), id)
}

func (r *txRepo) GetRackForUpdate(ctx context.Context, businessID, id int64) (Rack, error) {
	return scanRack(r.tx.QueryRow(ctx,
		`SELECT `+rackColumns+` FROM racks WHERE business_id=$1 AND id=$2 FOR UPDATE`,
		businessID, id), id)
}

func (r *txRepo) GetShelfForUpdate(ctx context.Context, businessID, id int64) (Shelf, error) {
	return scanShelf(r.tx.QueryRow(ctx,
		`SELECT `+shelfColumns+` FROM shelves WHERE business_id=$1 AND id=$2 FOR UPDATE`,
		businessID, id), id)
}

func (r *txRepo) InsertWarehouse(ctx context.Context, w Warehouse) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx,
		`INSERT INTO warehouses (business_id, name, address) VALUES ($1,$2,$3) RETURNING id`,
		w.BusinessID, w.Name, w.Address).Scan(&id)
	return id, err
}

func (r *txRepo) InsertZone(ctx context.Context, z Zone) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx,
		`INSERT INTO zones (business_id, warehouse_id, name, warehouse_name)
		 VALUES ($1,$2,$3,$4) RETURNING id`,
		z.BusinessID, z.WarehouseID, z.Name, z.WarehouseName).Scan(&id)
	return id, err
}

func (r *txRepo) InsertRack(ctx context.Context, rk Rack) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx,
		`INSERT INTO racks (business_id, warehouse_id, zone_id, name, warehouse_name, zone_name, position)
		 VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id`,
		rk.BusinessID, rk.WarehouseID, rk.ZoneID, rk.Name, rk.WarehouseName, rk.ZoneName, rk.Position).Scan(&id)
	return id, err
}

func (r *txRepo) InsertShelf(ctx context.Context, sh Shelf) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx,
		`INSERT INTO shelves (business_id, warehouse_id, zone_id, rack_id, name,
		 warehouse_name, zone_name, rack_name, position)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id`,
		sh.BusinessID, sh.WarehouseID, sh.ZoneID, sh.RackID, sh.Name,
		sh.WarehouseName, sh.ZoneName, sh.RackName, sh.Position).Scan(&id)
	return id, err
}

func (r *txRepo) Rename(ctx context.Context, kind Kind, id int64, name string) error {
	table, err := tableFor(kind)
	if err != nil {
		return err
	}
	tag, err := r.tx.Exec(ctx,
		`UPDATE `+table+` SET name=$2, updated_at=NOW() WHERE id=$1`, id, name)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFoundErrorf("%s %d", kind, id)
	}
	return nil
}

func (r *txRepo) SoftDelete(ctx context.Context, kind Kind, id int64) error {
	table, err := tableFor(kind)
	if err != nil {
		return err
	}
	tag, err := r.tx.Exec(ctx,
		`UPDATE `+table+` SET is_deleted=TRUE, deleted_at=NOW(), updated_at=NOW()
		 WHERE id=$1 AND is_deleted=FALSE`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFoundErrorf("%s %d", kind, id)
	}
	return nil
}

func (r *txRepo) CountActiveChildren(ctx context.Context, kind Kind, parentID int64) (int, error) {
	var query string
	switch kind {
	case KindWarehouse:
		query = `SELECT COUNT(*) FROM zones WHERE warehouse_id=$1 AND is_deleted=FALSE`
	case KindZone:
		query = `SELECT COUNT(*) FROM racks WHERE zone_id=$1 AND is_deleted=FALSE`
	case KindRack:
		query = `SELECT COUNT(*) FROM shelves WHERE rack_id=$1 AND is_deleted=FALSE`
	default:
		return 0, shared.ValidationErrorf("%s has no children", kind)
	}
	var n int
	err := r.tx.QueryRow(ctx, query, parentID).Scan(&n)
	return n, err
}

func (r *txRepo) ShelfHasStock(ctx context.Context, shelfID int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM placements WHERE shelf_id=$1 AND quantity > 0)`,
		shelfID).Scan(&exists)
	return exists, err
}

func (r *txRepo) ListSiblingsForUpdate(ctx context.Context, kind Kind, parentID int64) ([]Sibling, error) {
	var query string
	switch kind {
	case KindRack:
		query = `SELECT id, position FROM racks WHERE zone_id=$1 AND is_deleted=FALSE ORDER BY position FOR UPDATE`
	case KindShelf:
		query = `SELECT id, position FROM shelves WHERE rack_id=$1 AND is_deleted=FALSE ORDER BY position FOR UPDATE`
	default:
		return nil, shared.ValidationErrorf("%s does not carry a sibling ordinal", kind)
	}
	rows, err := r.tx.Query(ctx, query, parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var siblings []Sibling
	for rows.Next() {
		var s Sibling
		if err := rows.Scan(&s.ID, &s.Position); err != nil {
			return nil, err
		}
		siblings = append(siblings, s)
	}
	return siblings, rows.Err()
}

func (r *txRepo) ApplyShifts(ctx context.Context, kind Kind, shifts []Shift) error {
	if len(shifts) == 0 {
		return nil
	}
	table, err := tableFor(kind)
	if err != nil {
		return err
	}
	for _, shift := range shifts {
		tag, err := r.tx.Exec(ctx,
			`UPDATE `+table+` SET position=$2, updated_at=NOW() WHERE id=$1`,
			shift.ID, shift.NewPosition)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.NotFoundErrorf("%s %d", kind, shift.ID)
		}
	}
	return nil
}

func (r *txRepo) MoveRack(ctx context.Context, rackID int64, dest Zone, position int) error {
	tag, err := r.tx.Exec(ctx,
		`UPDATE racks SET zone_id=$2, zone_name=$3, warehouse_id=$4, warehouse_name=$5,
		 position=$6, updated_at=NOW() WHERE id=$1`,
		rackID, dest.ID, dest.Name, dest.WarehouseID, dest.WarehouseName, position)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFoundErrorf("rack %d", rackID)
	}
	// Shelves and placements carry the rack's ancestry too.
	_, err = r.tx.Exec(ctx,
		`UPDATE shelves SET zone_id=$2, zone_name=$3, warehouse_id=$4, warehouse_name=$5,
		 updated_at=NOW() WHERE rack_id=$1`,
		rackID, dest.ID, dest.Name, dest.WarehouseID, dest.WarehouseName)
	if err != nil {
		return err
	}
	_, err = r.tx.Exec(ctx,
		`UPDATE placements SET zone_id=$2, zone_name=$3, warehouse_id=$4, warehouse_name=$5,
		 updated_at=NOW() WHERE rack_id=$1`,
		rackID, dest.ID, dest.Name, dest.WarehouseID, dest.WarehouseName)
	return err
}

func (r *txRepo) MoveShelf(ctx context.Context, shelfID int64, dest Rack, position int) error {
	tag, err := r.tx.Exec(ctx,
		`UPDATE shelves SET rack_id=$2, rack_name=$3, zone_id=$4, zone_name=$5,
		 warehouse_id=$6, warehouse_name=$7, position=$8, updated_at=NOW() WHERE id=$1`,
		shelfID, dest.ID, dest.Name, dest.ZoneID, dest.ZoneName,
		dest.WarehouseID, dest.WarehouseName, position)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFoundErrorf("shelf %d", shelfID)
	}
	// Placements on the shelf follow its new ancestry.
	_, err = r.tx.Exec(ctx,
		`UPDATE placements SET rack_id=$2, rack_name=$3, zone_id=$4, zone_name=$5,
		 warehouse_id=$6, warehouse_name=$7, updated_at=NOW() WHERE shelf_id=$1`,
		shelfID, dest.ID, dest.Name, dest.ZoneID, dest.ZoneName,
		dest.WarehouseID, dest.WarehouseName)
	return err
}

func tableFor(kind Kind) (string, error) {
	switch kind {
	case KindWarehouse:
		return "warehouses", nil
	case KindZone:
		return "zones", nil
	case KindRack:
		return "racks", nil
	case KindShelf:
		return "shelves", nil
	}
	return "", shared.ValidationErrorf("unknown container kind %q", kind)
}

func scanWarehouse(row pgx.Row, id int64) (Warehouse, error) {
	var w Warehouse
	err := row.Scan(&w.ID, &w.BusinessID, &w.Name, &w.Address,
		&w.IsDeleted, &w.DeletedAt, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Warehouse{}, shared.NotFoundErrorf("warehouse %d", id)
		}
		return Warehouse{}, err
	}
	return w, nil
}

func scanZone(row pgx.Row, id int64) (Zone, error) {
	var z Zone
	err := row.Scan(&z.ID, &z.BusinessID, &z.WarehouseID, &z.Name, &z.WarehouseName,
		&z.IsDeleted, &z.DeletedAt, &z.CreatedAt, &z.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Zone{}, shared.NotFoundErrorf("zone %d", id)
		}
		return Zone{}, err
	}
	return z, nil
}

func scanRack(row pgx.Row, id int64) (Rack, error) {
	var rk Rack
	err := row.Scan(&rk.ID, &rk.BusinessID, &rk.WarehouseID, &rk.ZoneID, &rk.Name,
		&rk.WarehouseName, &rk.ZoneName, &rk.Position,
		&rk.IsDeleted, &rk.DeletedAt, &rk.CreatedAt, &rk.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Rack{}, shared.NotFoundErrorf("rack %d", id)
		}
		return Rack{}, err
	}
	return rk, nil
}

func scanShelf(row pgx.Row, id int64) (Shelf, error) {
	var sh Shelf
	err := row.Scan(&sh.ID, &sh.BusinessID, &sh.WarehouseID, &sh.ZoneID, &sh.RackID,
		&sh.Name, &sh.WarehouseName, &sh.ZoneName, &sh.RackName, &sh.Position,
		&sh.IsDeleted, &sh.DeletedAt, &sh.CreatedAt, &sh.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Shelf{}, shared.NotFoundErrorf("shelf %d", id)
		}
		return Shelf{}, err
	}
	return sh, nil
}
