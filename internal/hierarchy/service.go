package hierarchy

import (
	"context"
	"fmt"

	"github.com/meridian-ops/meridian/internal/shared"
)

// Grid creation bounds. The entity bound keeps a single request inside a
// predictable number of write batches.
const (
	MaxGridZones          = 50
	MaxGridRacksPerZone   = 50
	MaxGridShelvesPerRack = 20
	MaxGridEntities       = 5000
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetWarehouse(ctx context.Context, businessID, id int64) (Warehouse, error)
	GetZone(ctx context.Context, businessID, id int64) (Zone, error)
	GetRack(ctx context.Context, businessID, id int64) (Rack, error)
	GetShelf(ctx context.Context, businessID, id int64) (Shelf, error)
	ListZones(ctx context.Context, businessID, warehouseID int64) ([]Zone, error)
	ListRacks(ctx context.Context, businessID, zoneID int64) ([]Rack, error)
	ListShelves(ctx context.Context, businessID, rackID int64) ([]Shelf, error)
	WarehouseRollup(ctx context.Context, warehouseID int64) (Stats, error)
	CreateGrid(ctx context.Context, warehouse Warehouse, counts GridCounts, batchSize int) (GridResult, error)
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	GetZoneForUpdate(ctx context.Context, businessID, id int64) (Zone, error)
	GetRackForUpdate(ctx context.Context, businessID, id int64) (Rack, error)
	GetShelfForUpdate(ctx context.Context, businessID, id int64) (Shelf, error)
	InsertWarehouse(ctx context.Context, w Warehouse) (int64, error)
	InsertZone(ctx context.Context, z Zone) (int64, error)
	InsertRack(ctx context.Context, r Rack) (int64, error)
	InsertShelf(ctx context.Context, s Shelf) (int64, error)
	Rename(ctx context.Context, kind Kind, id int64, name string) error
	SoftDelete(ctx context.Context, kind Kind, id int64) error
	CountActiveChildren(ctx context.Context, kind Kind, parentID int64) (int, error)
	ShelfHasStock(ctx context.Context, shelfID int64) (bool, error)
	ListSiblingsForUpdate(ctx context.Context, kind Kind, parentID int64) ([]Sibling, error)
	ApplyShifts(ctx context.Context, kind Kind, shifts []Shift) error
	MoveRack(ctx context.Context, rackID int64, dest Zone, position int) error
	MoveShelf(ctx context.Context, shelfID int64, dest Rack, position int) error
}

// JobPort hands slow fan-out work (rename propagation into denormalized
// copies, stats rollups) to the background worker.
type JobPort interface {
	EnqueueRenamePropagation(ctx context.Context, kind Kind, id int64) error
	EnqueueStatsRefresh(ctx context.Context, warehouseID int64) error
}

// ServiceConfig groups grid settings.
type ServiceConfig struct {
	// WriteBatchSize is the document-store atomic batch limit the grid
	// writer chunks by.
	WriteBatchSize int
}

// Service coordinates hierarchy operations.
type Service struct {
	repo      RepositoryPort
	jobs      JobPort
	stats     *StatsCache
	batchSize int
}

// NewService builds Service.
func NewService(repo RepositoryPort, jobs JobPort, stats *StatsCache, cfg ServiceConfig) *Service {
	batchSize := cfg.WriteBatchSize
	if batchSize <= 0 {
		batchSize = 500
	}
	return &Service{repo: repo, jobs: jobs, stats: stats, batchSize: batchSize}
}

// CreateWarehouse creates an empty root container.
func (s *Service) CreateWarehouse(ctx context.Context, businessID int64, name, address string) (Warehouse, error) {
	if name == "" {
		return Warehouse{}, shared.ValidationErrorf("warehouse name required")
	}
	w := Warehouse{BusinessID: businessID, Name: name, Address: address}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertWarehouse(ctx, w)
		if err != nil {
			return err
		}
		w.ID = id
		return nil
	})
	if err != nil {
		return Warehouse{}, err
	}
	return w, nil
}

// CreateZone appends a zone to a warehouse.
func (s *Service) CreateZone(ctx context.Context, businessID, warehouseID int64, name string) (Zone, error) {
	if name == "" {
		return Zone{}, shared.ValidationErrorf("zone name required")
	}
	parent, err := s.repo.GetWarehouse(ctx, businessID, warehouseID)
	if err != nil {
		return Zone{}, err
	}
	z := Zone{BusinessID: businessID, WarehouseID: parent.ID, Name: name, WarehouseName: parent.Name}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertZone(ctx, z)
		if err != nil {
			return err
		}
		z.ID = id
		return nil
	})
	if err != nil {
		return Zone{}, err
	}
	s.enqueueStatsRefresh(ctx, parent.ID)
	return z, nil
}

// CreateRack appends a rack at the end of the zone's ordering.
func (s *Service) CreateRack(ctx context.Context, businessID, zoneID int64, name string) (Rack, error) {
	if name == "" {
		return Rack{}, shared.ValidationErrorf("rack name required")
	}
	parent, err := s.repo.GetZone(ctx, businessID, zoneID)
	if err != nil {
		return Rack{}, err
	}
	r := Rack{
		BusinessID: businessID, WarehouseID: parent.WarehouseID, ZoneID: parent.ID,
		Name: name, WarehouseName: parent.WarehouseName, ZoneName: parent.Name,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		siblings, err := tx.ListSiblingsForUpdate(ctx, KindRack, parent.ID)
		if err != nil {
			return err
		}
		_, pos, err := PlanInsertion(siblings, nil)
		if err != nil {
			return err
		}
		r.Position = pos
		id, err := tx.InsertRack(ctx, r)
		if err != nil {
			return err
		}
		r.ID = id
		return nil
	})
	if err != nil {
		return Rack{}, err
	}
	s.enqueueStatsRefresh(ctx, parent.WarehouseID)
	return r, nil
}

// CreateShelf appends a shelf at the end of the rack's ordering.
func (s *Service) CreateShelf(ctx context.Context, businessID, rackID int64, name string) (Shelf, error) {
	if name == "" {
		return Shelf{}, shared.ValidationErrorf("shelf name required")
	}
	parent, err := s.repo.GetRack(ctx, businessID, rackID)
	if err != nil {
		return Shelf{}, err
	}
	sh := Shelf{
		BusinessID: businessID, WarehouseID: parent.WarehouseID, ZoneID: parent.ZoneID,
		RackID: parent.ID, Name: name, WarehouseName: parent.WarehouseName,
		ZoneName: parent.ZoneName, RackName: parent.Name,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		siblings, err := tx.ListSiblingsForUpdate(ctx, KindShelf, parent.ID)
		if err != nil {
			return err
		}
		_, pos, err := PlanInsertion(siblings, nil)
		if err != nil {
			return err
		}
		sh.Position = pos
		id, err := tx.InsertShelf(ctx, sh)
		if err != nil {
			return err
		}
		sh.ID = id
		return nil
	})
	if err != nil {
		return Shelf{}, err
	}
	s.enqueueStatsRefresh(ctx, parent.WarehouseID)
	return sh, nil
}

// Rename updates a container's name and hands the denormalized-copy fan-out
// to the background worker.
func (s *Service) Rename(ctx context.Context, businessID int64, kind Kind, id int64, name string) error {
	if name == "" {
		return shared.ValidationErrorf("name required")
	}
	if err := s.ensureExists(ctx, businessID, kind, id); err != nil {
		return err
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.Rename(ctx, kind, id, name)
	})
	if err != nil {
		return err
	}
	if s.jobs != nil {
		if err := s.jobs.EnqueueRenamePropagation(ctx, kind, id); err != nil {
			return fmt.Errorf("enqueue rename propagation: %w", err)
		}
	}
	return nil
}

// Delete soft-deletes a container. Deletion proceeds leaf-first: any active
// child blocks it, and a shelf with stock on it can never be deleted.
func (s *Service) Delete(ctx context.Context, businessID int64, kind Kind, id int64) error {
	if err := s.ensureExists(ctx, businessID, kind, id); err != nil {
		return err
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if kind == KindShelf {
			hasStock, err := tx.ShelfHasStock(ctx, id)
			if err != nil {
				return err
			}
			if hasStock {
				return shared.ConflictErrorf("shelf %d still holds placed stock", id)
			}
		} else {
			children, err := tx.CountActiveChildren(ctx, kind, id)
			if err != nil {
				return err
			}
			if children > 0 {
				return shared.ConflictErrorf("%s %d has %d active children; delete them first", kind, id, children)
			}
		}
		return tx.SoftDelete(ctx, kind, id)
	})
	if err != nil {
		return err
	}
	if w := s.warehouseOf(ctx, businessID, kind, id); w != 0 {
		s.enqueueStatsRefresh(ctx, w)
	}
	return nil
}

// Reposition moves a rack or shelf to a new ordinal among its current
// siblings, shifting the intervening ones so the set stays dense.
func (s *Service) Reposition(ctx context.Context, businessID int64, kind Kind, entityID, parentID int64, oldPos, newPos int) error {
	if kind != KindRack && kind != KindShelf {
		return shared.ValidationErrorf("%s does not carry a sibling ordinal", kind)
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		siblings, err := tx.ListSiblingsForUpdate(ctx, kind, parentID)
		if err != nil {
			return err
		}
		shifts, err := PlanReposition(siblings, entityID, oldPos, newPos)
		if err != nil {
			return err
		}
		return tx.ApplyShifts(ctx, kind, shifts)
	})
}

// MoveToParent moves a rack to another zone or a shelf to another rack,
// closing the ordinal gap at the source and opening one at the destination.
// An explicit target position inserts there; otherwise the item is appended.
func (s *Service) MoveToParent(ctx context.Context, businessID int64, kind Kind, entityID, sourceParentID, destParentID int64, targetPos *int) (int, error) {
	if kind != KindRack && kind != KindShelf {
		return 0, shared.ValidationErrorf("%s does not carry a sibling ordinal", kind)
	}
	if sourceParentID == destParentID {
		return 0, shared.ValidationErrorf("source and destination parent are identical; use reposition instead")
	}

	var newPos int
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var oldPos int
		var destZone Zone
		var destRack Rack
		switch kind {
		case KindRack:
			rack, err := tx.GetRackForUpdate(ctx, businessID, entityID)
			if err != nil {
				return err
			}
			if rack.ZoneID != sourceParentID {
				return shared.ValidationErrorf("rack %d is not in zone %d", entityID, sourceParentID)
			}
			oldPos = rack.Position
			destZone, err = tx.GetZoneForUpdate(ctx, businessID, destParentID)
			if err != nil {
				return err
			}
		case KindShelf:
			shelf, err := tx.GetShelfForUpdate(ctx, businessID, entityID)
			if err != nil {
				return err
			}
			if shelf.RackID != sourceParentID {
				return shared.ValidationErrorf("shelf %d is not in rack %d", entityID, sourceParentID)
			}
			oldPos = shelf.Position
			destRack, err = tx.GetRackForUpdate(ctx, businessID, destParentID)
			if err != nil {
				return err
			}
		}

		sourceSiblings, err := tx.ListSiblingsForUpdate(ctx, kind, sourceParentID)
		if err != nil {
			return err
		}
		if err := tx.ApplyShifts(ctx, kind, PlanRemoval(sourceSiblings, entityID, oldPos)); err != nil {
			return err
		}

		destSiblings, err := tx.ListSiblingsForUpdate(ctx, kind, destParentID)
		if err != nil {
			return err
		}
		shifts, pos, err := PlanInsertion(destSiblings, targetPos)
		if err != nil {
			return err
		}
		if err := tx.ApplyShifts(ctx, kind, shifts); err != nil {
			return err
		}
		newPos = pos

		if kind == KindRack {
			return tx.MoveRack(ctx, entityID, destZone, pos)
		}
		return tx.MoveShelf(ctx, entityID, destRack, pos)
	})
	if err != nil {
		return 0, err
	}
	return newPos, nil
}

// CreateGrid synthesizes a full zone x rack x shelf layout in one request.
// Bounds are checked before any write; the whole grid commits atomically,
// chunked into store-sized write batches.
func (s *Service) CreateGrid(ctx context.Context, businessID int64, name string, counts GridCounts) (GridResult, error) {
	if name == "" {
		return GridResult{}, shared.ValidationErrorf("warehouse name required")
	}
	if counts.Zones < 1 || counts.Zones > MaxGridZones {
		return GridResult{}, shared.ValidationErrorf("zones must be 1..%d, got %d", MaxGridZones, counts.Zones)
	}
	if counts.RacksPerZone < 1 || counts.RacksPerZone > MaxGridRacksPerZone {
		return GridResult{}, shared.ValidationErrorf("racks per zone must be 1..%d, got %d", MaxGridRacksPerZone, counts.RacksPerZone)
	}
	if counts.ShelvesPerRack < 1 || counts.ShelvesPerRack > MaxGridShelvesPerRack {
		return GridResult{}, shared.ValidationErrorf("shelves per rack must be 1..%d, got %d", MaxGridShelvesPerRack, counts.ShelvesPerRack)
	}
	if total := counts.TotalEntities(); total > MaxGridEntities {
		return GridResult{}, shared.ValidationErrorf("grid would create %d entities, above the %d limit", total, MaxGridEntities)
	}

	result, err := s.repo.CreateGrid(ctx, Warehouse{BusinessID: businessID, Name: name}, counts, s.batchSize)
	if err != nil {
		return GridResult{}, err
	}
	s.enqueueStatsRefresh(ctx, result.WarehouseID)
	return result, nil
}

// GetShelfLocation resolves a shelf into the denormalized location used by
// placements, rejecting deleted shelves.
func (s *Service) GetShelfLocation(ctx context.Context, businessID, shelfID int64) (Shelf, error) {
	shelf, err := s.repo.GetShelf(ctx, businessID, shelfID)
	if err != nil {
		return Shelf{}, err
	}
	if shelf.IsDeleted {
		return Shelf{}, shared.ValidationErrorf("shelf %d is deleted", shelfID)
	}
	return shelf, nil
}

// WarehouseStats returns the child-count rollup of a warehouse, read from
// the worker-maintained cache when present. A miss falls back to a live
// recount and queues a refresh so the next read is cached.
func (s *Service) WarehouseStats(ctx context.Context, businessID, warehouseID int64) (Stats, error) {
	if _, err := s.repo.GetWarehouse(ctx, businessID, warehouseID); err != nil {
		return Stats{}, err
	}
	if stats, ok, err := s.stats.Get(ctx, warehouseID); err == nil && ok {
		return stats, nil
	}
	stats, err := s.repo.WarehouseRollup(ctx, warehouseID)
	if err != nil {
		return Stats{}, err
	}
	s.enqueueStatsRefresh(ctx, warehouseID)
	return stats, nil
}

// ListZones lists active zones of a warehouse.
func (s *Service) ListZones(ctx context.Context, businessID, warehouseID int64) ([]Zone, error) {
	return s.repo.ListZones(ctx, businessID, warehouseID)
}

// ListRacks lists active racks of a zone in position order.
func (s *Service) ListRacks(ctx context.Context, businessID, zoneID int64) ([]Rack, error) {
	return s.repo.ListRacks(ctx, businessID, zoneID)
}

// ListShelves lists active shelves of a rack in position order.
func (s *Service) ListShelves(ctx context.Context, businessID, rackID int64) ([]Shelf, error) {
	return s.repo.ListShelves(ctx, businessID, rackID)
}

func (s *Service) ensureExists(ctx context.Context, businessID int64, kind Kind, id int64) error {
	var err error
	switch kind {
	case KindWarehouse:
		_, err = s.repo.GetWarehouse(ctx, businessID, id)
	case KindZone:
		_, err = s.repo.GetZone(ctx, businessID, id)
	case KindRack:
		_, err = s.repo.GetRack(ctx, businessID, id)
	case KindShelf:
		_, err = s.repo.GetShelf(ctx, businessID, id)
	default:
		err = shared.ValidationErrorf("unknown container kind %q", kind)
	}
	return err
}

func (s *Service) warehouseOf(ctx context.Context, businessID int64, kind Kind, id int64) int64 {
	switch kind {
	case KindWarehouse:
		return id
	case KindZone:
		if z, err := s.repo.GetZone(ctx, businessID, id); err == nil {
			return z.WarehouseID
		}
	case KindRack:
		if r, err := s.repo.GetRack(ctx, businessID, id); err == nil {
			return r.WarehouseID
		}
	case KindShelf:
		if sh, err := s.repo.GetShelf(ctx, businessID, id); err == nil {
			return sh.WarehouseID
		}
	}
	return 0
}

func (s *Service) enqueueStatsRefresh(ctx context.Context, warehouseID int64) {
	if s.jobs == nil || warehouseID == 0 {
		return
	}
	_ = s.jobs.EnqueueStatsRefresh(ctx, warehouseID)
}
