package hierarchy

import (
	"time"
)

// Kind enumerates the container levels of the warehouse hierarchy.
type Kind string

const (
	KindWarehouse Kind = "warehouse"
	KindZone      Kind = "zone"
	KindRack      Kind = "rack"
	KindShelf     Kind = "shelf"
)

// Stats is the active child-count rollup of one warehouse subtree. The
// async refresh job keeps the cached copy current; the core only recounts
// on a cache miss.
type Stats struct {
	Zones   int `json:"zones"`
	Racks   int `json:"racks"`
	Shelves int `json:"shelves"`
}

// Warehouse is the root container.
type Warehouse struct {
	ID         int64      `json:"id"`
	BusinessID int64      `json:"businessId"`
	Name       string     `json:"name"`
	Address    string     `json:"address,omitempty"`
	IsDeleted  bool       `json:"isDeleted"`
	DeletedAt  *time.Time `json:"deletedAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// Zone groups racks inside a warehouse.
type Zone struct {
	ID            int64      `json:"id"`
	BusinessID    int64      `json:"businessId"`
	WarehouseID   int64      `json:"warehouseId"`
	Name          string     `json:"name"`
	WarehouseName string     `json:"warehouseName"`
	IsDeleted     bool       `json:"isDeleted"`
	DeletedAt     *time.Time `json:"deletedAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// Rack holds shelves and carries a display ordinal among its zone siblings.
type Rack struct {
	ID            int64      `json:"id"`
	BusinessID    int64      `json:"businessId"`
	WarehouseID   int64      `json:"warehouseId"`
	ZoneID        int64      `json:"zoneId"`
	Name          string     `json:"name"`
	WarehouseName string     `json:"warehouseName"`
	ZoneName      string     `json:"zoneName"`
	Position      int        `json:"position"`
	IsDeleted     bool       `json:"isDeleted"`
	DeletedAt     *time.Time `json:"deletedAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// Shelf is the leaf container that placements reference.
type Shelf struct {
	ID            int64      `json:"id"`
	BusinessID    int64      `json:"businessId"`
	WarehouseID   int64      `json:"warehouseId"`
	ZoneID        int64      `json:"zoneId"`
	RackID        int64      `json:"rackId"`
	Name          string     `json:"name"`
	WarehouseName string     `json:"warehouseName"`
	ZoneName      string     `json:"zoneName"`
	RackName      string     `json:"rackName"`
	Position      int        `json:"position"`
	IsDeleted     bool       `json:"isDeleted"`
	DeletedAt     *time.Time `json:"deletedAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// GridCounts sizes an instant-warehouse request.
type GridCounts struct {
	Zones          int `json:"zones"`
	RacksPerZone   int `json:"racksPerZone"`
	ShelvesPerRack int `json:"shelvesPerRack"`
}

// TotalEntities counts every container the grid will create, the warehouse
// excluded.
func (g GridCounts) TotalEntities() int {
	return g.Zones + g.Zones*g.RacksPerZone + g.Zones*g.RacksPerZone*g.ShelvesPerRack
}

// GridResult reports a completed instant-warehouse creation.
type GridResult struct {
	WarehouseID   int64 `json:"warehouseId"`
	TotalEntities int   `json:"totalEntities"`
	BatchesUsed   int   `json:"batchesUsed"`
}
