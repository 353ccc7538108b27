package ledger

import (
	"time"
)

// Kind enumerates supported stock movements.
type Kind string

const (
	// KindInward represents manual inward stock, e.g. a posted GRN.
	KindInward Kind = "inward"
	// KindInwardAuto represents system-driven additions, e.g. restock from a cancelled order.
	KindInwardAuto Kind = "inward-auto"
	// KindOutwardManual represents manually recorded outward stock.
	KindOutwardManual Kind = "outward-manual"
	// KindOutwardAuto represents system-driven outward stock, e.g. order fulfilment.
	KindOutwardAuto Kind = "outward-auto"
	// KindBlock reserves stock without physically moving it.
	KindBlock Kind = "block"
	// KindUnblock releases previously blocked stock.
	KindUnblock Kind = "unblock"
)

// DefaultLineCap bounds a single movement line. The cap exists to limit the
// blast radius of data-entry mistakes, not as a domain rule.
const DefaultLineCap int64 = 500

// Counters holds the six additive stock counters of one product. All six are
// non-negative at rest; outward movement increments the deduction counters
// rather than decrementing the additions.
type Counters struct {
	OpeningStock   int64 `json:"openingStock"`
	InwardAddition int64 `json:"inwardAddition"`
	Deduction      int64 `json:"deduction"`
	AutoAddition   int64 `json:"autoAddition"`
	AutoDeduction  int64 `json:"autoDeduction"`
	BlockedStock   int64 `json:"blockedStock"`
}

// Physical computes the physical stock from the counters.
func (c Counters) Physical() int64 {
	return c.OpeningStock + c.InwardAddition - c.Deduction + c.AutoAddition - c.AutoDeduction
}

// Available computes the sellable stock. It can be negative transiently,
// which represents an oversell condition.
func (c Counters) Available() int64 {
	return c.Physical() - c.BlockedStock
}

// Snapshot captures physical and available stock at one point in time.
type Snapshot struct {
	Physical  int64 `json:"physicalStock"`
	Available int64 `json:"availableStock"`
}

// Snapshot returns the derived stock pair for the counters.
func (c Counters) Snapshot() Snapshot {
	return Snapshot{Physical: c.Physical(), Available: c.Available()}
}

// Applied describes the outcome of one delta application.
type Applied struct {
	Counters Counters
	// Counter names the counter that changed, for the audit trail.
	Counter  string
	OldValue int64
	NewValue int64
	Before   Snapshot
	After    Snapshot
}

// Movement is the persisted record of one applied delta.
type Movement struct {
	ID              int64     `json:"id"`
	BusinessID      int64     `json:"businessId"`
	ProductID       int64     `json:"productId"`
	Kind            Kind      `json:"kind"`
	Qty             int64     `json:"qty"`
	Counter         string    `json:"counter"`
	OldValue        int64     `json:"oldValue"`
	NewValue        int64     `json:"newValue"`
	PhysicalBefore  int64     `json:"physicalBefore"`
	PhysicalAfter   int64     `json:"physicalAfter"`
	AvailableBefore int64     `json:"availableBefore"`
	AvailableAfter  int64     `json:"availableAfter"`
	Reason          string    `json:"reason"`
	Reference       string    `json:"reference"`
	ActorID         int64     `json:"actorId"`
	OccurredAt      time.Time `json:"occurredAt"`
}
