package placement

import (
	"fmt"
	"time"

	"github.com/meridian-ops/meridian/internal/shared"
)

// Location is the fully resolved shelf position a placement lives at. The
// names are denormalized onto the placement row for read performance.
type Location struct {
	WarehouseID   int64  `json:"warehouseId"`
	ZoneID        int64  `json:"zoneId"`
	RackID        int64  `json:"rackId"`
	ShelfID       int64  `json:"shelfId"`
	WarehouseName string `json:"warehouseName"`
	ZoneName      string `json:"zoneName"`
	RackName      string `json:"rackName"`
	ShelfName     string `json:"shelfName"`
}

// Validate rejects incomplete locations before any write happens.
func (l Location) Validate() error {
	if l.WarehouseID == 0 || l.ZoneID == 0 || l.RackID == 0 || l.ShelfID == 0 {
		return shared.ValidationErrorf("incomplete location: warehouse, zone, rack and shelf are all required")
	}
	return nil
}

// Path renders the human-readable location path.
func (l Location) Path() string {
	return fmt.Sprintf("%s > %s > %s", l.ZoneName, l.RackName, l.ShelfName)
}

// Placement maps (product, shelf) to a physical quantity.
type Placement struct {
	ID         int64    `json:"id"`
	BusinessID int64    `json:"businessId"`
	ProductID  int64    `json:"productId"`
	Location   Location `json:"location"`
	Quantity   int64    `json:"quantity"`
	// CreateUPCs is toggled, not set, on every repeat inward to the same
	// shelf. Downstream barcode generation depends on the flip, so the
	// behavior is preserved as observed.
	CreateUPCs            bool      `json:"createUPCs"`
	LastMovementReason    string    `json:"lastMovementReason"`
	LastMovementReference string    `json:"lastMovementReference"`
	UpdatedAt             time.Time `json:"updatedAt"`
}

// ApplyDelta merges one movement into an existing placement: inward adds
// quantity and flips CreateUPCs, outward subtracts after checking the
// current quantity covers the delta.
func (p *Placement) ApplyDelta(delta int64, reason, reference string) error {
	if delta == 0 {
		return shared.ValidationErrorf("placement delta must be non-zero")
	}
	if delta < 0 && p.Quantity+delta < 0 {
		return shared.ValidationErrorf("outward %d exceeds placement quantity %d on shelf %s", -delta, p.Quantity, p.Location.ShelfName)
	}
	p.Quantity += delta
	if delta > 0 {
		p.CreateUPCs = !p.CreateUPCs
	}
	p.LastMovementReason = reason
	p.LastMovementReference = reference
	return nil
}

// New creates the first placement for a (product, shelf) pair.
func New(businessID, productID int64, loc Location, qty int64, reason, reference string) (Placement, error) {
	if err := loc.Validate(); err != nil {
		return Placement{}, err
	}
	if qty <= 0 {
		return Placement{}, shared.ValidationErrorf("a new placement requires a positive quantity, got %d", qty)
	}
	return Placement{
		BusinessID:            businessID,
		ProductID:             productID,
		Location:              loc,
		Quantity:              qty,
		CreateUPCs:            true,
		LastMovementReason:    reason,
		LastMovementReference: reference,
	}, nil
}
