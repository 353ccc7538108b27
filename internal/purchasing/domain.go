package purchasing

import (
	"time"

	"github.com/meridian-ops/meridian/internal/shared"
)

// Status is a purchase order's lifecycle state.
type Status string

const (
	StatusDraft             Status = "draft"
	StatusConfirmed         Status = "confirmed"
	StatusPartiallyReceived Status = "partially_received"
	StatusFullyReceived     Status = "fully_received"
	StatusCancelled         Status = "cancelled"
	StatusClosed            Status = "closed"
)

// IsTerminal reports whether no further receipts may land on the order.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusFullyReceived, StatusCancelled, StatusClosed:
		return true
	}
	return false
}

// ItemStatus is a line's receipt progress.
type ItemStatus string

const (
	ItemPending           ItemStatus = "pending"
	ItemPartiallyReceived ItemStatus = "partially_received"
	ItemFullyReceived     ItemStatus = "fully_received"
)

// Order is a purchase order header.
type Order struct {
	ID           int64     `json:"id"`
	BusinessID   int64     `json:"businessId"`
	OrderNo      string    `json:"orderNo"`
	SupplierID   int64     `json:"supplierId"`
	SupplierName string    `json:"supplierName"`
	Status       Status    `json:"status"`
	Notes        string    `json:"notes,omitempty"`
	Items        []Item    `json:"items,omitempty"`
	CreatedBy    int64     `json:"createdBy"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Item is one ordered line. ReceivedQty accumulates accepted receipt
// quantities; RejectedQty is tracked separately and never counts towards
// progress.
type Item struct {
	ID          int64      `json:"id"`
	OrderID     int64      `json:"orderId"`
	ProductID   int64      `json:"productId"`
	SKU         string     `json:"sku"`
	OrderedQty  int64      `json:"orderedQty"`
	ReceivedQty int64      `json:"receivedQty"`
	RejectedQty int64      `json:"rejectedQty"`
	UnitCost    float64    `json:"unitCost"`
	Status      ItemStatus `json:"status"`
}

// DeriveItemStatus derives a line's status from its quantities. The rule is
// direction-agnostic: it holds equally after receipts and reversals.
func DeriveItemStatus(received, ordered int64) ItemStatus {
	switch {
	case received <= 0:
		return ItemPending
	case received < ordered:
		return ItemPartiallyReceived
	default:
		return ItemFullyReceived
	}
}

// DeriveOrderStatus derives the order status from its lines. Draft orders
// are never auto-promoted; receipt progress only moves orders that were
// explicitly confirmed.
func DeriveOrderStatus(current Status, items []Item) Status {
	if current == StatusDraft || current == StatusCancelled || current == StatusClosed {
		return current
	}
	if len(items) == 0 {
		return current
	}
	allFull := true
	anyProgress := false
	for _, it := range items {
		switch it.Status {
		case ItemFullyReceived:
			anyProgress = true
		case ItemPartiallyReceived:
			anyProgress = true
			allFull = false
		default:
			allFull = false
		}
	}
	switch {
	case allFull:
		return StatusFullyReceived
	case anyProgress:
		return StatusPartiallyReceived
	default:
		return StatusConfirmed
	}
}

// ApplyReceipt adds accepted and rejected quantities onto the line matching
// the SKU and re-derives its status. The caller re-derives the order status
// afterwards, inside the same transaction.
func ApplyReceipt(items []Item, sku string, accepted, rejected int64) ([]Item, error) {
	return adjust(items, sku, accepted, rejected)
}

// ReverseReceipt subtracts previously applied quantities, flooring at zero
// so double reversal can never drive a line negative.
func ReverseReceipt(items []Item, sku string, accepted, rejected int64) ([]Item, error) {
	return adjust(items, sku, -accepted, -rejected)
}

func adjust(items []Item, sku string, acceptedDelta, rejectedDelta int64) ([]Item, error) {
	out := make([]Item, len(items))
	copy(out, items)
	for i := range out {
		if out[i].SKU != sku {
			continue
		}
		out[i].ReceivedQty = floorZero(out[i].ReceivedQty + acceptedDelta)
		out[i].RejectedQty = floorZero(out[i].RejectedQty + rejectedDelta)
		out[i].Status = DeriveItemStatus(out[i].ReceivedQty, out[i].OrderedQty)
		return out, nil
	}
	return nil, shared.NotFoundErrorf("purchase order line for sku %s", sku)
}

func floorZero(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}

// CanTransition is the order header's explicit transition table.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusDraft:
		return to == StatusConfirmed || to == StatusCancelled
	case StatusConfirmed:
		return to == StatusPartiallyReceived || to == StatusFullyReceived ||
			to == StatusCancelled || to == StatusClosed
	case StatusPartiallyReceived:
		return to == StatusConfirmed || to == StatusFullyReceived || to == StatusClosed
	case StatusFullyReceived:
		return to == StatusPartiallyReceived || to == StatusClosed
	}
	return false
}
