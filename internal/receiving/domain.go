package receiving

import (
	"math"
	"strings"
	"time"

	"github.com/meridian-ops/meridian/internal/shared"
)

// Status is a goods received note's lifecycle state.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// CanTransition is the GRN transition table. Completed and cancelled are
// terminal; a same-state write is not a transition either.
func CanTransition(from, to Status) bool {
	return from == StatusDraft && (to == StatusCompleted || to == StatusCancelled)
}

// Item is one received line. AcceptedQty feeds the stock inward and the
// purchase order's receipt progress; RejectedQty is tracked but never
// becomes stock.
type Item struct {
	ID             int64   `json:"id"`
	GRNID          int64   `json:"grnId"`
	ProductID      int64   `json:"productId"`
	SKU            string  `json:"sku"`
	ExpectedQty    int64   `json:"expectedQty"`
	ReceivedQty    int64   `json:"receivedQty"`
	AcceptedQty    int64   `json:"acceptedQty"`
	RejectedQty    int64   `json:"rejectedQty"`
	NotReceivedQty int64   `json:"notReceivedQty"`
	UnitCost       float64 `json:"unitCost"`
	TotalCost      float64 `json:"totalCost"`
}

// Totals are the aggregate fields recomputed on every item replacement.
type Totals struct {
	ExpectedQty    int64   `json:"totalExpectedQty"`
	ReceivedQty    int64   `json:"totalReceivedQty"`
	NotReceivedQty int64   `json:"totalNotReceivedQty"`
	ReceivedValue  float64 `json:"totalReceivedValue"`
}

// GRN is a goods received note against one purchase order.
type GRN struct {
	ID             int64      `json:"id"`
	BusinessID     int64      `json:"businessId"`
	GRNNo          string     `json:"grnNo"`
	OrderID        int64      `json:"orderId"`
	Status         Status     `json:"status"`
	Items          []Item     `json:"items,omitempty"`
	Totals         Totals     `json:"totals"`
	InwardedAt     *time.Time `json:"inwardedAt,omitempty"`
	InwardedBy     int64      `json:"inwardedBy,omitempty"`
	InwardLocation string     `json:"inwardLocation,omitempty"`
	CreatedBy      int64      `json:"createdBy"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// NormalizeItem fills the derived fields of one line. Lines recorded
// without an inspection split count everything received as accepted.
func NormalizeItem(it Item) (Item, error) {
	it.SKU = strings.ToUpper(strings.TrimSpace(it.SKU))
	if it.SKU == "" {
		return Item{}, shared.ValidationErrorf("item sku required")
	}
	if it.ExpectedQty < 0 || it.ReceivedQty < 0 || it.AcceptedQty < 0 || it.RejectedQty < 0 {
		return Item{}, shared.ValidationErrorf("sku %s: quantities cannot be negative", it.SKU)
	}
	if it.UnitCost < 0 {
		return Item{}, shared.ValidationErrorf("sku %s: unit cost cannot be negative", it.SKU)
	}
	if it.ReceivedQty == 0 && it.AcceptedQty+it.RejectedQty > 0 {
		it.ReceivedQty = it.AcceptedQty + it.RejectedQty
	}
	if it.AcceptedQty == 0 && it.RejectedQty == 0 {
		it.AcceptedQty = it.ReceivedQty
	}
	if it.AcceptedQty+it.RejectedQty > it.ReceivedQty {
		return Item{}, shared.ValidationErrorf("sku %s: accepted %d + rejected %d exceeds received %d",
			it.SKU, it.AcceptedQty, it.RejectedQty, it.ReceivedQty)
	}
	it.NotReceivedQty = it.ExpectedQty - it.ReceivedQty
	if it.NotReceivedQty < 0 {
		it.NotReceivedQty = 0
	}
	it.TotalCost = round2(float64(it.ReceivedQty) * it.UnitCost)
	return it, nil
}

// NormalizeItems normalizes every line and rejects duplicate SKUs, naming
// them all.
func NormalizeItems(items []Item) ([]Item, error) {
	if len(items) == 0 {
		return nil, shared.ValidationErrorf("grn needs at least one item")
	}
	seen := make(map[string]bool, len(items))
	var duplicates []string
	out := make([]Item, 0, len(items))
	for _, it := range items {
		normalized, err := NormalizeItem(it)
		if err != nil {
			return nil, err
		}
		if seen[normalized.SKU] {
			if !contains(duplicates, normalized.SKU) {
				duplicates = append(duplicates, normalized.SKU)
			}
			continue
		}
		seen[normalized.SKU] = true
		out = append(out, normalized)
	}
	if len(duplicates) > 0 {
		return nil, shared.ValidationErrorf("duplicate skus: %s", strings.Join(duplicates, ", "))
	}
	return out, nil
}

// Aggregate sums the four totals over the lines.
func Aggregate(items []Item) Totals {
	var t Totals
	for _, it := range items {
		t.ExpectedQty += it.ExpectedQty
		t.ReceivedQty += it.ReceivedQty
		t.NotReceivedQty += it.NotReceivedQty
		t.ReceivedValue += it.TotalCost
	}
	t.ReceivedValue = round2(t.ReceivedValue)
	return t
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
