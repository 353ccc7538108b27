package receiving

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meridian-ops/meridian/internal/shared"
)

func TestNormalizeItemDefaultsAcceptedToReceived(t *testing.T) {
	it, err := NormalizeItem(Item{SKU: "wid-001", ExpectedQty: 20, ReceivedQty: 12, UnitCost: 1.5})
	require.NoError(t, err)
	require.Equal(t, "WID-001", it.SKU)
	require.Equal(t, int64(12), it.AcceptedQty)
	require.Equal(t, int64(0), it.RejectedQty)
	require.Equal(t, int64(8), it.NotReceivedQty)
	require.Equal(t, 18.0, it.TotalCost)
}

func TestNormalizeItemInspectionSplit(t *testing.T) {
	it, err := NormalizeItem(Item{SKU: "WID-001", ExpectedQty: 20, AcceptedQty: 9, RejectedQty: 3, UnitCost: 2})
	require.NoError(t, err)
	// Received backfilled from the split.
	require.Equal(t, int64(12), it.ReceivedQty)
	require.Equal(t, int64(8), it.NotReceivedQty)
	require.Equal(t, 24.0, it.TotalCost)
}

func TestNormalizeItemOverReceiptClampsNotReceived(t *testing.T) {
	it, err := NormalizeItem(Item{SKU: "WID-001", ExpectedQty: 10, ReceivedQty: 14, UnitCost: 0.333})
	require.NoError(t, err)
	require.Equal(t, int64(0), it.NotReceivedQty)
	require.Equal(t, 4.66, it.TotalCost) // round2(14 * 0.333)
}

func TestNormalizeItemRejectsInconsistentSplit(t *testing.T) {
	_, err := NormalizeItem(Item{SKU: "WID-001", ReceivedQty: 5, AcceptedQty: 4, RejectedQty: 2})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestNormalizeItemsRejectsDuplicateSKUsListingThem(t *testing.T) {
	_, err := NormalizeItems([]Item{
		{SKU: "WID-001", ReceivedQty: 1},
		{SKU: "wid-001", ReceivedQty: 2},
		{SKU: "BOLT-9", ReceivedQty: 1},
		{SKU: "BOLT-9", ReceivedQty: 1},
	})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Contains(t, err.Error(), "WID-001")
	require.Contains(t, err.Error(), "BOLT-9")
}

func TestAggregate(t *testing.T) {
	items := []Item{
		{ExpectedQty: 20, ReceivedQty: 12, NotReceivedQty: 8, TotalCost: 18.0},
		{ExpectedQty: 5, ReceivedQty: 5, NotReceivedQty: 0, TotalCost: 2.5},
	}
	totals := Aggregate(items)
	require.Equal(t, int64(25), totals.ExpectedQty)
	require.Equal(t, int64(17), totals.ReceivedQty)
	require.Equal(t, int64(8), totals.NotReceivedQty)
	require.Equal(t, 20.5, totals.ReceivedValue)
}

func TestGRNTransitionClosure(t *testing.T) {
	require.True(t, CanTransition(StatusDraft, StatusCompleted))
	require.True(t, CanTransition(StatusDraft, StatusCancelled))

	// Terminal states admit nothing, same-state writes included.
	for _, from := range []Status{StatusCompleted, StatusCancelled} {
		for _, to := range []Status{StatusDraft, StatusCompleted, StatusCancelled} {
			require.False(t, CanTransition(from, to), "%s -> %s must be rejected", from, to)
		}
	}
	require.False(t, CanTransition(StatusDraft, StatusDraft))
}
