package purchasing

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meridian-ops/meridian/internal/shared"
)

func TestDeriveItemStatus(t *testing.T) {
	require.Equal(t, ItemPending, DeriveItemStatus(0, 10))
	require.Equal(t, ItemPending, DeriveItemStatus(-3, 10))
	require.Equal(t, ItemPartiallyReceived, DeriveItemStatus(4, 10))
	require.Equal(t, ItemFullyReceived, DeriveItemStatus(10, 10))
	// Over-receipt still counts as full.
	require.Equal(t, ItemFullyReceived, DeriveItemStatus(12, 10))
}

func TestDeriveOrderStatusNeverPromotesDraft(t *testing.T) {
	items := []Item{
		{SKU: "A", Status: ItemFullyReceived},
		{SKU: "B", Status: ItemFullyReceived},
	}
	require.Equal(t, StatusDraft, DeriveOrderStatus(StatusDraft, items))
}

func TestDeriveOrderStatus(t *testing.T) {
	pending := Item{SKU: "A", Status: ItemPending}
	partial := Item{SKU: "B", Status: ItemPartiallyReceived}
	full := Item{SKU: "C", Status: ItemFullyReceived}

	require.Equal(t, StatusConfirmed, DeriveOrderStatus(StatusConfirmed, []Item{pending, pending}))
	require.Equal(t, StatusPartiallyReceived, DeriveOrderStatus(StatusConfirmed, []Item{pending, partial}))
	require.Equal(t, StatusPartiallyReceived, DeriveOrderStatus(StatusConfirmed, []Item{pending, full}))
	require.Equal(t, StatusFullyReceived, DeriveOrderStatus(StatusConfirmed, []Item{full, full}))

	// Reversal can walk a fully received order back down.
	require.Equal(t, StatusPartiallyReceived, DeriveOrderStatus(StatusFullyReceived, []Item{partial, full}))
	require.Equal(t, StatusConfirmed, DeriveOrderStatus(StatusPartiallyReceived, []Item{pending, pending}))
}

func TestApplyReceiptAccumulatesAndDerives(t *testing.T) {
	items := []Item{{SKU: "WID-001", OrderedQty: 10, Status: ItemPending}}

	items, err := ApplyReceipt(items, "WID-001", 4, 1)
	require.NoError(t, err)
	require.Equal(t, int64(4), items[0].ReceivedQty)
	require.Equal(t, int64(1), items[0].RejectedQty)
	require.Equal(t, ItemPartiallyReceived, items[0].Status)

	items, err = ApplyReceipt(items, "WID-001", 6, 0)
	require.NoError(t, err)
	require.Equal(t, int64(10), items[0].ReceivedQty)
	require.Equal(t, ItemFullyReceived, items[0].Status)
}

func TestReverseReceiptUndoesExactly(t *testing.T) {
	items := []Item{{SKU: "WID-001", OrderedQty: 10, Status: ItemPending}}

	applied, err := ApplyReceipt(items, "WID-001", 7, 2)
	require.NoError(t, err)

	reversed, err := ReverseReceipt(applied, "WID-001", 7, 2)
	require.NoError(t, err)
	require.Equal(t, items[0].ReceivedQty, reversed[0].ReceivedQty)
	require.Equal(t, items[0].RejectedQty, reversed[0].RejectedQty)
	require.Equal(t, ItemPending, reversed[0].Status)
}

func TestReverseReceiptFloorsAtZero(t *testing.T) {
	items := []Item{{SKU: "WID-001", OrderedQty: 10, ReceivedQty: 3, Status: ItemPartiallyReceived}}

	reversed, err := ReverseReceipt(items, "WID-001", 8, 0)
	require.NoError(t, err)
	require.Equal(t, int64(0), reversed[0].ReceivedQty)
	require.Equal(t, ItemPending, reversed[0].Status)
}

func TestApplyReceiptUnknownSKU(t *testing.T) {
	items := []Item{{SKU: "WID-001", OrderedQty: 10}}

	_, err := ApplyReceipt(items, "BOLT-9", 1, 0)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestApplyReceiptDoesNotMutateInput(t *testing.T) {
	items := []Item{{SKU: "WID-001", OrderedQty: 10}}

	_, err := ApplyReceipt(items, "WID-001", 5, 0)
	require.NoError(t, err)
	require.Equal(t, int64(0), items[0].ReceivedQty)
}

func TestCanTransition(t *testing.T) {
	require.True(t, CanTransition(StatusDraft, StatusConfirmed))
	require.True(t, CanTransition(StatusDraft, StatusCancelled))
	require.False(t, CanTransition(StatusDraft, StatusFullyReceived))

	require.True(t, CanTransition(StatusConfirmed, StatusClosed))
	require.True(t, CanTransition(StatusFullyReceived, StatusPartiallyReceived))

	require.False(t, CanTransition(StatusCancelled, StatusConfirmed))
	require.False(t, CanTransition(StatusClosed, StatusConfirmed))
}

func TestTerminalStatuses(t *testing.T) {
	require.True(t, StatusCancelled.IsTerminal())
	require.True(t, StatusClosed.IsTerminal())
	require.True(t, StatusFullyReceived.IsTerminal())
	require.False(t, StatusDraft.IsTerminal())
	require.False(t, StatusConfirmed.IsTerminal())
	require.False(t, StatusPartiallyReceived.IsTerminal())
}
