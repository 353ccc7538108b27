package placement

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	placements []Placement
}

func (r *memoryRepo) ListForProduct(ctx context.Context, businessID, productID int64) ([]Placement, error) {
	var result []Placement
	for _, p := range r.placements {
		if p.BusinessID == businessID && p.ProductID == productID && p.Quantity > 0 {
			result = append(result, p)
		}
	}
	return result, nil
}

func testLocation() Location {
	return Location{
		WarehouseID: 1, ZoneID: 2, RackID: 3, ShelfID: 4,
		WarehouseName: "Main", ZoneName: "Zone A", RackName: "Rack 1", ShelfName: "Shelf 1",
	}
}

func TestNewThenMergeDeltas(t *testing.T) {
	p, err := New(1, 7, testLocation(), 10, "inward", "GRN-1")
	require.NoError(t, err)
	require.Equal(t, int64(10), p.Quantity)
	require.True(t, p.CreateUPCs)

	require.NoError(t, p.ApplyDelta(5, "inward", "GRN-2"))
	require.Equal(t, int64(15), p.Quantity)
	// Repeat inward flips the flag rather than setting it.
	require.False(t, p.CreateUPCs)
	require.Equal(t, "GRN-2", p.LastMovementReference)

	require.NoError(t, p.ApplyDelta(2, "inward", "GRN-3"))
	require.True(t, p.CreateUPCs)
}

func TestApplyDeltaOutward(t *testing.T) {
	p, err := New(1, 7, testLocation(), 10, "inward", "GRN-1")
	require.NoError(t, err)

	require.NoError(t, p.ApplyDelta(-4, "order", "ORD-9"))
	require.Equal(t, int64(6), p.Quantity)
	// Outward does not touch the UPC flag.
	require.True(t, p.CreateUPCs)

	err = p.ApplyDelta(-7, "order", "ORD-10")
	require.ErrorContains(t, err, "exceeds placement quantity")
	require.Equal(t, int64(6), p.Quantity)
}

func TestNewRejectsIncompleteLocation(t *testing.T) {
	loc := testLocation()
	loc.ShelfID = 0
	_, err := New(1, 7, loc, 5, "inward", "")
	require.ErrorContains(t, err, "incomplete location")
}

func TestListForProductSkipsEmptyPlacements(t *testing.T) {
	stocked, err := New(1, 7, testLocation(), 3, "inward", "")
	require.NoError(t, err)
	emptyLoc := testLocation()
	emptyLoc.ShelfID = 5
	emptyLoc.ShelfName = "Shelf 2"
	empty, err := New(1, 7, emptyLoc, 3, "inward", "")
	require.NoError(t, err)
	require.NoError(t, empty.ApplyDelta(-3, "order", "ORD-1"))

	svc := NewService(&memoryRepo{placements: []Placement{stocked, empty}})
	placements, err := svc.ListForProduct(context.Background(), 1, 7)
	require.NoError(t, err)
	require.Len(t, placements, 1)
	require.Equal(t, "Shelf 1", placements[0].Location.ShelfName)
}
