package hierarchy

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meridian-ops/meridian/internal/shared"
)

func positionsAfter(siblings []Sibling, shifts []Shift) map[int64]int {
	result := make(map[int64]int, len(siblings))
	for _, s := range siblings {
		result[s.ID] = s.Position
	}
	for _, sh := range shifts {
		result[sh.ID] = sh.NewPosition
	}
	return result
}

func requireDense(t *testing.T, positions map[int64]int) {
	t.Helper()
	got := make([]int, 0, len(positions))
	for _, p := range positions {
		got = append(got, p)
	}
	sort.Ints(got)
	for i, p := range got {
		require.Equal(t, i+1, p, "positions must stay dense 1..N")
	}
}

func TestPlanRepositionMovesDown(t *testing.T) {
	siblings := []Sibling{{ID: 10, Position: 1}, {ID: 20, Position: 2}, {ID: 30, Position: 3}, {ID: 40, Position: 4}}

	shifts, err := PlanReposition(siblings, 10, 1, 3)
	require.NoError(t, err)

	after := positionsAfter(siblings, shifts)
	require.Equal(t, 3, after[10])
	require.Equal(t, 1, after[20])
	require.Equal(t, 2, after[30])
	require.Equal(t, 4, after[40])
	requireDense(t, after)
}

func TestPlanRepositionMovesUp(t *testing.T) {
	siblings := []Sibling{{ID: 10, Position: 1}, {ID: 20, Position: 2}, {ID: 30, Position: 3}, {ID: 40, Position: 4}}

	shifts, err := PlanReposition(siblings, 40, 4, 2)
	require.NoError(t, err)

	after := positionsAfter(siblings, shifts)
	require.Equal(t, 2, after[40])
	require.Equal(t, 1, after[10])
	require.Equal(t, 3, after[20])
	require.Equal(t, 4, after[30])
	requireDense(t, after)
}

func TestPlanRepositionRejectsStalePosition(t *testing.T) {
	siblings := []Sibling{{ID: 10, Position: 1}, {ID: 20, Position: 2}}

	_, err := PlanReposition(siblings, 10, 2, 1)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestPlanRepositionRejectsNoOp(t *testing.T) {
	siblings := []Sibling{{ID: 10, Position: 1}, {ID: 20, Position: 2}}

	_, err := PlanReposition(siblings, 10, 1, 1)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestPlanRepositionRejectsOutOfRange(t *testing.T) {
	siblings := []Sibling{{ID: 10, Position: 1}, {ID: 20, Position: 2}}

	_, err := PlanReposition(siblings, 10, 1, 3)
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = PlanReposition(siblings, 10, 1, 0)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestPlanRepositionUnknownSibling(t *testing.T) {
	siblings := []Sibling{{ID: 10, Position: 1}}

	_, err := PlanReposition(siblings, 99, 1, 1)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestPlanRemovalClosesGap(t *testing.T) {
	siblings := []Sibling{{ID: 10, Position: 1}, {ID: 20, Position: 2}, {ID: 30, Position: 3}}

	shifts := PlanRemoval(siblings, 20, 2)
	require.Equal(t, []Shift{{ID: 30, NewPosition: 2}}, shifts)
}

func TestPlanRemovalOfLastItem(t *testing.T) {
	siblings := []Sibling{{ID: 10, Position: 1}, {ID: 20, Position: 2}}

	require.Empty(t, PlanRemoval(siblings, 20, 2))
}

func TestPlanInsertionAppends(t *testing.T) {
	siblings := []Sibling{{ID: 10, Position: 1}, {ID: 20, Position: 2}}

	shifts, pos, err := PlanInsertion(siblings, nil)
	require.NoError(t, err)
	require.Empty(t, shifts)
	require.Equal(t, 3, pos)
}

func TestPlanInsertionIntoEmptyParent(t *testing.T) {
	shifts, pos, err := PlanInsertion(nil, nil)
	require.NoError(t, err)
	require.Empty(t, shifts)
	require.Equal(t, 1, pos)
}

func TestPlanInsertionAtTarget(t *testing.T) {
	siblings := []Sibling{{ID: 10, Position: 1}, {ID: 20, Position: 2}, {ID: 30, Position: 3}}
	target := 2

	shifts, pos, err := PlanInsertion(siblings, &target)
	require.NoError(t, err)
	require.Equal(t, 2, pos)
	require.ElementsMatch(t, []Shift{{ID: 20, NewPosition: 3}, {ID: 30, NewPosition: 4}}, shifts)
}

func TestPlanInsertionRejectsOutOfRangeTarget(t *testing.T) {
	siblings := []Sibling{{ID: 10, Position: 1}}
	target := 3

	_, _, err := PlanInsertion(siblings, &target)
	require.ErrorIs(t, err, shared.ErrValidation)
}
