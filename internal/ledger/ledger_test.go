package ledger

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestApplyDeltaRoutesToMatchingCounter(t *testing.T) {
	c := Counters{OpeningStock: 100}

	applied, err := ApplyDelta(c, KindInward, 40, 0)
	require.NoError(t, err)
	require.Equal(t, "inwardAddition", applied.Counter)
	require.Equal(t, int64(0), applied.OldValue)
	require.Equal(t, int64(40), applied.NewValue)
	require.Equal(t, int64(100), applied.Before.Physical)
	require.Equal(t, int64(140), applied.After.Physical)

	applied, err = ApplyDelta(applied.Counters, KindOutwardManual, 30, 0)
	require.NoError(t, err)
	require.Equal(t, "deduction", applied.Counter)
	require.Equal(t, int64(110), applied.After.Physical)

	applied, err = ApplyDelta(applied.Counters, KindOutwardAuto, 10, 0)
	require.NoError(t, err)
	require.Equal(t, "autoDeduction", applied.Counter)
	require.Equal(t, int64(100), applied.After.Physical)

	applied, err = ApplyDelta(applied.Counters, KindInwardAuto, 5, 0)
	require.NoError(t, err)
	require.Equal(t, "autoAddition", applied.Counter)
	require.Equal(t, int64(105), applied.After.Physical)
}

func TestApplyDeltaBlockUnblock(t *testing.T) {
	c := Counters{OpeningStock: 50}

	applied, err := ApplyDelta(c, KindBlock, 20, 0)
	require.NoError(t, err)
	require.Equal(t, int64(50), applied.After.Physical)
	require.Equal(t, int64(30), applied.After.Available)

	applied, err = ApplyDelta(applied.Counters, KindUnblock, 5, 0)
	require.NoError(t, err)
	require.Equal(t, int64(45), applied.After.Available)

	_, err = ApplyDelta(applied.Counters, KindUnblock, 16, 0)
	require.ErrorContains(t, err, "exceeds blocked stock")
}

func TestApplyDeltaRejectsInvalidQuantity(t *testing.T) {
	c := Counters{OpeningStock: 10}

	_, err := ApplyDelta(c, KindInward, 0, 0)
	require.Error(t, err)

	_, err = ApplyDelta(c, KindInward, -3, 0)
	require.Error(t, err)

	_, err = ApplyDelta(c, KindInward, DefaultLineCap+1, 0)
	require.ErrorContains(t, err, "per-line cap")

	// A raised cap admits the same quantity.
	_, err = ApplyDelta(c, KindInward, DefaultLineCap+1, DefaultLineCap*2)
	require.NoError(t, err)
}

func TestApplyDeltaGuardsPhysicalStock(t *testing.T) {
	c := Counters{OpeningStock: 5}

	_, err := ApplyDelta(c, KindOutwardManual, 6, 0)
	require.ErrorContains(t, err, "exceeds physical stock")

	_, err = ApplyDelta(c, KindOutwardAuto, 6, 0)
	require.ErrorContains(t, err, "exceeds physical stock")
}

func TestApplyDeltaRejectsUnknownKind(t *testing.T) {
	_, err := ApplyDelta(Counters{}, Kind("teleport"), 1, 0)
	require.Error(t, err)
}

// Replays a random-ish mixed sequence and checks the conservation property:
// physical equals opening + inward - deduction + autoAdd - autoDed computed
// from the logged deltas, and no counter ever goes negative.
func TestLedgerConservation(t *testing.T) {
	type step struct {
		kind Kind
		qty  int64
	}
	steps := []step{
		{KindInward, 120}, {KindOutwardManual, 30}, {KindInwardAuto, 15},
		{KindBlock, 25}, {KindOutwardAuto, 40}, {KindUnblock, 10},
		{KindInward, 7}, {KindOutwardManual, 2},
	}

	c := Counters{OpeningStock: 10}
	var sumInward, sumDeduction, sumAutoAdd, sumAutoDed int64
	for _, st := range steps {
		applied, err := ApplyDelta(c, st.kind, st.qty, 0)
		require.NoError(t, err)
		c = applied.Counters

		switch st.kind {
		case KindInward:
			sumInward += st.qty
		case KindOutwardManual:
			sumDeduction += st.qty
		case KindInwardAuto:
			sumAutoAdd += st.qty
		case KindOutwardAuto:
			sumAutoDed += st.qty
		}

		require.GreaterOrEqual(t, c.OpeningStock, int64(0))
		require.GreaterOrEqual(t, c.InwardAddition, int64(0))
		require.GreaterOrEqual(t, c.Deduction, int64(0))
		require.GreaterOrEqual(t, c.AutoAddition, int64(0))
		require.GreaterOrEqual(t, c.AutoDeduction, int64(0))
		require.GreaterOrEqual(t, c.BlockedStock, int64(0))
		require.GreaterOrEqual(t, c.Physical(), int64(0))
	}

	require.Equal(t, int64(10)+sumInward-sumDeduction+sumAutoAdd-sumAutoDed, c.Physical())
}
