package ledger

import (
	"github.com/meridian-ops/meridian/internal/shared"
)

// ApplyDelta applies one movement to the counters and returns the result.
// It is a pure function: every mutation of the six counters in the system
// routes through here so idempotency keys and movement logging can stay in
// one place. Deltas are applied as increments to the matching counter,
// never as raw overwrites.
func ApplyDelta(c Counters, kind Kind, qty int64, lineCap int64) (Applied, error) {
	if qty <= 0 {
		return Applied{}, shared.ValidationErrorf("quantity must be a positive integer, got %d", qty)
	}
	if lineCap <= 0 {
		lineCap = DefaultLineCap
	}
	if qty > lineCap {
		return Applied{}, shared.ValidationErrorf("quantity %d exceeds the per-line cap of %d", qty, lineCap)
	}

	before := c.Snapshot()
	applied := Applied{Before: before}

	switch kind {
	case KindInward:
		applied.Counter = "inwardAddition"
		applied.OldValue = c.InwardAddition
		c.InwardAddition += qty
		applied.NewValue = c.InwardAddition
	case KindInwardAuto:
		applied.Counter = "autoAddition"
		applied.OldValue = c.AutoAddition
		c.AutoAddition += qty
		applied.NewValue = c.AutoAddition
	case KindOutwardManual:
		if qty > before.Physical {
			return Applied{}, shared.ValidationErrorf("outward quantity %d exceeds physical stock %d", qty, before.Physical)
		}
		applied.Counter = "deduction"
		applied.OldValue = c.Deduction
		c.Deduction += qty
		applied.NewValue = c.Deduction
	case KindOutwardAuto:
		if qty > before.Physical {
			return Applied{}, shared.ValidationErrorf("outward quantity %d exceeds physical stock %d", qty, before.Physical)
		}
		applied.Counter = "autoDeduction"
		applied.OldValue = c.AutoDeduction
		c.AutoDeduction += qty
		applied.NewValue = c.AutoDeduction
	case KindBlock:
		applied.Counter = "blockedStock"
		applied.OldValue = c.BlockedStock
		c.BlockedStock += qty
		applied.NewValue = c.BlockedStock
	case KindUnblock:
		if qty > c.BlockedStock {
			return Applied{}, shared.ValidationErrorf("unblock quantity %d exceeds blocked stock %d", qty, c.BlockedStock)
		}
		applied.Counter = "blockedStock"
		applied.OldValue = c.BlockedStock
		c.BlockedStock -= qty
		applied.NewValue = c.BlockedStock
	default:
		return Applied{}, shared.ValidationErrorf("unknown movement kind %q", kind)
	}

	applied.Counters = c
	applied.After = c.Snapshot()
	return applied, nil
}
