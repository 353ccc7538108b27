package hierarchy

import (
	"github.com/meridian-ops/meridian/internal/shared"
)

// Sibling is one member of an ordered set sharing a parent.
type Sibling struct {
	ID       int64
	Position int
}

// Shift assigns one sibling its rebalanced position.
type Shift struct {
	ID          int64
	NewPosition int
}

// PlanReposition computes the position shifts for moving one item within its
// parent. Siblings strictly between the two endpoints (inclusive of the
// destination, exclusive of the origin) shift by one towards the vacated
// slot; the moved item lands directly on newPos. The returned shifts cover
// every sibling whose position changes, the moved item included.
func PlanReposition(siblings []Sibling, entityID int64, oldPos, newPos int) ([]Shift, error) {
	var moved *Sibling
	for i := range siblings {
		if siblings[i].ID == entityID {
			moved = &siblings[i]
			break
		}
	}
	if moved == nil {
		return nil, shared.NotFoundErrorf("entity %d is not a sibling of the parent", entityID)
	}
	if moved.Position != oldPos {
		return nil, shared.ValidationErrorf("stale position: entity %d is at %d, not %d", entityID, moved.Position, oldPos)
	}
	if newPos == oldPos {
		return nil, shared.ValidationErrorf("new position equals the current position")
	}
	if newPos < 1 || newPos > len(siblings) {
		return nil, shared.ValidationErrorf("position %d out of range 1..%d", newPos, len(siblings))
	}

	var shifts []Shift
	for _, s := range siblings {
		switch {
		case s.ID == entityID:
			shifts = append(shifts, Shift{ID: s.ID, NewPosition: newPos})
		case newPos > oldPos && s.Position > oldPos && s.Position <= newPos:
			shifts = append(shifts, Shift{ID: s.ID, NewPosition: s.Position - 1})
		case newPos < oldPos && s.Position >= newPos && s.Position < oldPos:
			shifts = append(shifts, Shift{ID: s.ID, NewPosition: s.Position + 1})
		}
	}
	return shifts, nil
}

// PlanRemoval closes the gap an item leaves in its source parent: every
// sibling past the vacated position moves down by one.
func PlanRemoval(siblings []Sibling, entityID int64, oldPos int) []Shift {
	var shifts []Shift
	for _, s := range siblings {
		if s.ID == entityID {
			continue
		}
		if s.Position > oldPos {
			shifts = append(shifts, Shift{ID: s.ID, NewPosition: s.Position - 1})
		}
	}
	return shifts
}

// PlanInsertion opens a slot in the destination parent. With an explicit
// target every sibling at or past it moves up by one; without one the item
// is appended after the highest occupied position (1 for an empty parent).
func PlanInsertion(siblings []Sibling, targetPos *int) ([]Shift, int, error) {
	if targetPos == nil {
		maxPos := 0
		for _, s := range siblings {
			if s.Position > maxPos {
				maxPos = s.Position
			}
		}
		return nil, maxPos + 1, nil
	}
	target := *targetPos
	if target < 1 || target > len(siblings)+1 {
		return nil, 0, shared.ValidationErrorf("target position %d out of range 1..%d", target, len(siblings)+1)
	}
	var shifts []Shift
	for _, s := range siblings {
		if s.Position >= target {
			shifts = append(shifts, Shift{ID: s.ID, NewPosition: s.Position + 1})
		}
	}
	return shifts, target, nil
}
