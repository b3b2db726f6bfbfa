// Package reservation implements the slot assignment and confirmation
// engine: deciding which physical slot number a booking receives and
// driving the PENDING -> CONFIRMED / CANCELLED / EXPIRED lifecycle.
package reservation

import "fmt"

// NextFreeSlot scans slot numbers 1..totalSlots in ascending order and
// returns the first value absent from occupied, or false when every slot
// is taken.  The scan order makes allocation deterministic and reuses
// the lowest released slot first, keeping the numbering compact.
// occupied need not be sorted.
func NextFreeSlot(totalSlots uint32, occupied []uint32) (uint32, bool) {
	taken := make(map[uint32]struct{}, len(occupied))
	for _, n := range occupied {
		taken[n] = struct{}{}
	}
	for n := uint32(1); n <= totalSlots; n++ {
		if _, ok := taken[n]; !ok {
			return n, true
		}
	}
	return 0, false
}

// AvailableSlots returns how many slots remain free given the total
// capacity and the current confirmed count.
func AvailableSlots(total, occupiedCount uint32) uint32 {
	if occupiedCount >= total {
		return 0
	}
	return total - occupiedCount
}

// UnassignedLabel is the display label for a booking without a slot.
const UnassignedLabel = "-"

// SlotLabel derives the human-facing label from a slot number, e.g. "P3".
// A nil slot yields UnassignedLabel.
func SlotLabel(n *uint32) string {
	if n == nil {
		return UnassignedLabel
	}
	return fmt.Sprintf("P%d", *n)
}
