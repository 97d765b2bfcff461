package availability

import "sort"

// RawSlot is a candidate slot before booking state is applied.
type RawSlot struct {
	Start    TimeOfDay
	End      TimeOfDay
	Capacity int
}

// GenerateSlots cuts each window into full-length slots separated by the
// window's buffer. A trailing remainder shorter than one slot is dropped.
// Windows are expanded independently and the result is ordered by start.
func GenerateSlots(windows []WorkWindow) []RawSlot {
	var slots []RawSlot
	for _, w := range windows {
		// Unvalidated windows (legacy rows) are skipped rather than risk overflow.
		if w.SlotDurationMinutes <= 0 || w.SlotDurationMinutes > int(w.EndTime-w.StartTime) ||
			w.BufferMinutes < 0 || w.BufferMinutes > int(EndOfDay) {
			continue
		}
		step := w.SlotDurationMinutes + w.BufferMinutes
		for cursor := w.StartTime; cursor.Add(w.SlotDurationMinutes) <= w.EndTime; cursor = cursor.Add(step) {
			slots = append(slots, RawSlot{
				Start:    cursor,
				End:      cursor.Add(w.SlotDurationMinutes),
				Capacity: w.Capacity(),
			})
		}
	}
	sort.SliceStable(slots, func(i, j int) bool { return slots[i].Start < slots[j].Start })
	return slots
}

// ExcludeBlocked drops every slot that intersects any exclusion. Slots are
// removed whole, never trimmed.
func ExcludeBlocked(slots []RawSlot, exclusions []TimeRange) []RawSlot {
	if len(exclusions) == 0 {
		return slots
	}
	kept := make([]RawSlot, 0, len(slots))
	for _, sl := range slots {
		blocked := false
		for _, ex := range exclusions {
			if ex.Overlaps(sl.Start, sl.End) {
				blocked = true
				break
			}
		}
		if !blocked {
			kept = append(kept, sl)
		}
	}
	return kept
}
