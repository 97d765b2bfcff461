package availability

// SlotAvailability is one entry of a resolved day.
type SlotAvailability struct {
	Time              TimeOfDay `json:"time"`
	EndTime           TimeOfDay `json:"end_time"`
	CapacityTotal     int       `json:"capacity_total"`
	CapacityRemaining int       `json:"capacity_remaining"`
	Bookable          bool      `json:"bookable"`
}

// Annotate applies occupying appointments to the candidate slots. An
// appointment counts against the slot whose [start, end) contains its time,
// so rows that are not aligned to a slot start still consume capacity.
// Appointments whose stored time cannot be parsed are returned separately.
func Annotate(slots []RawSlot, appts []Appointment) ([]SlotAvailability, []Appointment) {
	var (
		times    []TimeOfDay
		unplaced []Appointment
	)
	for _, a := range appts {
		if !a.Status.Occupying() {
			continue
		}
		t, err := ParseTimeOfDay(a.Time)
		if err != nil {
			unplaced = append(unplaced, a)
			continue
		}
		times = append(times, t)
	}

	out := make([]SlotAvailability, 0, len(slots))
	for _, sl := range slots {
		span := TimeRange{StartTime: sl.Start, EndTime: sl.End}
		occupied := 0
		for _, t := range times {
			if span.Contains(t) {
				occupied++
			}
		}
		remaining := sl.Capacity - occupied
		if remaining < 0 {
			remaining = 0
		}
		out = append(out, SlotAvailability{
			Time:              sl.Start,
			EndTime:           sl.End,
			CapacityTotal:     sl.Capacity,
			CapacityRemaining: remaining,
			Bookable:          remaining > 0,
		})
	}
	return out, unplaced
}
