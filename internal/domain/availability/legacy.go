package availability

import "fmt"

// FlatDay is the older per-day schedule document: one time window per day
// with a patient cap instead of per-slot capacity.
type FlatDay struct {
	Day          string `json:"day"`
	StartTime    string `json:"startTime"`
	EndTime      string `json:"endTime"`
	SlotDuration int    `json:"slotDuration"`
	MaxPatients  int    `json:"maxPatients"`
	IsAvailable  bool   `json:"isAvailable"`
}

// FromFlatDays maps flat day documents onto the weekly model, one window per
// available day. Days not listed are non-working. maxPatients becomes the
// per-slot capacity and the buffer is zero.
func FromFlatDays(flat []FlatDay) (WeekDays, error) {
	var days WeekDays
	seen := make(map[int]bool, len(flat))
	for i, fd := range flat {
		field := fmt.Sprintf("days[%d]", i)
		wd, err := ParseWeekday(fd.Day)
		if err != nil {
			return days, invalid(field+".day", "%v", err)
		}
		if seen[int(wd)] {
			return days, invalid(field+".day", "%s listed more than once", wd)
		}
		seen[int(wd)] = true

		if !fd.IsAvailable {
			continue
		}
		start, err := ParseTimeOfDay(fd.StartTime)
		if err != nil {
			return days, invalid(field+".startTime", "%v", err)
		}
		end, err := ParseTimeOfDay(fd.EndTime)
		if err != nil {
			return days, invalid(field+".endTime", "%v", err)
		}
		days[wd] = DaySchedule{
			IsWorking: true,
			Windows: []WorkWindow{{
				StartTime:           start,
				EndTime:             end,
				SlotDurationMinutes: fd.SlotDuration,
				CapacityPerSlot:     fd.MaxPatients,
			}},
		}
	}
	return days, ValidateWeekDays(days)
}
