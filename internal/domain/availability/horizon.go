package availability

import (
	"fmt"

	"cloud.google.com/go/civil"
)

// Horizon is the verdict of the advance-booking check.
type Horizon struct {
	Queryable bool
	Reason    string
}

// CheckHorizon accepts dates in [today, today+advanceDays], with today taken
// from the doctor's local calendar.
func CheckHorizon(date, today civil.Date, advanceDays int) Horizon {
	if date.Before(today) {
		return Horizon{Reason: "Date is in the past"}
	}
	if date.After(today.AddDays(advanceDays)) {
		return Horizon{Reason: fmt.Sprintf("Appointments can only be booked up to %d days in advance", advanceDays)}
	}
	return Horizon{Queryable: true}
}
