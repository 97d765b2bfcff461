package availability

import (
	"strings"
	"testing"
)

func TestCheckHorizon(t *testing.T) {
	today := date("2026-10-18")
	tests := []struct {
		date      string
		queryable bool
		reason    string
	}{
		{"2026-10-17", false, "past"},
		{"2026-10-18", true, ""},
		{"2026-11-17", true, ""},
		{"2026-11-18", false, "30 days"},
	}
	for _, tt := range tests {
		h := CheckHorizon(date(tt.date), today, 30)
		if h.Queryable != tt.queryable {
			t.Errorf("%s: queryable = %v, want %v", tt.date, h.Queryable, tt.queryable)
		}
		if !strings.Contains(h.Reason, tt.reason) {
			t.Errorf("%s: reason %q does not mention %q", tt.date, h.Reason, tt.reason)
		}
	}
}

func TestCheckHorizon_SameDayOnly(t *testing.T) {
	today := date("2026-10-18")
	if !CheckHorizon(today, today, 0).Queryable {
		t.Error("today is always queryable")
	}
	if CheckHorizon(today.AddDays(1), today, 0).Queryable {
		t.Error("tomorrow is outside a zero-day horizon")
	}
}
