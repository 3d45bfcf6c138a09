package scheduling

import (
	"testing"
	"time"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{StatusScheduled, StatusConfirmed, true},
		{StatusScheduled, StatusCancelled, true},
		{StatusConfirmed, StatusCompleted, true},
		{StatusConfirmed, StatusCancelled, true},
		{StatusScheduled, StatusScheduled, true},
		{StatusScheduled, StatusCompleted, false},
		{StatusConfirmed, StatusScheduled, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusCancelled, StatusScheduled, false},
		{StatusCancelled, StatusCancelled, true},
		{"bogus", "bogus", false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestAppointment_End(t *testing.T) {
	a := Appointment{Date: time.Date(2025, 1, 10, 10, 0, 0, 0, time.UTC), Duration: 50}
	if want := time.Date(2025, 1, 10, 10, 50, 0, 0, time.UTC); !a.End().Equal(want) {
		t.Errorf("End() = %v, want %v", a.End(), want)
	}
}
