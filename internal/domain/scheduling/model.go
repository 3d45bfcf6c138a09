package scheduling

import (
	"time"

	"github.com/psiclinic/clinic/pkg/dates"
)

// Appointment statuses.
const (
	StatusScheduled = "agendado"
	StatusConfirmed = "confirmado"
	StatusCompleted = "realizado"
	StatusCancelled = "cancelado"
)

// transitions lists the statuses reachable from each status. realizado and
// cancelado are terminal.
var transitions = map[string][]string{
	StatusScheduled: {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusCancelled},
	StatusCompleted: nil,
	StatusCancelled: nil,
}

// ValidStatus reports whether s is a known appointment status.
func ValidStatus(s string) bool {
	_, ok := transitions[s]
	return ok
}

// CanTransition reports whether an appointment may move from one status to
// another. Staying in the same status is always allowed.
func CanTransition(from, to string) bool {
	if from == to {
		return ValidStatus(to)
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Appointment maps to the appointments table.
type Appointment struct {
	ID           int64     `db:"id" json:"id"`
	UserID       int64     `db:"user_id" json:"userId"`
	PatientID    int64     `db:"patient_id" json:"patientId"`
	PatientName  string    `db:"patient_name" json:"patientName,omitempty"`
	Date         time.Time `db:"date" json:"date"`
	Duration     int       `db:"duration" json:"duration"`
	Type         string    `db:"type" json:"type"`
	Status       string    `db:"status" json:"status"`
	Notes        *string   `db:"notes" json:"notes,omitempty"`
	ReminderSent bool      `db:"reminder_sent" json:"reminderSent"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

// End returns the instant the appointment finishes.
func (a *Appointment) End() time.Time {
	return a.Date.Add(time.Duration(a.Duration) * time.Minute)
}

// ListFilter narrows GET /appointments.
type ListFilter struct {
	PatientID *int64
	Status    string
	Range     dates.Range
}
