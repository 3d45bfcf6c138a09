package reporting

import (
	"math"

	"github.com/psiclinic/clinic/pkg/dates"
)

// Filter bounds a report to an inclusive time window.
type Filter struct {
	Range dates.Range
}

// MoneyTotal is a count of payments and their summed amount.
type MoneyTotal struct {
	Count  int     `json:"count"`
	Amount float64 `json:"amount"`
}

// StatusAmount is a MoneyTotal for one payment status.
type StatusAmount struct {
	Status string `json:"status"`
	MoneyTotal
}

// MethodTotal is a MoneyTotal for one payment method.
type MethodTotal struct {
	Method string `json:"method"`
	MoneyTotal
}

// MonthlyRevenue is the paid amount in one calendar month (YYYY-MM).
type MonthlyRevenue struct {
	Month string `json:"month"`
	MoneyTotal
}

type FinancialReport struct {
	Total          MoneyTotal       `json:"total"`
	Paid           MoneyTotal       `json:"paid"`
	Pending        MoneyTotal       `json:"pending"`
	Overdue        MoneyTotal       `json:"overdue"`
	ByMethod       []MethodTotal    `json:"byMethod"`
	MonthlyRevenue []MonthlyRevenue `json:"monthlyRevenue"`
}

// StatusCount counts rows in one status.
type StatusCount struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

// PatientSessions is the number of sessions recorded for one patient.
type PatientSessions struct {
	PatientID int64  `json:"patientId"`
	Name      string `json:"name"`
	Sessions  int    `json:"sessions"`
}

// MonthlyCount counts rows in one calendar month (YYYY-MM).
type MonthlyCount struct {
	Month string `json:"month"`
	Count int    `json:"count"`
}

type PatientsReport struct {
	Total              int               `json:"total"`
	ByStatus           []StatusCount     `json:"byStatus"`
	SessionsPerPatient []PatientSessions `json:"sessionsPerPatient"`
	NewByMonth         []MonthlyCount    `json:"newByMonth"`
}

// SessionStats aggregates a group of sessions. AverageMood is nil when no
// session in the group recorded a mood.
type SessionStats struct {
	Count           int      `json:"count"`
	AverageMood     *float64 `json:"averageMood"`
	AverageDuration float64  `json:"averageDuration"`
}

type ModalityStats struct {
	Modality string `json:"modality"`
	SessionStats
}

type MonthlySessions struct {
	Month string `json:"month"`
	SessionStats
}

type SessionsReport struct {
	SessionStats
	ByModality []ModalityStats   `json:"byModality"`
	Monthly    []MonthlySessions `json:"monthly"`
}

type AppointmentsReport struct {
	Total          int           `json:"total"`
	ByStatus       []StatusCount `json:"byStatus"`
	AttendanceRate float64       `json:"attendanceRate"`
}

type Dashboard struct {
	ActivePatients       int     `json:"activePatients"`
	SessionsThisMonth    int     `json:"sessionsThisMonth"`
	AppointmentsToday    int     `json:"appointmentsToday"`
	UpcomingAppointments int     `json:"upcomingAppointments"`
	RevenueThisMonth     float64 `json:"revenueThisMonth"`
	PendingAmount        float64 `json:"pendingAmount"`
	OverdueAmount        float64 `json:"overdueAmount"`
}

// AttendanceRate is completed/total as a percentage rounded to two
// decimals, or 0 when there is nothing to attend.
func AttendanceRate(completed, total int) float64 {
	if total == 0 {
		return 0
	}
	return round2(float64(completed) / float64(total) * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round2Ptr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	r := round2(*v)
	return &r
}
