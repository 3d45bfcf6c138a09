package patient

import (
	"time"

	"github.com/psiclinic/clinic/pkg/dates"
)

// Patient statuses.
const (
	StatusActive     = "ativo"
	StatusInactive   = "inativo"
	StatusDischarged = "alta"
)

var validStatuses = map[string]bool{
	StatusActive: true, StatusInactive: true, StatusDischarged: true,
}

// Patient maps to the patients table. UserID is the owning psychologist.
type Patient struct {
	ID               int64       `db:"id" json:"id"`
	UserID           int64       `db:"user_id" json:"userId"`
	Name             string      `db:"name" json:"name"`
	Email            *string     `db:"email" json:"email,omitempty"`
	Phone            *string     `db:"phone" json:"phone,omitempty"`
	BirthDate        *dates.Date `db:"birth_date" json:"birthDate,omitempty"`
	CPF              *string     `db:"cpf" json:"cpf,omitempty"`
	Address          *string     `db:"address" json:"address,omitempty"`
	EmergencyContact *string     `db:"emergency_contact" json:"emergencyContact,omitempty"`
	EmergencyPhone   *string     `db:"emergency_phone" json:"emergencyPhone,omitempty"`
	Notes            *string     `db:"notes" json:"notes,omitempty"`
	Status           string      `db:"status" json:"status"`
	CreatedAt        time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time   `db:"updated_at" json:"updatedAt"`
}

// ListFilter narrows GET /patients.
type ListFilter struct {
	Status string
	Search string
}

// Stats is the per-patient summary served by GET /patients/:id/stats.
type Stats struct {
	PatientID       int64      `json:"patientId"`
	TotalSessions   int        `json:"totalSessions"`
	AverageMood     *float64   `json:"averageMood"`
	LastSessionDate *time.Time `json:"lastSessionDate"`
	TotalPaid       float64    `json:"totalPaid"`
	PendingAmount   float64    `json:"pendingAmount"`
	NextAppointment *time.Time `json:"nextAppointment"`
}

// CascadeResult reports what a patient deletion removed.
type CascadeResult struct {
	DeletedSessions     int `json:"deletedSessions"`
	DeletedAppointments int `json:"deletedAppointments"`
	DeletedPayments     int `json:"deletedPayments"`
}

