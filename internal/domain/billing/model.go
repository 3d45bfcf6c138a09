package billing

import (
	"time"

	"github.com/psiclinic/clinic/pkg/dates"
)

// Payment statuses.
const (
	StatusPending = "pendente"
	StatusPaid    = "pago"
	StatusOverdue = "atrasado"
)

var validStatuses = map[string]bool{
	StatusPending: true, StatusPaid: true, StatusOverdue: true,
}

// Payment methods.
const (
	MethodCash     = "dinheiro"
	MethodPix      = "pix"
	MethodCredit   = "cartao_credito"
	MethodDebit    = "cartao_debito"
	MethodTransfer = "transferencia"
)

var validMethods = map[string]bool{
	MethodCash: true, MethodPix: true, MethodCredit: true, MethodDebit: true, MethodTransfer: true,
}

// Payment maps to the payments table.
type Payment struct {
	ID          int64       `db:"id" json:"id"`
	UserID      int64       `db:"user_id" json:"userId"`
	PatientID   int64       `db:"patient_id" json:"patientId"`
	PatientName string      `db:"patient_name" json:"patientName,omitempty"`
	SessionID   *int64      `db:"session_id" json:"sessionId"`
	Amount      float64     `db:"amount" json:"amount"`
	Method      string      `db:"method" json:"method"`
	Status      string      `db:"status" json:"status"`
	DueDate     *dates.Date `db:"due_date" json:"dueDate,omitempty"`
	PaidAt      *time.Time  `db:"paid_at" json:"paidAt,omitempty"`
	Description *string     `db:"description" json:"description,omitempty"`
	CreatedAt   time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time   `db:"updated_at" json:"updatedAt"`
}

// ListFilter narrows GET /payments and GET /payments/stats/summary.
type ListFilter struct {
	PatientID *int64
	Status    string
	Method    string
	Range     dates.Range
}

// StatusTotal is the count and sum of payments in one status.
type StatusTotal struct {
	Count  int     `json:"count"`
	Amount float64 `json:"amount"`
}

// Summary is served by GET /payments/stats/summary.
type Summary struct {
	Total   StatusTotal `json:"total"`
	Paid    StatusTotal `json:"paid"`
	Pending StatusTotal `json:"pending"`
	Overdue StatusTotal `json:"overdue"`
}
