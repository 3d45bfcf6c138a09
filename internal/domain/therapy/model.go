package therapy

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/psiclinic/clinic/pkg/dates"
)

// Modalities.
const (
	ModalityInPerson = "presencial"
	ModalityOnline   = "online"
)

// ValidModality reports whether m is a known session or appointment modality.
func ValidModality(m string) bool {
	return m == ModalityInPerson || m == ModalityOnline
}

// Duration and mood bounds.
const (
	MinDuration     = 15
	MaxDuration     = 180
	DefaultDuration = 50
	MinMood         = 1
	MaxMood         = 10
)

// ValidDuration reports whether minutes is within the accepted session length.
func ValidDuration(minutes int) bool {
	return minutes >= MinDuration && minutes <= MaxDuration
}

// Session maps to the sessions table.
type Session struct {
	ID          int64     `db:"id" json:"id"`
	UserID      int64     `db:"user_id" json:"userId"`
	PatientID   int64     `db:"patient_id" json:"patientId"`
	PatientName string    `db:"patient_name" json:"patientName,omitempty"`
	Date        time.Time `db:"date" json:"date"`
	Duration    int       `db:"duration" json:"duration"`
	Modality    string    `db:"modality" json:"modality"`
	Mood        *int      `db:"mood" json:"mood,omitempty"`
	Notes       *string   `db:"notes" json:"notes,omitempty"`
	Objectives  TextList  `db:"objectives" json:"objectives"`
	Techniques  TextList  `db:"techniques" json:"techniques"`
	Attachments TextList  `db:"attachments" json:"attachments"`
	NextSteps   *string   `db:"next_steps" json:"nextSteps,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

// ListFilter narrows GET /sessions.
type ListFilter struct {
	PatientID *int64
	Range     dates.Range
}

// TextList is a list of strings stored as a JSONB array.
type TextList []string

// MarshalJSON renders a nil list as [].
func (l TextList) MarshalJSON() ([]byte, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(l))
}

func (l TextList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(l))
}

func (l *TextList) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*l = TextList{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("therapy: cannot scan %T into TextList", src)
	}
	var items []string
	if err := json.Unmarshal(raw, &items); err != nil {
		return fmt.Errorf("therapy: decode text list: %w", err)
	}
	if items == nil {
		items = []string{}
	}
	*l = items
	return nil
}
