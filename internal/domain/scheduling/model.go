package scheduling

import (
	"time"

	"github.com/google/uuid"
)

// Appointment lifecycle states. Completed and cancelled are terminal.
const (
	StatusBooked    = "booked"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

var validStatuses = map[string]bool{
	StatusBooked:    true,
	StatusCompleted: true,
	StatusCancelled: true,
}

// TimeLayout is the wire format for slot times.
const TimeLayout = "15:04"

// DateLayout is the wire format for slot dates.
const DateLayout = "2006-01-02"

// Slot maps to the slot table. A slot is a bookable window published by a
// doctor; times are clock times on SlotDate in server-local time.
type Slot struct {
	ID        uuid.UUID `db:"id" json:"id"`
	DoctorID  uuid.UUID `db:"doctor_id" json:"doctor_id"`
	SlotDate  time.Time `db:"slot_date" json:"slot_date"`
	StartTime string    `db:"start_time" json:"start_time"`
	EndTime   string    `db:"end_time" json:"end_time"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// StartsAt combines the slot date and start time.
func (s *Slot) StartsAt() time.Time {
	t, _ := time.ParseInLocation(TimeLayout, s.StartTime, time.Local)
	d := s.SlotDate
	return time.Date(d.Year(), d.Month(), d.Day(), t.Hour(), t.Minute(), 0, 0, time.Local)
}

// Appointment maps to the appointment table. Status only changes through
// Transition.
type Appointment struct {
	ID                 uuid.UUID `db:"id" json:"id"`
	SlotID             uuid.UUID `db:"slot_id" json:"slot_id"`
	PatientID          uuid.UUID `db:"patient_id" json:"patient_id"`
	DoctorID           uuid.UUID `db:"doctor_id" json:"doctor_id"`
	Status             string    `db:"status" json:"status"`
	Reason             *string   `db:"reason" json:"reason,omitempty"`
	CancellationReason *string   `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

// AppointmentDetail is the read model for appointment listings, joining
// the slot window and participant names.
type AppointmentDetail struct {
	Appointment
	PatientName string    `db:"patient_name" json:"patient_name"`
	DoctorName  string    `db:"doctor_name" json:"doctor_name"`
	SlotDate    time.Time `db:"slot_date" json:"slot_date"`
	StartTime   string    `db:"start_time" json:"start_time"`
	EndTime     string    `db:"end_time" json:"end_time"`
}
