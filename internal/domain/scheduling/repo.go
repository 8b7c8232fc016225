package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SlotRepository defines the persistence interface for slots.
type SlotRepository interface {
	Create(ctx context.Context, s *Slot) error
	GetByID(ctx context.Context, id uuid.UUID) (*Slot, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// ListFree returns the doctor's slots from the given date onward that
	// have no booked or completed appointment, ordered by date then start.
	ListFree(ctx context.Context, doctorID uuid.UUID, from time.Time, limit, offset int) ([]*Slot, int, error)
	// ListByDoctor returns all of the doctor's slots regardless of booking
	// state, ordered by date then start.
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, from time.Time, limit, offset int) ([]*Slot, int, error)
	// HasOverlap reports whether the doctor already has a slot on the date
	// overlapping the [start, end) window.
	HasOverlap(ctx context.Context, doctorID uuid.UUID, date time.Time, start, end string) (bool, error)
}

// AppointmentRepository defines the persistence interface for appointments.
type AppointmentRepository interface {
	// Book inserts the appointment unless the slot already carries a
	// non-cancelled appointment. Losing a race over the same slot yields
	// a conflict error.
	Book(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// UpdateStatus moves the appointment from one status to another with a
	// conditional write. A concurrent transition that already moved the row
	// off the expected status yields a state error, so terminal states stay
	// terminal under racing requests.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to string, cancellationReason *string) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, status string, limit, offset int) ([]*AppointmentDetail, int, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, status string, limit, offset int) ([]*AppointmentDetail, int, error)
	ListAll(ctx context.Context, status string, limit, offset int) ([]*AppointmentDetail, int, error)
	// HasActiveForSlot reports whether the slot carries a booked or
	// completed appointment.
	HasActiveForSlot(ctx context.Context, slotID uuid.UUID) (bool, error)
}

// DoctorDirectory answers whether a user is an approved doctor. Implemented
// by the identity service.
type DoctorDirectory interface {
	IsApprovedDoctor(ctx context.Context, id uuid.UUID) (bool, error)
}
