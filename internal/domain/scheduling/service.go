package scheduling

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/docbook/docbook/internal/platform/apperror"
	"github.com/docbook/docbook/internal/platform/auth"
)

type Service struct {
	slots    SlotRepository
	appts    AppointmentRepository
	doctors  DoctorDirectory
	validate *validator.Validate
	now      func() time.Time
}

func NewService(slots SlotRepository, appts AppointmentRepository, doctors DoctorDirectory) *Service {
	return &Service{
		slots:    slots,
		appts:    appts,
		doctors:  doctors,
		validate: validator.New(),
		now:      time.Now,
	}
}

// CreateSlotInput is the payload for publishing a slot.
type CreateSlotInput struct {
	SlotDate  string `json:"slot_date" validate:"required,datetime=2006-01-02"`
	StartTime string `json:"start_time" validate:"required,datetime=15:04"`
	EndTime   string `json:"end_time" validate:"required,datetime=15:04"`
}

// BookInput is the payload for booking an appointment.
type BookInput struct {
	SlotID uuid.UUID `json:"slot_id" validate:"required"`
	Reason string    `json:"reason" validate:"max=500"`
}

// CancelInput is the optional payload for cancelling an appointment.
type CancelInput struct {
	Reason string `json:"reason" validate:"max=500"`
}

// CreateSlot publishes a bookable slot for the acting doctor. Only approved
// doctors can publish; the window must lie in the future, end after it
// starts, and not overlap another of the doctor's slots.
func (s *Service) CreateSlot(ctx context.Context, actor auth.Actor, in CreateSlotInput) (*Slot, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, apperror.Validationf("invalid slot: %v", err)
	}
	if in.StartTime >= in.EndTime {
		return nil, apperror.Validationf("start_time must be before end_time")
	}

	approved, err := s.doctors.IsApprovedDoctor(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	if !approved {
		return nil, apperror.Forbidden("doctor is not approved")
	}

	date, err := time.ParseInLocation(DateLayout, in.SlotDate, time.Local)
	if err != nil {
		return nil, apperror.Validationf("invalid slot_date: %v", err)
	}

	slot := &Slot{
		DoctorID:  actor.ID,
		SlotDate:  date,
		StartTime: in.StartTime,
		EndTime:   in.EndTime,
	}
	if !slot.StartsAt().After(s.now()) {
		return nil, apperror.Validationf("slot must be in the future")
	}

	overlap, err := s.slots.HasOverlap(ctx, actor.ID, date, in.StartTime, in.EndTime)
	if err != nil {
		return nil, err
	}
	if overlap {
		return nil, apperror.Conflict("slot overlaps an existing slot")
	}

	if err := s.slots.Create(ctx, slot); err != nil {
		return nil, err
	}
	return slot, nil
}

// ListFreeSlots returns a doctor's unbooked future slots. Doctors that are
// not approved are reported as not found.
func (s *Service) ListFreeSlots(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Slot, int, error) {
	approved, err := s.doctors.IsApprovedDoctor(ctx, doctorID)
	if err != nil {
		return nil, 0, err
	}
	if !approved {
		return nil, 0, apperror.NotFound("doctor not found")
	}
	return s.slots.ListFree(ctx, doctorID, s.today(), limit, offset)
}

// MySlots returns the acting doctor's own slots, booked or not.
func (s *Service) MySlots(ctx context.Context, actor auth.Actor, limit, offset int) ([]*Slot, int, error) {
	return s.slots.ListByDoctor(ctx, actor.ID, s.today(), limit, offset)
}

// DeleteSlot removes an unbooked slot. Only the owning doctor may delete;
// admins manage users and approvals, not schedules.
func (s *Service) DeleteSlot(ctx context.Context, actor auth.Actor, id uuid.UUID) error {
	slot, err := s.slots.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if slot.DoctorID != actor.ID {
		return apperror.Forbidden("not your slot")
	}

	active, err := s.appts.HasActiveForSlot(ctx, id)
	if err != nil {
		return err
	}
	if active {
		return apperror.Conflict("slot has an active appointment")
	}
	return s.slots.Delete(ctx, id)
}

// Book creates an appointment on a free slot for the acting patient. The
// storage layer settles concurrent attempts on the same slot; exactly one
// wins and the rest get a conflict.
func (s *Service) Book(ctx context.Context, actor auth.Actor, in BookInput) (*Appointment, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, apperror.Validationf("invalid booking: %v", err)
	}

	slot, err := s.slots.GetByID(ctx, in.SlotID)
	if err != nil {
		return nil, err
	}
	if !slot.StartsAt().After(s.now()) {
		return nil, apperror.Validationf("slot is in the past")
	}

	approved, err := s.doctors.IsApprovedDoctor(ctx, slot.DoctorID)
	if err != nil {
		return nil, err
	}
	if !approved {
		return nil, apperror.NotFound("doctor not found")
	}

	appt := &Appointment{
		SlotID:    slot.ID,
		PatientID: actor.ID,
		DoctorID:  slot.DoctorID,
	}
	if in.Reason != "" {
		reason := in.Reason
		appt.Reason = &reason
	}
	if err := s.appts.Book(ctx, appt); err != nil {
		return nil, err
	}
	return appt, nil
}

// Cancel moves an appointment to cancelled, optionally recording why.
// Patients and doctors cancel their own, admins any. The freed slot becomes
// bookable again.
func (s *Service) Cancel(ctx context.Context, actor auth.Actor, id uuid.UUID, in CancelInput) (*Appointment, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, apperror.Validationf("invalid cancellation: %v", err)
	}
	var reason *string
	if in.Reason != "" {
		r := in.Reason
		reason = &r
	}
	return s.transition(ctx, actor, id, StatusCancelled, reason)
}

// Complete marks a booked appointment completed. Doctors only, and only on
// their own schedule.
func (s *Service) Complete(ctx context.Context, actor auth.Actor, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, actor, id, StatusCompleted, nil)
}

// transition re-checks the rules against the loaded row, then hands the
// final word to the storage layer: the conditional write loses to any
// concurrent transition that committed first.
func (s *Service) transition(ctx context.Context, actor auth.Actor, id uuid.UUID, to string, cancellationReason *string) (*Appointment, error) {
	appt, err := s.appts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	from := appt.Status
	if err := Transition(appt, to, actor); err != nil {
		return nil, err
	}
	if err := s.appts.UpdateStatus(ctx, id, from, appt.Status, cancellationReason); err != nil {
		return nil, err
	}
	if cancellationReason != nil {
		appt.CancellationReason = cancellationReason
	}
	return appt, nil
}

// GetAppointment returns a single appointment, restricted to its
// participants and admins.
func (s *Service) GetAppointment(ctx context.Context, actor auth.Actor, id uuid.UUID) (*Appointment, error) {
	appt, err := s.appts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkOwnership(appt, actor); err != nil {
		return nil, err
	}
	return appt, nil
}

// ListAppointments returns appointments scoped by role: patients see their
// own, doctors their schedule, admins everything.
func (s *Service) ListAppointments(ctx context.Context, actor auth.Actor, status string, limit, offset int) ([]*AppointmentDetail, int, error) {
	if status != "" && !validStatuses[status] {
		return nil, 0, apperror.Validationf("unknown status %q", status)
	}
	switch actor.Role {
	case auth.RolePatient:
		return s.appts.ListByPatient(ctx, actor.ID, status, limit, offset)
	case auth.RoleDoctor:
		return s.appts.ListByDoctor(ctx, actor.ID, status, limit, offset)
	case auth.RoleAdmin:
		return s.appts.ListAll(ctx, status, limit, offset)
	}
	return nil, 0, apperror.Forbidden("unknown role")
}

func (s *Service) today() time.Time {
	now := s.now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local)
}
