package scheduling

import (
	"testing"

	"github.com/google/uuid"

	"github.com/docbook/docbook/internal/platform/apperror"
	"github.com/docbook/docbook/internal/platform/auth"
)

func TestTransition_Table(t *testing.T) {
	patientID := uuid.New()
	doctorID := uuid.New()

	cases := []struct {
		name     string
		from     string
		to       string
		actor    auth.Actor
		wantKind apperror.Kind
		wantOK   bool
	}{
		{"patient cancels own booked", StatusBooked, StatusCancelled,
			auth.Actor{ID: patientID, Role: auth.RolePatient}, 0, true},
		{"doctor cancels own booked", StatusBooked, StatusCancelled,
			auth.Actor{ID: doctorID, Role: auth.RoleDoctor}, 0, true},
		{"admin cancels any booked", StatusBooked, StatusCancelled,
			auth.Actor{ID: uuid.New(), Role: auth.RoleAdmin}, 0, true},
		{"doctor completes own booked", StatusBooked, StatusCompleted,
			auth.Actor{ID: doctorID, Role: auth.RoleDoctor}, 0, true},
		{"patient cannot complete", StatusBooked, StatusCompleted,
			auth.Actor{ID: patientID, Role: auth.RolePatient}, apperror.KindForbidden, false},
		{"admin cannot complete", StatusBooked, StatusCompleted,
			auth.Actor{ID: uuid.New(), Role: auth.RoleAdmin}, apperror.KindForbidden, false},
		{"completed is terminal", StatusCompleted, StatusCancelled,
			auth.Actor{ID: uuid.New(), Role: auth.RoleAdmin}, apperror.KindState, false},
		{"cancelled is terminal", StatusCancelled, StatusCompleted,
			auth.Actor{ID: doctorID, Role: auth.RoleDoctor}, apperror.KindState, false},
		{"cancelled cannot rebook", StatusCancelled, StatusBooked,
			auth.Actor{ID: uuid.New(), Role: auth.RoleAdmin}, apperror.KindState, false},
		{"other patient forbidden", StatusBooked, StatusCancelled,
			auth.Actor{ID: uuid.New(), Role: auth.RolePatient}, apperror.KindForbidden, false},
		{"other doctor forbidden", StatusBooked, StatusCompleted,
			auth.Actor{ID: uuid.New(), Role: auth.RoleDoctor}, apperror.KindForbidden, false},
		{"unknown target status", StatusBooked, "archived",
			auth.Actor{ID: patientID, Role: auth.RolePatient}, apperror.KindValidation, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			appt := &Appointment{
				ID:        uuid.New(),
				PatientID: patientID,
				DoctorID:  doctorID,
				Status:    tc.from,
			}
			err := Transition(appt, tc.to, tc.actor)
			if tc.wantOK {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if appt.Status != tc.to {
					t.Errorf("expected status %s, got %s", tc.to, appt.Status)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error")
			}
			if !apperror.IsKind(err, tc.wantKind) {
				t.Errorf("expected kind %v, got %v", tc.wantKind, err)
			}
			if appt.Status != tc.from {
				t.Errorf("status must not change on failure, got %s", appt.Status)
			}
		})
	}
}
