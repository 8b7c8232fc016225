package scheduling

import (
	"github.com/docbook/docbook/internal/platform/apperror"
	"github.com/docbook/docbook/internal/platform/auth"
)

// transitions maps a current status to the statuses reachable from it and
// the roles allowed to move there. Terminal states have no outgoing edges.
var transitions = map[string]map[string][]string{
	StatusBooked: {
		StatusCompleted: {auth.RoleDoctor},
		StatusCancelled: {auth.RolePatient, auth.RoleDoctor, auth.RoleAdmin},
	},
}

// Transition applies a status change to the appointment. It is the only
// place appointment status is written. Ownership is checked first: a
// patient may only act on their own appointments, a doctor on their own
// schedule, and admins on any.
func Transition(appt *Appointment, to string, actor auth.Actor) error {
	if !validStatuses[to] {
		return apperror.Validationf("unknown status %q", to)
	}
	if err := checkOwnership(appt, actor); err != nil {
		return err
	}

	allowed, ok := transitions[appt.Status][to]
	if !ok {
		return apperror.State("appointment is " + appt.Status + ", cannot mark " + to)
	}
	for _, role := range allowed {
		if actor.Role == role {
			appt.Status = to
			return nil
		}
	}
	return apperror.Forbidden(actor.Role + " cannot mark an appointment " + to)
}

func checkOwnership(appt *Appointment, actor auth.Actor) error {
	switch actor.Role {
	case auth.RoleAdmin:
		return nil
	case auth.RolePatient:
		if appt.PatientID != actor.ID {
			return apperror.Forbidden("not your appointment")
		}
	case auth.RoleDoctor:
		if appt.DoctorID != actor.ID {
			return apperror.Forbidden("not your appointment")
		}
	default:
		return apperror.Forbidden("unknown role")
	}
	return nil
}
