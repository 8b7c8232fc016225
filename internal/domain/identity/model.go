package identity

import (
	"time"

	"github.com/google/uuid"
)

// Approval states for a doctor profile. New doctor accounts start pending
// and stay invisible to patients until an administrator approves them.
const (
	ApprovalPending  = "pending"
	ApprovalApproved = "approved"
	ApprovalRejected = "rejected"
)

var validApprovals = map[string]bool{
	ApprovalPending:  true,
	ApprovalApproved: true,
	ApprovalRejected: true,
}

// User maps to the app_user table.
type User struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	FullName     string    `db:"full_name" json:"full_name"`
	Role         string    `db:"role" json:"role"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// DoctorProfile maps to the doctor_profile table, keyed by the owning user.
type DoctorProfile struct {
	UserID          uuid.UUID `db:"user_id" json:"user_id"`
	Specialization  string    `db:"specialization" json:"specialization"`
	Qualifications  []string  `db:"qualifications" json:"qualifications"`
	YearsExperience int       `db:"years_experience" json:"years_experience"`
	ConsultationFee float64   `db:"consultation_fee" json:"consultation_fee"`
	Bio             *string   `db:"bio" json:"bio,omitempty"`
	PhotoURL        *string   `db:"photo_url" json:"photo_url,omitempty"`
	ApprovalStatus  string    `db:"approval_status" json:"approval_status"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// Doctor is the read model returned by doctor listings, joining the user
// record with its profile.
type Doctor struct {
	ID              uuid.UUID `db:"id" json:"id"`
	FullName        string    `db:"full_name" json:"full_name"`
	Email           string    `db:"email" json:"email"`
	Specialization  string    `db:"specialization" json:"specialization"`
	Qualifications  []string  `db:"qualifications" json:"qualifications"`
	YearsExperience int       `db:"years_experience" json:"years_experience"`
	ConsultationFee float64   `db:"consultation_fee" json:"consultation_fee"`
	Bio             *string   `db:"bio" json:"bio,omitempty"`
	PhotoURL        *string   `db:"photo_url" json:"photo_url,omitempty"`
	ApprovalStatus  string    `db:"approval_status" json:"approval_status"`
}
