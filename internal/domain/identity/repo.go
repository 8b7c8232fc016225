package identity

import (
	"context"

	"github.com/google/uuid"
)

// UserRepository defines the persistence interface for user accounts.
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, u *User) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, role string, limit, offset int) ([]*User, int, error)
}

// DoctorRepository defines the persistence interface for doctor profiles
// and the joined doctor read model.
type DoctorRepository interface {
	CreateProfile(ctx context.Context, p *DoctorProfile) error
	GetProfile(ctx context.Context, userID uuid.UUID) (*DoctorProfile, error)
	UpdateProfile(ctx context.Context, p *DoctorProfile) error
	// SetApproval decides a pending profile. Profiles already decided are
	// left untouched and yield a state error, even under racing decisions.
	SetApproval(ctx context.Context, userID uuid.UUID, status string) error
	// ListByApproval filters by approval status, with optional case
	// insensitive specialization and name search terms.
	ListByApproval(ctx context.Context, status, specialization, name string, limit, offset int) ([]*Doctor, int, error)
	GetDoctor(ctx context.Context, userID uuid.UUID) (*Doctor, error)
}

// TxRunner executes fn inside a storage transaction. Repository calls made
// from fn share the transaction.
type TxRunner func(ctx context.Context, fn func(context.Context) error) error
