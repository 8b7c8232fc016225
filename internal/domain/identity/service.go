package identity

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/docbook/docbook/internal/platform/apperror"
	"github.com/docbook/docbook/internal/platform/auth"
)

type Service struct {
	users    UserRepository
	doctors  DoctorRepository
	issuer   *auth.TokenIssuer
	inTx     TxRunner
	validate *validator.Validate
}

func NewService(users UserRepository, doctors DoctorRepository, issuer *auth.TokenIssuer, inTx TxRunner) *Service {
	return &Service{
		users:    users,
		doctors:  doctors,
		issuer:   issuer,
		inTx:     inTx,
		validate: validator.New(),
	}
}

// RegisterInput is the payload for account creation. Doctors must name a
// specialization and are created pending approval.
type RegisterInput struct {
	Email           string   `json:"email" validate:"required,email"`
	Password        string   `json:"password" validate:"required,min=8"`
	FullName        string   `json:"full_name" validate:"required,max=120"`
	Role            string   `json:"role" validate:"required,oneof=patient doctor"`
	Specialization  string   `json:"specialization" validate:"required_if=Role doctor,max=120"`
	Qualifications  []string `json:"qualifications" validate:"max=20,dive,max=200"`
	YearsExperience int      `json:"years_experience" validate:"min=0,max=80"`
	ConsultationFee float64  `json:"consultation_fee" validate:"min=0"`
	Bio             string   `json:"bio" validate:"max=2000"`
	PhotoURL        string   `json:"photo_url" validate:"omitempty,url"`
}

// LoginInput is the payload for credential exchange.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Session is returned on successful register or login.
type Session struct {
	Token   string         `json:"token"`
	User    *User          `json:"user"`
	Profile *DoctorProfile `json:"profile,omitempty"`
}

// UpdateAccountInput carries self-service profile edits. The profile fields
// only apply to doctor accounts.
type UpdateAccountInput struct {
	FullName        string   `json:"full_name" validate:"required,max=120"`
	Specialization  string   `json:"specialization" validate:"max=120"`
	Qualifications  []string `json:"qualifications" validate:"max=20,dive,max=200"`
	YearsExperience *int     `json:"years_experience" validate:"omitempty,min=0,max=80"`
	ConsultationFee *float64 `json:"consultation_fee" validate:"omitempty,min=0"`
	Bio             string   `json:"bio" validate:"max=2000"`
	PhotoURL        string   `json:"photo_url" validate:"omitempty,url"`
}

// Register creates a user account. Admin accounts cannot be self-registered.
// The user and doctor profile rows are written in one transaction.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, apperror.Validationf("invalid registration: %v", err)
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, apperror.Validationf("%v", err)
	}

	user := &User{
		Email:        in.Email,
		PasswordHash: hash,
		FullName:     in.FullName,
		Role:         in.Role,
	}

	var profile *DoctorProfile
	err = s.inTx(ctx, func(ctx context.Context) error {
		if err := s.users.Create(ctx, user); err != nil {
			return err
		}
		if in.Role == auth.RoleDoctor {
			profile = &DoctorProfile{
				UserID:          user.ID,
				Specialization:  in.Specialization,
				Qualifications:  in.Qualifications,
				YearsExperience: in.YearsExperience,
				ConsultationFee: in.ConsultationFee,
				ApprovalStatus:  ApprovalPending,
			}
			if in.Bio != "" {
				bio := in.Bio
				profile.Bio = &bio
			}
			if in.PhotoURL != "" {
				url := in.PhotoURL
				profile.PhotoURL = &url
			}
			return s.doctors.CreateProfile(ctx, profile)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.newSession(user, profile)
}

// Login exchanges credentials for a token. Lookup and password failures
// produce the same error so the endpoint does not leak which emails exist.
func (s *Service) Login(ctx context.Context, in LoginInput) (*Session, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, apperror.Validationf("invalid login: %v", err)
	}

	user, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		if apperror.IsKind(err, apperror.KindNotFound) {
			return nil, apperror.Unauthorized("invalid email or password")
		}
		return nil, err
	}
	if !auth.CheckPassword(user.PasswordHash, in.Password) {
		return nil, apperror.Unauthorized("invalid email or password")
	}

	profile, err := s.profileFor(ctx, user)
	if err != nil {
		return nil, err
	}
	return s.newSession(user, profile)
}

// CurrentUser returns the account behind the token, with the doctor
// profile attached for doctor accounts.
func (s *Service) CurrentUser(ctx context.Context, userID uuid.UUID) (*User, *DoctorProfile, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	profile, err := s.profileFor(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return user, profile, nil
}

// UpdateAccount applies self-service edits to the caller's own account.
func (s *Service) UpdateAccount(ctx context.Context, userID uuid.UUID, in UpdateAccountInput) (*User, *DoctorProfile, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, nil, apperror.Validationf("invalid update: %v", err)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	user.FullName = in.FullName
	if err := s.users.Update(ctx, user); err != nil {
		return nil, nil, err
	}

	if user.Role != auth.RoleDoctor {
		return user, nil, nil
	}

	profile, err := s.doctors.GetProfile(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	if in.Specialization != "" {
		profile.Specialization = in.Specialization
	}
	if in.Qualifications != nil {
		profile.Qualifications = in.Qualifications
	}
	if in.YearsExperience != nil {
		profile.YearsExperience = *in.YearsExperience
	}
	if in.ConsultationFee != nil {
		profile.ConsultationFee = *in.ConsultationFee
	}
	if in.Bio != "" {
		bio := in.Bio
		profile.Bio = &bio
	}
	if in.PhotoURL != "" {
		url := in.PhotoURL
		profile.PhotoURL = &url
	}
	if err := s.doctors.UpdateProfile(ctx, profile); err != nil {
		return nil, nil, err
	}
	return user, profile, nil
}

// ListDoctors returns approved doctors only, optionally narrowed by
// specialization and name search terms. Pending and rejected profiles never
// appear here regardless of who asks or what they search for.
func (s *Service) ListDoctors(ctx context.Context, specialization, name string, limit, offset int) ([]*Doctor, int, error) {
	return s.doctors.ListByApproval(ctx, ApprovalApproved, specialization, name, limit, offset)
}

// GetDoctor returns a single doctor. Unapproved doctors are reported as
// not found to keep them invisible outside the admin surface.
func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	d, err := s.doctors.GetDoctor(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.ApprovalStatus != ApprovalApproved {
		return nil, apperror.NotFound("doctor not found")
	}
	return d, nil
}

// -- Admin --

func (s *Service) ListUsers(ctx context.Context, role string, limit, offset int) ([]*User, int, error) {
	if role != "" && role != auth.RolePatient && role != auth.RoleDoctor && role != auth.RoleAdmin {
		return nil, 0, apperror.Validationf("unknown role %q", role)
	}
	return s.users.List(ctx, role, limit, offset)
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.users.GetByID(ctx, id)
}

// AdminUpdateUserInput carries admin edits to an account. Empty fields are
// left unchanged.
type AdminUpdateUserInput struct {
	FullName string `json:"full_name" validate:"omitempty,max=120"`
	Role     string `json:"role" validate:"omitempty,oneof=patient doctor admin"`
}

// UpdateUser applies admin edits. A role change to doctor does not create a
// profile; the account still needs one approved before doctor features work.
func (s *Service) UpdateUser(ctx context.Context, id uuid.UUID, in AdminUpdateUserInput) (*User, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, apperror.Validationf("invalid update: %v", err)
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.FullName != "" {
		user.FullName = in.FullName
	}
	if in.Role != "" {
		user.Role = in.Role
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// DeleteUser removes an account. Admins cannot delete themselves.
func (s *Service) DeleteUser(ctx context.Context, actorID, id uuid.UUID) error {
	if actorID == id {
		return apperror.Conflict("cannot delete own account")
	}
	return s.users.Delete(ctx, id)
}

// ListPendingDoctors returns profiles awaiting an approval decision.
func (s *Service) ListPendingDoctors(ctx context.Context, limit, offset int) ([]*Doctor, int, error) {
	return s.doctors.ListByApproval(ctx, ApprovalPending, "", "", limit, offset)
}

// ApproveDoctor marks a pending doctor approved.
func (s *Service) ApproveDoctor(ctx context.Context, id uuid.UUID) error {
	return s.decideDoctor(ctx, id, ApprovalApproved)
}

// RejectDoctor marks a pending doctor rejected.
func (s *Service) RejectDoctor(ctx context.Context, id uuid.UUID) error {
	return s.decideDoctor(ctx, id, ApprovalRejected)
}

// decideDoctor applies an approval decision. Only pending profiles can be
// decided; decisions are final.
func (s *Service) decideDoctor(ctx context.Context, id uuid.UUID, status string) error {
	if !validApprovals[status] {
		return apperror.Validationf("unknown approval status %q", status)
	}
	profile, err := s.doctors.GetProfile(ctx, id)
	if err != nil {
		return err
	}
	if profile.ApprovalStatus != ApprovalPending {
		return apperror.State("doctor profile is already " + profile.ApprovalStatus)
	}
	return s.doctors.SetApproval(ctx, id, status)
}

// IsApprovedDoctor reports whether the user holds an approved doctor
// profile. Used by the scheduling domain before exposing a doctor's slots.
func (s *Service) IsApprovedDoctor(ctx context.Context, id uuid.UUID) (bool, error) {
	profile, err := s.doctors.GetProfile(ctx, id)
	if err != nil {
		if apperror.IsKind(err, apperror.KindNotFound) {
			return false, nil
		}
		return false, err
	}
	return profile.ApprovalStatus == ApprovalApproved, nil
}

func (s *Service) profileFor(ctx context.Context, user *User) (*DoctorProfile, error) {
	if user.Role != auth.RoleDoctor {
		return nil, nil
	}
	return s.doctors.GetProfile(ctx, user.ID)
}

func (s *Service) newSession(user *User, profile *DoctorProfile) (*Session, error) {
	actor := auth.Actor{ID: user.ID, Role: user.Role}
	if profile != nil {
		actor.Approval = profile.ApprovalStatus
	}
	token, err := s.issuer.Issue(actor)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindInternal, "issue token", err)
	}
	return &Session{Token: token, User: user, Profile: profile}, nil
}
