package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/docbook/docbook/internal/platform/apperror"
	"github.com/docbook/docbook/internal/platform/db"
)

// -- User Repository --

type userRepoPG struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) UserRepository {
	return &userRepoPG{pool: pool}
}

func (r *userRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *userRepoPG) Create(ctx context.Context, u *User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO app_user (id, email, password_hash, full_name, role)
		VALUES ($1, $2, $3, $4, $5)`,
		u.ID, u.Email, u.PasswordHash, u.FullName, u.Role,
	)
	if isUniqueViolation(err) {
		return apperror.Conflict("email already registered")
	}
	return err
}

func (r *userRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.scanUser(r.conn(ctx).QueryRow(ctx,
		`SELECT `+userColumns+` FROM app_user WHERE id = $1`, id))
}

func (r *userRepoPG) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.scanUser(r.conn(ctx).QueryRow(ctx,
		`SELECT `+userColumns+` FROM app_user WHERE lower(email) = lower($1)`, email))
}

func (r *userRepoPG) Update(ctx context.Context, u *User) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE app_user SET email = $2, full_name = $3, role = $4, updated_at = NOW()
		WHERE id = $1`,
		u.ID, u.Email, u.FullName, u.Role,
	)
	if isUniqueViolation(err) {
		return apperror.Conflict("email already registered")
	}
	return err
}

func (r *userRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM app_user WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("user not found")
	}
	return nil
}

func (r *userRepoPG) List(ctx context.Context, role string, limit, offset int) ([]*User, int, error) {
	where := ""
	args := []interface{}{}
	if role != "" {
		where = ` WHERE role = $1`
		args = append(args, role)
	}

	var total int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM app_user`+where, args...).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM app_user%s ORDER BY created_at LIMIT $%d OFFSET $%d`,
		userColumns, where, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := r.scanUserRow(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, u)
	}
	return users, total, nil
}

const userColumns = `id, email, password_hash, full_name, role, created_at, updated_at`

func (r *userRepoPG) scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("user not found")
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepoPG) scanUserRow(rows pgx.Rows) (*User, error) {
	var u User
	err := rows.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// -- Doctor Repository --

type doctorRepoPG struct {
	pool *pgxpool.Pool
}

func NewDoctorRepo(pool *pgxpool.Pool) DoctorRepository {
	return &doctorRepoPG{pool: pool}
}

func (r *doctorRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *doctorRepoPG) CreateProfile(ctx context.Context, p *DoctorProfile) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO doctor_profile (user_id, specialization, qualifications, years_experience, consultation_fee, bio, photo_url, approval_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.UserID, p.Specialization, p.Qualifications, p.YearsExperience, p.ConsultationFee, p.Bio, p.PhotoURL, p.ApprovalStatus,
	)
	if isUniqueViolation(err) {
		return apperror.Conflict("doctor profile already exists")
	}
	return err
}

func (r *doctorRepoPG) GetProfile(ctx context.Context, userID uuid.UUID) (*DoctorProfile, error) {
	var p DoctorProfile
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT user_id, specialization, qualifications, years_experience, consultation_fee, bio, photo_url, approval_status, created_at, updated_at
		FROM doctor_profile WHERE user_id = $1`, userID).Scan(
		&p.UserID, &p.Specialization, &p.Qualifications, &p.YearsExperience, &p.ConsultationFee,
		&p.Bio, &p.PhotoURL, &p.ApprovalStatus, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("doctor profile not found")
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *doctorRepoPG) UpdateProfile(ctx context.Context, p *DoctorProfile) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE doctor_profile SET specialization = $2, qualifications = $3, years_experience = $4,
			consultation_fee = $5, bio = $6, photo_url = $7, updated_at = NOW()
		WHERE user_id = $1`,
		p.UserID, p.Specialization, p.Qualifications, p.YearsExperience, p.ConsultationFee, p.Bio, p.PhotoURL,
	)
	return err
}

// SetApproval decides a pending profile with a conditional write. Racing
// decisions cannot overwrite each other; the loser learns the final status.
func (r *doctorRepoPG) SetApproval(ctx context.Context, userID uuid.UUID, status string) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE doctor_profile SET approval_status = $2, updated_at = NOW()
		WHERE user_id = $1 AND approval_status = 'pending'`, userID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var current string
		err := r.conn(ctx).QueryRow(ctx,
			`SELECT approval_status FROM doctor_profile WHERE user_id = $1`, userID).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return apperror.NotFound("doctor profile not found")
		}
		if err != nil {
			return err
		}
		return apperror.State("doctor profile is already " + current)
	}
	return nil
}

func (r *doctorRepoPG) ListByApproval(ctx context.Context, status, specialization, name string, limit, offset int) ([]*Doctor, int, error) {
	where := ` WHERE dp.approval_status = $1`
	args := []interface{}{status}
	if specialization != "" {
		where += fmt.Sprintf(` AND dp.specialization ILIKE $%d`, len(args)+1)
		args = append(args, "%"+specialization+"%")
	}
	if name != "" {
		where += fmt.Sprintf(` AND u.full_name ILIKE $%d`, len(args)+1)
		args = append(args, "%"+name+"%")
	}

	var total int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*)
		FROM doctor_profile dp
		JOIN app_user u ON u.id = dp.user_id`+where, args...).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
		SELECT `+doctorColumns+`
		FROM doctor_profile dp
		JOIN app_user u ON u.id = dp.user_id%s
		ORDER BY u.full_name LIMIT $%d OFFSET $%d`, where, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var doctors []*Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, 0, err
		}
		doctors = append(doctors, d)
	}
	return doctors, total, nil
}

func (r *doctorRepoPG) GetDoctor(ctx context.Context, userID uuid.UUID) (*Doctor, error) {
	d, err := scanDoctor(r.conn(ctx).QueryRow(ctx, `
		SELECT `+doctorColumns+`
		FROM doctor_profile dp
		JOIN app_user u ON u.id = dp.user_id
		WHERE u.id = $1`, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("doctor not found")
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

const doctorColumns = `u.id, u.full_name, u.email, dp.specialization, dp.qualifications,
	dp.years_experience, dp.consultation_fee, dp.bio, dp.photo_url, dp.approval_status`

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(&d.ID, &d.FullName, &d.Email, &d.Specialization, &d.Qualifications,
		&d.YearsExperience, &d.ConsultationFee, &d.Bio, &d.PhotoURL, &d.ApprovalStatus)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// queryable abstracts pgxpool.Pool and pgx.Tx.
type queryable interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
