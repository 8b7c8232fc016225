package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/docbook/docbook/internal/platform/apperror"
	"github.com/docbook/docbook/internal/platform/db"
)

// -- Slot Repository --

type slotRepoPG struct {
	pool *pgxpool.Pool
}

func NewSlotRepo(pool *pgxpool.Pool) SlotRepository {
	return &slotRepoPG{pool: pool}
}

func (r *slotRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const slotColumns = `id, doctor_id, slot_date, start_time, end_time, created_at`

func (r *slotRepoPG) Create(ctx context.Context, s *Slot) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO slot (id, doctor_id, slot_date, start_time, end_time)
		VALUES ($1, $2, $3, $4, $5)`,
		s.ID, s.DoctorID, s.SlotDate, s.StartTime, s.EndTime,
	)
	if isUniqueViolation(err) {
		return apperror.Conflict("slot already exists at this time")
	}
	return err
}

func (r *slotRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Slot, error) {
	var s Slot
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT `+slotColumns+` FROM slot WHERE id = $1`, id).Scan(
		&s.ID, &s.DoctorID, &s.SlotDate, &s.StartTime, &s.EndTime, &s.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("slot not found")
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *slotRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM slot WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("slot not found")
	}
	return nil
}

func (r *slotRepoPG) ListFree(ctx context.Context, doctorID uuid.UUID, from time.Time, limit, offset int) ([]*Slot, int, error) {
	where := ` WHERE s.doctor_id = $1 AND s.slot_date >= $2
		AND NOT EXISTS (
			SELECT 1 FROM appointment a
			WHERE a.slot_id = s.id AND a.status <> 'cancelled'
		)`
	return r.list(ctx, where, doctorID, from, limit, offset)
}

func (r *slotRepoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID, from time.Time, limit, offset int) ([]*Slot, int, error) {
	return r.list(ctx, ` WHERE s.doctor_id = $1 AND s.slot_date >= $2`, doctorID, from, limit, offset)
}

func (r *slotRepoPG) list(ctx context.Context, where string, doctorID uuid.UUID, from time.Time, limit, offset int) ([]*Slot, int, error) {
	var total int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM slot s`+where, doctorID, from).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
		SELECT s.id, s.doctor_id, s.slot_date, s.start_time, s.end_time, s.created_at
		FROM slot s%s
		ORDER BY s.slot_date, s.start_time LIMIT $3 OFFSET $4`, where)

	rows, err := r.conn(ctx).Query(ctx, query, doctorID, from, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var slots []*Slot
	for rows.Next() {
		var s Slot
		if err := rows.Scan(&s.ID, &s.DoctorID, &s.SlotDate, &s.StartTime, &s.EndTime, &s.CreatedAt); err != nil {
			return nil, 0, err
		}
		slots = append(slots, &s)
	}
	return slots, total, nil
}

func (r *slotRepoPG) HasOverlap(ctx context.Context, doctorID uuid.UUID, date time.Time, start, end string) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM slot
			WHERE doctor_id = $1 AND slot_date = $2
			  AND start_time < $4 AND end_time > $3
		)`, doctorID, date, start, end).Scan(&exists)
	return exists, err
}

// -- Appointment Repository --

type apptRepoPG struct {
	pool *pgxpool.Pool
}

func NewAppointmentRepo(pool *pgxpool.Pool) AppointmentRepository {
	return &apptRepoPG{pool: pool}
}

func (r *apptRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

// Book races are settled by the database: the guarded insert plus the
// partial unique index on appointment(slot_id) for non-cancelled rows
// guarantee at most one active appointment per slot.
func (r *apptRepoPG) Book(ctx context.Context, a *Appointment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.Status = StatusBooked

	tag, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO appointment (id, slot_id, patient_id, doctor_id, status, reason)
		SELECT $1, $2, $3, $4, 'booked', $5
		WHERE NOT EXISTS (
			SELECT 1 FROM appointment
			WHERE slot_id = $2 AND status <> 'cancelled'
		)`,
		a.ID, a.SlotID, a.PatientID, a.DoctorID, a.Reason,
	)
	if isUniqueViolation(err) {
		return apperror.Conflict("slot is already booked")
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperror.Conflict("slot is already booked")
	}
	return nil
}

const apptColumns = `id, slot_id, patient_id, doctor_id, status, reason, cancellation_reason, created_at, updated_at`

func (r *apptRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	var a Appointment
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT `+apptColumns+` FROM appointment WHERE id = $1`, id).Scan(
		&a.ID, &a.SlotID, &a.PatientID, &a.DoctorID, &a.Status, &a.Reason, &a.CancellationReason, &a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("appointment not found")
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// UpdateStatus only writes when the row still holds the expected status.
// A zero-row update means a concurrent transition got there first; the
// current status decides the error.
func (r *apptRepoPG) UpdateStatus(ctx context.Context, id uuid.UUID, from, to string, cancellationReason *string) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointment
		SET status = $3, cancellation_reason = COALESCE($4, cancellation_reason), updated_at = NOW()
		WHERE id = $1 AND status = $2`,
		id, from, to, cancellationReason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var current string
		err := r.conn(ctx).QueryRow(ctx,
			`SELECT status FROM appointment WHERE id = $1`, id).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return apperror.NotFound("appointment not found")
		}
		if err != nil {
			return err
		}
		return apperror.State("appointment is already " + current)
	}
	return nil
}

func (r *apptRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, status string, limit, offset int) ([]*AppointmentDetail, int, error) {
	return r.listDetail(ctx, `a.patient_id = $1`, patientID, status, limit, offset)
}

func (r *apptRepoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID, status string, limit, offset int) ([]*AppointmentDetail, int, error) {
	return r.listDetail(ctx, `a.doctor_id = $1`, doctorID, status, limit, offset)
}

func (r *apptRepoPG) ListAll(ctx context.Context, status string, limit, offset int) ([]*AppointmentDetail, int, error) {
	where := ``
	args := []interface{}{}
	if status != "" {
		where = ` WHERE a.status = $1`
		args = append(args, status)
	}
	return r.queryDetail(ctx, where, args, limit, offset)
}

func (r *apptRepoPG) listDetail(ctx context.Context, ownerClause string, ownerID uuid.UUID, status string, limit, offset int) ([]*AppointmentDetail, int, error) {
	where := ` WHERE ` + ownerClause
	args := []interface{}{ownerID}
	if status != "" {
		where += fmt.Sprintf(` AND a.status = $%d`, len(args)+1)
		args = append(args, status)
	}
	return r.queryDetail(ctx, where, args, limit, offset)
}

func (r *apptRepoPG) queryDetail(ctx context.Context, where string, args []interface{}, limit, offset int) ([]*AppointmentDetail, int, error) {
	var total int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM appointment a`+where, args...).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
		SELECT a.id, a.slot_id, a.patient_id, a.doctor_id, a.status, a.reason,
		       a.cancellation_reason, a.created_at, a.updated_at,
		       p.full_name AS patient_name, d.full_name AS doctor_name,
		       s.slot_date, s.start_time, s.end_time
		FROM appointment a
		JOIN app_user p ON p.id = a.patient_id
		JOIN app_user d ON d.id = a.doctor_id
		JOIN slot s ON s.id = a.slot_id%s
		ORDER BY s.slot_date, s.start_time LIMIT $%d OFFSET $%d`,
		where, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var appts []*AppointmentDetail
	for rows.Next() {
		var a AppointmentDetail
		err := rows.Scan(
			&a.ID, &a.SlotID, &a.PatientID, &a.DoctorID, &a.Status, &a.Reason,
			&a.CancellationReason, &a.CreatedAt, &a.UpdatedAt,
			&a.PatientName, &a.DoctorName,
			&a.SlotDate, &a.StartTime, &a.EndTime,
		)
		if err != nil {
			return nil, 0, err
		}
		appts = append(appts, &a)
	}
	return appts, total, nil
}

func (r *apptRepoPG) HasActiveForSlot(ctx context.Context, slotID uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointment WHERE slot_id = $1 AND status <> 'cancelled'
		)`, slotID).Scan(&exists)
	return exists, err
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
