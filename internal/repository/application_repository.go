package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/campusgate/admissions-api/internal/models"
)

const applicationColumns = `id, student_id, institution_id, faculty_id, course_id, status, confirmed,
        applied_at, updated_at, admission_date, withdrawal_date, confirmation_date, remarks,
        student_name, course_name, institution_name`

// ApplicationRepository handles persistence of applications. Guard queries and
// writes that participate in an invariant check take an explicit transaction so
// callers can scope them to a single atomic commit.
type ApplicationRepository struct {
	db *sqlx.DB
}

// NewApplicationRepository constructs the repository.
func NewApplicationRepository(db *sqlx.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

// FindByID returns an application by its ID.
func (r *ApplicationRepository) FindByID(ctx context.Context, id string) (*models.Application, error) {
	query := fmt.Sprintf(`SELECT %s FROM applications WHERE id = $1`, applicationColumns)
	var app models.Application
	if err := r.db.GetContext(ctx, &app, query, id); err != nil {
		return nil, err
	}
	return &app, nil
}

// List returns applications matching the filter, ordered by applied_at.
func (r *ApplicationRepository) List(ctx context.Context, filter models.ApplicationFilter) ([]models.Application, int, error) {
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.InstitutionID != "" {
		conditions = append(conditions, fmt.Sprintf("institution_id = $%d", len(args)+1))
		args = append(args, filter.InstitutionID)
	}
	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s FROM applications%s ORDER BY applied_at %s, id %s LIMIT %d OFFSET %d`,
		applicationColumns, clause, order, order, size, offset)

	var apps []models.Application
	if err := r.db.SelectContext(ctx, &apps, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list applications: %w", err)
	}

	countQuery := "SELECT COUNT(*) FROM applications" + clause
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count applications: %w", err)
	}
	return apps, total, nil
}

// FindByIDTx loads an application inside tx and locks the row for update.
func (r *ApplicationRepository) FindByIDTx(ctx context.Context, tx *sqlx.Tx, id string) (*models.Application, error) {
	query := fmt.Sprintf(`SELECT %s FROM applications WHERE id = $1 FOR UPDATE`, applicationColumns)
	var app models.Application
	if err := tx.GetContext(ctx, &app, query, id); err != nil {
		return nil, err
	}
	return &app, nil
}

// CountOpenTx counts open applications for a student at an institution
// inside tx. Open states come from models.OpenStatuses.
func (r *ApplicationRepository) CountOpenTx(ctx context.Context, tx *sqlx.Tx, studentID, institutionID string) (int, error) {
	statuses := make([]string, len(models.OpenStatuses))
	for i, s := range models.OpenStatuses {
		statuses[i] = string(s)
	}
	const query = `SELECT COUNT(*) FROM applications
        WHERE student_id = $1 AND institution_id = $2 AND status = ANY($3)`
	var count int
	if err := tx.GetContext(ctx, &count, query, studentID, institutionID, pq.Array(statuses)); err != nil {
		return 0, fmt.Errorf("count open applications: %w", err)
	}
	return count, nil
}

// ExistsForCourseTx reports whether the student holds a non-withdrawn
// application for the course.
func (r *ApplicationRepository) ExistsForCourseTx(ctx context.Context, tx *sqlx.Tx, studentID, courseID string) (bool, error) {
	const query = `SELECT 1 FROM applications
        WHERE student_id = $1 AND course_id = $2 AND status <> $3 LIMIT 1`
	var exists int
	if err := tx.GetContext(ctx, &exists, query, studentID, courseID, models.StatusWithdrawn); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check course application: %w", err)
	}
	return true, nil
}

// ExistsAdmittedTx reports whether the student holds an admitted application
// anywhere.
func (r *ApplicationRepository) ExistsAdmittedTx(ctx context.Context, tx *sqlx.Tx, studentID string) (bool, error) {
	const query = `SELECT 1 FROM applications WHERE student_id = $1 AND status = $2 LIMIT 1`
	var exists int
	if err := tx.GetContext(ctx, &exists, query, studentID, models.StatusAdmitted); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check admitted application: %w", err)
	}
	return true, nil
}

// ExistsConfirmedAdmittedTx reports whether the student holds a confirmed
// admitted application, optionally excluding one application ID.
func (r *ApplicationRepository) ExistsConfirmedAdmittedTx(ctx context.Context, tx *sqlx.Tx, studentID, excludeID string) (bool, error) {
	query := `SELECT 1 FROM applications WHERE student_id = $1 AND status = $2 AND confirmed = TRUE`
	args := []interface{}{studentID, models.StatusAdmitted}
	if excludeID != "" {
		query += fmt.Sprintf(" AND id <> $%d", len(args)+1)
		args = append(args, excludeID)
	}
	query += " LIMIT 1"
	var exists int
	if err := tx.GetContext(ctx, &exists, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check confirmed admission: %w", err)
	}
	return true, nil
}

// ExistsAdmittedAtInstitutionTx reports whether the student holds an admitted
// application at the institution under a different course.
func (r *ApplicationRepository) ExistsAdmittedAtInstitutionTx(ctx context.Context, tx *sqlx.Tx, studentID, institutionID, excludeCourseID string) (bool, error) {
	const query = `SELECT 1 FROM applications
        WHERE student_id = $1 AND institution_id = $2 AND status = $3 AND course_id <> $4 LIMIT 1`
	var exists int
	if err := tx.GetContext(ctx, &exists, query, studentID, institutionID, models.StatusAdmitted, excludeCourseID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check institution admission: %w", err)
	}
	return true, nil
}

// CreateTx persists a new application inside tx.
func (r *ApplicationRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, app *models.Application) error {
	if app.ID == "" {
		app.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if app.AppliedAt.IsZero() {
		app.AppliedAt = now
	}
	if app.UpdatedAt.IsZero() {
		app.UpdatedAt = now
	}
	if app.Status == "" {
		app.Status = models.StatusPending
	}
	const query = `INSERT INTO applications
        (id, student_id, institution_id, faculty_id, course_id, status, confirmed,
         applied_at, updated_at, admission_date, withdrawal_date, confirmation_date, remarks,
         student_name, course_name, institution_name)
        VALUES (:id, :student_id, :institution_id, :faculty_id, :course_id, :status, :confirmed,
         :applied_at, :updated_at, :admission_date, :withdrawal_date, :confirmation_date, :remarks,
         :student_name, :course_name, :institution_name)`
	if _, err := tx.NamedExecContext(ctx, query, app); err != nil {
		return fmt.Errorf("create application: %w", err)
	}
	return nil
}

// ListAdmittedByStudentTx returns the student's admitted applications inside
// tx, locked for update, ordered by applied_at. excludeID filters the chosen
// application during selection.
func (r *ApplicationRepository) ListAdmittedByStudentTx(ctx context.Context, tx *sqlx.Tx, studentID, excludeID string) ([]models.Application, error) {
	query := fmt.Sprintf(`SELECT %s FROM applications WHERE student_id = $1 AND status = $2`, applicationColumns)
	args := []interface{}{studentID, models.StatusAdmitted}
	if excludeID != "" {
		query += fmt.Sprintf(" AND id <> $%d", len(args)+1)
		args = append(args, excludeID)
	}
	query += " ORDER BY applied_at ASC, id ASC FOR UPDATE"
	var apps []models.Application
	if err := tx.SelectContext(ctx, &apps, query, args...); err != nil {
		return nil, fmt.Errorf("list admitted applications: %w", err)
	}
	return apps, nil
}

// FirstWaitlistedForCourseTx returns the earliest-applied waitlisted
// application for a course, locked for update, or nil when the waitlist is
// empty. excludeIDs removes candidates the caller has already passed over.
// Ties on applied_at break by id, which follows insertion order.
func (r *ApplicationRepository) FirstWaitlistedForCourseTx(ctx context.Context, tx *sqlx.Tx, courseID string, excludeIDs []string) (*models.Application, error) {
	query := fmt.Sprintf(`SELECT %s FROM applications
        WHERE course_id = $1 AND status = $2`, applicationColumns)
	args := []interface{}{courseID, models.StatusWaitlisted}
	if len(excludeIDs) > 0 {
		query += fmt.Sprintf(" AND id <> ALL($%d)", len(args)+1)
		args = append(args, pq.Array(excludeIDs))
	}
	query += " ORDER BY applied_at ASC, id ASC LIMIT 1 FOR UPDATE"
	var app models.Application
	if err := tx.GetContext(ctx, &app, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find waitlisted application: %w", err)
	}
	return &app, nil
}

// UpdateStatusTx moves an application to a new status inside tx, stamping the
// status-specific dates.
func (r *ApplicationRepository) UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, id string, status models.ApplicationStatus, remarks *string, now time.Time) error {
	const query = `UPDATE applications SET
        status = $2,
        remarks = COALESCE($3, remarks),
        updated_at = $4,
        admission_date = CASE WHEN $2 = 'admitted' THEN $4 ELSE admission_date END,
        withdrawal_date = CASE WHEN $2 = 'withdrawn' THEN $4 ELSE withdrawal_date END
        WHERE id = $1`
	if _, err := tx.ExecContext(ctx, query, id, status, remarks, now); err != nil {
		return fmt.Errorf("update application status: %w", err)
	}
	return nil
}

// ConfirmTx marks an application as the student's confirmed admission.
func (r *ApplicationRepository) ConfirmTx(ctx context.Context, tx *sqlx.Tx, id string, now time.Time) error {
	const query = `UPDATE applications SET confirmed = TRUE, confirmation_date = $2, updated_at = $2 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, query, id, now); err != nil {
		return fmt.Errorf("confirm application: %w", err)
	}
	return nil
}
