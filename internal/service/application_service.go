package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/campusgate/admissions-api/internal/models"
	appErrors "github.com/campusgate/admissions-api/pkg/errors"
)

type applicationStore interface {
	FindByID(ctx context.Context, id string) (*models.Application, error)
	List(ctx context.Context, filter models.ApplicationFilter) ([]models.Application, int, error)
	FindByIDTx(ctx context.Context, tx *sqlx.Tx, id string) (*models.Application, error)
	CountOpenTx(ctx context.Context, tx *sqlx.Tx, studentID, institutionID string) (int, error)
	ExistsForCourseTx(ctx context.Context, tx *sqlx.Tx, studentID, courseID string) (bool, error)
	ExistsAdmittedTx(ctx context.Context, tx *sqlx.Tx, studentID string) (bool, error)
	CreateTx(ctx context.Context, tx *sqlx.Tx, app *models.Application) error
	UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, id string, status models.ApplicationStatus, remarks *string, now time.Time) error
}

type atomicRunner interface {
	Run(ctx context.Context, fn func(tx *sqlx.Tx) error) error
}

type studentReader interface {
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
}

type catalogProvider interface {
	GetInstitution(ctx context.Context, id string) (*models.Institution, error)
	GetFaculty(ctx context.Context, institutionID, id string) (*models.Faculty, error)
	GetCourse(ctx context.Context, institutionID, facultyID, id string) (*models.Course, error)
}

type eligibilityEvaluator interface {
	Evaluate(record models.AcademicRecord, req models.CourseRequirements) EligibilityResult
}

type notifier interface {
	Notify(record models.Notification)
}

// Applications a student may hold in pending or admitted state per institution.
const maxOpenPerInstitution = 2

// ApplyRequest describes an application creation request.
type ApplyRequest struct {
	StudentID     string `json:"student_id" validate:"required"`
	InstitutionID string `json:"institution_id" validate:"required"`
	FacultyID     string `json:"faculty_id" validate:"required"`
	CourseID      string `json:"course_id" validate:"required"`
}

// WithdrawRequest describes a student withdrawal.
type WithdrawRequest struct {
	StudentID string `json:"student_id" validate:"required"`
}

// ApplicationService owns application creation and student withdrawal.
type ApplicationService struct {
	repo      applicationStore
	runner    atomicRunner
	students  studentReader
	catalog   catalogProvider
	evaluator eligibilityEvaluator
	notifier  notifier
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewApplicationService constructs ApplicationService.
func NewApplicationService(repo applicationStore, runner atomicRunner, students studentReader, catalog catalogProvider, evaluator eligibilityEvaluator, notify notifier, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *ApplicationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ApplicationService{
		repo:      repo,
		runner:    runner,
		students:  students,
		catalog:   catalog,
		evaluator: evaluator,
		notifier:  notify,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
	}
}

// Get returns an application by ID.
func (s *ApplicationService) Get(ctx context.Context, id string) (*models.Application, error) {
	app, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	return app, nil
}

// List returns applications with pagination metadata, ordered by applied_at.
func (s *ApplicationService) List(ctx context.Context, filter models.ApplicationFilter) ([]models.Application, *models.Pagination, error) {
	if filter.Status != "" && !models.ValidStatus(filter.Status) {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", filter.Status))
	}
	apps, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list applications")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return apps, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Apply validates eligibility and uniqueness constraints, then creates the
// application. The capacity and uniqueness checks run in the same atomic
// commit as the insert so concurrent applications from one student cannot
// both slip past the counts.
func (s *ApplicationService) Apply(ctx context.Context, req ApplyRequest) (*models.Application, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid application payload")
	}

	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	institution, err := s.catalog.GetInstitution(ctx, req.InstitutionID)
	if err != nil {
		return nil, err
	}
	if _, err := s.catalog.GetFaculty(ctx, req.InstitutionID, req.FacultyID); err != nil {
		return nil, err
	}
	course, err := s.catalog.GetCourse(ctx, req.InstitutionID, req.FacultyID, req.CourseID)
	if err != nil {
		return nil, err
	}

	if result := s.evaluator.Evaluate(student.Record, course.Requirements); !result.Eligible {
		return nil, appErrors.Clone(appErrors.ErrIneligible, result.Reason)
	}

	app := &models.Application{
		StudentID:       req.StudentID,
		InstitutionID:   req.InstitutionID,
		FacultyID:       req.FacultyID,
		CourseID:        req.CourseID,
		Status:          models.StatusPending,
		StudentName:     student.FullName,
		CourseName:      course.Name,
		InstitutionName: institution.Name,
	}

	err = s.runner.Run(ctx, func(tx *sqlx.Tx) error {
		count, err := s.repo.CountOpenTx(ctx, tx, req.StudentID, req.InstitutionID)
		if err != nil {
			return err
		}
		if count >= maxOpenPerInstitution {
			return appErrors.Clone(appErrors.ErrConflict, "application limit reached for this institution")
		}
		exists, err := s.repo.ExistsForCourseTx(ctx, tx, req.StudentID, req.CourseID)
		if err != nil {
			return err
		}
		if exists {
			return appErrors.Clone(appErrors.ErrConflict, "an application for this course already exists")
		}
		admitted, err := s.repo.ExistsAdmittedTx(ctx, tx, req.StudentID)
		if err != nil {
			return err
		}
		if admitted {
			return appErrors.Clone(appErrors.ErrConflict, "students holding an admission offer may not apply further")
		}
		return s.repo.CreateTx(ctx, tx, app)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordApplicationCreated()
	s.notifier.Notify(models.Notification{
		UserID:        app.StudentID,
		UserType:      "student",
		Type:          models.NotificationStatusChanged,
		Message:       fmt.Sprintf("Your application to %s at %s has been received.", app.CourseName, app.InstitutionName),
		ApplicationID: &app.ID,
	})
	return app, nil
}

// Withdraw closes a pending or waitlisted application at the student's
// request. Admitted applications cannot be withdrawn.
func (s *ApplicationService) Withdraw(ctx context.Context, applicationID string, req WithdrawRequest) (*models.Application, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid withdrawal payload")
	}

	var withdrawn *models.Application
	err := s.runner.Run(ctx, func(tx *sqlx.Tx) error {
		app, err := s.repo.FindByIDTx(ctx, tx, applicationID)
		if err != nil {
			if err == sql.ErrNoRows {
				return appErrors.Clone(appErrors.ErrNotFound, "application not found")
			}
			return err
		}
		if app.StudentID != req.StudentID {
			return appErrors.Clone(appErrors.ErrForbidden, "application belongs to another student")
		}
		if app.Status == models.StatusAdmitted {
			return appErrors.Clone(appErrors.ErrInvalidTransition, "admitted applications cannot be withdrawn")
		}
		if !models.CanTransition(app.Status, models.StatusWithdrawn) {
			return appErrors.Clone(appErrors.ErrInvalidTransition,
				fmt.Sprintf("cannot withdraw a %s application", app.Status))
		}
		now := time.Now().UTC()
		if err := s.repo.UpdateStatusTx(ctx, tx, app.ID, models.StatusWithdrawn, nil, now); err != nil {
			return err
		}
		app.Status = models.StatusWithdrawn
		app.UpdatedAt = now
		app.WithdrawalDate = &now
		withdrawn = app
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordWithdrawal()
	s.notifier.Notify(models.Notification{
		UserID:        withdrawn.StudentID,
		UserType:      "student",
		Type:          models.NotificationStatusChanged,
		Message:       fmt.Sprintf("Your application to %s at %s has been withdrawn.", withdrawn.CourseName, withdrawn.InstitutionName),
		ApplicationID: &withdrawn.ID,
	})
	return withdrawn, nil
}
