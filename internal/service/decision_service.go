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

type decisionStore interface {
	FindByIDTx(ctx context.Context, tx *sqlx.Tx, id string) (*models.Application, error)
	ExistsConfirmedAdmittedTx(ctx context.Context, tx *sqlx.Tx, studentID, excludeID string) (bool, error)
	ExistsAdmittedAtInstitutionTx(ctx context.Context, tx *sqlx.Tx, studentID, institutionID, excludeCourseID string) (bool, error)
	UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, id string, status models.ApplicationStatus, remarks *string, now time.Time) error
}

// DecideRequest describes a staff decision payload.
type DecideRequest struct {
	Status  models.ApplicationStatus `json:"status" validate:"required"`
	Remarks string                   `json:"remarks"`
}

// DecisionService owns staff-driven status transitions: admit, reject,
// waitlist. Supersession of admitted offers belongs to SelectionService and
// withdrawal to ApplicationService; this service refuses both.
type DecisionService struct {
	repo      decisionStore
	runner    atomicRunner
	notifier  notifier
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewDecisionService constructs DecisionService.
func NewDecisionService(repo decisionStore, runner atomicRunner, notify notifier, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *DecisionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DecisionService{repo: repo, runner: runner, notifier: notify, metrics: metrics, validator: validate, logger: logger}
}

// Decide moves an application to the target status. The transition guard and
// the write commit atomically, so a concurrent selection cannot slip a
// conflicting admission between check and write.
func (s *DecisionService) Decide(ctx context.Context, applicationID string, req DecideRequest) (*models.Application, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid decision payload")
	}
	switch req.Status {
	case models.StatusAdmitted, models.StatusRejected, models.StatusWaitlisted:
	case models.StatusWithdrawn:
		return nil, appErrors.Clone(appErrors.ErrValidation, "withdrawal is a student operation")
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown target status %q", req.Status))
	}

	var remarks *string
	if req.Remarks != "" {
		remarks = &req.Remarks
	}

	var decided *models.Application
	err := s.runner.Run(ctx, func(tx *sqlx.Tx) error {
		app, err := s.repo.FindByIDTx(ctx, tx, applicationID)
		if err != nil {
			if err == sql.ErrNoRows {
				return appErrors.Clone(appErrors.ErrNotFound, "application not found")
			}
			return err
		}
		if app.IsTerminal() {
			return appErrors.Clone(appErrors.ErrInvalidTransition,
				fmt.Sprintf("%s applications are final", app.Status))
		}
		if app.Status == models.StatusAdmitted {
			return appErrors.Clone(appErrors.ErrInvalidTransition,
				"admitted applications can only be superseded by the student's selection")
		}
		if !models.CanTransition(app.Status, req.Status) {
			return appErrors.Clone(appErrors.ErrInvalidTransition,
				fmt.Sprintf("cannot move a %s application to %s", app.Status, req.Status))
		}

		if req.Status == models.StatusAdmitted {
			confirmed, err := s.repo.ExistsConfirmedAdmittedTx(ctx, tx, app.StudentID, app.ID)
			if err != nil {
				return err
			}
			if confirmed {
				return appErrors.Clone(appErrors.ErrConflict, "student has already confirmed an admission")
			}
			sameInstitution, err := s.repo.ExistsAdmittedAtInstitutionTx(ctx, tx, app.StudentID, app.InstitutionID, app.CourseID)
			if err != nil {
				return err
			}
			if sameInstitution {
				return appErrors.Clone(appErrors.ErrConflict, "student already holds an admission at this institution")
			}
		}

		now := time.Now().UTC()
		if err := s.repo.UpdateStatusTx(ctx, tx, app.ID, req.Status, remarks, now); err != nil {
			return err
		}
		app.Status = req.Status
		app.UpdatedAt = now
		if remarks != nil {
			app.Remarks = remarks
		}
		if req.Status == models.StatusAdmitted {
			app.AdmissionDate = &now
		}
		decided = app
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordDecision(decided.Status)
	s.notifier.Notify(models.Notification{
		UserID:        decided.StudentID,
		UserType:      "student",
		Type:          models.NotificationStatusChanged,
		Message:       statusMessage(decided),
		ApplicationID: &decided.ID,
	})
	return decided, nil
}

func statusMessage(app *models.Application) string {
	switch app.Status {
	case models.StatusAdmitted:
		return fmt.Sprintf("Congratulations! You have been admitted to %s at %s.", app.CourseName, app.InstitutionName)
	case models.StatusRejected:
		return fmt.Sprintf("Your application to %s at %s was not successful.", app.CourseName, app.InstitutionName)
	case models.StatusWaitlisted:
		return fmt.Sprintf("You have been placed on the waitlist for %s at %s.", app.CourseName, app.InstitutionName)
	default:
		return fmt.Sprintf("Your application to %s at %s is now %s.", app.CourseName, app.InstitutionName, app.Status)
	}
}
