package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/campusgate/admissions-api/internal/models"
	appErrors "github.com/campusgate/admissions-api/pkg/errors"
)

type selectionStore interface {
	FindByIDTx(ctx context.Context, tx *sqlx.Tx, id string) (*models.Application, error)
	ListAdmittedByStudentTx(ctx context.Context, tx *sqlx.Tx, studentID, excludeID string) ([]models.Application, error)
	FirstWaitlistedForCourseTx(ctx context.Context, tx *sqlx.Tx, courseID string, excludeIDs []string) (*models.Application, error)
	CountOpenTx(ctx context.Context, tx *sqlx.Tx, studentID, institutionID string) (int, error)
	ExistsConfirmedAdmittedTx(ctx context.Context, tx *sqlx.Tx, studentID, excludeID string) (bool, error)
	ExistsAdmittedAtInstitutionTx(ctx context.Context, tx *sqlx.Tx, studentID, institutionID, excludeCourseID string) (bool, error)
	UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, id string, status models.ApplicationStatus, remarks *string, now time.Time) error
	ConfirmTx(ctx context.Context, tx *sqlx.Tx, id string, now time.Time) error
}

// Remarks written by the cascading selection commit.
const (
	remarkSuperseded = "student selected another institution"
	remarkPromoted   = "promoted from waitlist"
)

// SelectionService executes the cascading commit when a student finalizes one
// admission offer among several: every other admitted offer is rejected, each
// freed seat promotes the earliest waitlisted applicant for that course, and
// the chosen offer is confirmed. All of it commits atomically or not at all.
type SelectionService struct {
	repo     selectionStore
	runner   atomicRunner
	notifier notifier
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewSelectionService constructs SelectionService.
func NewSelectionService(repo selectionStore, runner atomicRunner, notify notifier, metrics *MetricsService, logger *zap.Logger) *SelectionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SelectionService{repo: repo, runner: runner, notifier: notify, metrics: metrics, logger: logger}
}

// SelectOffer commits the student to the chosen admitted application. A sole
// admitted offer runs the same path and simply confirms with zero effects.
// The transaction closure may be retried by the runner, so all bookkeeping is
// rebuilt from scratch on each attempt.
func (s *SelectionService) SelectOffer(ctx context.Context, studentID, applicationID string) (*models.SelectionResult, error) {
	if studentID == "" || applicationID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student id and application id are required")
	}

	var result *models.SelectionResult
	var pending []models.Notification
	err := s.runner.Run(ctx, func(tx *sqlx.Tx) error {
		result = nil
		pending = pending[:0]

		chosen, err := s.repo.FindByIDTx(ctx, tx, applicationID)
		if err != nil {
			if err == sql.ErrNoRows {
				return appErrors.Clone(appErrors.ErrNotFound, "application not found")
			}
			return err
		}
		if chosen.StudentID != studentID {
			return appErrors.Clone(appErrors.ErrInvalidState, "application belongs to another student")
		}
		if chosen.Status != models.StatusAdmitted {
			return appErrors.Clone(appErrors.ErrInvalidState, "only admitted applications can be selected")
		}

		others, err := s.repo.ListAdmittedByStudentTx(ctx, tx, studentID, chosen.ID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		effects := make([]models.SelectionEffect, 0, len(others))
		for _, other := range others {
			rejectRemark := remarkSuperseded
			if err := s.repo.UpdateStatusTx(ctx, tx, other.ID, models.StatusRejected, &rejectRemark, now); err != nil {
				return err
			}
			otherID := other.ID
			pending = append(pending, models.Notification{
				UserID:        other.StudentID,
				UserType:      "student",
				Type:          models.NotificationStatusChanged,
				Message:       fmt.Sprintf("Your admission offer for %s at %s has lapsed following your selection.", other.CourseName, other.InstitutionName),
				ApplicationID: &otherID,
			})

			effect := models.SelectionEffect{RejectedApplicationID: other.ID}
			promoted, err := s.nextPromotable(ctx, tx, other.CourseID)
			if err != nil {
				return err
			}
			if promoted != nil {
				promoteRemark := remarkPromoted
				if err := s.repo.UpdateStatusTx(ctx, tx, promoted.ID, models.StatusAdmitted, &promoteRemark, now); err != nil {
					return err
				}
				promotedID := promoted.ID
				effect.PromotedApplicationID = &promotedID
				pending = append(pending, models.Notification{
					UserID:        promoted.StudentID,
					UserType:      "student",
					Type:          models.NotificationPromoted,
					Message:       fmt.Sprintf("A seat opened up: you have been admitted to %s at %s from the waitlist.", promoted.CourseName, promoted.InstitutionName),
					ApplicationID: &promotedID,
				})
			}
			effects = append(effects, effect)
		}

		if err := s.repo.ConfirmTx(ctx, tx, chosen.ID, now); err != nil {
			return err
		}
		chosenID := chosen.ID
		pending = append(pending, models.Notification{
			UserID:        chosen.StudentID,
			UserType:      "student",
			Type:          models.NotificationConfirmed,
			Message:       fmt.Sprintf("Your enrollment in %s at %s is confirmed.", chosen.CourseName, chosen.InstitutionName),
			ApplicationID: &chosenID,
		})

		result = &models.SelectionResult{ConfirmedApplicationID: chosen.ID, Effects: effects}
		return nil
	})
	if err != nil {
		return nil, err
	}

	promotions := 0
	for _, effect := range result.Effects {
		if effect.PromotedApplicationID != nil {
			promotions++
		}
	}
	s.metrics.RecordSelection(promotions)
	for _, record := range pending {
		s.notifier.Notify(record)
	}
	return result, nil
}

// nextPromotable walks the course waitlist in FIFO order and returns the first
// candidate who may hold an admitted offer, applying the same guards a staff
// admission runs: no confirmed admission elsewhere, no admitted offer at the
// same institution under another course, and the per-institution open cap not
// yet reached. Ineligible candidates keep their waitlisted place; nil means
// the freed seat stays open.
func (s *SelectionService) nextPromotable(ctx context.Context, tx *sqlx.Tx, courseID string) (*models.Application, error) {
	var skipped []string
	for {
		candidate, err := s.repo.FirstWaitlistedForCourseTx(ctx, tx, courseID, skipped)
		if err != nil {
			return nil, err
		}
		if candidate == nil {
			return nil, nil
		}

		confirmed, err := s.repo.ExistsConfirmedAdmittedTx(ctx, tx, candidate.StudentID, candidate.ID)
		if err != nil {
			return nil, err
		}
		sameInstitution := false
		if !confirmed {
			sameInstitution, err = s.repo.ExistsAdmittedAtInstitutionTx(ctx, tx, candidate.StudentID, candidate.InstitutionID, candidate.CourseID)
			if err != nil {
				return nil, err
			}
		}
		atCap := false
		if !confirmed && !sameInstitution {
			open, err := s.repo.CountOpenTx(ctx, tx, candidate.StudentID, candidate.InstitutionID)
			if err != nil {
				return nil, err
			}
			atCap = open >= maxOpenPerInstitution
		}
		if !confirmed && !sameInstitution && !atCap {
			return candidate, nil
		}

		s.logger.Sugar().Infow("skipping waitlisted candidate",
			"application_id", candidate.ID,
			"student_id", candidate.StudentID,
			"confirmed_elsewhere", confirmed,
			"admitted_at_institution", sameInstitution,
			"at_open_cap", atCap)
		skipped = append(skipped, candidate.ID)
	}
}
