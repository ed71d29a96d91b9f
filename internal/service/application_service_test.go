package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campusgate/admissions-api/internal/models"
	appErrors "github.com/campusgate/admissions-api/pkg/errors"
)

type stubRunner struct{}

func (r *stubRunner) Run(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	return fn(nil)
}

// retryRunner invokes the closure twice, as the real runner does after a
// serialization failure, so tests can assert the closure is re-entrant.
type retryRunner struct {
	attempts int
}

func (r *retryRunner) Run(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	r.attempts++
	if err := fn(nil); err != nil {
		return err
	}
	r.attempts++
	return fn(nil)
}

type stubNotifier struct {
	sent []models.Notification
}

func (n *stubNotifier) Notify(record models.Notification) {
	n.sent = append(n.sent, record)
}

type mockStudents struct {
	students map[string]models.StudentDetail
}

func (m *mockStudents) FindByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	if s, ok := m.students[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

type mockCatalog struct {
	institutions map[string]models.Institution
	faculties    map[string]models.Faculty
	courses      map[string]models.Course
}

func (m *mockCatalog) GetInstitution(ctx context.Context, id string) (*models.Institution, error) {
	if inst, ok := m.institutions[id]; ok {
		return &inst, nil
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "institution not found")
}

func (m *mockCatalog) GetFaculty(ctx context.Context, institutionID, id string) (*models.Faculty, error) {
	if f, ok := m.faculties[id]; ok {
		return &f, nil
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "faculty not found")
}

func (m *mockCatalog) GetCourse(ctx context.Context, institutionID, facultyID, id string) (*models.Course, error) {
	if c, ok := m.courses[id]; ok {
		return &c, nil
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
}

type stubEvaluator struct {
	result EligibilityResult
}

func (e *stubEvaluator) Evaluate(record models.AcademicRecord, req models.CourseRequirements) EligibilityResult {
	return e.result
}

type mockApplicationRepo struct {
	applications map[string]models.Application
	openCount    int
	forCourse    bool
	admitted     bool
	created      []models.Application
	updated      []struct {
		ID     string
		Status models.ApplicationStatus
	}
}

func (m *mockApplicationRepo) FindByID(ctx context.Context, id string) (*models.Application, error) {
	if app, ok := m.applications[id]; ok {
		return &app, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockApplicationRepo) List(ctx context.Context, filter models.ApplicationFilter) ([]models.Application, int, error) {
	apps := make([]models.Application, 0, len(m.applications))
	for _, app := range m.applications {
		apps = append(apps, app)
	}
	return apps, len(apps), nil
}

func (m *mockApplicationRepo) FindByIDTx(ctx context.Context, tx *sqlx.Tx, id string) (*models.Application, error) {
	return m.FindByID(ctx, id)
}

func (m *mockApplicationRepo) CountOpenTx(ctx context.Context, tx *sqlx.Tx, studentID, institutionID string) (int, error) {
	return m.openCount, nil
}

func (m *mockApplicationRepo) ExistsForCourseTx(ctx context.Context, tx *sqlx.Tx, studentID, courseID string) (bool, error) {
	return m.forCourse, nil
}

func (m *mockApplicationRepo) ExistsAdmittedTx(ctx context.Context, tx *sqlx.Tx, studentID string) (bool, error) {
	return m.admitted, nil
}

func (m *mockApplicationRepo) CreateTx(ctx context.Context, tx *sqlx.Tx, app *models.Application) error {
	if app.ID == "" {
		app.ID = "generated"
	}
	app.AppliedAt = time.Now().UTC()
	if m.applications == nil {
		m.applications = make(map[string]models.Application)
	}
	m.applications[app.ID] = *app
	m.created = append(m.created, *app)
	return nil
}

func (m *mockApplicationRepo) UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, id string, status models.ApplicationStatus, remarks *string, now time.Time) error {
	m.updated = append(m.updated, struct {
		ID     string
		Status models.ApplicationStatus
	}{id, status})
	if app, ok := m.applications[id]; ok {
		app.Status = status
		if remarks != nil {
			app.Remarks = remarks
		}
		m.applications[id] = app
	}
	return nil
}

func newApplyFixture() (*mockApplicationRepo, *stubNotifier, *ApplicationService) {
	repo := &mockApplicationRepo{}
	students := &mockStudents{students: map[string]models.StudentDetail{
		"s1": {Student: models.Student{ID: "s1", FullName: "Amina Diallo"}, Record: models.AcademicRecord{OverallGrade: "B"}},
	}}
	catalog := &mockCatalog{
		institutions: map[string]models.Institution{"i1": {ID: "i1", Name: "State University"}},
		faculties:    map[string]models.Faculty{"f1": {ID: "f1", InstitutionID: "i1", Name: "Engineering"}},
		courses:      map[string]models.Course{"c1": {ID: "c1", FacultyID: "f1", InstitutionID: "i1", Name: "Civil Engineering"}},
	}
	notify := &stubNotifier{}
	svc := NewApplicationService(repo, &stubRunner{}, students, catalog, &stubEvaluator{result: EligibilityResult{Eligible: true}}, notify, nil, validator.New(), zap.NewNop())
	return repo, notify, svc
}

func TestApplyCreatesPendingApplication(t *testing.T) {
	repo, notify, svc := newApplyFixture()

	app, err := svc.Apply(context.Background(), ApplyRequest{StudentID: "s1", InstitutionID: "i1", FacultyID: "f1", CourseID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, app.Status)
	assert.Equal(t, "Amina Diallo", app.StudentName)
	assert.Equal(t, "Civil Engineering", app.CourseName)
	assert.Equal(t, "State University", app.InstitutionName)
	require.Len(t, repo.created, 1)
	require.Len(t, notify.sent, 1)
	assert.Equal(t, models.NotificationStatusChanged, notify.sent[0].Type)
}

func TestApplyMissingFieldsRejected(t *testing.T) {
	_, _, svc := newApplyFixture()

	_, err := svc.Apply(context.Background(), ApplyRequest{StudentID: "s1"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestApplyUnknownStudent(t *testing.T) {
	_, _, svc := newApplyFixture()

	_, err := svc.Apply(context.Background(), ApplyRequest{StudentID: "missing", InstitutionID: "i1", FacultyID: "f1", CourseID: "c1"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestApplyIneligibleStudent(t *testing.T) {
	repo, _, _ := newApplyFixture()
	students := &mockStudents{students: map[string]models.StudentDetail{
		"s1": {Student: models.Student{ID: "s1", FullName: "Amina Diallo"}, Record: models.AcademicRecord{OverallGrade: "F"}},
	}}
	catalog := &mockCatalog{
		institutions: map[string]models.Institution{"i1": {ID: "i1", Name: "State University"}},
		faculties:    map[string]models.Faculty{"f1": {ID: "f1"}},
		courses:      map[string]models.Course{"c1": {ID: "c1", Name: "Medicine"}},
	}
	evaluator := &stubEvaluator{result: EligibilityResult{Eligible: false, Reason: "overall grade F is below the required minimum A"}}
	svc := NewApplicationService(repo, &stubRunner{}, students, catalog, evaluator, &stubNotifier{}, nil, validator.New(), zap.NewNop())

	_, err := svc.Apply(context.Background(), ApplyRequest{StudentID: "s1", InstitutionID: "i1", FacultyID: "f1", CourseID: "c1"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrIneligible))
	assert.Empty(t, repo.created)
}

func TestApplyInstitutionLimitReached(t *testing.T) {
	repo, notify, svc := newApplyFixture()
	repo.openCount = 2

	_, err := svc.Apply(context.Background(), ApplyRequest{StudentID: "s1", InstitutionID: "i1", FacultyID: "f1", CourseID: "c1"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
	assert.Empty(t, repo.created)
	assert.Empty(t, notify.sent)
}

func TestApplyDuplicateCourse(t *testing.T) {
	repo, _, svc := newApplyFixture()
	repo.forCourse = true

	_, err := svc.Apply(context.Background(), ApplyRequest{StudentID: "s1", InstitutionID: "i1", FacultyID: "f1", CourseID: "c1"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
}

func TestApplyBlockedWhileHoldingOffer(t *testing.T) {
	repo, _, svc := newApplyFixture()
	repo.admitted = true

	_, err := svc.Apply(context.Background(), ApplyRequest{StudentID: "s1", InstitutionID: "i1", FacultyID: "f1", CourseID: "c1"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
	assert.Empty(t, repo.created)
}

func TestWithdrawPendingApplication(t *testing.T) {
	repo, notify, svc := newApplyFixture()
	repo.applications = map[string]models.Application{
		"a1": {ID: "a1", StudentID: "s1", Status: models.StatusPending, CourseName: "Civil Engineering", InstitutionName: "State University"},
	}

	app, err := svc.Withdraw(context.Background(), "a1", WithdrawRequest{StudentID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusWithdrawn, app.Status)
	assert.NotNil(t, app.WithdrawalDate)
	require.Len(t, notify.sent, 1)
}

func TestWithdrawWaitlistedApplication(t *testing.T) {
	repo, _, svc := newApplyFixture()
	repo.applications = map[string]models.Application{
		"a1": {ID: "a1", StudentID: "s1", Status: models.StatusWaitlisted},
	}

	app, err := svc.Withdraw(context.Background(), "a1", WithdrawRequest{StudentID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusWithdrawn, app.Status)
}

func TestWithdrawAdmittedRefused(t *testing.T) {
	repo, _, svc := newApplyFixture()
	repo.applications = map[string]models.Application{
		"a1": {ID: "a1", StudentID: "s1", Status: models.StatusAdmitted},
	}

	_, err := svc.Withdraw(context.Background(), "a1", WithdrawRequest{StudentID: "s1"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidTransition))
}

func TestWithdrawOtherStudentsApplication(t *testing.T) {
	repo, _, svc := newApplyFixture()
	repo.applications = map[string]models.Application{
		"a1": {ID: "a1", StudentID: "s2", Status: models.StatusPending},
	}

	_, err := svc.Withdraw(context.Background(), "a1", WithdrawRequest{StudentID: "s1"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}

func TestWithdrawTerminalApplication(t *testing.T) {
	repo, _, svc := newApplyFixture()
	repo.applications = map[string]models.Application{
		"a1": {ID: "a1", StudentID: "s1", Status: models.StatusWithdrawn},
	}

	_, err := svc.Withdraw(context.Background(), "a1", WithdrawRequest{StudentID: "s1"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidTransition))
}

func TestListRejectsUnknownStatus(t *testing.T) {
	_, _, svc := newApplyFixture()

	_, _, err := svc.List(context.Background(), models.ApplicationFilter{Status: "approved"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestGetUnknownApplication(t *testing.T) {
	_, _, svc := newApplyFixture()

	_, err := svc.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}
