package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusgate/admissions-api/internal/models"
)

func newApplicationMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func applicationRows() *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "student_id", "institution_id", "faculty_id", "course_id", "status", "confirmed",
		"applied_at", "updated_at", "admission_date", "withdrawal_date", "confirmation_date", "remarks",
		"student_name", "course_name", "institution_name",
	}).AddRow("a1", "s1", "i1", "f1", "c1", "pending", false, now, now, nil, nil, nil, nil, "Amina Diallo", "Civil Engineering", "State University")
}

func TestApplicationRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newApplicationMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM applications WHERE id = \\$1").
		WithArgs("a1").
		WillReturnRows(applicationRows())

	app, err := repo.FindByID(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, "a1", app.ID)
	assert.Equal(t, models.StatusPending, app.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryListWithFilter(t *testing.T) {
	db, mock, cleanup := newApplicationMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM applications WHERE student_id = \\$1 AND status = \\$2 ORDER BY applied_at ASC, id ASC LIMIT 20 OFFSET 0").
		WithArgs("s1", models.StatusPending).
		WillReturnRows(applicationRows())
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM applications WHERE student_id = \\$1 AND status = \\$2").
		WithArgs("s1", models.StatusPending).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	apps, total, err := repo.List(context.Background(), models.ApplicationFilter{StudentID: "s1", Status: models.StatusPending})
	require.NoError(t, err)
	assert.Len(t, apps, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryCountOpenTx(t *testing.T) {
	db, mock, cleanup := newApplicationMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM applications").
		WithArgs("s1", "i1", pq.Array([]string{"pending", "admitted"})).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	tx, err := db.Beginx()
	require.NoError(t, err)
	count, err := repo.CountOpenTx(context.Background(), tx, "s1", "i1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryExistsForCourseTx(t *testing.T) {
	db, mock, cleanup := newApplicationMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT 1 FROM applications").
		WithArgs("s1", "c1", models.StatusWithdrawn).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}))

	tx, err := db.Beginx()
	require.NoError(t, err)
	exists, err := repo.ExistsForCourseTx(context.Background(), tx, "s1", "c1")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryCreateTxAssignsID(t *testing.T) {
	db, mock, cleanup := newApplicationMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO applications").
		WillReturnResult(sqlmock.NewResult(1, 1))

	tx, err := db.Beginx()
	require.NoError(t, err)
	app := &models.Application{StudentID: "s1", InstitutionID: "i1", FacultyID: "f1", CourseID: "c1"}
	require.NoError(t, repo.CreateTx(context.Background(), tx, app))
	assert.NotEmpty(t, app.ID)
	assert.Equal(t, models.StatusPending, app.Status)
	assert.False(t, app.AppliedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryFirstWaitlistedForCourse(t *testing.T) {
	db, mock, cleanup := newApplicationMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM applications").
		WithArgs("c1", models.StatusWaitlisted).
		WillReturnRows(applicationRows())

	tx, err := db.Beginx()
	require.NoError(t, err)
	app, err := repo.FirstWaitlistedForCourseTx(context.Background(), tx, "c1", nil)
	require.NoError(t, err)
	require.NotNil(t, app)
	assert.Equal(t, "a1", app.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryFirstWaitlistedExcludesIDs(t *testing.T) {
	db, mock, cleanup := newApplicationMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM applications(.+)id <> ALL\\(\\$3\\)").
		WithArgs("c1", models.StatusWaitlisted, pq.Array([]string{"w1", "w2"})).
		WillReturnRows(applicationRows())

	tx, err := db.Beginx()
	require.NoError(t, err)
	app, err := repo.FirstWaitlistedForCourseTx(context.Background(), tx, "c1", []string{"w1", "w2"})
	require.NoError(t, err)
	require.NotNil(t, app)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryFirstWaitlistedNoRows(t *testing.T) {
	db, mock, cleanup := newApplicationMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM applications").
		WithArgs("c1", models.StatusWaitlisted).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	tx, err := db.Beginx()
	require.NoError(t, err)
	app, err := repo.FirstWaitlistedForCourseTx(context.Background(), tx, "c1", nil)
	require.NoError(t, err)
	assert.Nil(t, app)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryUpdateStatusTx(t *testing.T) {
	db, mock, cleanup := newApplicationMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	now := time.Now().UTC()
	remarks := "quota filled"
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE applications SET").
		WithArgs("a1", models.StatusRejected, &remarks, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	tx, err := db.Beginx()
	require.NoError(t, err)
	require.NoError(t, repo.UpdateStatusTx(context.Background(), tx, "a1", models.StatusRejected, &remarks, now))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryConfirmTx(t *testing.T) {
	db, mock, cleanup := newApplicationMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	now := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE applications SET confirmed = TRUE").
		WithArgs("a1", now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	tx, err := db.Beginx()
	require.NoError(t, err)
	require.NoError(t, repo.ConfirmTx(context.Background(), tx, "a1", now))
	assert.NoError(t, mock.ExpectationsWereMet())
}
