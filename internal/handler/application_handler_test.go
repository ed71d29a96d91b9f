package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusgate/admissions-api/internal/middleware"
	"github.com/campusgate/admissions-api/internal/models"
	"github.com/campusgate/admissions-api/internal/service"
	appErrors "github.com/campusgate/admissions-api/pkg/errors"
)

type applicationServiceMock struct {
	applyReq    service.ApplyRequest
	applyErr    error
	withdrawID  string
	withdrawReq service.WithdrawRequest
	application models.Application
	lastFilter  models.ApplicationFilter
}

func (m *applicationServiceMock) Apply(ctx context.Context, req service.ApplyRequest) (*models.Application, error) {
	m.applyReq = req
	if m.applyErr != nil {
		return nil, m.applyErr
	}
	app := m.application
	return &app, nil
}

func (m *applicationServiceMock) Withdraw(ctx context.Context, applicationID string, req service.WithdrawRequest) (*models.Application, error) {
	m.withdrawID = applicationID
	m.withdrawReq = req
	app := m.application
	app.Status = models.StatusWithdrawn
	return &app, nil
}

func (m *applicationServiceMock) Get(ctx context.Context, id string) (*models.Application, error) {
	if m.application.ID != id {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
	}
	app := m.application
	return &app, nil
}

func (m *applicationServiceMock) List(ctx context.Context, filter models.ApplicationFilter) ([]models.Application, *models.Pagination, error) {
	m.lastFilter = filter
	return []models.Application{m.application}, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, nil
}

func performJSON(t *testing.T, handle gin.HandlerFunc, method, target string, body []byte, params gin.Params) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, err := http.NewRequest(method, target, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = params
	handle(c)
	return w
}

func TestApplicationHandlerApply(t *testing.T) {
	mockSvc := &applicationServiceMock{application: models.Application{ID: "a1", Status: models.StatusPending}}
	h := NewApplicationHandler(mockSvc, nil)

	payload := []byte(`{"student_id":"s1","institution_id":"i1","faculty_id":"f1","course_id":"c1"}`)
	w := performJSON(t, h.Apply, http.MethodPost, "/applications", payload, nil)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "s1", mockSvc.applyReq.StudentID)
	assert.Equal(t, "c1", mockSvc.applyReq.CourseID)
}

func TestApplicationHandlerApplyMalformedBody(t *testing.T) {
	h := NewApplicationHandler(&applicationServiceMock{}, nil)

	w := performJSON(t, h.Apply, http.MethodPost, "/applications", []byte("{"), nil)

	require.Equal(t, http.StatusBadRequest, w.Code)
	var envelope struct {
		Error *appErrors.Error `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
	assert.Equal(t, appErrors.ErrValidation.Code, envelope.Error.Code)
}

func TestApplicationHandlerApplyConflict(t *testing.T) {
	mockSvc := &applicationServiceMock{applyErr: appErrors.Clone(appErrors.ErrConflict, "an application for this course already exists")}
	h := NewApplicationHandler(mockSvc, nil)

	payload := []byte(`{"student_id":"s1","institution_id":"i1","faculty_id":"f1","course_id":"c1"}`)
	w := performJSON(t, h.Apply, http.MethodPost, "/applications", payload, nil)

	require.Equal(t, http.StatusConflict, w.Code)
}

func TestApplicationHandlerListParsesFilter(t *testing.T) {
	mockSvc := &applicationServiceMock{application: models.Application{ID: "a1"}}
	h := NewApplicationHandler(mockSvc, nil)

	w := performJSON(t, h.List, http.MethodGet, "/applications?studentId=s1&status=pending&page=2&limit=5", nil, nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "s1", mockSvc.lastFilter.StudentID)
	assert.Equal(t, models.StatusPending, mockSvc.lastFilter.Status)
	assert.Equal(t, 2, mockSvc.lastFilter.Page)
	assert.Equal(t, 5, mockSvc.lastFilter.PageSize)
}

func TestApplicationHandlerGetNotFound(t *testing.T) {
	h := NewApplicationHandler(&applicationServiceMock{application: models.Application{ID: "a1"}}, nil)

	w := performJSON(t, h.Get, http.MethodGet, "/applications/missing", nil, gin.Params{{Key: "id", Value: "missing"}})

	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestApplicationHandlerWithdraw(t *testing.T) {
	mockSvc := &applicationServiceMock{application: models.Application{ID: "a1", StudentID: "s1", Status: models.StatusPending}}
	h := NewApplicationHandler(mockSvc, nil)

	payload := []byte(`{"student_id":"s1"}`)
	w := performJSON(t, h.Withdraw, http.MethodPost, "/applications/a1/withdraw", payload, gin.Params{{Key: "id", Value: "a1"}})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "a1", mockSvc.withdrawID)
}

func TestApplicationHandlerWithdrawEmptyBodyUsesClaims(t *testing.T) {
	mockSvc := &applicationServiceMock{application: models.Application{ID: "a1", StudentID: "s1", Status: models.StatusPending}}
	h := NewApplicationHandler(mockSvc, nil)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, err := http.NewRequest(http.MethodPost, "/applications/a1/withdraw", bytes.NewReader(nil))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "a1"}}
	c.Set(middleware.ContextActorKey, &models.ActorClaims{UserID: "s1", UserType: "student"})

	h.Withdraw(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "a1", mockSvc.withdrawID)
	assert.Equal(t, "s1", mockSvc.withdrawReq.StudentID)
}

func TestApplicationHandlerLetterDisabled(t *testing.T) {
	h := NewApplicationHandler(&applicationServiceMock{application: models.Application{ID: "a1", Status: models.StatusAdmitted}}, nil)

	w := performJSON(t, h.Letter, http.MethodGet, "/applications/a1/letter", nil, gin.Params{{Key: "id", Value: "a1"}})

	require.Equal(t, http.StatusNotFound, w.Code)
}
