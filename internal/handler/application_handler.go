package handler

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/campusgate/admissions-api/internal/middleware"
	"github.com/campusgate/admissions-api/internal/models"
	"github.com/campusgate/admissions-api/internal/service"
	appErrors "github.com/campusgate/admissions-api/pkg/errors"
	"github.com/campusgate/admissions-api/pkg/export"
	"github.com/campusgate/admissions-api/pkg/response"
)

type applicationService interface {
	Apply(ctx context.Context, req service.ApplyRequest) (*models.Application, error)
	Withdraw(ctx context.Context, applicationID string, req service.WithdrawRequest) (*models.Application, error)
	Get(ctx context.Context, id string) (*models.Application, error)
	List(ctx context.Context, filter models.ApplicationFilter) ([]models.Application, *models.Pagination, error)
}

// ApplicationHandler exposes application endpoints.
type ApplicationHandler struct {
	applications applicationService
	letters      *export.LetterExporter
}

// NewApplicationHandler constructs ApplicationHandler. letters may be nil when
// the letter endpoint is disabled.
func NewApplicationHandler(applications applicationService, letters *export.LetterExporter) *ApplicationHandler {
	return &ApplicationHandler{applications: applications, letters: letters}
}

// Apply godoc
// @Summary Apply for a course
// @Tags Applications
// @Accept json
// @Produce json
// @Param payload body service.ApplyRequest true "Application payload"
// @Success 201 {object} response.Envelope
// @Router /applications [post]
func (h *ApplicationHandler) Apply(c *gin.Context) {
	var req service.ApplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	app, err := h.applications.Apply(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, app)
}

// List godoc
// @Summary List applications
// @Tags Applications
// @Produce json
// @Param studentId query string false "Filter by student"
// @Param institutionId query string false "Filter by institution"
// @Param courseId query string false "Filter by course"
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /applications [get]
func (h *ApplicationHandler) List(c *gin.Context) {
	var filter models.ApplicationFilter
	filter.StudentID = c.Query("studentId")
	filter.InstitutionID = c.Query("institutionId")
	filter.CourseID = c.Query("courseId")
	filter.Status = models.ApplicationStatus(c.Query("status"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortOrder = c.Query("order")

	apps, pagination, err := h.applications.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, apps, pagination)
}

// Get godoc
// @Summary Get application detail
// @Tags Applications
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Router /applications/{id} [get]
func (h *ApplicationHandler) Get(c *gin.Context) {
	app, err := h.applications.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, app, nil)
}

// Withdraw godoc
// @Summary Withdraw an application
// @Tags Applications
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param payload body service.WithdrawRequest true "Withdrawal payload"
// @Success 200 {object} response.Envelope
// @Router /applications/{id}/withdraw [post]
func (h *ApplicationHandler) Withdraw(c *gin.Context) {
	var req service.WithdrawRequest
	// An absent body is fine: the student id then comes from the bearer claims.
	if err := c.ShouldBindJSON(&req); err != nil && err != io.EOF {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if req.StudentID == "" {
		if actor := middleware.ActorValue(c); actor != nil && actor.UserType == "student" {
			req.StudentID = actor.UserID
		}
	}
	app, err := h.applications.Withdraw(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, app, nil)
}

// Letter godoc
// @Summary Download the admission offer letter
// @Tags Applications
// @Produce application/pdf
// @Param id path string true "Application ID"
// @Success 200 {file} binary
// @Router /applications/{id}/letter [get]
func (h *ApplicationHandler) Letter(c *gin.Context) {
	if h.letters == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "admission letters are not enabled"))
		return
	}
	app, err := h.applications.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if app.Status != models.StatusAdmitted {
		response.Error(c, appErrors.Clone(appErrors.ErrInvalidState, "only admitted applications have offer letters"))
		return
	}
	pdf, err := h.letters.Render(export.OfferLetter{
		StudentName:     app.StudentName,
		CourseName:      app.CourseName,
		InstitutionName: app.InstitutionName,
		AdmissionDate:   app.AdmissionDate,
		Confirmed:       app.Confirmed,
		Reference:       app.ID,
	})
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render letter"))
		return
	}
	c.Header("Content-Disposition", `attachment; filename="offer-letter.pdf"`)
	c.Data(http.StatusOK, "application/pdf", pdf)
}
