package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campusgate/admissions-api/internal/models"
	"github.com/campusgate/admissions-api/internal/service"
	appErrors "github.com/campusgate/admissions-api/pkg/errors"
	"github.com/campusgate/admissions-api/pkg/response"
)

type decider interface {
	Decide(ctx context.Context, applicationID string, req service.DecideRequest) (*models.Application, error)
}

type selector interface {
	SelectOffer(ctx context.Context, studentID, applicationID string) (*models.SelectionResult, error)
}

// AdmissionHandler exposes the staff decision endpoint and the student's
// offer selection endpoint.
type AdmissionHandler struct {
	decisions  decider
	selections selector
}

// NewAdmissionHandler constructs AdmissionHandler.
func NewAdmissionHandler(decisions decider, selections selector) *AdmissionHandler {
	return &AdmissionHandler{decisions: decisions, selections: selections}
}

// Decide godoc
// @Summary Record a staff decision on an application
// @Tags Admissions
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param payload body service.DecideRequest true "Decision payload"
// @Success 200 {object} response.Envelope
// @Router /applications/{id}/decision [post]
func (h *AdmissionHandler) Decide(c *gin.Context) {
	var req service.DecideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	app, err := h.decisions.Decide(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, app, nil)
}

type selectOfferRequest struct {
	ApplicationID string `json:"application_id" binding:"required"`
}

// SelectOffer godoc
// @Summary Finalize one admission offer
// @Description Confirms the chosen offer, releases the student's other admitted
// @Description offers and promotes waitlisted applicants into the freed seats.
// @Tags Admissions
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body selectOfferRequest true "Selection payload"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/selection [post]
func (h *AdmissionHandler) SelectOffer(c *gin.Context) {
	var req selectOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.selections.SelectOffer(c.Request.Context(), c.Param("id"), req.ApplicationID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
