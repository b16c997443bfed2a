package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/bjelicb/kinetix-backend-sub000/internal/service"
)

// JobRunner triggers the batch jobs out of schedule.
type JobRunner interface {
	RunMissedNow(ctx context.Context) (service.JobReport, error)
	RunWeeklyNow(ctx context.Context) (service.JobReport, error)
}

type AdminHandler struct {
	jobs   JobRunner
	ledger service.LedgerService
}

func NewAdminHandler(jobs JobRunner, ledger service.LedgerService) *AdminHandler {
	return &AdminHandler{jobs: jobs, ledger: ledger}
}

// JobReportResponse is the outcome of a manual job run.
type JobReportResponse struct {
	service.JobReport
	Error string `json:"error,omitempty"`
}

// RunMissedWorkouts godoc
// @Summary Run the missed-workout sweep now
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} JobReportResponse
// @Failure 409 {object} gin.H "Job already running"
// @Router /admin/jobs/missed-workouts [post]
func (h *AdminHandler) RunMissedWorkouts(c *gin.Context) {
	h.runJob(c, h.jobs.RunMissedNow)
}

// RunWeeklyPenalties godoc
// @Summary Run the weekly penalty calculation now
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} JobReportResponse
// @Failure 409 {object} gin.H "Job already running"
// @Router /admin/jobs/weekly-penalties [post]
func (h *AdminHandler) RunWeeklyPenalties(c *gin.Context) {
	h.runJob(c, h.jobs.RunWeeklyNow)
}

func (h *AdminHandler) runJob(c *gin.Context, run func(context.Context) (service.JobReport, error)) {
	report, err := run(c.Request.Context())
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, JobReportResponse{JobReport: report, Error: report.ErrorText()})
}

type ApplyPenaltyRequest struct {
	Amount float64 `json:"amount" binding:"required,gt=0"`
	Reason string  `json:"reason" binding:"required"`
	PlanID string  `json:"planId"`
}

// ApplyPenalty godoc
// @Summary Charge a client manually
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param clientId path string true "Client ID"
// @Param penalty body ApplyPenaltyRequest true "Penalty"
// @Success 200 {object} UserResponse
// @Failure 404 {object} gin.H "Client not found"
// @Router /admin/clients/{clientId}/penalties [post]
func (h *AdminHandler) ApplyPenalty(c *gin.Context) {
	clientID, ok := objectIDParam(c, "clientId")
	if !ok {
		return
	}
	var req ApplyPenaltyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	var planID *primitive.ObjectID
	if req.PlanID != "" {
		id, err := primitive.ObjectIDFromHex(req.PlanID)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, "Invalid planId format.")
			return
		}
		planID = &id
	}

	user, err := h.ledger.ApplyPenalty(c.Request.Context(), clientID, req.Amount, req.Reason, planID)
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapUserToResponse(user))
}
