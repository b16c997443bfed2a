package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bjelicb/kinetix-backend-sub000/internal/dateutil"
	"github.com/bjelicb/kinetix-backend-sub000/internal/domain"
	"github.com/bjelicb/kinetix-backend-sub000/internal/service"
)

type ClientHandler struct {
	clientService service.ClientService
	logService    service.WorkoutLogService
	weighIns      service.WeighInService
	weeklyJob     service.WeeklyPenaltyJob
}

func NewClientHandler(
	clientService service.ClientService,
	logService service.WorkoutLogService,
	weighIns service.WeighInService,
	weeklyJob service.WeeklyPenaltyJob,
) *ClientHandler {
	return &ClientHandler{
		clientService: clientService,
		logService:    logService,
		weighIns:      weighIns,
		weeklyJob:     weeklyJob,
	}
}

// --- Week progression ---

// GetUnlockStatus godoc
// @Summary Can the client move on to next week?
// @Tags Client
// @Produce json
// @Security BearerAuth
// @Success 200 {object} service.UnlockStatus
// @Router /client/unlock-status [get]
func (h *ClientHandler) GetUnlockStatus(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	status, err := h.clientService.GetUnlockStatus(c.Request.Context(), actor.ID)
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// RequestNextWeek godoc
// @Summary Unlock the next week's plan
// @Description Switches to the next assigned plan and charges its weekly cost.
// @Description If the trainer has not assigned one yet, the request is flagged for the trainer.
// @Tags Client
// @Produce json
// @Security BearerAuth
// @Success 200 {object} service.NextWeekResult
// @Failure 402 {object} gin.H "Monthly balance unpaid"
// @Failure 409 {object} gin.H "Week not completed or next plan not assigned"
// @Router /client/next-week [post]
func (h *ClientHandler) RequestNextWeek(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	result, err := h.clientService.RequestNextWeek(c.Request.Context(), actor.ID)
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetBalance godoc
// @Summary Get my running tab
// @Tags Client
// @Produce json
// @Security BearerAuth
// @Success 200 {object} service.BalanceSummary
// @Router /client/balance [get]
func (h *ClientHandler) GetBalance(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	summary, err := h.clientService.GetBalance(c.Request.Context(), actor.ID)
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// GetMyPenaltyRecords godoc
// @Summary List my weekly adherence records
// @Tags Client
// @Produce json
// @Security BearerAuth
// @Success 200 {array} domain.PenaltyRecord
// @Router /client/penalty-records [get]
func (h *ClientHandler) GetMyPenaltyRecords(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	records, err := h.weeklyJob.ListPenaltyRecords(c.Request.Context(), actor, actor.ID)
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

// --- Workout logs ---

// GetMyLogs godoc
// @Summary List my workout logs
// @Tags Client
// @Produce json
// @Security BearerAuth
// @Param from query string false "First day, YYYY-MM-DD (default: start of this week)"
// @Param to query string false "Last day, YYYY-MM-DD"
// @Success 200 {array} domain.WorkoutLog
// @Router /client/logs [get]
func (h *ClientHandler) GetMyLogs(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	from, to, ok := dateRangeQuery(c)
	if !ok {
		return
	}
	logs, err := h.logService.ListLogs(c.Request.Context(), actor.ID, from, to)
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, logs)
}

// StartWorkout godoc
// @Summary Start the workout of a day
// @Tags Client
// @Produce json
// @Security BearerAuth
// @Param date path string true "Workout day, YYYY-MM-DD"
// @Success 200 {object} domain.WorkoutLog
// @Failure 409 {object} gin.H "Outside the logging window or a rest day"
// @Router /client/logs/{date}/start [post]
func (h *ClientHandler) StartWorkout(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	date, ok := dayParam(c)
	if !ok {
		return
	}
	log, err := h.logService.StartWorkout(c.Request.Context(), actor.ID, date)
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, log)
}

type ExercisePerformanceRequest struct {
	Name        string  `json:"name" binding:"required"`
	ActualSets  int     `json:"actualSets" binding:"gte=0"`
	ActualReps  []int   `json:"actualReps" binding:"dive,gte=0"`
	WeightKg    float64 `json:"weightKg" binding:"gte=0"`
	IsCompleted bool    `json:"isCompleted"`
	Notes       string  `json:"notes"`
}

type CompleteWorkoutRequest struct {
	Exercises []ExercisePerformanceRequest `json:"exercises" binding:"dive"`
}

// CompleteWorkout godoc
// @Summary Complete the workout of a day
// @Tags Client
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param date path string true "Workout day, YYYY-MM-DD"
// @Param performance body CompleteWorkoutRequest false "What was actually done"
// @Success 200 {object} domain.WorkoutLog
// @Failure 409 {object} gin.H "Already completed, outside the window or a rest day"
// @Router /client/logs/{date}/complete [post]
func (h *ClientHandler) CompleteWorkout(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	date, ok := dayParam(c)
	if !ok {
		return
	}
	var req CompleteWorkoutRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
			return
		}
	}
	exercises := make([]domain.ExerciseLog, len(req.Exercises))
	for i, ex := range req.Exercises {
		exercises[i] = domain.ExerciseLog{
			Name:        ex.Name,
			ActualSets:  ex.ActualSets,
			ActualReps:  ex.ActualReps,
			WeightKg:    ex.WeightKg,
			IsCompleted: ex.IsCompleted,
			Notes:       ex.Notes,
		}
	}

	log, err := h.logService.CompleteWorkout(c.Request.Context(), actor.ID, date, exercises)
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, log)
}

// --- Weigh-ins ---

type RecordWeighInRequest struct {
	WeightKg       float64 `json:"weightKg" binding:"required,gt=0"`
	Date           string  `json:"date"` // YYYY-MM-DD, defaults to today
	PhotoObjectKey string  `json:"photoObjectKey"`
}

// RecordWeighIn godoc
// @Summary Record today's body weight
// @Description Flags a spike when the change since the last weigh-in exceeds the configured threshold.
// @Tags Client
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param weighIn body RecordWeighInRequest true "Weight"
// @Success 201 {object} domain.WeighIn
// @Failure 409 {object} gin.H "Already recorded for that day"
// @Router /client/weigh-ins [post]
func (h *ClientHandler) RecordWeighIn(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req RecordWeighInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	var date time.Time
	if req.Date != "" {
		var err error
		if date, err = dateutil.ParseDay(req.Date); err != nil {
			abortWithError(c, http.StatusBadRequest, "Invalid date, expected YYYY-MM-DD.")
			return
		}
	}

	w, err := h.weighIns.RecordWeighIn(c.Request.Context(), actor.ID, req.WeightKg, date, req.PhotoObjectKey)
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, w)
}

// GetMyWeighIns godoc
// @Summary List my weigh-ins, newest first
// @Tags Client
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Maximum entries"
// @Success 200 {array} domain.WeighIn
// @Router /client/weigh-ins [get]
func (h *ClientHandler) GetMyWeighIns(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	weighIns, err := h.weighIns.ListWeighIns(c.Request.Context(), actor.ID, limit)
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, weighIns)
}

type RequestPhotoUploadURLRequest struct {
	ContentType string `json:"contentType" binding:"required"`
}

// RequestPhotoUploadURL godoc
// @Summary Get a pre-signed URL to upload a weigh-in photo
// @Tags Client
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param upload body RequestPhotoUploadURLRequest true "Photo content type"
// @Success 200 {object} service.PhotoUpload
// @Failure 409 {object} gin.H "Photo storage not configured"
// @Router /client/weigh-ins/photo-upload-url [post]
func (h *ClientHandler) RequestPhotoUploadURL(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req RequestPhotoUploadURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	upload, err := h.weighIns.RequestPhotoUploadURL(c.Request.Context(), actor.ID, req.ContentType)
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, upload)
}

func dayParam(c *gin.Context) (time.Time, bool) {
	date, err := dateutil.ParseDay(c.Param("date"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid date, expected YYYY-MM-DD.")
		return time.Time{}, false
	}
	return date, true
}
