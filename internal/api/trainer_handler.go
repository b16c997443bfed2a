package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/bjelicb/kinetix-backend-sub000/internal/dateutil"
	"github.com/bjelicb/kinetix-backend-sub000/internal/domain"
	"github.com/bjelicb/kinetix-backend-sub000/internal/service"
)

type TrainerHandler struct {
	trainerService service.TrainerService
	planService    service.PlanService
	logService     service.WorkoutLogService
	ledger         service.LedgerService
	weeklyJob      service.WeeklyPenaltyJob
	weighIns       service.WeighInService
}

func NewTrainerHandler(
	trainerService service.TrainerService,
	planService service.PlanService,
	logService service.WorkoutLogService,
	ledger service.LedgerService,
	weeklyJob service.WeeklyPenaltyJob,
	weighIns service.WeighInService,
) *TrainerHandler {
	return &TrainerHandler{
		trainerService: trainerService,
		planService:    planService,
		logService:     logService,
		ledger:         ledger,
		weeklyJob:      weeklyJob,
		weighIns:       weighIns,
	}
}

// --- Roster ---

type AddClientRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// AddClientByEmail godoc
// @Summary Add a client to the trainer's roster
// @Tags Trainer
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param client body AddClientRequest true "Client email"
// @Success 200 {object} UserResponse
// @Failure 400 {object} gin.H "Invalid input or user is not a client"
// @Failure 404 {object} gin.H "Client not found"
// @Failure 409 {object} gin.H "Client already has a trainer"
// @Router /trainer/clients [post]
func (h *TrainerHandler) AddClientByEmail(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req AddClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	client, err := h.trainerService.AddClientByEmail(c.Request.Context(), actor.ID, req.Email)
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapUserToResponse(client))
}

// GetManagedClients godoc
// @Summary List the trainer's clients
// @Tags Trainer
// @Produce json
// @Security BearerAuth
// @Success 200 {array} UserResponse
// @Router /trainer/clients [get]
func (h *TrainerHandler) GetManagedClients(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	clients, err := h.trainerService.GetManagedClients(c.Request.Context(), actor.ID)
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapUsersToResponse(clients))
}

// GetManagedClient godoc
// @Summary Get one of the trainer's clients
// @Tags Trainer
// @Produce json
// @Security BearerAuth
// @Param clientId path string true "Client ID"
// @Success 200 {object} UserResponse
// @Failure 403 {object} gin.H "Client is managed by another trainer"
// @Failure 404 {object} gin.H "Client not found"
// @Router /trainer/clients/{clientId} [get]
func (h *TrainerHandler) GetManagedClient(c *gin.Context) {
	client, ok := h.managedClient(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, MapUserToResponse(client))
}

// managedClient resolves :clientId and checks the caller may manage it.
func (h *TrainerHandler) managedClient(c *gin.Context) (*domain.User, bool) {
	actor, ok := actorFromContext(c)
	if !ok {
		return nil, false
	}
	clientID, ok := objectIDParam(c, "clientId")
	if !ok {
		return nil, false
	}
	client, err := h.trainerService.GetManagedClient(c.Request.Context(), actor, clientID)
	if err != nil {
		respondWithServiceError(c, err)
		return nil, false
	}
	return client, true
}

// --- Training Plans ---

type PlanExerciseRequest struct {
	Name        string `json:"name" binding:"required"`
	Sets        int    `json:"sets" binding:"gte=0"`
	Reps        string `json:"reps"`
	RestSeconds int    `json:"restSeconds" binding:"gte=0"`
	Notes       string `json:"notes"`
}

type PlanDayRequest struct {
	DayIndex  int                   `json:"dayIndex" binding:"required,min=1,max=7"`
	IsRestDay bool                  `json:"isRestDay"`
	Name      string                `json:"name"`
	Exercises []PlanExerciseRequest `json:"exercises" binding:"dive"`
}

type CreateTrainingPlanRequest struct {
	Name        string           `json:"name" binding:"required"`
	Description string           `json:"description"`
	Days        []PlanDayRequest `json:"days" binding:"required,min=1,max=7,dive"`
	WeeklyCost  float64          `json:"weeklyCost" binding:"gte=0"`
	IsTemplate  bool             `json:"isTemplate"`
}

type TrainingPlanResponse struct {
	ID                string           `json:"id"`
	TrainerID         string           `json:"trainerId"`
	Name              string           `json:"name"`
	Description       string           `json:"description,omitempty"`
	Days              []domain.PlanDay `json:"days"`
	WeeklyCost        float64          `json:"weeklyCost"`
	IsTemplate        bool             `json:"isTemplate"`
	IsArchived        bool             `json:"isArchived"`
	AssignedClientIDs []string         `json:"assignedClientIds"`
	CreatedAt         time.Time        `json:"createdAt"`
	UpdatedAt         time.Time        `json:"updatedAt"`
}

// MapTrainingPlanToResponse converts domain.TrainingPlan to DTO
func MapTrainingPlanToResponse(p *domain.TrainingPlan) TrainingPlanResponse {
	if p == nil {
		return TrainingPlanResponse{}
	}
	assigned := make([]string, len(p.AssignedClientIDs))
	for i, id := range p.AssignedClientIDs {
		assigned[i] = id.Hex()
	}
	return TrainingPlanResponse{
		ID:                p.ID.Hex(),
		TrainerID:         p.TrainerID.Hex(),
		Name:              p.Name,
		Description:       p.Description,
		Days:              p.Days,
		WeeklyCost:        p.WeeklyCost,
		IsTemplate:        p.IsTemplate,
		IsArchived:        p.IsArchived,
		AssignedClientIDs: assigned,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
}

func MapTrainingPlansToResponse(plans []domain.TrainingPlan) []TrainingPlanResponse {
	planResponses := make([]TrainingPlanResponse, len(plans))
	for i := range plans {
		planResponses[i] = MapTrainingPlanToResponse(&plans[i])
	}
	return planResponses
}

// CreateTrainingPlan godoc
// @Summary Create a weekly training plan
// @Tags Trainer
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param plan body CreateTrainingPlanRequest true "Plan details"
// @Success 201 {object} TrainingPlanResponse
// @Failure 400 {object} gin.H "Invalid input"
// @Router /trainer/plans [post]
func (h *TrainerHandler) CreateTrainingPlan(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req CreateTrainingPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	in := service.CreatePlanInput{
		Name:        req.Name,
		Description: req.Description,
		WeeklyCost:  req.WeeklyCost,
		IsTemplate:  req.IsTemplate,
		Days:        make([]domain.PlanDay, len(req.Days)),
	}
	for i, d := range req.Days {
		day := domain.PlanDay{DayIndex: d.DayIndex, IsRestDay: d.IsRestDay, Name: d.Name}
		for _, ex := range d.Exercises {
			day.Exercises = append(day.Exercises, domain.PlanExercise{
				Name:        ex.Name,
				Sets:        ex.Sets,
				Reps:        ex.Reps,
				RestSeconds: ex.RestSeconds,
				Notes:       ex.Notes,
			})
		}
		in.Days[i] = day
	}

	plan, err := h.planService.CreatePlan(c.Request.Context(), actor, in)
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, MapTrainingPlanToResponse(plan))
}

// ListTrainingPlans godoc
// @Summary List the trainer's plans
// @Tags Trainer
// @Produce json
// @Security BearerAuth
// @Param includeArchived query bool false "Include archived plans"
// @Success 200 {array} TrainingPlanResponse
// @Router /trainer/plans [get]
func (h *TrainerHandler) ListTrainingPlans(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	includeArchived, _ := strconv.ParseBool(c.DefaultQuery("includeArchived", "false"))

	plans, err := h.planService.ListPlans(c.Request.Context(), actor, includeArchived)
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapTrainingPlansToResponse(plans))
}

// GetTrainingPlan godoc
// @Summary Get a plan
// @Tags Trainer
// @Produce json
// @Security BearerAuth
// @Param planId path string true "Plan ID"
// @Success 200 {object} TrainingPlanResponse
// @Failure 403 {object} gin.H "Plan belongs to another trainer"
// @Failure 404 {object} gin.H "Plan not found"
// @Router /trainer/plans/{planId} [get]
func (h *TrainerHandler) GetTrainingPlan(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	planID, ok := objectIDParam(c, "planId")
	if !ok {
		return
	}
	plan, err := h.planService.GetPlan(c.Request.Context(), actor, planID)
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapTrainingPlanToResponse(plan))
}

// ArchiveTrainingPlan godoc
// @Summary Archive a plan
// @Description Archived plans cannot be assigned again. Existing assignments are untouched.
// @Tags Trainer
// @Security BearerAuth
// @Param planId path string true "Plan ID"
// @Success 204 "No Content"
// @Router /trainer/plans/{planId} [delete]
func (h *TrainerHandler) ArchiveTrainingPlan(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	planID, ok := objectIDParam(c, "planId")
	if !ok {
		return
	}
	if err := h.planService.ArchivePlan(c.Request.Context(), actor, planID); err != nil {
		respondWithServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type AssignPlanRequest struct {
	ClientIDs []string `json:"clientIds" binding:"required,min=1,dive,required"`
	StartDate string   `json:"startDate" binding:"required"` // YYYY-MM-DD
}

// AssignTrainingPlan godoc
// @Summary Assign a plan to clients for one week
// @Description Generates seven daily workout logs per client starting at startDate.
// @Tags Trainer
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param planId path string true "Plan ID"
// @Param assignment body AssignPlanRequest true "Clients and start date"
// @Success 200 {object} service.AssignResult
// @Failure 400 {object} gin.H "Invalid input"
// @Failure 403 {object} gin.H "Plan or client belongs to another trainer"
// @Failure 409 {object} gin.H "Plan archived"
// @Router /trainer/plans/{planId}/assign [post]
func (h *TrainerHandler) AssignTrainingPlan(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	planID, ok := objectIDParam(c, "planId")
	if !ok {
		return
	}
	var req AssignPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	startDate, err := dateutil.ParseDay(req.StartDate)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid startDate, expected YYYY-MM-DD.")
		return
	}
	clientIDs := make([]primitive.ObjectID, len(req.ClientIDs))
	for i, hex := range req.ClientIDs {
		clientIDs[i], err = primitive.ObjectIDFromHex(hex)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Invalid client ID %q.", hex))
			return
		}
	}

	result, err := h.planService.AssignPlan(c.Request.Context(), actor, planID, clientIDs, startDate)
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// CancelTrainingPlan godoc
// @Summary Cancel a plan for one client
// @Description Removes the assignment, deletes uncompleted logs and refunds the plan's penalties.
// @Tags Trainer
// @Produce json
// @Security BearerAuth
// @Param planId path string true "Plan ID"
// @Param clientId path string true "Client ID"
// @Success 200 {object} service.CancelResult
// @Router /trainer/plans/{planId}/clients/{clientId} [delete]
func (h *TrainerHandler) CancelTrainingPlan(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	planID, ok := objectIDParam(c, "planId")
	if !ok {
		return
	}
	clientID, ok := objectIDParam(c, "clientId")
	if !ok {
		return
	}
	result, err := h.planService.CancelPlan(c.Request.Context(), actor, planID, clientID)
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// --- Workout Logs ---

type SetLogStatusRequest struct {
	Status service.LogStatus `json:"status" binding:"required,oneof=completed missed pending"`
}

// SetWorkoutLogStatus godoc
// @Summary Override a workout log's status
// @Tags Trainer
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param logId path string true "Workout log ID"
// @Param status body SetLogStatusRequest true "New status"
// @Success 200 {object} domain.WorkoutLog
// @Failure 409 {object} gin.H "Rest day"
// @Router /trainer/logs/{logId}/status [patch]
func (h *TrainerHandler) SetWorkoutLogStatus(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	logID, ok := objectIDParam(c, "logId")
	if !ok {
		return
	}
	var req SetLogStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	log, err := h.logService.SetLogStatus(c.Request.Context(), actor, logID, req.Status)
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, log)
}

// GetClientLogs godoc
// @Summary List a client's workout logs
// @Tags Trainer
// @Produce json
// @Security BearerAuth
// @Param clientId path string true "Client ID"
// @Param from query string false "First day, YYYY-MM-DD"
// @Param to query string false "Last day, YYYY-MM-DD"
// @Success 200 {array} domain.WorkoutLog
// @Router /trainer/clients/{clientId}/logs [get]
func (h *TrainerHandler) GetClientLogs(c *gin.Context) {
	client, ok := h.managedClient(c)
	if !ok {
		return
	}
	from, to, ok := dateRangeQuery(c)
	if !ok {
		return
	}
	logs, err := h.logService.ListLogs(c.Request.Context(), client.ID, from, to)
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, logs)
}

// --- Balance & Penalties ---

// GetClientBalance godoc
// @Summary Get a client's running tab
// @Tags Trainer
// @Produce json
// @Security BearerAuth
// @Param clientId path string true "Client ID"
// @Success 200 {object} service.BalanceSummary
// @Router /trainer/clients/{clientId}/balance [get]
func (h *TrainerHandler) GetClientBalance(c *gin.Context) {
	client, ok := h.managedClient(c)
	if !ok {
		return
	}
	summary, err := h.ledger.GetBalance(c.Request.Context(), client.ID)
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// ClearClientBalance godoc
// @Summary Record that a client settled their balance
// @Description Zeroes balance and monthly balance. Penalty history is kept.
// @Tags Trainer
// @Produce json
// @Security BearerAuth
// @Param clientId path string true "Client ID"
// @Success 200 {object} UserResponse
// @Router /trainer/clients/{clientId}/balance/clear [post]
func (h *TrainerHandler) ClearClientBalance(c *gin.Context) {
	client, ok := h.managedClient(c)
	if !ok {
		return
	}
	updated, err := h.ledger.ClearBalance(c.Request.Context(), client.ID)
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapUserToResponse(updated))
}

// GetClientPenaltyRecords godoc
// @Summary List a client's weekly adherence records
// @Tags Trainer
// @Produce json
// @Security BearerAuth
// @Param clientId path string true "Client ID"
// @Success 200 {array} domain.PenaltyRecord
// @Router /trainer/clients/{clientId}/penalty-records [get]
func (h *TrainerHandler) GetClientPenaltyRecords(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	clientID, ok := objectIDParam(c, "clientId")
	if !ok {
		return
	}
	records, err := h.weeklyJob.ListPenaltyRecords(c.Request.Context(), actor, clientID)
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

// GetClientWeighIns godoc
// @Summary List a client's weigh-ins
// @Tags Trainer
// @Produce json
// @Security BearerAuth
// @Param clientId path string true "Client ID"
// @Param limit query int false "Maximum entries, newest first"
// @Success 200 {array} domain.WeighIn
// @Router /trainer/clients/{clientId}/weigh-ins [get]
func (h *TrainerHandler) GetClientWeighIns(c *gin.Context) {
	client, ok := h.managedClient(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	weighIns, err := h.weighIns.ListWeighIns(c.Request.Context(), client.ID, limit)
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, weighIns)
}

// ListNextWeekRequests godoc
// @Summary List clients waiting for their next week's plan
// @Tags Trainer
// @Produce json
// @Security BearerAuth
// @Success 200 {array} service.NextWeekRequest
// @Router /trainer/next-week-requests [get]
func (h *TrainerHandler) ListNextWeekRequests(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	requests, err := h.trainerService.ListPendingNextWeekRequests(c.Request.Context(), actor.ID)
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, requests)
}

// dateRangeQuery reads optional from/to day parameters, defaulting to the
// current ISO week.
func dateRangeQuery(c *gin.Context) (from, to time.Time, ok bool) {
	var err error
	if s := c.Query("from"); s != "" {
		if from, err = dateutil.ParseDay(s); err != nil {
			abortWithError(c, http.StatusBadRequest, "Invalid from date, expected YYYY-MM-DD.")
			return from, to, false
		}
	}
	if s := c.Query("to"); s != "" {
		if to, err = dateutil.ParseDay(s); err != nil {
			abortWithError(c, http.StatusBadRequest, "Invalid to date, expected YYYY-MM-DD.")
			return from, to, false
		}
	}
	if from.IsZero() {
		from = dateutil.ISOWeekStart(time.Now().UTC())
	}
	if to.IsZero() {
		to = dateutil.AddDays(from, domain.DaysPerWeek-1)
	}
	// to is inclusive for callers, exclusive for the service.
	return from, dateutil.AddDays(to, 1), true
}
