package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bjelicb/kinetix-backend-sub000/internal/domain"
	"github.com/bjelicb/kinetix-backend-sub000/internal/metrics"
	"github.com/bjelicb/kinetix-backend-sub000/internal/service"
)

// Services groups everything the HTTP layer calls into.
type Services struct {
	Auth     service.AuthService
	Trainer  service.TrainerService
	Client   service.ClientService
	Plans    service.PlanService
	Logs     service.WorkoutLogService
	Ledger   service.LedgerService
	WeighIns service.WeighInService
	Weekly   service.WeeklyPenaltyJob
	Jobs     JobRunner
}

// SetupRoutes registers every route on router. gatherer backs /metrics;
// nil means the default Prometheus registry.
func SetupRoutes(router *gin.Engine, svc Services, m *metrics.Manager, gatherer prometheus.Gatherer) {
	authHandler := NewAuthHandler(svc.Auth)
	trainerHandler := NewTrainerHandler(svc.Trainer, svc.Plans, svc.Logs, svc.Ledger, svc.Weekly, svc.WeighIns)
	clientHandler := NewClientHandler(svc.Client, svc.Logs, svc.WeighIns, svc.Weekly)
	adminHandler := NewAdminHandler(svc.Jobs, svc.Ledger)

	router.Use(RequestLogger(), MetricsMiddleware(m))

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	apiV1 := router.Group("/api/v1")
	{
		authGroup := apiV1.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
		}
	}

	protected := apiV1.Group("")
	protected.Use(AuthMiddleware(svc.Auth.ParseToken))
	{
		protected.GET("/me", func(c *gin.Context) {
			actor, ok := actorFromContext(c)
			if !ok {
				return
			}
			c.JSON(http.StatusOK, gin.H{"userId": actor.ID.Hex(), "role": actor.Role})
		})

		trainerGroup := protected.Group("/trainer")
		trainerGroup.Use(RoleMiddleware(domain.RoleTrainer, domain.RoleAdmin))
		{
			// --- Roster ---
			trainerGroup.POST("/clients", trainerHandler.AddClientByEmail)
			trainerGroup.GET("/clients", trainerHandler.GetManagedClients)
			trainerGroup.GET("/clients/:clientId", trainerHandler.GetManagedClient)
			trainerGroup.GET("/clients/:clientId/logs", trainerHandler.GetClientLogs)
			trainerGroup.GET("/clients/:clientId/balance", trainerHandler.GetClientBalance)
			trainerGroup.POST("/clients/:clientId/balance/clear", trainerHandler.ClearClientBalance)
			trainerGroup.GET("/clients/:clientId/penalty-records", trainerHandler.GetClientPenaltyRecords)
			trainerGroup.GET("/clients/:clientId/weigh-ins", trainerHandler.GetClientWeighIns)
			trainerGroup.GET("/next-week-requests", trainerHandler.ListNextWeekRequests)

			// --- Training Plans ---
			trainerGroup.POST("/plans", trainerHandler.CreateTrainingPlan)
			trainerGroup.GET("/plans", trainerHandler.ListTrainingPlans)
			trainerGroup.GET("/plans/:planId", trainerHandler.GetTrainingPlan)
			trainerGroup.DELETE("/plans/:planId", trainerHandler.ArchiveTrainingPlan)
			trainerGroup.POST("/plans/:planId/assign", trainerHandler.AssignTrainingPlan)
			trainerGroup.DELETE("/plans/:planId/clients/:clientId", trainerHandler.CancelTrainingPlan)

			// --- Workout Logs ---
			trainerGroup.PATCH("/logs/:logId/status", trainerHandler.SetWorkoutLogStatus)
		}

		clientGroup := protected.Group("/client")
		clientGroup.Use(RoleMiddleware(domain.RoleClient))
		{
			clientGroup.GET("/unlock-status", clientHandler.GetUnlockStatus)
			clientGroup.GET("/balance", clientHandler.GetBalance)
			clientGroup.GET("/penalty-records", clientHandler.GetMyPenaltyRecords)
			clientGroup.GET("/logs", clientHandler.GetMyLogs)
			clientGroup.GET("/weigh-ins", clientHandler.GetMyWeighIns)

			// Writes are blocked while the monthly balance is unpaid.
			paywalled := clientGroup.Group("")
			paywalled.Use(PaywallMiddleware(svc.Client))
			{
				paywalled.POST("/next-week", clientHandler.RequestNextWeek)
				paywalled.POST("/logs/:date/start", clientHandler.StartWorkout)
				paywalled.POST("/logs/:date/complete", clientHandler.CompleteWorkout)
				paywalled.POST("/weigh-ins", clientHandler.RecordWeighIn)
				paywalled.POST("/weigh-ins/photo-upload-url", clientHandler.RequestPhotoUploadURL)
			}
		}

		adminGroup := protected.Group("/admin")
		adminGroup.Use(RoleMiddleware(domain.RoleAdmin))
		{
			adminGroup.POST("/jobs/missed-workouts", adminHandler.RunMissedWorkouts)
			adminGroup.POST("/jobs/weekly-penalties", adminHandler.RunWeeklyPenalties)
			adminGroup.POST("/clients/:clientId/penalties", adminHandler.ApplyPenalty)
		}
	}
}
