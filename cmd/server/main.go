package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"github.com/bjelicb/kinetix-backend-sub000/internal/api"
	"github.com/bjelicb/kinetix-backend-sub000/internal/cache"
	"github.com/bjelicb/kinetix-backend-sub000/internal/config"
	"github.com/bjelicb/kinetix-backend-sub000/internal/dateutil"
	"github.com/bjelicb/kinetix-backend-sub000/internal/lock"
	"github.com/bjelicb/kinetix-backend-sub000/internal/logging"
	"github.com/bjelicb/kinetix-backend-sub000/internal/metrics"
	"github.com/bjelicb/kinetix-backend-sub000/internal/repository"
	"github.com/bjelicb/kinetix-backend-sub000/internal/repository/memory"
	"github.com/bjelicb/kinetix-backend-sub000/internal/repository/mongo"
	"github.com/bjelicb/kinetix-backend-sub000/internal/scheduler"
	"github.com/bjelicb/kinetix-backend-sub000/internal/service"
	"github.com/bjelicb/kinetix-backend-sub000/internal/storage"
)

type repositories struct {
	users     repository.UserRepository
	plans     repository.TrainingPlanRepository
	logs      repository.WorkoutLogRepository
	penalties repository.PenaltyRecordRepository
	weighIns  repository.WeighInRepository
	close     func()
}

// @title Kinetix API
// @version 1.0
// @description Weekly training plans, workout logging and the penalty ledger for trainers and their clients.
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("could not load config: %v", err)
	}

	logging.Setup(logging.SetupParams{
		LogFileName:   cfg.Logging.File,
		LogToStdout:   cfg.Logging.Stdout,
		LogLevel:      cfg.Logging.Level,
		LogFormatJSON: cfg.Logging.JSON,
	})
	logger := logging.Component("main")
	logger.WithField("driver", cfg.Database.Driver).Info("starting kinetix server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Repositories ---
	repos, err := openRepositories(ctx, cfg)
	if err != nil {
		logger.WithError(err).Fatal("could not initialize repositories")
	}
	defer repos.close()
	planRepo := cache.NewPlanRepository(repos.plans, cfg.Cache.PlanCacheBytes, cfg.Cache.PlanTTL)

	// --- Storage ---
	fileStorage := storage.NewDisabledStorage()
	if cfg.S3.Enabled() {
		if fileStorage, err = storage.NewS3Storage(ctx, cfg.S3); err != nil {
			logger.WithError(err).Fatal("could not initialize S3 storage")
		}
	} else {
		logger.Warn("s3.bucket_name not set, weigh-in photo uploads are disabled")
	}

	// --- Job lock ---
	var locker lock.Locker = lock.NewLocalLocker()
	if cfg.Redis.Address != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.WithError(err).Fatal("could not reach redis")
		}
		locker = lock.NewRedisLocker(rdb)
	} else {
		logger.Info("redis.address not set, job locks are process-local")
	}

	// --- Services ---
	m := metrics.NewManager("kinetix", "server", prometheus.DefaultRegisterer)
	clock := dateutil.SystemClock{}

	ledger := service.NewLedgerService(repos.users, clock, m, cfg.Ledger.Currency)
	logService := service.NewWorkoutLogService(repos.logs, repos.users, ledger, locker, clock, m, service.WorkoutLogSettings{
		LogWindowDays:        cfg.Workouts.LogWindowDays,
		SuspiciousDuration:   cfg.Workouts.SuspiciousDuration,
		MissedWorkoutPenalty: cfg.Ledger.MissedWorkoutPenalty,
	})
	weeklyJob := service.NewWeeklyPenaltyJob(repos.users, repos.logs, repos.penalties, clock)
	sweeper := service.NewMissedWorkoutSweeper(repos.logs, ledger, clock, m, cfg.Ledger.MissedWorkoutPenalty)
	jobs := scheduler.NewScheduler(ctx, sweeper, weeklyJob, locker, cfg.Jobs.LockTTL, m)

	services := api.Services{
		Auth:     service.NewAuthService(repos.users, cfg.JWT.Secret, cfg.JWT.Expiration, clock),
		Trainer:  service.NewTrainerService(repos.users),
		Client:   service.NewClientService(repos.users, planRepo, repos.logs, ledger, clock, m),
		Plans:    service.NewPlanService(planRepo, repos.users, logService, ledger, clock),
		Logs:     logService,
		Ledger:   ledger,
		WeighIns: service.NewWeighInService(repos.weighIns, repos.users, fileStorage, clock, m, cfg.WeighIns.SpikeThresholdPercent, cfg.S3.PresignExpiry),
		Weekly:   weeklyJob,
		Jobs:     jobs,
	}

	// --- Scheduler ---
	if cfg.Jobs.Enabled {
		if err := jobs.RegisterAll(cfg.Jobs.MissedWorkoutsCron, cfg.Jobs.WeeklyPenaltiesCron); err != nil {
			logger.WithError(err).Fatal("could not register jobs")
		}
		jobs.Start()
		if cfg.Jobs.RunOnStart {
			go func() {
				_, _ = jobs.RunMissedNow(ctx)
				_, _ = jobs.RunWeeklyNow(ctx)
			}()
		}
	}

	// --- HTTP ---
	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(gin.Recovery())
	api.SetupRoutes(router, services, m, nil)

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.WithField("address", cfg.Server.Address).Info("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("http server failed")
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.WithError(err).Error("server forced to shutdown")
	}
	cancel()
	if cfg.Jobs.Enabled {
		jobs.Stop(ctxShutdown)
	}

	logger.Info("server exited")
}

func openRepositories(ctx context.Context, cfg config.Config) (*repositories, error) {
	if cfg.Database.Driver == config.DriverMemory {
		log.Warn("using in-memory repositories, data is lost on restart")
		return &repositories{
			users:     memory.NewUserRepository(),
			plans:     memory.NewTrainingPlanRepository(),
			logs:      memory.NewWorkoutLogRepository(),
			penalties: memory.NewPenaltyRecordRepository(),
			weighIns:  memory.NewWeighInRepository(),
			close:     func() {},
		}, nil
	}

	client, err := mongo.ConnectDB(cfg.Database.URI)
	if err != nil {
		return nil, err
	}
	db := client.Database(cfg.Database.Name)

	indexCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	if err := mongo.EnsureIndexes(indexCtx, db, logging.Component("mongo")); err != nil {
		_ = mongo.DisconnectDB(client)
		return nil, err
	}

	return &repositories{
		users:     mongo.NewMongoUserRepository(db),
		plans:     mongo.NewMongoTrainingPlanRepository(db),
		logs:      mongo.NewMongoWorkoutLogRepository(db),
		penalties: mongo.NewMongoPenaltyRecordRepository(db),
		weighIns:  mongo.NewMongoWeighInRepository(db),
		close: func() {
			if err := mongo.DisconnectDB(client); err != nil {
				log.WithError(err).Error("failed to disconnect MongoDB")
			}
		},
	}, nil
}
