package main

import (
	"context"
	"errors"
	"fittrainer/backend/internal/api"
	"fittrainer/backend/internal/cache"
	"fittrainer/backend/internal/config"
	"fittrainer/backend/internal/domain"
	"fittrainer/backend/internal/metrics"
	"fittrainer/backend/internal/repository"
	"fittrainer/backend/internal/repository/memory"
	"fittrainer/backend/internal/repository/mongo"
	"fittrainer/backend/internal/service"
	"fittrainer/backend/internal/storage"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata" // app.timezone must resolve on minimal images

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
)

// stores bundles the repositories of whichever driver is configured.
type stores struct {
	users     repository.UserRepository
	profiles  repository.ProfileRepository
	exercises repository.ExerciseRepository
	workouts  repository.WorkoutRepository
	weights   repository.WeightRepository
	pinger    api.Pinger
	close     func()
}

func openMongo(cfg config.DatabaseConfig) (*stores, error) {
	dbClient, err := mongo.ConnectDB(cfg.URI)
	if err != nil {
		return nil, err
	}
	appDB := dbClient.Database(cfg.Name)
	log.WithField("database", cfg.Name).Info("database connection established")

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	mongo.EnsureIndexes(ctx, appDB)

	return &stores{
		users:     mongo.NewMongoUserRepository(appDB),
		profiles:  mongo.NewMongoProfileRepository(appDB),
		exercises: mongo.NewMongoExerciseRepository(appDB),
		workouts:  mongo.NewMongoWorkoutRepository(appDB),
		weights:   mongo.NewMongoWeightRepository(appDB),
		pinger:    mongo.Pinger{Client: dbClient},
		close: func() {
			log.Info("disconnecting MongoDB")
			if err := mongo.DisconnectDB(dbClient); err != nil {
				log.WithError(err).Error("failed to disconnect MongoDB")
			}
		},
	}, nil
}

// openMemory returns a fresh in-process store with a small exercise catalog.
func openMemory() *stores {
	store := memory.NewStore()
	for _, ex := range []domain.Exercise{
		{Name: "Bench Press", MuscleGroup: "Chest", Instructions: "Lower the bar to mid-chest, press to lockout."},
		{Name: "Back Squat", MuscleGroup: "Legs", Instructions: "Break at the hips and knees, keep the chest up."},
		{Name: "Deadlift", MuscleGroup: "Back", Instructions: "Hinge at the hips with a neutral spine."},
		{Name: "Plank", MuscleGroup: "Core", Instructions: "Hold a straight line from head to heels."},
	} {
		id := store.AddExercise(ex)
		log.WithFields(log.Fields{"exerciseId": id.Hex(), "name": ex.Name}).Debug("seeded exercise")
	}
	log.Warn("using the in-memory store; data is lost on restart")
	return &stores{
		users:     store.Users(),
		profiles:  store.Profiles(),
		exercises: store.Exercises(),
		workouts:  store.Workouts(),
		weights:   store.Weights(),
		close:     func() {},
	}
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.Info("starting fitness trainer server")

	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("could not load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	if level, err := log.ParseLevel(cfg.Log.Level); err == nil {
		log.SetLevel(level)
	} else {
		log.Warnf("unknown log level %q, keeping %s", cfg.Log.Level, log.GetLevel())
	}
	log.WithFields(log.Fields{
		"address":  cfg.Server.Address,
		"driver":   cfg.Database.Driver,
		"timezone": cfg.App.Timezone,
		"media":    cfg.S3.Enabled(),
	}).Info("configuration loaded")

	// --- Stores ---
	var db *stores
	switch cfg.Database.Driver {
	case config.DriverMemory:
		db = openMemory()
	default:
		db, err = openMongo(cfg.Database)
		if err != nil {
			log.Fatalf("could not connect to MongoDB: %v", err)
		}
	}
	defer db.close()

	// --- Media storage ---
	var media storage.MediaSigner
	if cfg.S3.Enabled() {
		media, err = storage.NewS3Storage(context.Background(), cfg.S3)
		if err != nil {
			log.Fatalf("failed to initialize S3 storage: %v", err)
		}
	} else {
		log.Info("S3 not configured; exercise media links are disabled")
	}

	// --- Services ---
	metricsManager := metrics.NewManager("fittrainer", "server", prometheus.DefaultRegisterer)
	progressCache := cache.NewProgressCache(cfg.Cache.SizeBytes, cfg.Cache.TTL)
	loc := cfg.Location()

	authService := service.NewAuthService(db.users, db.profiles, service.AuthConfig{
		JWTSecret:     cfg.JWT.Secret,
		JWTExpiration: cfg.JWT.Expiration,
		BotToken:      cfg.Telegram.BotToken,
		MaxAuthAge:    cfg.Telegram.MaxAuthAge,
	}, metricsManager, time.Now)
	workoutService := service.NewWorkoutService(service.WorkoutDeps{
		Workouts:  db.workouts,
		Profiles:  db.profiles,
		Exercises: db.exercises,
		Media:     media,
		Cache:     progressCache,
		Metrics:   metricsManager,
		Location:  loc,
		Now:       time.Now,
	})
	progressService := service.NewProgressService(service.ProgressDeps{
		Workouts:  db.workouts,
		Profiles:  db.profiles,
		Exercises: db.exercises,
		Weights:   db.weights,
		Cache:     progressCache,
		Location:  loc,
		Now:       time.Now,
	})
	trainerService := service.NewTrainerService(db.users, db.profiles, db.workouts, time.Now)

	// --- HTTP ---
	if log.GetLevel() < log.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	api.SetupRoutes(router, api.RouterDeps{
		AuthService:     authService,
		WorkoutService:  workoutService,
		ProgressService: progressService,
		TrainerService:  trainerService,
		Metrics:         metricsManager,
		DB:              db.pinger,
		Driver:          cfg.Database.Driver,
	})

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// --- Graceful Shutdown ---
	serverErr := make(chan error, 1)
	go func() {
		log.Infof("server listening on %s", cfg.Server.Address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		log.WithField("signal", sig.String()).Info("shutting down server")
	case err := <-serverErr:
		log.WithError(err).Error("server failed")
	}

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()
	if err := server.Shutdown(ctxShutdown); err != nil {
		log.WithError(err).Error("server forced to shutdown")
	}

	hits, misses := progressCache.Stats()
	log.WithFields(log.Fields{"cacheHits": hits, "cacheMisses": misses}).Info("server exiting")
}
