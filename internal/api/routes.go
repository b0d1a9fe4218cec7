package api

import (
	"fittrainer/backend/internal/domain"
	"fittrainer/backend/internal/metrics"
	"fittrainer/backend/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
)

// RouterDeps holds everything the routes are served from. Metrics and DB
// may be nil.
type RouterDeps struct {
	AuthService     service.AuthService
	WorkoutService  service.WorkoutService
	ProgressService service.ProgressService
	TrainerService  service.TrainerService
	Metrics         *metrics.Manager
	DB              Pinger
	Driver          string
}

func SetupRoutes(router *gin.Engine, deps RouterDeps) {
	authHandler := NewAuthHandler(deps.AuthService)
	workoutHandler := NewWorkoutHandler(deps.WorkoutService)
	clientHandler := NewClientHandler(deps.WorkoutService, deps.ProgressService)
	trainerHandler := NewTrainerHandler(deps.TrainerService)
	healthHandler := NewHealthHandler(deps.DB, deps.Driver)

	router.Use(RequestID(), RequestLogger())
	if deps.Metrics != nil {
		router.Use(MetricsMiddleware(deps.Metrics))
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	router.GET("/health", healthHandler.Health)
	router.GET("/health/db", healthHandler.HealthDB)

	apiGroup := router.Group("/api")
	{
		authGroup := apiGroup.Group("/auth")
		{
			authGroup.POST("/telegram", authHandler.TelegramLogin)
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
		}
	}

	protected := apiGroup.Group("")
	protected.Use(AuthMiddleware(deps.AuthService))
	{
		protected.GET("/me", authHandler.Me)

		// Ownership is checked per workout by the service.
		workoutGroup := protected.Group("/workout")
		{
			workoutGroup.GET("", workoutHandler.ListWorkouts)
			workoutGroup.POST("", RoleMiddleware(domain.RoleTrainer), workoutHandler.CreateWorkout)
			workoutGroup.GET("/:workoutId", workoutHandler.GetWorkout)
			workoutGroup.PUT("/:workoutId", RoleMiddleware(domain.RoleTrainer), workoutHandler.UpdateWorkout)
			workoutGroup.DELETE("/:workoutId", RoleMiddleware(domain.RoleTrainer), workoutHandler.DeleteWorkout)
			workoutGroup.POST("/:workoutId/start", workoutHandler.StartWorkout)
			workoutGroup.POST("/:workoutId/complete", RoleMiddleware(domain.RoleClient), workoutHandler.CompleteWorkout)
		}

		clientGroup := protected.Group("/client")
		clientGroup.Use(RoleMiddleware(domain.RoleClient))
		{
			clientGroup.GET("/schedule", clientHandler.GetSchedule)
			clientGroup.GET("/progress", clientHandler.GetProgress)
			clientGroup.GET("/achievements", clientHandler.GetAchievements)
			clientGroup.POST("/weight", clientHandler.RecordWeight)
		}

		trainerGroup := protected.Group("/trainer")
		trainerGroup.Use(RoleMiddleware(domain.RoleTrainer))
		{
			trainerGroup.POST("/clients/:clientId/assign", trainerHandler.AssignClient)
			trainerGroup.GET("/clients", trainerHandler.GetManagedClients)
			trainerGroup.GET("/analytics", trainerHandler.GetAnalytics)
		}
	}
}
