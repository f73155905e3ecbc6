package router

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"clinic-tracker/backend/internal/config"
	"clinic-tracker/backend/internal/handlers"
	"clinic-tracker/backend/internal/middleware"
	"clinic-tracker/backend/internal/models"
	"clinic-tracker/backend/internal/monitoring"
	"clinic-tracker/backend/internal/services"
)

// SetupRouter wires middleware, services and routes. Role gates mirror the
// operation table: doctor-only and admin-only actions are gated here, while
// ownership and lifecycle-state checks live in the services.
func SetupRouter(db *gorm.DB, cfg *config.Config) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	handlers.SetDevelopmentMode(!cfg.IsProduction())

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(middleware.RecoveryWithLog())
	r.Use(monitoring.MetricsMiddleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	if cfg.RateLimit.Enabled {
		r.Use(middleware.NewRateLimiter(cfg.RateLimit).Middleware())
	}

	authService := services.NewAuthService(cfg.Auth)
	registerService := services.NewRegisterService(cfg.Auth.BCryptCost)
	userService := services.NewUserService(cfg.Auth.BCryptCost)
	taskService := services.NewTaskService()

	authHandler := handlers.NewAuthHandler(db, authService)
	registerHandler := handlers.NewRegisterHandler(db, registerService, authService)
	refreshHandler := handlers.NewRefreshHandler(db, authService)
	logoutHandler := handlers.NewLogoutHandler(db, authService)
	userHandler := handlers.NewUserHandler(db, userService)
	taskHandler := handlers.NewTaskHandler(db, taskService)

	auth := middleware.Authenticate(cfg.Auth.JWTSecret)

	r.GET("/health", monitoring.HealthHandler())
	r.GET("/ready", monitoring.ReadinessHandler())
	r.GET("/live", monitoring.LivenessHandler())
	r.GET("/metrics", monitoring.MetricsHandler())

	users := r.Group("/api/users")
	{
		users.POST("", registerHandler.Registration)
		users.POST("/login", authHandler.Login)
		users.POST("/refresh", refreshHandler.Refresh)
		users.POST("/logout", logoutHandler.Logout)
		users.GET("/me", auth, userHandler.Me)
		users.GET("/doctors", auth, middleware.RequireRoles(models.RoleAdmin, models.RoleDoctor), userHandler.GetDoctors)
		users.GET("/all", auth, middleware.RequireRoles(models.RoleAdmin), userHandler.GetUsers)
		users.PUT("/:id", auth, middleware.RequireRoles(models.RoleAdmin), userHandler.UpdateUser)
		users.DELETE("/:id", auth, middleware.RequireRoles(models.RoleAdmin), userHandler.DeleteUser)
	}

	tasks := r.Group("/api/tasks", auth)
	{
		tasks.GET("", middleware.RequireRoles(models.RoleAdmin, models.RoleDoctor), taskHandler.GetTasks)
		tasks.POST("", middleware.RequireRoles(models.RoleAdmin), taskHandler.CreateTask)
		tasks.GET("/:id", middleware.RequireRoles(models.RoleAdmin, models.RoleDoctor), taskHandler.GetTaskByID)
		tasks.PUT("/:id", middleware.RequireRoles(models.RoleAdmin, models.RoleDoctor), taskHandler.UpdateTask)
		tasks.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), taskHandler.DeleteTask)
		tasks.PUT("/:id/accept", middleware.RequireRoles(models.RoleDoctor), taskHandler.AcceptTask)
		tasks.PUT("/:id/reject", middleware.RequireRoles(models.RoleDoctor), taskHandler.RejectTask)
		tasks.PUT("/:id/request-date-change", middleware.RequireRoles(models.RoleDoctor), taskHandler.RequestDateChange)
		tasks.PUT("/:id/review-date-change", middleware.RequireRoles(models.RoleAdmin), taskHandler.ReviewDateChange)
	}

	return r
}
