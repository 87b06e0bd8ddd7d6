package main

import (
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/raihan-dev/school-core-api/api/swagger"
	"github.com/raihan-dev/school-core-api/internal/handler"
	"github.com/raihan-dev/school-core-api/internal/middleware"
	"github.com/raihan-dev/school-core-api/internal/models"
	"github.com/raihan-dev/school-core-api/internal/repository"
	"github.com/raihan-dev/school-core-api/internal/service"
	"github.com/raihan-dev/school-core-api/pkg/cache"
	"github.com/raihan-dev/school-core-api/pkg/config"
	"github.com/raihan-dev/school-core-api/pkg/database"
	"github.com/raihan-dev/school-core-api/pkg/logger"
	corsmiddleware "github.com/raihan-dev/school-core-api/pkg/middleware/cors"
	reqidmiddleware "github.com/raihan-dev/school-core-api/pkg/middleware/requestid"
	"github.com/raihan-dev/school-core-api/pkg/retry"
)

// @title School Core API
// @version 1.0.0
// @description Consistency and authorization core for school records
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	var redisClient *redis.Client
	if cfg.Cache.Enabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			// Caching is an optimization; the index reads through on miss.
			logr.Sugar().Warnw("redis unavailable, running without cache", "error", err)
			redisClient = nil
		}
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	classRepo := repository.NewClassRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.TTL, logr, cfg.Cache.Enabled && redisClient != nil)
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	index := service.NewEnrollmentIndex(enrollmentRepo, classRepo, assignmentRepo, cacheSvc, metricsSvc, logr)
	authzSvc := service.NewAuthzService(studentRepo, index, metricsSvc, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, assignmentRepo, classRepo, index, validate, logr)
	attendanceSvc := service.NewAttendanceService(attendanceRepo, index, validate, logr)
	paymentSvc := service.NewPaymentService(paymentRepo, studentRepo, validate, logr)
	exportSvc := service.NewExportService(attendanceSvc, paymentSvc, logr)

	policy := retry.Policy{Attempts: cfg.Gateway.RetryAttempts, BaseWait: cfg.Gateway.RetryBaseWait}

	authHandler := handler.NewAuthHandler(authSvc)
	attendanceHandler := handler.NewAttendanceHandler(attendanceSvc, authzSvc, exportSvc, policy)
	paymentHandler := handler.NewPaymentHandler(paymentSvc, authzSvc, exportSvc, policy)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc, index, authzSvc, policy)
	yearHandler := handler.NewAcademicYearHandler()
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	api.POST("/auth/login", authHandler.Login)

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))
	protected.GET("/auth/me", authHandler.Me)
	protected.GET("/academic-years", yearHandler.List)

	protected.GET("/attendance", attendanceHandler.Get)
	protected.POST("/attendance", attendanceHandler.Save)
	protected.GET("/students/:id/attendance", attendanceHandler.StudentHistory)
	protected.GET("/students/:id/enrollment", enrollmentHandler.StudentEnrollment)
	protected.GET("/classes/:id/roster", enrollmentHandler.ClassRoster)
	protected.GET("/teachers/:id/classes", enrollmentHandler.TeacherClasses)
	protected.GET("/payments", paymentHandler.List)
	protected.GET("/payments/:id", paymentHandler.Get)

	if cfg.Exports.Enabled {
		protected.GET("/attendance/export", attendanceHandler.Export)
		protected.GET("/payments/:id/export", paymentHandler.Export)
	}

	admin := protected.Group("")
	admin.Use(middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin))
	admin.DELETE("/attendance", attendanceHandler.Delete)
	admin.POST("/payments", paymentHandler.Create)
	admin.POST("/payments/:id/entries", paymentHandler.AppendEntry)
	admin.PUT("/payments/:id/fees", paymentHandler.UpdateFees)
	admin.POST("/enrollments", enrollmentHandler.Enroll)
	admin.POST("/enrollments/:id/transfer", enrollmentHandler.Transfer)
	admin.DELETE("/enrollments/:id", enrollmentHandler.Withdraw)
	admin.POST("/assignments", enrollmentHandler.AssignTeacher)
	admin.DELETE("/assignments/:id", enrollmentHandler.UnassignTeacher)
	if cfg.Exports.Enabled {
		admin.GET("/reports/payments", paymentHandler.Summary)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
