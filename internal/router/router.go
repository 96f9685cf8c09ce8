package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/gh-Constant/IUT-homework/internal/handler"
	internalmiddleware "github.com/gh-Constant/IUT-homework/internal/middleware"
	"github.com/gh-Constant/IUT-homework/internal/models"
	"github.com/gh-Constant/IUT-homework/internal/service"
	"github.com/gh-Constant/IUT-homework/pkg/config"
	"github.com/gh-Constant/IUT-homework/pkg/logger"
	corsmiddleware "github.com/gh-Constant/IUT-homework/pkg/middleware/cors"
	reqidmiddleware "github.com/gh-Constant/IUT-homework/pkg/middleware/requestid"
)

// Dependencies bundles everything the router needs.
type Dependencies struct {
	Config      *config.Config
	Logger      *zap.Logger
	Redis       *redis.Client
	Auth        *service.AuthService
	Assignments *service.AssignmentService
	Users       *service.UserService
	Exports     *service.ExportService
	Metrics     *service.MetricsService
}

// New assembles the gin engine with all middleware and routes.
func New(deps Dependencies) *gin.Engine {
	cfg := deps.Config

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(deps.Logger))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(deps.Metrics))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	authHandler := handler.NewAuthHandler(deps.Auth)
	auth := api.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)

		protected := auth.Group("")
		protected.Use(internalmiddleware.JWT(deps.Auth))
		protected.POST("/logout", authHandler.Logout)
		protected.PUT("/pin", authHandler.ChangePIN)
		protected.GET("/me", authHandler.Me)
	}

	assignmentHandler := handler.NewAssignmentHandler(deps.Assignments)
	assignments := api.Group("/assignments")
	assignments.Use(internalmiddleware.JWT(deps.Auth))
	if cfg.FeedCache.Enabled && deps.Redis != nil {
		assignments.Use(internalmiddleware.FeedCache(deps.Redis, deps.Metrics, cfg.FeedCache.TTL, deps.Logger))
		assignments.Use(internalmiddleware.InvalidateFeedCache(deps.Redis))
	}
	{
		assignments.GET("", assignmentHandler.List)
		assignments.POST("", assignmentHandler.Create)
		assignments.GET("/:id", assignmentHandler.Get)
		assignments.PUT("/:id", assignmentHandler.Update)
		assignments.DELETE("/:id", assignmentHandler.Delete)
		assignments.POST("/:id/vote", assignmentHandler.Vote)
		assignments.PUT("/:id/completion", assignmentHandler.SetCompletion)
	}

	userHandler := handler.NewUserHandler(deps.Users)
	users := api.Group("/users")
	users.Use(internalmiddleware.JWT(deps.Auth))
	{
		users.GET("", internalmiddleware.RequireRoles(models.RoleAdmin), userHandler.List)
		users.GET("/:id", internalmiddleware.RBAC(string(models.RoleAdmin), "SELF"), userHandler.Get)
		users.DELETE("/:id", internalmiddleware.RequireRoles(models.RoleAdmin), userHandler.Delete)
	}

	if cfg.Exports.Enabled && deps.Exports != nil {
		exportHandler := handler.NewExportHandler(deps.Exports)
		exports := api.Group("/exports")
		exports.GET("/download", exportHandler.Download)

		protected := exports.Group("")
		protected.Use(internalmiddleware.JWT(deps.Auth))
		protected.POST("", internalmiddleware.RequireRoles(models.RoleAdmin), exportHandler.Export)
	}

	return r
}
