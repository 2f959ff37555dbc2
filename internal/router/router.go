package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"github.com/ulule/limiter/v3"
	"go.uber.org/zap"

	_ "github.com/noah-isme/vacation-api/api/swagger"
	"github.com/noah-isme/vacation-api/internal/handler"
	"github.com/noah-isme/vacation-api/internal/middleware"
	"github.com/noah-isme/vacation-api/internal/policy"
	"github.com/noah-isme/vacation-api/pkg/config"
	appErrors "github.com/noah-isme/vacation-api/pkg/errors"
	"github.com/noah-isme/vacation-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/vacation-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/vacation-api/pkg/middleware/requestid"
	"github.com/noah-isme/vacation-api/pkg/response"
)

// Handlers groups every HTTP handler mounted by the router.
type Handlers struct {
	Auth      *handler.AuthHandler
	Users     *handler.UserHandler
	Employees *handler.EmployeeHandler
	Vacations *handler.VacationHandler
	Balances  *handler.BalanceHandler
	Audit     *handler.AuditHandler
	Health    *handler.HealthHandler
}

// Deps carries the cross-cutting collaborators.
type Deps struct {
	Tokens      middleware.TokenValidator
	Metrics     middleware.HTTPObserver
	AuthLimiter *limiter.Limiter
	Logger      *zap.Logger
}

// New builds the gin engine with the full route table.
func New(cfg *config.Config, h Handlers, deps Deps) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		deps.Logger.Error("panic recovered", zap.Any("panic", recovered), zap.String("path", c.Request.URL.Path))
		response.Abort(c, appErrors.ErrInternal)
	}))
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(deps.Logger, "/health", "/ready", "/metrics"))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.Metrics))

	r.NoRoute(func(c *gin.Context) {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "route not found"))
	})
	r.NoMethod(func(c *gin.Context) {
		response.Error(c, appErrors.New("METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed, "method not allowed"))
	})

	r.GET("/health", h.Health.Health)
	r.GET("/ready", h.Health.Ready)
	r.GET("/metrics", h.Health.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	authn := middleware.JWT(deps.Tokens)
	can := middleware.RequireAction

	throttle := func(c *gin.Context) { c.Next() }
	if cfg.RateLimit.Enabled && deps.AuthLimiter != nil {
		throttle = middleware.RateLimit(deps.AuthLimiter, deps.Logger)
	}

	auth := api.Group("/auth")
	{
		auth.POST("/login", throttle, h.Auth.Login)
		auth.POST("/signup", throttle, h.Auth.SignUp)
		auth.POST("/refresh", h.Auth.Refresh)
		auth.POST("/logout", authn, h.Auth.Logout)
		auth.GET("/me", authn, h.Auth.Me)
		auth.PUT("/me/password", authn, h.Auth.ChangePassword)
		auth.GET("/profile", authn, h.Auth.Profile)
		auth.PUT("/profile", authn, h.Auth.UpdateProfile)
	}

	employees := api.Group("/employees", authn)
	{
		employees.GET("", can(policy.ActionEmployeeView), h.Employees.List)
		employees.GET("/:id", can(policy.ActionEmployeeView), h.Employees.Get)
		employees.POST("", can(policy.ActionEmployeeManage), h.Employees.Create)
		employees.PUT("/:id", can(policy.ActionEmployeeManage), h.Employees.Update)
		employees.DELETE("/:id", can(policy.ActionEmployeeManage), h.Employees.Delete)
	}

	vacations := api.Group("/vacations", authn)
	{
		vacations.GET("", h.Vacations.List)
		vacations.POST("", h.Vacations.Create)
		vacations.GET("/calendar", h.Vacations.Calendar)
		vacations.GET("/export", can(policy.ActionVacationExport), h.Vacations.Export)
		vacations.GET("/:id", h.Vacations.Get)
		vacations.PUT("/:id", h.Vacations.Update)
		vacations.POST("/:id/cancel", h.Vacations.Cancel)
		vacations.POST("/:id/approve", can(policy.ActionVacationApprove), h.Vacations.Approve)
		vacations.POST("/:id/reject", can(policy.ActionVacationReject), h.Vacations.Reject)
	}

	balances := api.Group("/balances", authn)
	{
		balances.GET("", h.Balances.List)
		balances.GET("/employee/:id", h.Balances.GetForEmployee)
	}

	audit := api.Group("/audit-logs", authn, can(policy.ActionAuditView))
	{
		audit.GET("", h.Audit.List)
		audit.GET("/export", h.Audit.Export)
		audit.GET("/entity/:type", h.Audit.ByEntity)
	}

	users := api.Group("/users", authn, can(policy.ActionUserManage))
	{
		users.GET("", h.Users.List)
		users.POST("", h.Users.Create)
		users.GET("/managers", h.Users.Managers)
		users.GET("/:id", h.Users.Get)
		users.PUT("/:id", h.Users.Update)
		users.DELETE("/:id", h.Users.Delete)
	}

	return r
}
