package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-clearance-api/api/swagger"
	"github.com/noah-isme/sma-clearance-api/internal/handler"
	"github.com/noah-isme/sma-clearance-api/internal/middleware"
	"github.com/noah-isme/sma-clearance-api/internal/models"
	"github.com/noah-isme/sma-clearance-api/internal/service"
	"github.com/noah-isme/sma-clearance-api/pkg/config"
	"github.com/noah-isme/sma-clearance-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-clearance-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-clearance-api/pkg/middleware/requestid"
)

var workflowRoles = []models.UserRole{
	models.RoleSuperAdmin,
	models.RoleAdmin,
	models.RoleLibrary,
	models.RoleBursar,
	models.RoleAcademic,
	models.RoleVerifier,
	models.RoleProcessor,
}

func newRouter(cfg *config.Config, a *app, logr *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(a.metrics))
	r.Use(middleware.RequestOrigin())

	metricsHandler := handler.NewMetricsHandler(a.metrics, a.ready)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	requests := handler.NewRequestHandler(a.workflow, a.sla)
	audits := handler.NewAuditHandler(a.audit)
	sla := handler.NewSLAHandler(a.sla)

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(service.NewTokenVerifier(cfg.JWT)))

	api.POST("/requests", middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleVerifier), requests.Create)
	api.GET("/requests", middleware.RequireRoles(workflowRoles...), requests.List)
	api.GET("/requests/:id", middleware.RequireRoles(workflowRoles...), requests.Get)
	api.PATCH("/requests/:id/workflow", middleware.RequireRoles(workflowRoles...), requests.ApplyWorkflow)
	api.GET("/requests/:id/sla", middleware.RequireRoles(workflowRoles...), requests.SLA)

	admin := api.Group("")
	admin.Use(middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin))
	admin.GET("/audit-logs", audits.List)
	admin.GET("/audit-logs/export", audits.Export)
	admin.POST("/sla/sweep", middleware.Audit(a.audit, models.AuditActionSLASweepTriggered), sla.Sweep)
	admin.GET("/metrics/summary", metricsHandler.Snapshot)

	return r
}
