package server

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"tezos-gateway/internal/handler"
	"tezos-gateway/pkg/monitor"
)

// Handlers groups the HTTP handlers mounted by the router.
type Handlers struct {
	Health *handler.HealthHandler
	Jobs   *handler.JobHandler
	Chain  *handler.ChainHandler
}

// NewHTTPRouter 初始化并返回一个 Gin Engine
func NewHTTPRouter(h Handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), AccessLog())
	r.Use(monitor.PrometheusMiddleware())

	r.GET("/health", h.Health.Check)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.Group("/api/v1")
	{
		api.POST("/forge/jobs", h.Jobs.Forge)
		api.POST("/estimate", h.Jobs.Estimate)
		api.GET("/jobs/:id", h.Jobs.GetJob)
		api.PATCH("/jobs", h.Jobs.Inject)
		api.PATCH("/async/jobs", h.Jobs.InjectAsync)
		api.POST("/send/jobs", h.Jobs.Send)
		api.POST("/async/send/jobs", h.Jobs.SendAsync)

		api.GET("/contract/:address/calls", h.Chain.ContractCalls)
		api.GET("/tokens/:contract/balance/:account", h.Chain.TokenBalance)
		api.GET("/operations/:hash/confirmed", h.Chain.OperationConfirmed)
	}

	return r
}
