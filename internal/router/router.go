package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"metal_price_tracker/internal/controller"
	"metal_price_tracker/internal/middleware"
	"metal_price_tracker/pkg/logger"
)

// Controllers 路由依赖的控制器
type Controllers struct {
	Comparison *controller.ComparisonController
	Dashboard  *controller.DashboardController
	Reference  *controller.ReferenceController
	Competitor *controller.CompetitorController
	Pricing    *controller.PricingController
	Pipeline   *controller.PipelineController
}

// Options 路由选项
type Options struct {
	AllowedOrigins  []string
	TriggerCooldown time.Duration
	Limiter         *middleware.TriggerLimiter
	Log             *logger.Logger
}

// New 创建 gin 引擎并注册路由
func New(ctls *Controllers, opts Options) *gin.Engine {
	if opts.Log == nil {
		opts.Log = logger.Nop()
	}
	if opts.Limiter == nil {
		opts.Limiter = middleware.NewTriggerLimiter()
	}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(opts.Log), middleware.CORS(opts.AllowedOrigins))
	InitRoutes(r, ctls, opts)
	return r
}

// InitRoutes 注册所有路由
func InitRoutes(r *gin.Engine, ctls *Controllers, opts Options) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		// 比价
		comparisons := api.Group("/comparisons")
		{
			comparisons.GET("", ctls.Comparison.List)
			comparisons.POST("", ctls.Comparison.Create)
			comparisons.GET("/export", ctls.Comparison.Export)
			comparisons.POST("/recalculate",
				middleware.TriggerRateLimit(opts.Limiter, middleware.TriggerRecalculate, 0),
				ctls.Comparison.Recalculate,
			)
			comparisons.DELETE("/:id", ctls.Comparison.Delete)
		}

		// 看板
		api.GET("/stats", ctls.Dashboard.Stats)
		api.GET("/price-history", ctls.Dashboard.PriceHistory)
		api.GET("/cities", ctls.Dashboard.Cities)

		// 基准产品
		refs := api.Group("/reference-products")
		{
			refs.GET("", ctls.Reference.List)
			refs.POST("", ctls.Reference.Create)
			refs.GET("/:id", ctls.Reference.Get)
			refs.PUT("/:id", ctls.Reference.Update)
			refs.DELETE("/:id", ctls.Reference.Delete)
		}

		// 竞品
		comps := api.Group("/competitors")
		{
			comps.GET("", ctls.Competitor.List)
			comps.POST("", ctls.Competitor.Create)
			comps.GET("/:id", ctls.Competitor.Get)
			comps.PUT("/:id", ctls.Competitor.Update)
			comps.PUT("/:id/inventory", ctls.Competitor.UpdateInventory)
			comps.DELETE("/:id", ctls.Competitor.Delete)
		}

		api.GET("/pricing/resolve", ctls.Pricing.Resolve)

		// 管线
		pipeline := api.Group("/pipeline")
		{
			pipeline.POST("/run",
				middleware.TriggerRateLimit(opts.Limiter, middleware.TriggerPipeline, opts.TriggerCooldown),
				ctls.Pipeline.Run,
			)
			pipeline.GET("/runs", ctls.Pipeline.Runs)
			pipeline.GET("/status", ctls.Pipeline.Status)
		}
	}
}
