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

	"metal_price_tracker/internal/controller"
	"metal_price_tracker/internal/router"
)

func initControllers(deps *Dependencies) *router.Controllers {
	svc := deps.Services
	return &router.Controllers{
		Comparison: controller.NewComparisonController(svc.Dashboard, svc.Matcher),
		Dashboard:  controller.NewDashboardController(svc.Dashboard),
		Reference:  controller.NewReferenceController(svc.Reference),
		Competitor: controller.NewCompetitorController(svc.Competitor),
		Pricing:    controller.NewPricingController(svc.Pricing),
		Pipeline:   controller.NewPipelineController(deps.Tasks, svc.Dashboard),
	}
}

// serve 启动 API 与定时任务，收到退出信号后优雅关闭
func serve(deps *Dependencies) error {
	log := deps.Log
	if deps.Config.Log.Mode == "prod" || deps.Config.Log.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := deps.Tasks.Start(); err != nil {
		return err
	}
	defer deps.Tasks.Stop()

	r := router.New(initControllers(deps), router.Options{
		AllowedOrigins:  deps.Config.Server.AllowedOrigins,
		TriggerCooldown: deps.Config.Server.TriggerCooldown,
		Log:             log,
	})
	srv := &http.Server{
		Addr:              ":" + deps.Config.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("[Server] 服务启动", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	log.Info("[Server] 正在关闭服务...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return err
	}
	log.Info("[Server] 服务已退出")
	return nil
}
