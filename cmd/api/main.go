package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/LJTian/HarareMetro/internal/api"
	"github.com/LJTian/HarareMetro/internal/app"
	"github.com/LJTian/HarareMetro/internal/config"
	"github.com/LJTian/HarareMetro/internal/logging"
	"github.com/LJTian/HarareMetro/internal/scheduler"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("init logger failed: %v", err)
	}

	a, err := app.New(cfg, logger)
	if err != nil {
		logger.Fatalf("init app failed: %v", err)
	}
	defer a.Close()

	updater := a.NewUpdater(a.Registry, a.Snapshot)

	// 定时任务与 /api/update 共用同一个 Updater，避免两轮抓取同时写快照
	s, err := scheduler.New(cfg.CronSpec, updater, logger)
	if err != nil {
		logger.Fatalf("init scheduler failed: %v", err)
	}
	s.Start()

	gin.SetMode(cfg.GinMode)

	opts := []api.Option{
		api.WithUpdateInterval(cfg.UpdateMinInterval),
		api.WithBasicAuth(cfg.BasicAuthUser, cfg.BasicAuthPass),
	}
	if a.Archive != nil {
		opts = append(opts, api.WithArchive(a.Archive))
	}
	apiServer := api.NewServer(a.Snapshot, updater, a.Registry, logger, opts...)
	r := api.NewEngine(apiServer)

	srv := &http.Server{
		Addr:    ":" + cfg.AppPort,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Infof("starting api server at %s, %d sources, cron %q", srv.Addr, a.Registry.Len(), cfg.CronSpec)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server exit: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}
	// 等待正在执行的定时抓取结束
	select {
	case <-s.Stop().Done():
	case <-shutdownCtx.Done():
	}
}
