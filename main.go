package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/camden-git/clipcraft/config"
	"github.com/camden-git/clipcraft/database"
	"github.com/camden-git/clipcraft/extraction"
	"github.com/camden-git/clipcraft/frames"
	"github.com/camden-git/clipcraft/handlers"
	"github.com/camden-git/clipcraft/logger"
	"github.com/camden-git/clipcraft/media"
	"github.com/camden-git/clipcraft/metrics"
	"github.com/camden-git/clipcraft/realtime"
	"github.com/camden-git/clipcraft/repository"
)

func main() {
	envErr := godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		panic("failed to load configuration: " + err.Error())
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		panic("failed to build logger: " + err.Error())
	}
	defer log.Sync()

	if envErr != nil {
		log.Info("no .env file loaded", zap.Error(envErr))
	}

	storagePaths := []string{cfg.VideosPath, cfg.FramesPath, filepath.Dir(cfg.DatabasePath)}
	for _, p := range storagePaths {
		if err := os.MkdirAll(p, 0755); err != nil {
			log.Fatal("failed to create storage directory", zap.String("path", p), zap.Error(err))
		}
	}

	index, err := database.InitDB(cfg.DatabasePath, log)
	if err != nil {
		log.Fatal("failed to initialize video index", zap.Error(err))
	}
	defer index.Close()

	gormDB, err := database.InitGormDB(cfg.DatabasePath, log)
	if err != nil {
		log.Fatal("failed to initialize task database", zap.Error(err))
	}
	if err := database.AutoMigrateModels(gormDB); err != nil {
		log.Fatal("failed to migrate task database", zap.Error(err))
	}

	frameStorage, err := media.NewLocalStorage(cfg.FramesPath, media.DefaultSubDirs, log)
	if err != nil {
		log.Fatal("failed to initialize frame storage", zap.Error(err))
	}
	frameStore := frames.NewStore(frameStorage, log)

	hub := realtime.NewHub(log)
	go hub.Run()

	taskRepo := repository.NewTaskRepository(gormDB)
	service := extraction.NewService(taskRepo, frameStore, extraction.DefaultSettings(cfg), hub, log)
	if _, err := service.RecoverInterrupted(context.Background()); err != nil {
		log.Error("failed to recover interrupted tasks", zap.Error(err))
	}

	router := handlers.NewRouter(handlers.Router{
		Cfg:     cfg,
		Log:     log,
		Frames:  &handlers.FramesHandler{Service: service, Frames: frameStore, Index: index, Cfg: cfg, Log: log},
		Videos:  &handlers.VideosHandler{Index: index, Cfg: cfg, Log: log},
		WS:      hub.ServeWS,
		Metrics: metrics.Handler(),
	})

	log.Info("configuration loaded",
		zap.String("videos_path", cfg.VideosPath),
		zap.String("frames_path", cfg.FramesPath),
		zap.String("database", cfg.DatabasePath),
		zap.Int("default_sample_rate", cfg.DefaultSampleRate),
		zap.Int("max_frames", cfg.MaxFrames),
		zap.Int("workers", cfg.ResolvedWorkers),
		zap.Int64("max_upload_size", cfg.MaxUploadSize),
	)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
	hub.Stop()

	// running extractions finish; anything cut short is failed on next start
	done := make(chan struct{})
	go func() {
		service.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		log.Warn("extractions still running at exit")
	}
}
