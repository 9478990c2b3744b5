package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/jjpp222/tutor-aleman-backend/api/routers"
	internal_mixer "github.com/jjpp222/tutor-aleman-backend/internal/mixer"
	internal_recorder "github.com/jjpp222/tutor-aleman-backend/internal/recorder"
	internal_session "github.com/jjpp222/tutor-aleman-backend/internal/session"
	internal_trigger "github.com/jjpp222/tutor-aleman-backend/internal/trigger"
	"github.com/jjpp222/tutor-aleman-backend/config"
	"github.com/jjpp222/tutor-aleman-backend/pkg/commons"
	"github.com/jjpp222/tutor-aleman-backend/pkg/connectors"
	"github.com/jjpp222/tutor-aleman-backend/pkg/types"
)

func main() {
	vConfig, err := config.InitConfig()
	if err != nil {
		log.Fatalf("unable to initialize config: %v", err)
	}
	cfg, err := config.GetApplicationConfig(vConfig)
	if err != nil {
		log.Fatalf("unable to load application config: %v", err)
	}

	logger, err := commons.NewApplicationLogger(
		commons.Name(cfg.Name),
		commons.Path(cfg.LogPath),
		commons.Level(cfg.LogLevel),
	)
	if err != nil {
		log.Fatalf("unable to create logger: %v", err)
	}
	defer logger.Sync()

	postgres, err := connectors.NewPostgresConnector(cfg, logger)
	if err != nil {
		logger.Fatalf("postgres: %v", err)
	}
	defer postgres.Close()

	redis, err := connectors.NewRedisConnector(cfg, logger)
	if err != nil {
		logger.Fatalf("redis: %v", err)
	}
	defer redis.Close()

	storage, err := connectors.NewBlobStorageConnector(cfg, logger)
	if err != nil {
		logger.Fatalf("blob store: %v", err)
	}

	store := internal_session.NewStore(postgres, logger)
	queue := internal_trigger.NewQueue(redis, logger)
	recorder := internal_recorder.NewRecorder(store, queue, logger)
	tokens := types.NewTokenService(cfg.Secret)

	engine := internal_mixer.NewFfmpegEngine(cfg.MixerConfig.FfmpegPath, logger)
	mixer := internal_mixer.NewMixer(store, storage, engine, internal_mixer.Config{
		ScratchDir:    cfg.MixerConfig.ScratchDir,
		PollAttempts:  cfg.MixerConfig.PollAttempts,
		PollDelay:     time.Duration(cfg.MixerConfig.PollDelaySec) * time.Second,
		MixTimeout:    time.Duration(cfg.MixerConfig.MixTimeoutSec) * time.Second,
		OutputBitrate: cfg.MixerConfig.OutputBitrate,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	worker := internal_trigger.NewWorker(queue, mixer, logger)
	go worker.Run(ctx)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		MaxAge:           12 * time.Hour,
		AllowCredentials: false,
	}))

	routers.HealthCheckRoutes(cfg, router, logger, postgres)
	routers.SessionApiRoute(cfg, router, logger, store, recorder, storage, tokens)
	routers.SpeechApiRoute(cfg, router, logger, tokens)

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: router,
	}

	go func() {
		logger.Infof("%s listening on %s", cfg.Name, server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("server shutdown: %v", err)
	}
}
