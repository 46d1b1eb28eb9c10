package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"sms-reminder-service/config"
	"sms-reminder-service/internal/api"
	"sms-reminder-service/internal/cache"
	"sms-reminder-service/internal/dispatch"
	"sms-reminder-service/internal/repository"
	"sms-reminder-service/internal/services"
	"sms-reminder-service/internal/worker"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup

	cfg := config.LoadConfig()
	dbPool, redisClient, err := setupDependencies(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to setup dependencies")
	}
	defer dbPool.Close()
	defer redisClient.Close()

	jobManager, server := buildApplication(dbPool, redisClient, &wg, ctx, cfg)

	startBackgroundJob(&wg, jobManager, ctx)
	startServer(server)

	waitForShutdown(server, cancel, &wg)

	log.Info().Msg("Server gracefully stopped")
}

func setupDependencies(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, *redis.Client, error) {
	dbPool, err := repository.NewConnection(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to establish database connection: %w", err)
	}
	log.Info().Msg("Database connection established.")

	if err := repository.Migrate(ctx, dbPool); err != nil {
		dbPool.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info().Msg("Database migrations applied.")

	redisClient, err := cache.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		dbPool.Close()
		return nil, nil, fmt.Errorf("failed to establish Redis connection: %w", err)
	}
	log.Info().Msg("Redis connection established.")

	return dbPool, redisClient, nil
}

func buildApplication(dbPool *pgxpool.Pool, redisClient *redis.Client, wg *sync.WaitGroup, appCtx context.Context, cfg *config.Config) (*worker.JobManager, *http.Server) {
	reminderRepository := repository.NewReminderRepository(dbPool)
	reminderCache := cache.NewReminderCache(redisClient)

	dispatchClient := dispatch.NewClient(dispatch.Options{
		URL:           cfg.GatewayURL,
		Username:      cfg.GatewayUsername,
		Password:      cfg.GatewayPassword,
		GoodsID:       cfg.GatewayGoodsID,
		MessagePrefix: cfg.MessagePrefix,
		Timeout:       cfg.DispatchTimeout,
	})

	reminderService := services.NewReminderService(reminderRepository, reminderCache, dispatchClient)
	jobManager := worker.NewJobManager(reminderService, cfg.PollInterval, wg)
	apiHandler := api.NewHandler(reminderService, jobManager, appCtx)

	router := api.NewRouter(apiHandler)
	server := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}

	log.Info().Msg("Application components built successfully.")
	return jobManager, server
}

func startBackgroundJob(wg *sync.WaitGroup, jobManager *worker.JobManager, ctx context.Context) {
	if err := jobManager.Start(ctx); err != nil {
		log.Error().Err(err).Msg("Unexpected error while starting job")
		return
	}
	log.Info().Msg("Background job started.")
}

func startServer(server *http.Server) {
	go func() {
		log.Info().Msgf("HTTP server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Unexpected error while starting server")
		}
	}()
}

func waitForShutdown(server *http.Server, cancelApp context.CancelFunc, wg *sync.WaitGroup) {
	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)

	// Wait for shutdown signal
	<-shutdownChan

	log.Info().Msg("Shutting down gracefully...")

	// wait HTTP server 15 seconds to shut down
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Unexpected error while shutting down server")
	}

	cancelApp()
	wg.Wait()
}
