// cmd/worker-manager/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"newsletter-agent/internal/app"
	"newsletter-agent/internal/common/camunda"
	"newsletter-agent/internal/common/config"
	"newsletter-agent/internal/common/database"
	"newsletter-agent/internal/common/logger"
	"newsletter-agent/internal/common/observability"
	"newsletter-agent/internal/scheduler"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting newsletter agent...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.Observability.ServiceName, cfg.Observability.JaegerEndpoint)
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps := app.Deps{Tracer: obs.Tracer(), Recorder: obs}

	// --- Init PostgreSQL with retry ---
	err = retryWithBackoff(func() error {
		pg, err := database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		if err := pg.Ping(ctx); err != nil {
			_ = pg.Close()
			return err
		}
		deps.Postgres = pg
		return nil
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer deps.Postgres.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	err = retryWithBackoff(func() error {
		rdb, err := database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		if err := rdb.Ping(ctx); err != nil {
			_ = rdb.Close()
			return err
		}
		deps.Redis = rdb
		return nil
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer deps.Redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Elasticsearch with retry. The archive is optional. ---
	err = retryWithBackoff(func() error {
		esClient, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		if err := esClient.Ping(ctx); err != nil {
			return err
		}
		deps.Elasticsearch = esClient
		return nil
	}, 5, 2*time.Second, zapLog, "Elasticsearch connection")
	if err != nil {
		zapLog.Warn("elasticsearch unavailable, newsletter archive disabled", zap.Error(err))
	} else {
		zapLog.Info("Elasticsearch connected successfully")
	}

	// --- Init Zeebe Client with retry ---
	if cfg.Camunda.Enabled {
		err = retryWithBackoff(func() error {
			client, err := camunda.NewClientWithConfig(&camunda.ClientConfig{
				GatewayAddress:         cfg.Camunda.BrokerAddress,
				UsePlaintextConnection: true,
				RequestTimeout:         config.GetDuration(cfg.Camunda.RequestTimeout),
			})
			if err != nil {
				return err
			}
			deps.Zeebe = client
			return nil
		}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		defer deps.Zeebe.Close()
		zapLog.Info("Zeebe client connected successfully")
	}

	application, err := app.New(ctx, cfg, deps, log)
	if err != nil {
		zapLog.Fatal("application wiring failed", zap.Error(err))
	}
	zapLog.Info("Tool registry ready", zap.Int("tools", len(application.Tools.List())))

	// --- Register Workers ---
	var workers []*camunda.CamundaWorker
	if deps.Zeebe != nil {
		for _, job := range application.Jobs {
			wcfg := config.GetWorkerConfig(cfg, job.TaskType)
			if !wcfg.Enabled {
				zapLog.Info("worker disabled", zap.String("taskType", job.TaskType))
				continue
			}
			workers = append(workers, camunda.NewWorker(deps.Zeebe.GetClient(), job.TaskType, wcfg, job.Handler, zapLog))
		}
		zapLog.Info("Workers registered", zap.Int("count", len(workers)))
	}

	// --- Scheduler ---
	if cfg.Scheduler.Enabled {
		scfg, err := scheduler.LoadConfig(cfg)
		if err != nil {
			zapLog.Fatal("scheduler config invalid", zap.Error(err))
		}
		sched, err := scheduler.New(scfg, deps.Redis.Client, application.Newsletters, log)
		if err != nil {
			zapLog.Fatal("scheduler init failed", zap.Error(err))
		}
		go func() {
			if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				zapLog.Error("scheduler stopped", zap.Error(err))
			}
		}()
		zapLog.Info("Scheduler started", zap.String("cron", cfg.Scheduler.Cron), zap.String("timezone", cfg.Scheduler.Timezone))
	}

	// --- HTTP API ---
	server := application.Server(log)
	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.Server.Address))
		if err := server.Start(cfg.Server.Address); err != nil {
			zapLog.Error("HTTP server failed", zap.Error(err))
			stop()
		}
	}()

	// --- Graceful Shutdown ---
	<-ctx.Done()
	zapLog.Info("Shutdown signal received, stopping...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down HTTP server", zap.Error(err))
	}
	for _, w := range workers {
		w.Stop()
	}

	zapLog.Info("Newsletter agent stopped gracefully")
}
