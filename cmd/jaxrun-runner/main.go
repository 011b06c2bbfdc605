// jaxrun-runner — выполняет flows из очереди flows.triggered.
//
// Runner:
//   - Получает запуски от API, scheduler и webhooks
//   - Выполняет workflow движком и сохраняет отчёт в историю
//   - Публикует execution.completed
//
// Runners масштабируются горизонтально: повторная доставка
// с тем же executionId не выполняется дважды.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Crypto-Goatz/jaxrun/internal/bootstrap"
	"github.com/Crypto-Goatz/jaxrun/internal/config"
	"github.com/Crypto-Goatz/jaxrun/internal/repo"
	"github.com/Crypto-Goatz/jaxrun/internal/runner"
	"github.com/Crypto-Goatz/jaxrun/internal/telemetry"
)

func main() {
	started := time.Now()

	if err := config.Load(); err != nil {
		telemetry.SetupLogger().Error("failed to load env file", "error", err)
		os.Exit(1)
	}
	logger := telemetry.SetupLogger()
	logger.Info("starting jaxrun-runner")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pool, err := bootstrap.Database(ctx, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	conn, publisher := bootstrap.Broker(ctx, logger)
	if conn == nil {
		logger.Error("runner requires RabbitMQ")
		os.Exit(1)
	}
	defer conn.Close()

	exchanges, err := bootstrap.Exchanges(logger)
	if err != nil {
		logger.Error("failed to load exchanges", "error", err)
		os.Exit(1)
	}

	metrics := telemetry.NewMetrics(nil)

	r := runner.New(runner.Config{
		Engine:      bootstrap.Engine(logger, metrics),
		Flows:       repo.NewFlowRepo(pool),
		Executions:  repo.NewExecutionRepo(pool),
		Publisher:   publisher,
		Conn:        conn,
		Exchanges:   exchanges,
		Concurrency: config.Int(config.EnvRunnerConcurrency, 0),
		Logger:      logger,
	})

	if err := r.Start(ctx); err != nil {
		logger.Error("failed to start runner", "error", err)
		os.Exit(1)
	}

	if err := bootstrap.Serve(ctx, config.Port(config.EnvRunnerPort, "8082"), bootstrap.ServiceMux(started), logger); err != nil {
		logger.Error("http server error", "error", err)
		cancel()
	}

	r.Stop()
	logger.Info("jaxrun-runner stopped")
}
