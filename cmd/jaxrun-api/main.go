// jaxrun-api — HTTP API: выполнение workflow, flows, история,
// расписания и webhooks.
//
// С брокером запуски flows ставятся в очередь для jaxrun-runner,
// без брокера выполняются в процессе API.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Crypto-Goatz/jaxrun/internal/api"
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
	logger.Info("starting jaxrun-api")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pool, err := bootstrap.Database(ctx, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	exchanges, err := bootstrap.Exchanges(logger)
	if err != nil {
		logger.Error("failed to load exchanges", "error", err)
		os.Exit(1)
	}

	metrics := telemetry.NewMetrics(nil)
	engine := bootstrap.Engine(logger, metrics)

	flowRepo := repo.NewFlowRepo(pool)
	executionRepo := repo.NewExecutionRepo(pool)

	cfg := api.Config{
		Engine:     engine,
		Flows:      flowRepo,
		Executions: executionRepo,
		Schedules:  repo.NewScheduleRepo(pool),
		Webhooks:   repo.NewWebhookRepo(pool),
		Dispatcher: bootstrap.Dispatcher(logger, metrics),
		Metrics:    metrics,
		Logger:     logger,
	}

	// Runner без соединения выполняет flows только через HandleTrigger.
	runnerCfg := runner.Config{
		Engine:     engine,
		Flows:      flowRepo,
		Executions: executionRepo,
		Exchanges:  exchanges,
		Logger:     logger,
	}

	conn, publisher := bootstrap.Broker(ctx, logger)
	if conn != nil {
		defer conn.Close()
		cfg.Publisher = publisher
		runnerCfg.Publisher = publisher
	}
	cfg.Runner = runner.New(runnerCfg)

	mux := bootstrap.ServiceMux(started)
	api.NewHandler(cfg).RegisterRoutes(mux)

	if err := bootstrap.Serve(ctx, config.Port(config.EnvAPIPort, "8080"), mux, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	logger.Info("jaxrun-api stopped")
}
