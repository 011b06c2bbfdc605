// jaxrun-scheduler — ставит в очередь flows по расписаниям.
//
// Тики выполняет только лидер (pg advisory lock), остальные
// экземпляры ждут освобождения блокировки.
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
	"github.com/Crypto-Goatz/jaxrun/internal/scheduler"
	"github.com/Crypto-Goatz/jaxrun/internal/telemetry"
)

const schedLockKey int64 = 424242

func main() {
	started := time.Now()

	if err := config.Load(); err != nil {
		telemetry.SetupLogger().Error("failed to load env file", "error", err)
		os.Exit(1)
	}
	logger := telemetry.SetupLogger()
	logger.Info("starting jaxrun-scheduler")

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
		logger.Error("scheduler requires RabbitMQ")
		os.Exit(1)
	}
	defer conn.Close()

	sched := scheduler.New(scheduler.Config{
		Schedules: repo.NewScheduleRepo(pool),
		Flows:     repo.NewFlowRepo(pool),
		Publisher: publisher,
		Logger:    logger,
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		sched.Run(ctx, config.Duration(config.EnvSchedulerTick, time.Second), repo.NewAdvisoryLock(pool, schedLockKey))
	}()

	if err := bootstrap.Serve(ctx, config.Port(config.EnvSchedulerPort, "8081"), bootstrap.ServiceMux(started), logger); err != nil {
		logger.Error("http server error", "error", err)
		cancel()
	}

	<-done
	logger.Info("jaxrun-scheduler stopped")
}
