package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Crypto-Goatz/jaxrun/internal/config"
	"github.com/Crypto-Goatz/jaxrun/internal/domain"
	"github.com/Crypto-Goatz/jaxrun/internal/exchange"
	"github.com/Crypto-Goatz/jaxrun/internal/mq"
	"github.com/Crypto-Goatz/jaxrun/internal/nodes"
	"github.com/Crypto-Goatz/jaxrun/internal/orchestrator"
	"github.com/Crypto-Goatz/jaxrun/internal/repo"
	"github.com/Crypto-Goatz/jaxrun/internal/telemetry"
	"github.com/Crypto-Goatz/jaxrun/internal/webhook"
)

const (
	defaultNodeTimeout = 30 * time.Second
	shutdownTimeout    = 10 * time.Second
)

// Sender создаёт отправителя webhooks. metrics может быть nil.
func Sender(metrics *telemetry.Metrics) *webhook.Sender {
	cfg := webhook.Config{}
	if metrics != nil {
		cfg.OnDelivery = metrics.ObserveDelivery
	}
	return webhook.NewSender(cfg)
}

// Engine собирает движок: адреса бирж из BINANCE_BASE_URL / OKX_BASE_URL,
// таймаут узла из ENGINE_NODE_TIMEOUT. metrics может быть nil.
func Engine(logger *slog.Logger, metrics *telemetry.Metrics) *orchestrator.Engine {
	factory := exchange.NewFactory(exchange.Options{
		BaseURLs: map[string]string{
			"binance": config.String(config.EnvBinanceBaseURL, ""),
			"okx":     config.String(config.EnvOKXBaseURL, ""),
		},
	})

	evaluator := nodes.NewEvaluator(nodes.Config{
		Factory:        factory,
		Sender:         Sender(metrics),
		Logger:         logger,
		DefaultTimeout: config.Duration(config.EnvNodeTimeout, defaultNodeTimeout),
	})

	cfg := orchestrator.Config{
		Evaluator: evaluator,
		Logger:    logger,
	}
	if metrics != nil {
		cfg.Observer = metrics
	}
	return orchestrator.New(cfg)
}

// Dispatcher создаёт рассылку webhooks с лимитом WEBHOOK_CONCURRENCY.
func Dispatcher(logger *slog.Logger, metrics *telemetry.Metrics) *webhook.Dispatcher {
	limit := config.Int(config.EnvWebhookConcurrency, webhook.DefaultConcurrency)
	return webhook.NewDispatcher(Sender(metrics), limit, logger)
}

// Exchanges читает интеграции бирж из EXCHANGES_FILE.
// Без переменной возвращает пустой список: доступны только публичные котировки.
func Exchanges(logger *slog.Logger) ([]domain.ExchangeIntegration, error) {
	path := config.String(config.EnvExchangesFile, "")
	if path == "" {
		logger.Info("no exchanges file configured, only public market data is available")
		return nil, nil
	}

	integrations, err := exchange.LoadCredentials(path)
	if err != nil {
		return nil, err
	}
	logger.Info("exchange integrations loaded", "path", path, "count", len(integrations))
	return integrations, nil
}

// Database подключается к DB_URL и применяет схему.
func Database(ctx context.Context, logger *slog.Logger) (*pgxpool.Pool, error) {
	pool, err := repo.NewPool(ctx, config.String(config.EnvDatabaseURL, ""))
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := repo.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	logger.Info("database connected")
	return pool, nil
}

// Broker подключается к RABBITMQ_URL и объявляет топологию.
// Недоступный брокер не считается ошибкой: возвращаются nil,
// и процесс работает без очереди.
func Broker(ctx context.Context, logger *slog.Logger) (*mq.Connection, *mq.Publisher) {
	conn, err := mq.NewConnection(config.String(config.EnvRabbitMQURL, ""), logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, running without queue", "error", err)
		return nil, nil
	}
	logger.Info("RabbitMQ connected")

	if err := mq.SetupTopology(ctx, conn); err != nil {
		logger.Warn("failed to setup topology", "error", err)
	}
	return conn, mq.NewPublisher(conn, logger)
}

// ServiceMux возвращает mux с /healthz и /metrics.
func ServiceMux(started time.Time) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(started).Round(time.Second))
	})
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

// Serve обслуживает HTTP до отмены ctx, затем останавливает сервер
// с таймаутом. Возвращает nil при штатной остановке.
func Serve(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
