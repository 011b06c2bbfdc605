package config

// Переменные окружения процессов jaxrun.
const (
	EnvLogLevel  = "LOG_LEVEL"
	EnvLogFormat = "LOG_FORMAT"

	EnvDatabaseURL = "DB_URL"
	EnvRabbitMQURL = "RABBITMQ_URL"

	EnvAPIPort       = "API_PORT"
	EnvRunnerPort    = "RUNNER_PORT"
	EnvSchedulerPort = "SCHEDULER_PORT"

	// EnvNodeTimeout — таймаут I/O узла по умолчанию ("30s" или секунды).
	EnvNodeTimeout = "ENGINE_NODE_TIMEOUT"

	// EnvWebhookConcurrency — лимит одновременных доставок webhook.
	EnvWebhookConcurrency = "WEBHOOK_CONCURRENCY"

	// EnvExchangesFile — JSON файл с интеграциями бирж.
	EnvExchangesFile = "EXCHANGES_FILE"

	EnvBinanceBaseURL = "BINANCE_BASE_URL"
	EnvOKXBaseURL     = "OKX_BASE_URL"

	// EnvRunnerConcurrency — число одновременных выполнений в runner.
	EnvRunnerConcurrency = "RUNNER_CONCURRENCY"

	// EnvSchedulerTick — период опроса расписаний.
	EnvSchedulerTick = "SCHEDULER_TICK"

	// EnvAPIURL — адрес API для CLI.
	EnvAPIURL = "JAXRUN_API_URL"
)
