// Package bootstrap собирает общие зависимости процессов jaxrun
// из переменных окружения: движок, интеграции бирж, рассылку webhooks,
// подключения к PostgreSQL и RabbitMQ, служебный HTTP сервер.
package bootstrap
