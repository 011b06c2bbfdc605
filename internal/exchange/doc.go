// Package exchange содержит адаптеры криптобирж.
//
// Включает:
//   - client.go      — интерфейс Client и типы Balance, Ticker, Order
//   - factory.go     — Factory: создание клиента по типу биржи
//   - binance.go     — Binance Spot REST API (подпись HMAC-SHA256 hex)
//   - okx.go         — OKX REST API v5 (подпись HMAC-SHA256 base64)
//   - credentials.go — загрузка учётных данных из JSON файла
//
// Адаптер хранит только учётные данные, каждый вызов — ровно один
// HTTP запрос без повторов. Ошибки биржи возвращаются как *ExchangeCallError.
package exchange
