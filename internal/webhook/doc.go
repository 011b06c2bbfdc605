// Package webhook доставляет исходящие webhooks.
//
// Включает:
//   - sender.go     — одна доставка: POST JSON {event, data, timestamp, source}
//   - dispatcher.go — рассылка нескольким получателям с ограничением
//     параллелизма и сбором результата по каждому
//   - signature.go  — HMAC подпись тела запроса
//
// Доставка успешна только при ответе 2xx. Повторов нет: решение о повторе
// принимает вызывающая сторона.
package webhook
