package webhook

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency — число одновременных доставок по умолчанию.
const DefaultConcurrency = 4

// Result — итог доставки одному получателю.
type Result struct {
	URL     string   `json:"url"`
	Event   string   `json:"event"`
	Receipt *Receipt `json:"receipt,omitempty"`
	Error   string   `json:"error,omitempty"`

	err error
}

// Err возвращает ошибку доставки.
func (r *Result) Err() error {
	return r.err
}

// Dispatcher рассылает webhooks нескольким получателям.
//
// Broadcast дожидается всех доставок: не более limit одновременно,
// результат каждой сохраняется, ошибка одной не отменяет остальные.
type Dispatcher struct {
	sender *Sender
	limit  int
	logger *slog.Logger
}

// NewDispatcher создаёт Dispatcher. limit <= 0 означает DefaultConcurrency.
func NewDispatcher(sender *Sender, limit int, logger *slog.Logger) *Dispatcher {
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{sender: sender, limit: limit, logger: logger}
}

// Broadcast доставляет все deliveries и возвращает результаты в том же порядке.
func (d *Dispatcher) Broadcast(ctx context.Context, deliveries []Delivery) []Result {
	results := make([]Result, len(deliveries))

	var g errgroup.Group
	g.SetLimit(d.limit)

	for i, del := range deliveries {
		g.Go(func() error {
			receipt, err := d.sender.Send(ctx, del)
			results[i] = Result{URL: del.URL, Event: del.Event, Receipt: receipt, err: err}
			if err != nil {
				results[i].Error = err.Error()
				d.logger.Warn("webhook delivery failed",
					"url", del.URL,
					"event", del.Event,
					"error", err,
				)
			}
			return nil
		})
	}
	g.Wait()

	return results
}

// CountFailed возвращает число неуспешных доставок.
func CountFailed(results []Result) int {
	n := 0
	for i := range results {
		if results[i].err != nil {
			n++
		}
	}
	return n
}
