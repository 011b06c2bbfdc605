package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultSource — значение поля source в payload.
	DefaultSource = "jaxrun"

	defaultTimeout = 10 * time.Second
)

// Заголовки исходящих запросов.
const (
	HeaderEvent     = "X-Webhook-Event"
	HeaderID        = "X-Webhook-ID"
	HeaderSignature = "X-Webhook-Signature"
)

// Config — настройки Sender.
type Config struct {
	// HTTPClient — HTTP клиент. По умолчанию с таймаутом 10s.
	HTTPClient *http.Client

	// Source — поле source в payload. По умолчанию "jaxrun".
	Source string

	// Now — источник времени для поля timestamp.
	Now func() time.Time

	// OnDelivery вызывается после каждой попытки доставки (для метрик).
	OnDelivery func(r *Receipt, err error)
}

// Sender — отправитель webhooks.
type Sender struct {
	client     *http.Client
	source     string
	now        func() time.Time
	onDelivery func(r *Receipt, err error)
}

// NewSender создаёт Sender.
func NewSender(cfg Config) *Sender {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: defaultTimeout}
	}
	if cfg.Source == "" {
		cfg.Source = DefaultSource
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Sender{
		client:     cfg.HTTPClient,
		source:     cfg.Source,
		now:        cfg.Now,
		onDelivery: cfg.OnDelivery,
	}
}

// Delivery — одна исходящая доставка.
type Delivery struct {
	URL     string
	Event   string
	Data    any
	Secret  string
	Headers map[string]string
}

// Payload — тело исходящего запроса.
type Payload struct {
	Event     string    `json:"event"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
}

// Receipt — результат попытки доставки.
type Receipt struct {
	ID          string        `json:"id"`
	URL         string        `json:"url"`
	StatusCode  int           `json:"status_code"`
	Duration    time.Duration `json:"duration"`
	DeliveredAt time.Time     `json:"delivered_at"`
}

// OK возвращает true для ответа 2xx.
func (r *Receipt) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Send доставляет webhook.
//
// Возвращает Receipt для любого полученного ответа; для ответа не 2xx
// вместе с *DeliveryError. Для транспортной ошибки Receipt содержит StatusCode 0.
func (s *Sender) Send(ctx context.Context, d Delivery) (*Receipt, error) {
	receipt, err := s.send(ctx, d)
	if s.onDelivery != nil {
		s.onDelivery(receipt, err)
	}
	return receipt, err
}

func (s *Sender) send(ctx context.Context, d Delivery) (*Receipt, error) {
	receipt := &Receipt{ID: uuid.NewString(), URL: d.URL}

	u, err := url.Parse(d.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return receipt, &DeliveryError{URL: d.URL, Err: fmt.Errorf("%w: %q", ErrInvalidURL, d.URL)}
	}

	body, err := json.Marshal(Payload{
		Event:     d.Event,
		Data:      d.Data,
		Timestamp: s.now().UTC(),
		Source:    s.source,
	})
	if err != nil {
		return receipt, &DeliveryError{URL: d.URL, Err: fmt.Errorf("encode payload: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.URL, bytes.NewReader(body))
	if err != nil {
		return receipt, &DeliveryError{URL: d.URL, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", s.source+"-webhook/1.0")
	req.Header.Set(HeaderID, receipt.ID)
	if d.Event != "" {
		req.Header.Set(HeaderEvent, d.Event)
	}
	if d.Secret != "" {
		req.Header.Set(HeaderSignature, Sign(d.Secret, body))
	}
	for k, v := range d.Headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	receipt.Duration = time.Since(start)
	if err != nil {
		return receipt, &DeliveryError{URL: d.URL, Err: err}
	}
	defer resp.Body.Close()
	// Дочитываем тело, чтобы соединение вернулось в пул
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))

	receipt.StatusCode = resp.StatusCode
	receipt.DeliveredAt = s.now().UTC()
	if !receipt.OK() {
		return receipt, &DeliveryError{URL: d.URL, StatusCode: resp.StatusCode}
	}
	return receipt, nil
}
