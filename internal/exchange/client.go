package exchange

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// Значения по умолчанию.
	defaultHTTPTimeout = 30 * time.Second
	maxResponseBody    = 2 * 1024 * 1024 // 2 MB
)

// Side — направление ордера.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// OrderType — тип ордера.
type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
)

// Client — операции биржи, доступные узлам workflow.
//
// Реализации не повторяют запросы: один вызов — один HTTP запрос.
type Client interface {
	// Venue возвращает идентификатор биржи ("binance", "okx").
	Venue() string

	// FetchBalance возвращает ненулевые балансы аккаунта.
	FetchBalance(ctx context.Context) ([]Balance, error)

	// FetchTicker возвращает текущие котировки символа ("BTC/USDT").
	FetchTicker(ctx context.Context, symbol string) (*Ticker, error)

	// PlaceOrder размещает ордер.
	PlaceOrder(ctx context.Context, params OrderParams) (*Order, error)
}

// Credentials — учётные данные для подписи запросов.
type Credentials struct {
	APIKey     string
	APISecret  string
	Passphrase string
}

// Balance — баланс одной валюты.
type Balance struct {
	Currency string  `json:"currency"`
	Free     float64 `json:"free"`
	Used     float64 `json:"used"`
	Total    float64 `json:"total"`
}

// Ticker — котировки символа.
type Ticker struct {
	Symbol    string    `json:"symbol"`
	Bid       float64   `json:"bid"`
	Ask       float64   `json:"ask"`
	Last      float64   `json:"last"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Volume    float64   `json:"volume"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderParams — параметры нового ордера.
type OrderParams struct {
	Symbol string
	Side   Side
	Type   OrderType
	Amount float64

	// Price — цена для limit ордера.
	Price float64

	// ClientOrderID — ключ идемпотентности, передаётся бирже как есть.
	ClientOrderID string
}

// Validate проверяет параметры ордера.
func (p *OrderParams) Validate() error {
	if p.Symbol == "" {
		return fmt.Errorf("%w: symbol is required", ErrInvalidOrder)
	}
	if p.Side != SideBuy && p.Side != SideSell {
		return fmt.Errorf("%w: side must be buy or sell, got %q", ErrInvalidOrder, p.Side)
	}
	if p.Type != OrderTypeMarket && p.Type != OrderTypeLimit {
		return fmt.Errorf("%w: type must be market or limit, got %q", ErrInvalidOrder, p.Type)
	}
	if p.Amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidOrder)
	}
	if p.Type == OrderTypeLimit && p.Price <= 0 {
		return fmt.Errorf("%w: limit order requires price", ErrInvalidOrder)
	}
	return nil
}

// Order — размещённый ордер.
type Order struct {
	ID            string    `json:"id"`
	ClientOrderID string    `json:"clientOrderId,omitempty"`
	Symbol        string    `json:"symbol"`
	Side          Side      `json:"side"`
	Type          OrderType `json:"type"`
	Amount        float64   `json:"amount"`
	Price         float64   `json:"price"`
	Status        string    `json:"status"`
	Timestamp     time.Time `json:"timestamp"`
}

// ClientOrderID строит ключ идемпотентности ордера из executionId и ID узла.
//
// Результат — 32 символа [0-9a-z], что подходит и Binance
// (newClientOrderId), и OKX (clOrdId).
func ClientOrderID(executionID, nodeID string) string {
	sum := sha256.Sum256([]byte(executionID + "/" + nodeID))
	return "jx" + hex.EncodeToString(sum[:])[:30]
}

// roundTrip выполняет один HTTP запрос и читает тело ответа.
// Транспортные ошибки возвращаются как *ExchangeCallError.
func roundTrip(client *http.Client, req *http.Request, venue, op string) (int, []byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, &ExchangeCallError{Venue: venue, Operation: op, Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return resp.StatusCode, nil, &ExchangeCallError{
			Venue: venue, Operation: op, StatusCode: resp.StatusCode,
			Message: "read response: " + err.Error(), Err: err,
		}
	}
	return resp.StatusCode, body, nil
}

// splitSymbol разбивает "BTC/USDT", "BTC-USDT" или "BTC_USDT" на base и quote.
// Для слитного "BTCUSDT" возвращает символ целиком и пустой quote.
func splitSymbol(symbol string) (string, string) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	for _, sep := range []string{"/", "-", "_"} {
		if base, quote, ok := strings.Cut(s, sep); ok {
			return base, quote
		}
	}
	return s, ""
}

func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: defaultHTTPTimeout}
}
