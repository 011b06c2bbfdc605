package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// VenueBinance — идентификатор Binance.
	VenueBinance = "binance"

	binanceBaseURL = "https://api.binance.com"
)

// Binance — клиент Binance Spot REST API.
//
// Подписанные запросы: query string + signature=HMAC-SHA256(secret, query) в hex,
// ключ передаётся в заголовке X-MBX-APIKEY.
type Binance struct {
	creds   Credentials
	baseURL string
	client  *http.Client
	now     func() time.Time
}

// NewBinance создаёт клиента Binance.
func NewBinance(creds Credentials, opts Options) *Binance {
	b := &Binance{
		creds:   creds,
		baseURL: opts.baseURL(VenueBinance, binanceBaseURL),
		client:  opts.HTTPClient,
		now:     opts.Now,
	}
	if b.client == nil {
		b.client = defaultHTTPClient()
	}
	if b.now == nil {
		b.now = time.Now
	}
	return b
}

// Venue возвращает "binance".
func (b *Binance) Venue() string {
	return VenueBinance
}

// binanceSymbol приводит "BTC/USDT" к "BTCUSDT".
func binanceSymbol(symbol string) string {
	base, quote := splitSymbol(symbol)
	return base + quote
}

// FetchTicker возвращает 24h статистику символа.
func (b *Binance) FetchTicker(ctx context.Context, symbol string) (*Ticker, error) {
	q := url.Values{}
	q.Set("symbol", binanceSymbol(symbol))

	var data struct {
		Symbol    string `json:"symbol"`
		BidPrice  string `json:"bidPrice"`
		AskPrice  string `json:"askPrice"`
		LastPrice string `json:"lastPrice"`
		HighPrice string `json:"highPrice"`
		LowPrice  string `json:"lowPrice"`
		Volume    string `json:"volume"`
		CloseTime int64  `json:"closeTime"`
	}
	if err := b.do(ctx, "ticker", http.MethodGet, "/api/v3/ticker/24hr", q, false, &data); err != nil {
		return nil, err
	}

	ts := b.now()
	if data.CloseTime > 0 {
		ts = time.UnixMilli(data.CloseTime)
	}
	return &Ticker{
		Symbol:    symbol,
		Bid:       parseFloat(data.BidPrice),
		Ask:       parseFloat(data.AskPrice),
		Last:      parseFloat(data.LastPrice),
		High:      parseFloat(data.HighPrice),
		Low:       parseFloat(data.LowPrice),
		Volume:    parseFloat(data.Volume),
		Timestamp: ts,
	}, nil
}

// FetchBalance возвращает балансы с ненулевыми free или locked.
func (b *Binance) FetchBalance(ctx context.Context) ([]Balance, error) {
	var data struct {
		Balances []struct {
			Asset  string `json:"asset"`
			Free   string `json:"free"`
			Locked string `json:"locked"`
		} `json:"balances"`
	}
	if err := b.do(ctx, "balance", http.MethodGet, "/api/v3/account", url.Values{}, true, &data); err != nil {
		return nil, err
	}

	balances := make([]Balance, 0, len(data.Balances))
	for _, x := range data.Balances {
		free, locked := parseFloat(x.Free), parseFloat(x.Locked)
		if free == 0 && locked == 0 {
			continue
		}
		balances = append(balances, Balance{
			Currency: x.Asset,
			Free:     free,
			Used:     locked,
			Total:    free + locked,
		})
	}
	return balances, nil
}

// PlaceOrder размещает ордер. ClientOrderID передаётся как newClientOrderId.
func (b *Binance) PlaceOrder(ctx context.Context, params OrderParams) (*Order, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("symbol", binanceSymbol(params.Symbol))
	q.Set("side", strings.ToUpper(string(params.Side)))
	q.Set("type", strings.ToUpper(string(params.Type)))
	q.Set("quantity", strconv.FormatFloat(params.Amount, 'f', -1, 64))
	if params.Type == OrderTypeLimit {
		q.Set("price", strconv.FormatFloat(params.Price, 'f', -1, 64))
		q.Set("timeInForce", "GTC")
	}
	if params.ClientOrderID != "" {
		q.Set("newClientOrderId", params.ClientOrderID)
	}

	var data struct {
		OrderID       int64  `json:"orderId"`
		ClientOrderID string `json:"clientOrderId"`
		Symbol        string `json:"symbol"`
		Side          string `json:"side"`
		Type          string `json:"type"`
		OrigQty       string `json:"origQty"`
		Price         string `json:"price"`
		Status        string `json:"status"`
		TransactTime  int64  `json:"transactTime"`
	}
	if err := b.do(ctx, "order", http.MethodPost, "/api/v3/order", q, true, &data); err != nil {
		return nil, err
	}

	return &Order{
		ID:            strconv.FormatInt(data.OrderID, 10),
		ClientOrderID: data.ClientOrderID,
		Symbol:        params.Symbol,
		Side:          Side(strings.ToLower(data.Side)),
		Type:          OrderType(strings.ToLower(data.Type)),
		Amount:        parseFloat(data.OrigQty),
		Price:         parseFloat(data.Price),
		Status:        strings.ToLower(data.Status),
		Timestamp:     time.UnixMilli(data.TransactTime),
	}, nil
}

// do выполняет запрос к Binance и декодирует JSON ответ в out.
func (b *Binance) do(ctx context.Context, op, method, path string, q url.Values, signed bool, out any) error {
	query := q.Encode()
	if signed {
		if b.creds.APIKey == "" || b.creds.APISecret == "" {
			return &ExchangeCallError{Venue: VenueBinance, Operation: op, Message: ErrMissingCredentials.Error(), Err: ErrMissingCredentials}
		}
		q.Set("timestamp", strconv.FormatInt(b.now().UnixMilli(), 10))
		// signature обязана идти последним параметром
		query = q.Encode()
		query += "&signature=" + b.sign(query)
	}

	u := b.baseURL + path
	if query != "" {
		u += "?" + query
	}
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return &ExchangeCallError{Venue: VenueBinance, Operation: op, Message: err.Error(), Err: err}
	}
	if signed {
		req.Header.Set("X-MBX-APIKEY", b.creds.APIKey)
	}

	status, body, err := roundTrip(b.client, req, VenueBinance, op)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		// Формат ошибки Binance: {"code":-1121,"msg":"Invalid symbol."}
		var apiErr struct {
			Code int    `json:"code"`
			Msg  string `json:"msg"`
		}
		msg := strings.TrimSpace(string(body))
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Msg != "" {
			msg = fmt.Sprintf("%s (code %d)", apiErr.Msg, apiErr.Code)
		}
		return &ExchangeCallError{Venue: VenueBinance, Operation: op, StatusCode: status, Message: msg}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &ExchangeCallError{Venue: VenueBinance, Operation: op, StatusCode: status, Message: "decode response: " + err.Error(), Err: err}
	}
	return nil
}

// sign подписывает query string секретом аккаунта.
func (b *Binance) sign(query string) string {
	mac := hmac.New(sha256.New, []byte(b.creds.APISecret))
	mac.Write([]byte(query))
	return hex.EncodeToString(mac.Sum(nil))
}

// parseFloat разбирает числовую строку биржи; пустая или битая строка — 0.
func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
