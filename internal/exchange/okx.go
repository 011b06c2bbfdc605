package exchange

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// VenueOKX — идентификатор OKX.
	VenueOKX = "okx"

	okxBaseURL = "https://www.okx.com"

	// okxTimeLayout — формат OK-ACCESS-TIMESTAMP.
	okxTimeLayout = "2006-01-02T15:04:05.000Z"
)

// OKX — клиент OKX REST API v5.
//
// Подпись: base64(HMAC-SHA256(secret, timestamp + method + requestPath + body)),
// заголовки OK-ACCESS-KEY, OK-ACCESS-SIGN, OK-ACCESS-TIMESTAMP, OK-ACCESS-PASSPHRASE.
type OKX struct {
	creds   Credentials
	baseURL string
	client  *http.Client
	now     func() time.Time
}

// NewOKX создаёт клиента OKX.
func NewOKX(creds Credentials, opts Options) *OKX {
	o := &OKX{
		creds:   creds,
		baseURL: opts.baseURL(VenueOKX, okxBaseURL),
		client:  opts.HTTPClient,
		now:     opts.Now,
	}
	if o.client == nil {
		o.client = defaultHTTPClient()
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o
}

// Venue возвращает "okx".
func (o *OKX) Venue() string {
	return VenueOKX
}

// okxInstID приводит "BTC/USDT" к "BTC-USDT".
func okxInstID(symbol string) string {
	base, quote := splitSymbol(symbol)
	if quote == "" {
		return base
	}
	return base + "-" + quote
}

// okxEnvelope — общий формат ответа OKX.
type okxEnvelope struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// FetchTicker возвращает котировки инструмента.
func (o *OKX) FetchTicker(ctx context.Context, symbol string) (*Ticker, error) {
	path := "/api/v5/market/ticker?instId=" + url.QueryEscape(okxInstID(symbol))

	var data []struct {
		InstID  string `json:"instId"`
		Last    string `json:"last"`
		AskPx   string `json:"askPx"`
		BidPx   string `json:"bidPx"`
		High24h string `json:"high24h"`
		Low24h  string `json:"low24h"`
		Vol24h  string `json:"vol24h"`
		Ts      string `json:"ts"`
	}
	if err := o.do(ctx, "ticker", http.MethodGet, path, nil, false, &data); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, &ExchangeCallError{Venue: VenueOKX, Operation: "ticker", Message: "empty ticker data for " + symbol}
	}

	t := data[0]
	ts := o.now()
	if ms, err := strconv.ParseInt(t.Ts, 10, 64); err == nil {
		ts = time.UnixMilli(ms)
	}
	return &Ticker{
		Symbol:    symbol,
		Bid:       parseFloat(t.BidPx),
		Ask:       parseFloat(t.AskPx),
		Last:      parseFloat(t.Last),
		High:      parseFloat(t.High24h),
		Low:       parseFloat(t.Low24h),
		Volume:    parseFloat(t.Vol24h),
		Timestamp: ts,
	}, nil
}

// FetchBalance возвращает балансы торгового аккаунта.
func (o *OKX) FetchBalance(ctx context.Context) ([]Balance, error) {
	var data []struct {
		Details []struct {
			Ccy       string `json:"ccy"`
			AvailBal  string `json:"availBal"`
			FrozenBal string `json:"frozenBal"`
			Eq        string `json:"eq"`
		} `json:"details"`
	}
	if err := o.do(ctx, "balance", http.MethodGet, "/api/v5/account/balance", nil, true, &data); err != nil {
		return nil, err
	}

	var balances []Balance
	for _, acc := range data {
		for _, d := range acc.Details {
			free, used := parseFloat(d.AvailBal), parseFloat(d.FrozenBal)
			total := parseFloat(d.Eq)
			if total == 0 {
				total = free + used
			}
			if total == 0 {
				continue
			}
			balances = append(balances, Balance{Currency: d.Ccy, Free: free, Used: used, Total: total})
		}
	}
	return balances, nil
}

// PlaceOrder размещает spot ордер (tdMode=cash). ClientOrderID передаётся как clOrdId.
func (o *OKX) PlaceOrder(ctx context.Context, params OrderParams) (*Order, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	body := map[string]string{
		"instId":  okxInstID(params.Symbol),
		"tdMode":  "cash",
		"side":    string(params.Side),
		"ordType": string(params.Type),
		"sz":      strconv.FormatFloat(params.Amount, 'f', -1, 64),
	}
	if params.Type == OrderTypeLimit {
		body["px"] = strconv.FormatFloat(params.Price, 'f', -1, 64)
	}
	if params.Type == OrderTypeMarket && params.Side == SideBuy {
		// Рыночная покупка: sz в базовой валюте, как у остальных бирж
		body["tgtCcy"] = "base_ccy"
	}
	if params.ClientOrderID != "" {
		body["clOrdId"] = params.ClientOrderID
	}

	var data []struct {
		OrdID   string `json:"ordId"`
		ClOrdID string `json:"clOrdId"`
		SCode   string `json:"sCode"`
		SMsg    string `json:"sMsg"`
	}
	if err := o.do(ctx, "order", http.MethodPost, "/api/v5/trade/order", body, true, &data); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, &ExchangeCallError{Venue: VenueOKX, Operation: "order", Message: "empty order response"}
	}
	if data[0].SCode != "" && data[0].SCode != "0" {
		return nil, &ExchangeCallError{
			Venue: VenueOKX, Operation: "order",
			Message: fmt.Sprintf("%s (sCode %s)", data[0].SMsg, data[0].SCode),
		}
	}

	return &Order{
		ID:            data[0].OrdID,
		ClientOrderID: data[0].ClOrdID,
		Symbol:        params.Symbol,
		Side:          params.Side,
		Type:          params.Type,
		Amount:        params.Amount,
		Price:         params.Price,
		Status:        "open",
		Timestamp:     o.now(),
	}, nil
}

// do выполняет запрос к OKX и декодирует поле data ответа в out.
// requestPath включает query string: он участвует в подписи.
func (o *OKX) do(ctx context.Context, op, method, requestPath string, payload any, signed bool, out any) error {
	var bodyBytes []byte
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return &ExchangeCallError{Venue: VenueOKX, Operation: op, Message: "encode request: " + err.Error(), Err: err}
		}
		bodyBytes = b
	}

	req, err := http.NewRequestWithContext(ctx, method, o.baseURL+requestPath, bytes.NewReader(bodyBytes))
	if err != nil {
		return &ExchangeCallError{Venue: VenueOKX, Operation: op, Message: err.Error(), Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	if signed {
		if o.creds.APIKey == "" || o.creds.APISecret == "" || o.creds.Passphrase == "" {
			return &ExchangeCallError{Venue: VenueOKX, Operation: op, Message: ErrMissingCredentials.Error(), Err: ErrMissingCredentials}
		}
		ts := o.now().UTC().Format(okxTimeLayout)
		req.Header.Set("OK-ACCESS-KEY", o.creds.APIKey)
		req.Header.Set("OK-ACCESS-SIGN", o.sign(ts, method, requestPath, string(bodyBytes)))
		req.Header.Set("OK-ACCESS-TIMESTAMP", ts)
		req.Header.Set("OK-ACCESS-PASSPHRASE", o.creds.Passphrase)
	}

	status, body, err := roundTrip(o.client, req, VenueOKX, op)
	if err != nil {
		return err
	}

	var env okxEnvelope
	if decodeErr := json.Unmarshal(body, &env); decodeErr != nil {
		if status < 200 || status >= 300 {
			return &ExchangeCallError{Venue: VenueOKX, Operation: op, StatusCode: status, Message: strings.TrimSpace(string(body))}
		}
		return &ExchangeCallError{Venue: VenueOKX, Operation: op, StatusCode: status, Message: "decode response: " + decodeErr.Error(), Err: decodeErr}
	}
	if status < 200 || status >= 300 || env.Code != "0" {
		return &ExchangeCallError{
			Venue: VenueOKX, Operation: op, StatusCode: status,
			Message: fmt.Sprintf("%s (code %s)", env.Msg, env.Code),
		}
	}

	if err := json.Unmarshal(env.Data, out); err != nil {
		return &ExchangeCallError{Venue: VenueOKX, Operation: op, StatusCode: status, Message: "decode data: " + err.Error(), Err: err}
	}
	return nil
}

// sign строит подпись OKX.
func (o *OKX) sign(timestamp, method, requestPath, body string) string {
	mac := hmac.New(sha256.New, []byte(o.creds.APISecret))
	mac.Write([]byte(timestamp + strings.ToUpper(method) + requestPath + body))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
