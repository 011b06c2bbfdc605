package exchange

import (
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"
)

// Builder создаёт клиента биржи по учётным данным.
type Builder func(creds Credentials, opts Options) Client

// Options — общие настройки клиентов бирж.
type Options struct {
	// HTTPClient — HTTP клиент. По умолчанию с таймаутом 30s.
	HTTPClient *http.Client

	// BaseURLs — переопределение адресов API по типу биржи
	// (тестовые стенды, прокси).
	BaseURLs map[string]string

	// Now — источник времени для подписи запросов.
	Now func() time.Time
}

// baseURL возвращает адрес API биржи с учётом переопределения.
func (o Options) baseURL(venue, def string) string {
	if u, ok := o.BaseURLs[venue]; ok && u != "" {
		return strings.TrimRight(u, "/")
	}
	return def
}

// knownUnsupported — биржи, которые принимаются в интеграциях,
// но пока не имеют адаптера.
var knownUnsupported = []string{"coinbase", "kraken", "bybit"}

// Factory — потокобезопасный реестр адаптеров бирж.
//
// По умолчанию зарегистрированы binance и okx.
type Factory struct {
	builders map[string]Builder
	opts     Options
	mu       sync.RWMutex
}

// NewFactory создаёт Factory со встроенными адаптерами.
func NewFactory(opts Options) *Factory {
	if opts.HTTPClient == nil {
		opts.HTTPClient = defaultHTTPClient()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	f := &Factory{
		builders: make(map[string]Builder),
		opts:     opts,
	}
	f.Register(VenueBinance, func(c Credentials, o Options) Client { return NewBinance(c, o) })
	f.Register(VenueOKX, func(c Credentials, o Options) Client { return NewOKX(c, o) })
	return f
}

// Register регистрирует адаптер. Существующий адаптер заменяется.
func (f *Factory) Register(exchangeType string, b Builder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.builders[strings.ToLower(exchangeType)] = b
}

// Create создаёт клиента для типа биржи.
//
// Возвращает *UnsupportedExchangeError, если адаптер не зарегистрирован.
func (f *Factory) Create(exchangeType string, creds Credentials) (Client, error) {
	f.mu.RLock()
	b, ok := f.builders[strings.ToLower(exchangeType)]
	f.mu.RUnlock()

	if !ok {
		return nil, &UnsupportedExchangeError{ExchangeType: exchangeType}
	}
	return b(creds, f.opts), nil
}

// Supported возвращает зарегистрированные типы бирж по алфавиту.
func (f *Factory) Supported() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	types := make([]string, 0, len(f.builders))
	for t := range f.builders {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}

// IsKnown возвращает true для бирж, которые можно указать в интеграции,
// даже если адаптер ещё не реализован.
func (f *Factory) IsKnown(exchangeType string) bool {
	t := strings.ToLower(exchangeType)
	if slices.Contains(knownUnsupported, t) {
		return true
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.builders[t]
	return ok
}
