package nodes

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Crypto-Goatz/jaxrun/internal/engine"
	"github.com/Crypto-Goatz/jaxrun/internal/exchange"
)

// evalExchangeCall вызывает биржу.
//
// Побочные переменные:
//   - ticker: <nodeID>_price (last), <nodeID>_data (котировки целиком)
//   - order:  <nodeID>_order
func (e *Evaluator) evalExchangeCall(ctx context.Context, nodeID string, s ExchangeCallSpec, ts *engine.Scope, scope Scope) (*Outcome, error) {
	client, err := e.exchangeClient(s, ts, scope)
	if err != nil {
		return nil, err
	}

	switch s.Operation {
	case OperationTicker:
		symbol, err := engine.ResolveString(s.Symbol, ts)
		if err != nil {
			return nil, err
		}
		if symbol == "" {
			return nil, configError(nodeID, "symbol resolved to empty value")
		}
		ticker, err := client.FetchTicker(ctx, symbol)
		if err != nil {
			return nil, err
		}
		data := tickerData(ticker)
		return &Outcome{
			Value: data,
			Writes: map[string]any{
				nodeID + "_price": ticker.Last,
				nodeID + "_data":  data,
			},
			Summary: fmt.Sprintf("Price check: %s = $%s", symbol, engine.Stringify(ticker.Last)),
		}, nil

	case OperationBalance:
		balances, err := client.FetchBalance(ctx)
		if err != nil {
			return nil, err
		}
		return &Outcome{
			Value:   balanceData(balances),
			Summary: fmt.Sprintf("Balance: %d currencies on %s", len(balances), client.Venue()),
		}, nil

	case OperationOrder:
		params, err := orderParams(s, ts)
		if err != nil {
			return nil, configError(nodeID, "%v", err)
		}
		params.ClientOrderID = exchange.ClientOrderID(scope.ExecutionID(), nodeID)
		if err := params.Validate(); err != nil {
			return nil, err
		}
		order, err := client.PlaceOrder(ctx, params)
		if err != nil {
			return nil, err
		}
		data := orderData(order)
		return &Outcome{
			Value:  data,
			Writes: map[string]any{nodeID + "_order": data},
			Summary: fmt.Sprintf("Placed %s order: %s %s (id %s)",
				params.Side, engine.Stringify(params.Amount), params.Symbol, order.ID),
		}, nil
	}

	return nil, configError(nodeID, "unknown operation %q", s.Operation)
}

// exchangeClient создаёт клиента для интеграции узла.
// Без exchangeId — публичный клиент биржи ExchangeType.
func (e *Evaluator) exchangeClient(s ExchangeCallSpec, ts *engine.Scope, scope Scope) (exchange.Client, error) {
	if s.ExchangeID == "" {
		return e.factory.Create(s.ExchangeType, exchange.Credentials{})
	}

	id, err := engine.Render(s.ExchangeID, ts)
	if err != nil {
		return nil, err
	}
	x, ok := scope.Exchange(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrExchangeNotFound, id)
	}
	if !x.Active() {
		name := x.Name
		if name == "" {
			name = x.ID
		}
		return nil, fmt.Errorf("%w: %s", ErrExchangeInactive, name)
	}
	return e.factory.Create(x.ExchangeType, exchange.CredentialsOf(x))
}

// orderParams собирает параметры ордера из значений узла.
func orderParams(s ExchangeCallSpec, ts *engine.Scope) (exchange.OrderParams, error) {
	var p exchange.OrderParams

	symbol, err := engine.ResolveString(s.Symbol, ts)
	if err != nil {
		return p, err
	}
	side, err := engine.ResolveString(s.Side, ts)
	if err != nil {
		return p, err
	}
	orderType, err := engine.ResolveString(s.OrderType, ts)
	if err != nil {
		return p, err
	}
	if orderType == "" {
		orderType = string(exchange.OrderTypeMarket)
	}

	amount, err := resolveFloat(s.Amount, ts)
	if err != nil {
		return p, fmt.Errorf("amount: %w", err)
	}
	p = exchange.OrderParams{
		Symbol: symbol,
		Side:   exchange.Side(strings.ToLower(side)),
		Type:   exchange.OrderType(strings.ToLower(orderType)),
		Amount: amount,
	}
	if s.Price != nil {
		price, err := resolveFloat(s.Price, ts)
		if err != nil {
			return p, fmt.Errorf("price: %w", err)
		}
		p.Price = price
	}
	return p, nil
}

// resolveFloat вычисляет значение и приводит его к числу.
func resolveFloat(v any, ts *engine.Scope) (float64, error) {
	resolved, err := engine.Resolve(v, ts)
	if err != nil {
		return 0, err
	}
	f, ok := engine.ToFloat(resolved)
	if !ok {
		return 0, fmt.Errorf("%v is not a number", resolved)
	}
	return f, nil
}

// tickerData — выход ticker-узла. Поле price дублирует last.
func tickerData(t *exchange.Ticker) map[string]any {
	return map[string]any{
		"symbol":    t.Symbol,
		"price":     t.Last,
		"last":      t.Last,
		"bid":       t.Bid,
		"ask":       t.Ask,
		"high":      t.High,
		"low":       t.Low,
		"volume":    t.Volume,
		"timestamp": t.Timestamp.UTC().Format(time.RFC3339Nano),
	}
}

// balanceData — выход balance-узла: список балансов и итог по валютам.
func balanceData(balances []exchange.Balance) map[string]any {
	list := make([]any, 0, len(balances))
	total := make(map[string]any, len(balances))
	for _, b := range balances {
		list = append(list, map[string]any{
			"currency": b.Currency,
			"free":     b.Free,
			"used":     b.Used,
			"total":    b.Total,
		})
		total[b.Currency] = b.Total
	}
	return map[string]any{"balances": list, "total": total}
}

// orderData — выход order-узла.
func orderData(o *exchange.Order) map[string]any {
	return map[string]any{
		"id":            o.ID,
		"clientOrderId": o.ClientOrderID,
		"symbol":        o.Symbol,
		"side":          string(o.Side),
		"type":          string(o.Type),
		"amount":        o.Amount,
		"price":         o.Price,
		"status":        o.Status,
		"timestamp":     o.Timestamp.UTC().Format(time.RFC3339Nano),
	}
}
