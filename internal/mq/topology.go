package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	ExchangeFlows      Exchange = "jaxrun.flows"
	ExchangeExecutions Exchange = "jaxrun.executions"
	ExchangeDLQ        Exchange = "jaxrun.dlq"
)

// Queues — имена очередей.
const (
	QueueFlowsTriggered      Queue = "flows.triggered"
	QueueExecutionsCompleted Queue = "executions.completed"
	QueueDLQFlows            Queue = "dlq.flows"
)

// Routing keys.
const (
	RoutingKeyTriggered RoutingKey = "triggered"
	RoutingKeyCompleted RoutingKey = "completed"
	RoutingKeyDLQFlows  RoutingKey = "flows"
)

type exchangeDecl struct {
	name Exchange
	kind string
}

type queueDecl struct {
	name Queue
	args amqp.Table
}

type bindingDecl struct {
	queue      Queue
	routingKey RoutingKey
	exchange   Exchange
}

// topology — полное описание обменников, очередей и привязок.
//
//	jaxrun.flows (direct)
//	└── flows.triggered [triggered] → runner, DLQ: dlq.flows
//	jaxrun.executions (fanout)
//	└── executions.completed → внешние потребители
//	jaxrun.dlq (direct)
//	└── dlq.flows [flows] → ручной разбор
var topology = struct {
	exchanges []exchangeDecl
	queues    []queueDecl
	bindings  []bindingDecl
}{
	exchanges: []exchangeDecl{
		{ExchangeFlows, amqp.ExchangeDirect},
		{ExchangeExecutions, amqp.ExchangeFanout},
		{ExchangeDLQ, amqp.ExchangeDirect},
	},
	queues: []queueDecl{
		{QueueFlowsTriggered, amqp.Table{
			"x-dead-letter-exchange":    string(ExchangeDLQ),
			"x-dead-letter-routing-key": string(RoutingKeyDLQFlows),
		}},
		{QueueExecutionsCompleted, nil},
		{QueueDLQFlows, nil},
	},
	bindings: []bindingDecl{
		{QueueFlowsTriggered, RoutingKeyTriggered, ExchangeFlows},
		{QueueExecutionsCompleted, RoutingKeyCompleted, ExchangeExecutions},
		{QueueDLQFlows, RoutingKeyDLQFlows, ExchangeDLQ},
	},
}

// SetupTopology объявляет обменники, очереди и привязки. Идемпотентна.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		for _, ex := range topology.exchanges {
			if err := ch.ExchangeDeclare(string(ex.name), ex.kind, true, false, false, false, nil); err != nil {
				return fmt.Errorf("declare exchange %s: %w", ex.name, err)
			}
		}
		for _, q := range topology.queues {
			if _, err := ch.QueueDeclare(string(q.name), true, false, false, false, q.args); err != nil {
				return fmt.Errorf("declare queue %s: %w", q.name, err)
			}
		}
		for _, b := range topology.bindings {
			if err := ch.QueueBind(string(b.queue), string(b.routingKey), string(b.exchange), false, nil); err != nil {
				return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
			}
		}
		return nil
	})
}
