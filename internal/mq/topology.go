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

// ExchangeEvents — topic-обменник событий бота.
const ExchangeEvents Exchange = "rpabot.events"

// QueueRunsFinished — долговременная очередь итогов run для мониторинга.
const QueueRunsFinished Queue = "rpabot.runs.finished"

// Routing keys. Полный ключ: <prefix>.<process_code>, например
// run.finished.P001.
const (
	RoutingKeyRunStarted  RoutingKey = "run.started"
	RoutingKeyRunFinished RoutingKey = "run.finished"
	RoutingKeyStepAttempt RoutingKey = "step.attempt"
)

// ForProcess добавляет код процесса к ключу.
func (k RoutingKey) ForProcess(code string) RoutingKey {
	if code == "" {
		return k
	}
	return k + RoutingKey("."+code)
}

// SetupTopology объявляет обменник событий и очередь итогов.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.ExchangeDeclare(
			string(ExchangeEvents), // name
			amqp.ExchangeTopic,     // type
			true,                   // durable
			false,                  // auto-deleted
			false,                  // internal
			false,                  // no-wait
			nil,                    // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ExchangeEvents, err)
		}

		_, err = ch.QueueDeclare(
			string(QueueRunsFinished), // name
			true,                      // durable
			false,                     // delete when unused
			false,                     // exclusive
			false,                     // no-wait
			nil,                       // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", QueueRunsFinished, err)
		}

		if err := ch.QueueBind(string(QueueRunsFinished), string(RoutingKeyRunFinished)+".#", string(ExchangeEvents), false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", QueueRunsFinished, err)
		}
		return nil
	})
}

// DeclareTailQueue объявляет временную эксклюзивную очередь, привязанную
// ко всем событиям (или к событиям одного процесса). Возвращает имя
// очереди, выданное брокером.
func DeclareTailQueue(ctx context.Context, conn *Connection, processCode string) (string, error) {
	pattern := "#"
	if processCode != "" {
		pattern = "*.*." + processCode
	}

	var name string
	err := conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		q, err := ch.QueueDeclare("", false, true, true, false, nil)
		if err != nil {
			return fmt.Errorf("declare tail queue: %w", err)
		}
		if err := ch.QueueBind(q.Name, pattern, string(ExchangeEvents), false, nil); err != nil {
			return fmt.Errorf("bind tail queue: %w", err)
		}
		name = q.Name
		return nil
	})
	return name, err
}
