package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/rpabot/internal/domain"
)

// MessageType — тип сообщения.
type MessageType string

// Типы сообщений.
const (
	MessageTypeRunStarted  MessageType = "run.started"
	MessageTypeRunFinished MessageType = "run.finished"
	MessageTypeStepAttempt MessageType = "step.attempt"
)

// Message — конверт события.
type Message struct {
	ID        string      `json:"id"`
	Type      MessageType `json:"type"`
	Payload   any         `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// RunPayload — состояние run в событиях run.started и run.finished.
type RunPayload struct {
	RunID           uuid.UUID        `json:"run_id"`
	ProcessCode     string           `json:"process_code"`
	Environment     string           `json:"environment"`
	Status          domain.RunStatus `json:"status"`
	StartStep       int              `json:"start_step"`
	StepIndex       int              `json:"step_index"`
	StatesCompleted int              `json:"states_completed"`
	TotalStates     int              `json:"total_states"`
	FailureKind     string           `json:"failure_kind,omitempty"`
	FailureMessage  string           `json:"failure_message,omitempty"`
	DurationMs      int64            `json:"duration_ms"`
}

// AttemptPayload — событие step.attempt.
type AttemptPayload struct {
	RunID       uuid.UUID             `json:"run_id"`
	ProcessCode string                `json:"process_code"`
	StepIndex   int                   `json:"step_index"`
	StepName    string                `json:"step_name"`
	Attempt     int                   `json:"attempt"`
	Outcome     domain.AttemptOutcome `json:"outcome"`
	Kind        domain.FailureKind    `json:"kind,omitempty"`
	Error       string                `json:"error,omitempty"`
	DurationMs  int64                 `json:"duration_ms"`
}

// NewRunPayload строит payload из run.
func NewRunPayload(run *domain.Run) RunPayload {
	p := RunPayload{
		RunID:           run.ID,
		ProcessCode:     run.ProcessCode,
		Environment:     run.Environment,
		Status:          run.Status,
		StartStep:       run.StartStep,
		StepIndex:       run.StepIndex,
		StatesCompleted: run.StatesCompleted(),
		TotalStates:     run.TotalSteps,
		DurationMs:      run.Duration().Milliseconds(),
	}
	if run.Failure != nil {
		p.FailureKind = string(run.Failure.Kind)
		p.FailureMessage = run.Failure.Message
	}
	return p
}

// NewAttemptPayload строит payload из попытки шага.
func NewAttemptPayload(processCode string, a domain.StepAttempt) AttemptPayload {
	return AttemptPayload{
		RunID:       a.RunID,
		ProcessCode: processCode,
		StepIndex:   a.StepIndex,
		StepName:    a.StepName,
		Attempt:     a.Attempt,
		Outcome:     a.Outcome,
		Kind:        a.Kind,
		Error:       a.Error,
		DurationMs:  a.Duration().Milliseconds(),
	}
}

// Publisher публикует события бота.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{conn: conn, logger: logger}
}

// Publish публикует сообщение в обменник событий.
func (p *Publisher) Publish(ctx context.Context, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(ExchangeEvents),
			string(routingKey),
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				MessageId:    msg.ID,
				Type:         string(msg.Type),
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", ExchangeEvents, routingKey, err)
		}

		p.logger.Debug("published message",
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)
		return nil
	})
}

// PublishRunStarted публикует событие о начале run.
func (p *Publisher) PublishRunStarted(ctx context.Context, run *domain.Run) error {
	return p.Publish(ctx, RoutingKeyRunStarted.ForProcess(run.ProcessCode),
		newMessage(MessageTypeRunStarted, NewRunPayload(run)))
}

// PublishRunFinished публикует итог run.
func (p *Publisher) PublishRunFinished(ctx context.Context, run *domain.Run) error {
	return p.Publish(ctx, RoutingKeyRunFinished.ForProcess(run.ProcessCode),
		newMessage(MessageTypeRunFinished, NewRunPayload(run)))
}

// PublishAttempt публикует попытку шага.
func (p *Publisher) PublishAttempt(ctx context.Context, processCode string, a domain.StepAttempt) error {
	return p.Publish(ctx, RoutingKeyStepAttempt.ForProcess(processCode),
		newMessage(MessageTypeStepAttempt, NewAttemptPayload(processCode, a)))
}

func newMessage(t MessageType, payload any) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Type:      t,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}
