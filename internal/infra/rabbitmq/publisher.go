package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/momentumjournal/transcription-service/internal/domain/entity"
)

type Publisher struct {
	channel  *amqp.Channel
	exchange string
}

func NewPublisher(conn *amqp.Connection, topology Topology) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open publisher channel: %w", err)
	}
	if err := Declare(ch, topology); err != nil {
		ch.Close()
		return nil, err
	}
	if err := ch.Confirm(false); err != nil {
		ch.Close()
		return nil, fmt.Errorf("enable publisher confirms: %w", err)
	}
	return &Publisher{channel: ch, exchange: topology.Exchange}, nil
}

func (p *Publisher) publish(ctx context.Context, exchange, key string, msg amqp.Publishing) error {
	msg.ContentType = "application/json"
	msg.DeliveryMode = amqp.Persistent
	msg.Timestamp = time.Now().UTC()

	confirm, err := p.channel.PublishWithDeferredConfirmWithContext(ctx, exchange, key, false, false, msg)
	if err != nil {
		return err
	}
	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("wait for broker confirm: %w", err)
	}
	if !acked {
		return errors.New("broker nacked publish")
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.channel.Close()
}

// Dispatcher hands job ids to the worker through the process queue.
type Dispatcher struct {
	pub *Publisher
}

func NewDispatcher(pub *Publisher) *Dispatcher {
	return &Dispatcher{pub: pub}
}

func (d *Dispatcher) Dispatch(ctx context.Context, jobID uuid.UUID) error {
	body, err := json.Marshal(entity.ProcessTranscriptionMessage{JobID: jobID})
	if err != nil {
		return fmt.Errorf("marshal process message: %w", err)
	}
	if err := d.pub.publish(ctx, d.pub.exchange, RoutingKeyProcess, amqp.Publishing{
		Body:      body,
		MessageId: jobID.String(),
	}); err != nil {
		return fmt.Errorf("publish process message: %w", err)
	}
	return nil
}

type StatusPublisher struct {
	pub        *Publisher
	routingKey string
}

func NewStatusPublisher(pub *Publisher) *StatusPublisher {
	return &StatusPublisher{pub: pub, routingKey: RoutingKeyStatus}
}

func (sp *StatusPublisher) PublishStatus(ctx context.Context, msg []byte) error {
	return sp.pub.publish(ctx, sp.pub.exchange, sp.routingKey, amqp.Publishing{Body: msg})
}

type DLQPublisher struct {
	pub   *Publisher
	queue string
}

func NewDLQPublisher(pub *Publisher, dlqQueue string) *DLQPublisher {
	return &DLQPublisher{pub: pub, queue: dlqQueue}
}

func (dp *DLQPublisher) PublishToDLQ(ctx context.Context, msg []byte, reason string) error {
	return dp.pub.publish(ctx, "", dp.queue, amqp.Publishing{
		Body: msg,
		Headers: amqp.Table{
			"x-dlq-reason": reason,
		},
	})
}
