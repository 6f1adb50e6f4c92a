package rabbitmq

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/momentumjournal/transcription-service/internal/infra/metrics"
)

// MessageHandler returns an error only when the delivery should be retried.
// Anything the handler has already dealt with (persisted failure, DLQ) must
// return nil so the message is acked.
type MessageHandler func(ctx context.Context, body []byte) error

const (
	maxBackoff          = 60 * time.Second
	attemptHeader       = "x-attempt"
	defaultDrainTimeout = 2 * time.Minute
)

type Consumer struct {
	conn         *amqp.Connection
	channel      *amqp.Channel
	queue        string
	topology     Topology
	workerCount  int
	maxAttempts  int
	drainTimeout time.Duration
	baseDelay    time.Duration
	handler      MessageHandler
	logger       *zap.Logger
	wg           sync.WaitGroup
}

type ConsumerConfig struct {
	URL         string
	Topology    Topology
	Prefetch    int
	WorkerCount int
	BaseDelayMs int
	// MaxAttempts caps deliveries of one message before it goes to the DLQ.
	// Zero retries forever.
	MaxAttempts int
	// DrainTimeout bounds how long in-flight handlers may run after Start's
	// context is cancelled.
	DrainTimeout time.Duration
}

func NewConsumer(cfg ConsumerConfig, handler MessageHandler, logger *zap.Logger) (*Consumer, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := Declare(ch, cfg.Topology); err != nil {
		conn.Close()
		return nil, err
	}

	if err := ch.Qos(cfg.Prefetch, 0, false); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}

	drainTimeout := cfg.DrainTimeout
	if drainTimeout <= 0 {
		drainTimeout = defaultDrainTimeout
	}

	return &Consumer{
		conn:         conn,
		channel:      ch,
		queue:        cfg.Topology.ProcessQueue,
		topology:     cfg.Topology,
		workerCount:  cfg.WorkerCount,
		maxAttempts:  cfg.MaxAttempts,
		drainTimeout: drainTimeout,
		baseDelay:    time.Duration(cfg.BaseDelayMs) * time.Millisecond,
		handler:      handler,
		logger:       logger,
	}, nil
}

// Start consumes until ctx is cancelled. Cancellation stops new deliveries;
// handlers already running keep a context of their own and get up to the
// drain timeout to finish before it is cancelled too.
func (c *Consumer) Start(ctx context.Context) error {
	deliveries, err := c.channel.ConsumeWithContext(
		ctx,
		c.queue,
		"",
		false, // autoAck=false
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	c.logger.Info("starting worker pool",
		zap.Int("workers", c.workerCount),
		zap.String("queue", c.queue),
	)
	c.serve(ctx, deliveries)
	return nil
}

func (c *Consumer) serve(ctx context.Context, deliveries <-chan amqp.Delivery) {
	workCtx, stopWork := context.WithCancel(context.WithoutCancel(ctx))
	defer stopWork()

	for i := 0; i < c.workerCount; i++ {
		c.wg.Add(1)
		go c.worker(ctx, workCtx, i, deliveries)
	}

	<-ctx.Done()
	c.logger.Info("context cancelled, draining in-flight messages", zap.Duration("drain_timeout", c.drainTimeout))

	drained := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
	case <-time.After(c.drainTimeout):
		c.logger.Warn("drain timeout reached, interrupting in-flight messages")
		stopWork()
		<-drained
	}
}

func (c *Consumer) worker(ctx, workCtx context.Context, id int, deliveries <-chan amqp.Delivery) {
	defer c.wg.Done()
	log := c.logger.With(zap.Int("worker_id", id))
	log.Info("worker started")

	for {
		select {
		case <-ctx.Done():
			log.Info("worker shutting down")
			return
		case d, ok := <-deliveries:
			if !ok {
				log.Info("delivery channel closed")
				return
			}
			if ctx.Err() != nil {
				_ = d.Nack(false, true)
				return
			}
			c.processDelivery(ctx, workCtx, d, log)
		}
	}
}

// processDelivery runs the handler on workCtx. ctx only decides whether the
// consumer is still accepting work.
func (c *Consumer) processDelivery(ctx, workCtx context.Context, d amqp.Delivery, log *zap.Logger) {
	err := c.handler(workCtx, d.Body)
	if err == nil {
		_ = d.Ack(false)
		return
	}

	attempt := attemptFromHeaders(d)
	log = log.With(
		zap.Error(err),
		zap.Uint64("delivery_tag", d.DeliveryTag),
		zap.Int("attempt", attempt),
	)

	if ctx.Err() != nil {
		// Shutting down: hand the message back for another worker instance.
		log.Info("requeueing message on shutdown")
		_ = d.Nack(false, true)
		return
	}

	if c.maxAttempts > 0 && attempt >= c.maxAttempts {
		log.Error("redelivery limit reached, dead-lettering")
		metrics.RetryTotal.WithLabelValues("exhausted").Inc()
		if pubErr := c.deadLetter(workCtx, d, err); pubErr != nil {
			log.Error("failed to dead-letter message", zap.NamedError("publish_error", pubErr))
			_ = d.Nack(false, true)
			return
		}
		_ = d.Ack(false)
		return
	}

	delay := calculateBackoff(c.baseDelay, attempt)
	log.Warn("message processing failed, redelivering", zap.Duration("delay", delay))
	metrics.RetryTotal.WithLabelValues("redelivery").Inc()

	select {
	case <-time.After(delay):
	case <-ctx.Done():
		_ = d.Nack(false, true)
		return
	}

	if pubErr := c.redeliver(workCtx, d, attempt+1); pubErr != nil {
		log.Error("failed to republish message, requeueing", zap.NamedError("publish_error", pubErr))
		_ = d.Nack(false, true)
		return
	}
	_ = d.Ack(false)
}

// redeliver republishes the delivery with an incremented attempt header.
// A plain requeue would lose the count.
func (c *Consumer) redeliver(ctx context.Context, d amqp.Delivery, attempt int) error {
	headers := amqp.Table{}
	for k, v := range d.Headers {
		headers[k] = v
	}
	headers[attemptHeader] = int32(attempt)

	return c.channel.PublishWithContext(ctx, c.topology.Exchange, RoutingKeyProcess, false, false, amqp.Publishing{
		ContentType:  d.ContentType,
		DeliveryMode: amqp.Persistent,
		MessageId:    d.MessageId,
		Timestamp:    time.Now(),
		Headers:      headers,
		Body:         d.Body,
	})
}

func (c *Consumer) deadLetter(ctx context.Context, d amqp.Delivery, cause error) error {
	return c.channel.PublishWithContext(ctx, "", c.topology.DLQ, false, false, amqp.Publishing{
		ContentType:  d.ContentType,
		DeliveryMode: amqp.Persistent,
		MessageId:    d.MessageId,
		Timestamp:    time.Now(),
		Headers:      amqp.Table{"x-dlq-reason": cause.Error()},
		Body:         d.Body,
	})
}

// attemptFromHeaders reads the attempt counter set by redeliver, falling back
// to the broker's x-death history for messages dead-lettered by policy.
func attemptFromHeaders(d amqp.Delivery) int {
	if d.Headers == nil {
		return 1
	}
	switch v := d.Headers[attemptHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	}
	if xDeath, ok := d.Headers["x-death"]; ok {
		if deaths, ok := xDeath.([]interface{}); ok && len(deaths) > 0 {
			return len(deaths)
		}
	}
	return 1
}

func calculateBackoff(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := base * time.Duration(math.Pow(2, float64(attempt-1)))
	if delay > maxBackoff || delay < 0 {
		delay = maxBackoff
	}
	return delay
}

func (c *Consumer) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
