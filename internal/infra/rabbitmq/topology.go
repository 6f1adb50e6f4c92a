package rabbitmq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	RoutingKeyProcess = "transcription.process"
	RoutingKeyStatus  = "transcription.status"
)

// Topology names the exchange and queues shared by the API and the worker.
type Topology struct {
	Exchange     string
	ProcessQueue string
	StatusQueue  string
	DLQ          string
}

// Declare is idempotent; both the consumer and the publishers call it so
// either side can start first.
func Declare(ch *amqp.Channel, t Topology) error {
	if err := ch.ExchangeDeclare(t.Exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	for _, q := range []string{t.ProcessQueue, t.DLQ, t.StatusQueue} {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", q, err)
		}
	}

	if err := ch.QueueBind(t.ProcessQueue, RoutingKeyProcess, t.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind process queue: %w", err)
	}
	if err := ch.QueueBind(t.StatusQueue, RoutingKeyStatus, t.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind status queue: %w", err)
	}
	return nil
}
