package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitNotifier publishes notifications to a durable RabbitMQ queue.
// One channel is shared by all publishers and guarded by a mutex, since
// amqp channels are not safe for concurrent publishing.
type RabbitNotifier struct {
	conn *amqp.Connection

	mu sync.Mutex
	ch *amqp.Channel
}

// DialRabbit connects to the broker at url and declares GroupRoutedQueue.
func DialRabbit(url string) (*RabbitNotifier, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("notify.DialRabbit: dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("notify.DialRabbit: channel: %w", err)
	}

	// Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(GroupRoutedQueue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("notify.DialRabbit: queue declare: %w", err)
	}

	return &RabbitNotifier{conn: conn, ch: ch}, nil
}

// GroupRouted publishes ev as a persistent JSON message on the default
// exchange, routed to GroupRoutedQueue.
func (n *RabbitNotifier) GroupRouted(ctx context.Context, ev GroupRouted) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("notify.RabbitNotifier.GroupRouted: marshal: %w", err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		MessageId:    ev.GroupID.String() + ":" + ev.ToStopID.String(),
		Body:         body,
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.ch.PublishWithContext(ctx, "", GroupRoutedQueue, false, false, msg); err != nil {
		return fmt.Errorf("notify.RabbitNotifier.GroupRouted: publish: %w", err)
	}
	return nil
}

// Close closes the channel and the connection.
func (n *RabbitNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.ch.Close(); err != nil {
		_ = n.conn.Close()
		return fmt.Errorf("notify.RabbitNotifier.Close: %w", err)
	}
	return n.conn.Close()
}
