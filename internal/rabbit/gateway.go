package rabbit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/phrazzld/notify-api/internal/config"
	"github.com/phrazzld/notify-api/internal/domain"
)

// Publisher is the seam the service layer publishes through. Satisfied by
// *Gateway; tests substitute a fake.
type Publisher interface {
	// Publish serializes the notification and sends it to the exchange with
	// the configured routing key. The handoff is synchronous: an error here
	// is a publish failure, not a delivery failure, and must be surfaced to
	// the caller.
	Publish(ctx context.Context, notification *domain.Notification) error
}

// Gateway wraps a long-lived AMQP connection and the queue topology.
type Gateway struct {
	conn   *amqp.Connection
	cfg    config.BrokerConfig
	logger *slog.Logger
}

var _ Publisher = (*Gateway)(nil)

// Dial connects to the broker and declares the queue topology.
// The caller owns the returned gateway and must Close it on shutdown.
func Dial(cfg config.BrokerConfig, logger *slog.Logger) (*Gateway, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to broker: %w", err)
	}

	g := &Gateway{
		conn:   conn,
		cfg:    cfg,
		logger: logger.With("component", "broker_gateway"),
	}

	if err := g.declareTopology(); err != nil {
		// Topology failure leaves the connection useless; release it.
		_ = conn.Close()
		return nil, err
	}

	return g, nil
}

// Close releases the underlying connection.
func (g *Gateway) Close() error {
	return g.conn.Close()
}

// declareTopology declares the exchanges, queues, and bindings. Declarations
// are idempotent as long as the existing topology matches.
func (g *Gateway) declareTopology() error {
	ch, err := g.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer closeChannel(ch, g.logger)

	if err := ch.ExchangeDeclare(
		g.cfg.Exchange,
		amqp.ExchangeTopic,
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return fmt.Errorf("failed to declare exchange %q: %w", g.cfg.Exchange, err)
	}

	if err := ch.ExchangeDeclare(
		g.cfg.DeadLetterExchange,
		amqp.ExchangeTopic,
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		return fmt.Errorf(
			"failed to declare dead-letter exchange %q: %w",
			g.cfg.DeadLetterExchange,
			err,
		)
	}

	// Main queue: unacknowledged messages are dead-lettered after the TTL.
	mainArgs := amqp.Table{
		"x-dead-letter-exchange":    g.cfg.DeadLetterExchange,
		"x-dead-letter-routing-key": g.cfg.DeadLetterRoutingKey,
		"x-message-ttl":             g.cfg.MessageTTL.Milliseconds(),
	}
	if _, err := ch.QueueDeclare(
		g.cfg.Queue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		mainArgs,
	); err != nil {
		return fmt.Errorf("failed to declare queue %q: %w", g.cfg.Queue, err)
	}

	if err := ch.QueueBind(g.cfg.Queue, g.cfg.RoutingKey, g.cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue %q: %w", g.cfg.Queue, err)
	}

	if _, err := ch.QueueDeclare(
		g.cfg.DeadLetterQueue,
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		return fmt.Errorf(
			"failed to declare dead-letter queue %q: %w",
			g.cfg.DeadLetterQueue,
			err,
		)
	}

	if err := ch.QueueBind(
		g.cfg.DeadLetterQueue,
		g.cfg.DeadLetterRoutingKey,
		g.cfg.DeadLetterExchange,
		false,
		nil,
	); err != nil {
		return fmt.Errorf("failed to bind dead-letter queue %q: %w", g.cfg.DeadLetterQueue, err)
	}

	return nil
}

// Publish sends the full notification record to the exchange as a persistent
// JSON message. A channel is acquired for the single operation and released
// before returning.
func (g *Gateway) Publish(ctx context.Context, notification *domain.Notification) error {
	body, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("failed to marshal notification %s: %w", notification.ID, err)
	}

	ch, err := g.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer closeChannel(ch, g.logger)

	err = ch.PublishWithContext(ctx,
		g.cfg.Exchange,
		g.cfg.RoutingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    notification.ID.String(),
			Body:         body,
		})
	if err != nil {
		return fmt.Errorf("failed to publish notification %s: %w", notification.ID, err)
	}

	g.logger.Debug("published notification",
		"notification_id", notification.ID,
		"routing_key", g.cfg.RoutingKey)
	return nil
}

func closeChannel(ch *amqp.Channel, logger *slog.Logger) {
	if err := ch.Close(); err != nil {
		logger.Warn("failed to close channel", "error", err)
	}
}
