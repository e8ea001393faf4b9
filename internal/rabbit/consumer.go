package rabbit

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/phrazzld/notify-api/internal/domain"
)

// Processor handles messages delivered from the queues. Implemented by the
// notification service.
//
// The consumer contract is explicit: an unhandled processing error from
// ConsumeFromQueue is reported upward to the consumer loop, which rejects
// the message without requeue so the broker's dead-letter policy takes
// over. This system tracks no retry counter of its own; redelivery before
// dead-lettering is entirely the broker's responsibility.
type Processor interface {
	// ConsumeFromQueue is invoked once per delivered message. It performs
	// the delivery work and transitions the record PENDING -> SENT, or to
	// FAILED on any processing failure.
	ConsumeFromQueue(ctx context.Context, notification *domain.Notification) error

	// HandleDeadLetter is invoked for messages arriving on the dead-letter
	// queue. It forces the record into the terminal FAILED state. Idempotent
	// since the record's ID is stable; it never re-publishes.
	HandleDeadLetter(ctx context.Context, notification *domain.Notification) error
}

// Consumer runs the two long-lived listener goroutines, one per queue,
// decoupled from the request path.
type Consumer struct {
	gateway   *Gateway
	processor Processor
	logger    *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewConsumer creates a Consumer reading from the gateway's queues.
func NewConsumer(gateway *Gateway, processor Processor, logger *slog.Logger) *Consumer {
	return &Consumer{
		gateway:   gateway,
		processor: processor,
		logger:    logger.With("component", "broker_consumer"),
	}
}

// Start opens one channel per queue and launches the consumer loops.
func (c *Consumer) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	mainDeliveries, mainCh, err := c.consume(c.gateway.cfg.Queue)
	if err != nil {
		cancel()
		return err
	}

	dlqDeliveries, dlqCh, err := c.consume(c.gateway.cfg.DeadLetterQueue)
	if err != nil {
		closeChannel(mainCh, c.logger)
		cancel()
		return err
	}

	c.wg.Add(2)
	go c.runMain(ctx, mainDeliveries, mainCh)
	go c.runDeadLetter(ctx, dlqDeliveries, dlqCh)

	return nil
}

// Stop cancels both loops and waits for in-flight messages to finish.
func (c *Consumer) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
}

func (c *Consumer) consume(queue string) (<-chan amqp.Delivery, *amqp.Channel, error) {
	ch, err := c.gateway.conn.Channel()
	if err != nil {
		return nil, nil, err
	}

	deliveries, err := ch.Consume(
		queue,
		"",    // consumer tag: auto-generated
		false, // manual ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		closeChannel(ch, c.logger)
		return nil, nil, err
	}

	return deliveries, ch, nil
}

// runMain processes deliveries from the main queue. A processing error
// rejects the message without requeue, which routes it to the dead-letter
// exchange per the queue's x-dead-letter-exchange argument.
func (c *Consumer) runMain(ctx context.Context, deliveries <-chan amqp.Delivery, ch *amqp.Channel) {
	defer c.wg.Done()
	defer closeChannel(ch, c.logger)

	for {
		select {
		case <-ctx.Done():
			return
		case delivery, ok := <-deliveries:
			if !ok {
				c.logger.Warn("main queue delivery channel closed")
				return
			}
			c.handleMain(ctx, delivery)
		}
	}
}

func (c *Consumer) handleMain(ctx context.Context, delivery amqp.Delivery) {
	notification, err := decodeNotification(delivery.Body)
	if err != nil {
		// Undecodable payloads can never succeed; dead-letter immediately.
		c.logger.Error("failed to decode notification message",
			"message_id", delivery.MessageId,
			"error", err)
		c.nack(delivery)
		return
	}

	logger := c.logger.With("notification_id", notification.ID)
	logger.Info("processing notification")

	if err := c.processor.ConsumeFromQueue(ctx, notification); err != nil {
		logger.Error("failed to process notification", "error", err)
		c.nack(delivery)
		return
	}

	logger.Info("successfully processed notification")
	if err := delivery.Ack(false); err != nil {
		logger.Warn("failed to ack message", "error", err)
	}
}

// runDeadLetter processes deliveries from the dead-letter queue. Messages
// here have either expired or been rejected from the main queue; the record
// is forced to FAILED and the message is always acknowledged. No re-publish,
// no further retry.
func (c *Consumer) runDeadLetter(
	ctx context.Context,
	deliveries <-chan amqp.Delivery,
	ch *amqp.Channel,
) {
	defer c.wg.Done()
	defer closeChannel(ch, c.logger)

	for {
		select {
		case <-ctx.Done():
			return
		case delivery, ok := <-deliveries:
			if !ok {
				c.logger.Warn("dead-letter queue delivery channel closed")
				return
			}
			c.handleDeadLetter(ctx, delivery)
		}
	}
}

func (c *Consumer) handleDeadLetter(ctx context.Context, delivery amqp.Delivery) {
	// Always acknowledge: a dead-lettered message has exhausted its delivery
	// attempts and must not cycle back.
	defer func() {
		if err := delivery.Ack(false); err != nil {
			c.logger.Warn("failed to ack dead-letter message", "error", err)
		}
	}()

	notification, err := decodeNotification(delivery.Body)
	if err != nil {
		c.logger.Error("failed to decode dead-letter message",
			"message_id", delivery.MessageId,
			"error", err)
		return
	}

	c.logger.Warn("received failed notification in dead-letter queue",
		"notification_id", notification.ID)

	if err := c.processor.HandleDeadLetter(ctx, notification); err != nil {
		c.logger.Error("failed to mark notification as failed",
			"notification_id", notification.ID,
			"error", err)
	}
}

func (c *Consumer) nack(delivery amqp.Delivery) {
	if err := delivery.Nack(false, false); err != nil {
		c.logger.Warn("failed to nack message",
			"message_id", delivery.MessageId,
			"error", err)
	}
}

// decodeNotification deserializes the message payload into the same shape it
// was published with.
func decodeNotification(body []byte) (*domain.Notification, error) {
	var notification domain.Notification
	if err := json.Unmarshal(body, &notification); err != nil {
		return nil, err
	}
	return &notification, nil
}
