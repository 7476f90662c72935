// Package gateway consumes render requests published by the chat gateway.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/courtbot/internal/domain"
	"github.com/cuongbtq/courtbot/internal/intake"
	"github.com/go-playground/validator/v10"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Source delivers raw AMQP messages.
type Source interface {
	Qos(prefetchCount int) error
	Consume(consumerTag string) (<-chan amqp.Delivery, error)
}

// Accepter turns a validated request into a queued job.
type Accepter interface {
	Accept(ctx context.Context, req intake.RenderRequest) (*domain.Job, error)
}

// Config holds consumer configuration
type Config struct {
	Source        Source
	Accepter      Accepter
	PrefetchCount int
	ConsumerTag   string
	Logger        *slog.Logger
}

// Consumer reads render requests from RabbitMQ with manual acknowledgement
type Consumer struct {
	source        Source
	accepter      Accepter
	prefetchCount int
	consumerTag   string
	validate      *validator.Validate
	logger        *slog.Logger
}

func NewConsumer(cfg Config) *Consumer {
	v := validator.New()
	// Share the request tags with gin binding.
	v.SetTagName("binding")

	c := &Consumer{
		source:        cfg.Source,
		accepter:      cfg.Accepter,
		prefetchCount: cfg.PrefetchCount,
		consumerTag:   cfg.ConsumerTag,
		validate:      v,
		logger:        cfg.Logger,
	}
	if c.prefetchCount <= 0 {
		c.prefetchCount = 10
	}
	if c.consumerTag == "" {
		c.consumerTag = "courtbot"
	}
	return c
}

// Run consumes until ctx is canceled or the delivery channel closes.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.source.Qos(c.prefetchCount); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}
	c.logger.Info("RabbitMQ QoS configured",
		slog.Int("prefetch_count", c.prefetchCount),
	)

	deliveries, err := c.source.Consume(c.consumerTag)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.logger.Info("Render request consumer started",
		slog.String("consumer_tag", c.consumerTag),
	)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Render request consumer stopped - context canceled")
			return nil

		case delivery, ok := <-deliveries:
			if !ok {
				c.logger.Warn("RabbitMQ delivery channel closed")
				return nil
			}
			c.handleDelivery(ctx, delivery)
		}
	}
}

// handleDelivery acknowledges requests that were accepted or rejected with
// feedback to the user; anything unusable is dropped without requeue.
func (c *Consumer) handleDelivery(ctx context.Context, delivery amqp.Delivery) {
	var req intake.RenderRequest
	if err := json.Unmarshal(delivery.Body, &req); err != nil {
		c.logger.Error("Failed to parse render request JSON",
			slog.String("error", err.Error()),
			slog.String("body", string(delivery.Body)),
		)
		c.nack(delivery)
		return
	}

	if err := c.validate.Struct(req); err != nil {
		c.logger.Error("Invalid render request",
			slog.String("requester_id", req.RequesterID),
			slog.String("error", err.Error()),
		)
		c.nack(delivery)
		return
	}

	job, err := c.accepter.Accept(ctx, req)
	switch {
	case err == nil:
		c.logger.Debug("Render request accepted",
			slog.String("job_id", job.ID),
			slog.Uint64("delivery_tag", delivery.DeliveryTag),
		)
	case domain.IsAdmissionError(err):
		c.logger.Info("Render request rejected",
			slog.String("requester_id", req.RequesterID),
			slog.String("reason", err.Error()),
		)
	default:
		c.logger.Error("Failed to accept render request",
			slog.String("requester_id", req.RequesterID),
			slog.String("error", err.Error()),
		)
		c.nack(delivery)
		return
	}

	if ackErr := delivery.Ack(false); ackErr != nil {
		c.logger.Error("Failed to ACK message",
			slog.Uint64("delivery_tag", delivery.DeliveryTag),
			slog.String("error", ackErr.Error()),
		)
	}
}

func (c *Consumer) nack(delivery amqp.Delivery) {
	if err := delivery.Nack(false, false); err != nil {
		c.logger.Error("Failed to NACK message",
			slog.Uint64("delivery_tag", delivery.DeliveryTag),
			slog.String("error", err.Error()),
		)
	}
}
