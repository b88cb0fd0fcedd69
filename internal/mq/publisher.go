package mq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// amqpChannel is the part of *amqp.Channel the publisher needs
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// PublisherConfig holds the exchange and routing keys for outgoing events
type PublisherConfig struct {
	Exchange          string
	ReadingRoutingKey string
	RunDoneRoutingKey string
}

// Publisher handles event publishing to RabbitMQ
type Publisher struct {
	channel amqpChannel
	cfg     PublisherConfig
	logger  *zap.Logger
}

// NewPublisher opens a channel and declares the events exchange
func NewPublisher(conn *Connection, cfg PublisherConfig, logger *zap.Logger) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}

	if err := declareTopicExchange(ch, cfg.Exchange); err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return newPublisher(ch, cfg, logger), nil
}

func newPublisher(ch amqpChannel, cfg PublisherConfig, logger *zap.Logger) *Publisher {
	return &Publisher{
		channel: ch,
		cfg:     cfg,
		logger:  logger,
	}
}

// PublishReading publishes one reconciled record
func (p *Publisher) PublishReading(ctx context.Context, event ReconciledReadingEvent) error {
	if err := p.publish(ctx, p.cfg.ReadingRoutingKey, event); err != nil {
		return err
	}

	p.logger.Debug("published reconciled reading",
		zap.String("run_id", event.RunID),
		zap.String("meter_reading_id", event.Reading.MeterReadingID),
	)
	return nil
}

// PublishRunCompleted publishes a run summary
func (p *Publisher) PublishRunCompleted(ctx context.Context, event RunCompletedEvent) error {
	if err := p.publish(ctx, p.cfg.RunDoneRoutingKey, event); err != nil {
		return err
	}

	p.logger.Debug("published run summary", zap.String("run_id", event.RunID))
	return nil
}

func (p *Publisher) publish(ctx context.Context, routingKey string, event any) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = p.channel.PublishWithContext(
		ctx,
		p.cfg.Exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", routingKey, err)
	}

	return nil
}

// Close closes the publisher channel
func (p *Publisher) Close() error {
	if p.channel != nil {
		return p.channel.Close()
	}
	return nil
}
