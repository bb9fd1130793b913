package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"story-server/internal/interfaces"

	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

const (
	// ExchangeMediaTasks is the exchange the media pipeline consumes from.
	ExchangeMediaTasks = "media_tasks"
)

// Compile-time check to ensure implementation satisfies the interface.
var _ interfaces.MediaTaskPublisher = (*RabbitMQMediaPublisher)(nil)

// RabbitMQMediaPublisher hands unresolved asset tags to the media pipeline
// over RabbitMQ. The connection is owned by the caller; the publisher only
// manages its own channel.
type RabbitMQMediaPublisher struct {
	conn *amqp091.Connection
	ch   *amqp091.Channel
}

func NewRabbitMQMediaPublisher(conn *amqp091.Connection) (*RabbitMQMediaPublisher, error) {
	if conn == nil {
		return nil, fmt.Errorf("rabbitmq connection is nil")
	}

	ch, err := conn.Channel()
	if err != nil {
		log.Error().Err(err).Msg("Failed to open a channel")
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	// Durable fanout exchange, declared idempotently.
	err = ch.ExchangeDeclare(
		ExchangeMediaTasks, // name
		"fanout",           // type
		true,               // durable
		false,              // auto-deleted
		false,              // internal
		false,              // no-wait
		nil,                // arguments
	)
	if err != nil {
		_ = ch.Close()
		log.Error().Err(err).Str("exchange", ExchangeMediaTasks).Msg("Failed to declare exchange")
		return nil, fmt.Errorf("failed to declare exchange '%s': %w", ExchangeMediaTasks, err)
	}

	log.Info().Str("exchange", ExchangeMediaTasks).Msg("Media task exchange declared successfully")

	return &RabbitMQMediaPublisher{conn: conn, ch: ch}, nil
}

// PublishMediaTask publishes one asset-materialization task.
func (p *RabbitMQMediaPublisher) PublishMediaTask(ctx context.Context, payload interfaces.MediaTaskPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Interface("payload", payload).Msg("Failed to marshal media task")
		return fmt.Errorf("failed to marshal media task: %w", err)
	}

	err = p.ch.PublishWithContext(ctx,
		ExchangeMediaTasks, // exchange
		"",                 // routing key (unused for fanout)
		false,              // mandatory
		false,              // immediate
		amqp091.Publishing{
			ContentType: "application/json",
			Body:        body,
			Timestamp:   time.Now(),
		},
	)
	if err != nil {
		log.Error().Err(err).Interface("payload", payload).Msg("Failed to publish media task")
		return fmt.Errorf("failed to publish media task: %w", err)
	}

	log.Debug().Str("storySlug", payload.StorySlug).Str("nodeKey", payload.NodeKey).Str("assetTag", payload.AssetTag).Msg("Media task published")
	return nil
}

// Close closes the publisher's channel.
func (p *RabbitMQMediaPublisher) Close() error {
	if p.ch != nil {
		return p.ch.Close()
	}
	return nil
}
