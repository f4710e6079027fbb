package publishers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// amqpChannel is the subset of *amqp.Channel used for publishing.
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// rabbitPublisher implements the Publisher interface for an AMQP exchange.
type rabbitPublisher struct {
	id         string
	conn       *amqp.Connection
	channel    amqpChannel
	exchange   string
	routingKey string
	log        Logger
}

func newRabbitMQPublisher(_ context.Context, cfg PublisherConfig, log Logger) (Publisher, error) {
	if cfg.RabbitMQ == nil {
		return nil, fmt.Errorf("publisher %q missing rabbitmq configuration", cfg.ID)
	}
	c := cfg.RabbitMQ
	log = ensureLogger(log)

	conn, err := amqp.Dial(c.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	exchangeType := c.ExchangeType
	if exchangeType == "" {
		exchangeType = rabbitDefaultExchangeType
	}
	if err := ch.ExchangeDeclare(c.Exchange, exchangeType, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	if c.Queue != "" {
		q, err := ch.QueueDeclare(c.Queue, true, false, false, false, nil)
		if err != nil {
			ch.Close()
			conn.Close()
			return nil, fmt.Errorf("declare queue: %w", err)
		}
		if err := ch.QueueBind(q.Name, c.RoutingKey, c.Exchange, false, nil); err != nil {
			ch.Close()
			conn.Close()
			return nil, fmt.Errorf("bind queue: %w", err)
		}
	}

	log.InfoObj("connected to rabbitmq", "publisher_rabbitmq", map[string]any{
		"publisher_id": cfg.ID,
		"exchange":     c.Exchange,
		"queue":        c.Queue,
		"routing_key":  c.RoutingKey,
	})

	return &rabbitPublisher{
		id:         cfg.ID,
		conn:       conn,
		channel:    ch,
		exchange:   c.Exchange,
		routingKey: c.RoutingKey,
		log:        log,
	}, nil
}

func (r *rabbitPublisher) ID() string   { return r.id }
func (r *rabbitPublisher) Type() string { return TypeRabbitMQ }

// Publish sends the event as a persistent JSON message.
func (r *rabbitPublisher) Publish(ctx context.Context, evt Event) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	headers := amqp.Table{}
	for k, v := range evt.attributes() {
		headers[k] = v
	}

	err = r.channel.PublishWithContext(ctx, r.exchange, r.routingKey, false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		MessageId:    evt.ID,
		Headers:      headers,
		Body:         body,
		Timestamp:    time.Now(),
	})
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	r.log.DebugObj("rabbitmq publisher delivered event", "publisher_rabbitmq_delivery", deliveryFields(r.id, evt, nil))
	return nil
}

func (r *rabbitPublisher) Close() error {
	if r.channel != nil {
		r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
