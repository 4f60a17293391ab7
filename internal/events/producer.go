package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

type Publisher interface {
	Publish(ctx context.Context, routingKey string, body any) error
	Close()
}

// Producer publishes JSON events to a durable topic exchange.
type Producer struct {
	mu       sync.Mutex
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	exchange string
}

func NewProducer(amqpURL, exchange string) (*Producer, error) {
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("NewProducer: %w", err)
	}

	conn, err := amqp091.DialConfig(cleanURL, amqp091.Config{Dial: amqp091.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, fmt.Errorf("NewProducer: dial: %w", err)
	}

	p := &Producer{conn: conn, exchange: exchange}
	if err := p.openChannel(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("NewProducer: %w", err)
	}
	return p, nil
}

func (p *Producer) openChannel() error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		return fmt.Errorf("declare exchange %s: %w", p.exchange, err)
	}
	p.channel = ch
	return nil
}

// Publish retries once on a fresh channel when the first attempt fails.
func (p *Producer) Publish(ctx context.Context, routingKey string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("Publish: marshal: %w", err)
	}

	msg := amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         payload,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg)
	if err == nil {
		return nil
	}

	slog.Warn("publish failed, reopening channel", "exchange", p.exchange, "routing_key", routingKey, "error", err)
	if reopenErr := p.openChannel(); reopenErr != nil {
		return fmt.Errorf("Publish: %w", errors.Join(err, reopenErr))
	}
	if err := p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg); err != nil {
		return fmt.Errorf("Publish: retry: %w", err)
	}
	return nil
}

func (p *Producer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}

// Fallback drops events. It is used when no broker is configured or the
// broker is unreachable at startup.
type Fallback struct {
	Logger *slog.Logger
}

func (f *Fallback) Publish(ctx context.Context, routingKey string, body any) error {
	if f.Logger != nil {
		f.Logger.Debug("publish skipped", "mode", "fallback", "routing_key", routingKey)
	}
	return nil
}

func (f *Fallback) Close() {}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	if idx := strings.Index(strings.ToLower(clean), "amqp"); idx > 0 {
		clean = clean[idx:]
	}
	u, err := url.Parse(clean)
	if err != nil {
		return "", fmt.Errorf("parse amqp url: %w", err)
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("amqp url scheme must be amqp:// or amqps://")
	}
	return clean, nil
}

// Connect returns a broker-backed publisher, or a Fallback when url is
// empty or the broker cannot be reached.
func Connect(amqpURL, exchange string, logger *slog.Logger) Publisher {
	if strings.TrimSpace(amqpURL) == "" {
		logger.Info("RABBITMQ_URL not set, ledger events disabled")
		return &Fallback{Logger: logger}
	}
	p, err := NewProducer(amqpURL, exchange)
	if err != nil {
		logger.Warn("rabbitmq unavailable, ledger events disabled", "error", err)
		return &Fallback{Logger: logger}
	}
	logger.Info("rabbitmq connected", "exchange", exchange)
	return p
}
