package rabbit

// Publishes session lifecycle events to a topic exchange so other services
// (leaderboard archiving, event timeline) can follow live quizzes.

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/CasperKristoff/AI-Toastmaster-sub000/internal/app"
	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultExchange is the topic exchange session events are published to.
const DefaultExchange = "session.events"

// Publisher implements app.EventPublisher over one AMQP channel.
type Publisher struct {
	conn     *amqp.Connection
	exchange string

	mu sync.Mutex // amqp channels must not be used for concurrent publishes
	ch *amqp.Channel
}

// Dial connects to the broker and declares the exchange.
func Dial(url, exchange string) (*Publisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	err = ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto delete
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &Publisher{conn: conn, ch: ch, exchange: exchange}, nil
}

var _ app.EventPublisher = (*Publisher)(nil)

func (p *Publisher) Publish(ctx context.Context, event app.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.PublishWithContext(ctx,
		p.exchange,
		RoutingKey(event),
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Timestamp:   event.At,
			Body:        body,
		})
}

// Close closes the channel and the connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.ch.Close()
	return p.conn.Close()
}

// RoutingKey maps an event to its routing key. Question events carry the
// session code so consumers can bind per session: question.<code>.start.
func RoutingKey(event app.Event) string {
	switch event.Type {
	case app.EventQuestionStart, app.EventQuestionResults:
		verb := strings.TrimPrefix(string(event.Type), "question.")
		return "question." + event.SessionCode + "." + verb
	}
	return string(event.Type)
}
