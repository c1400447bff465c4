package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/streadway/amqp"
)

// Channel — часть *amqp.Channel, нужная для публикации.
type Channel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// PublishMessage публикует сообщение в RabbitMQ.
func PublishMessage(ch Channel, exchange string, routingkey string, message any) error {
	const op = "rabbitmq.PublishMessage"
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err = ch.Publish(
		exchange,
		routingkey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
		},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Notification — тело публикуемого уведомления.
type Notification struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Composer передаёт уведомления во внешний воркер рассылки через exchange.
type Composer struct {
	ch         Channel
	exchange   string
	routingKey string
}

// NewComposer создаёт Composer поверх открытого канала.
func NewComposer(ch Channel, exchange, routingKey string) *Composer {
	return &Composer{ch: ch, exchange: exchange, routingKey: routingKey}
}

func (c *Composer) Compose(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return PublishMessage(c.ch, c.exchange, c.routingKey, Notification{To: to, Subject: subject, Body: body})
}
