// Package rabbitmq содержит низкоуровневую публикацию JSON-сообщений в AMQP.
package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/streadway/amqp"
)

// AppID проставляется в каждое опубликованное сообщение.
const AppID = "api-aggregator"

// Channel — часть *amqp.Channel, нужная для публикации.
type Channel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Message — конверт публикуемого события. Payload сериализуется в JSON.
type Message struct {
	ID      string
	Type    string
	Payload any
}

// PublishMessage сериализует msg и публикует его как постоянное сообщение.
func PublishMessage(ctx context.Context, ch Channel, exchange, routingKey string, msg Message) error {
	const op = "rabbitmq.PublishMessage"
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	body, err := json.Marshal(msg.Payload)
	if err != nil {
		return fmt.Errorf("%s: marshal %s: %w", op, msg.Type, err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.ID,
		Type:         msg.Type,
		AppId:        AppID,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err = ch.Publish(exchange, routingKey, false, false, pub); err != nil {
		return fmt.Errorf("%s: publish to %s/%s: %w", op, exchange, routingKey, err)
	}
	return nil
}
