// Package rabbitmq подключается к брокеру, объявляет топологию событий аккаунтов
// и публикует эти события.
package rabbitmq

import (
	"fmt"
	"time"

	"github.com/streadway/amqp"
)

// Connect подключается к RabbitMQ. Между неудачными попытками пауза удваивается,
// начиная с delay.
func Connect(url string, attempts int, delay time.Duration) (*amqp.Connection, error) {
	const op = "rabbitmq.Connect"

	var lastErr error
	for attempt := 1; attempt <= max(attempts, 1); attempt++ {
		conn, err := amqp.Dial(url)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		if attempt < attempts {
			time.Sleep(delay)
			delay *= 2
		}
	}
	return nil, fmt.Errorf("%s: %d attempts failed: %w", op, max(attempts, 1), lastErr)
}

// SetupChannel открывает канал и объявляет на нём топологию: durable topic-exchange
// и очереди, привязанные к нему по ключам маршрутизации.
func SetupChannel(conn *amqp.Connection, exchange string, queues []QueueConfig) (*amqp.Channel, error) {
	const op = "rabbitmq.SetupChannel"

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = declareTopology(ch, exchange, queues); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return ch, nil
}

func declareTopology(ch *amqp.Channel, exchange string, queues []QueueConfig) error {
	// durable, без автоудаления
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	for _, q := range queues {
		if _, err := ch.QueueDeclare(q.QueueName, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", q.QueueName, err)
		}
		if err := ch.QueueBind(q.QueueName, q.RoutingKey, exchange, false, nil); err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", q.QueueName, q.RoutingKey, err)
		}
	}
	return nil
}
