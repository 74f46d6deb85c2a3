package rabbitmq

// Ключи маршрутизации событий аккаунтов.
const (
	RoutingAccountCreated   = "account.created"
	RoutingAccountCancelled = "account.cancelled"
)

type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// GetAccountQueues возвращает очереди, которые получают события аккаунтов.
func GetAccountQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: "accounts.created", RoutingKey: RoutingAccountCreated},
		{QueueName: "accounts.cancelled", RoutingKey: RoutingAccountCancelled},
	}
}
