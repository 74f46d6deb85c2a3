package rabbitmq

import (
	"context"
	"time"

	"github.com/google/uuid"

	publisher "github.com/magabrotheeeer/api-aggregator/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/api-aggregator/internal/models"
)

// AccountEvent — сообщение о создании или удалении аккаунта.
type AccountEvent struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	UserID     int64     `json:"user_id"`
	Email      string    `json:"email,omitempty"`
	Grade      string    `json:"grade,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// AccountEvents публикует события аккаунтов в exchange.
type AccountEvents struct {
	ch       publisher.Channel
	exchange string
	now      func() time.Time
}

// NewAccountEvents создаёт публикатор событий поверх открытого канала.
func NewAccountEvents(ch publisher.Channel, exchange string) *AccountEvents {
	return &AccountEvents{ch: ch, exchange: exchange, now: time.Now}
}

// AccountCreated публикует событие регистрации пользователя.
func (e *AccountEvents) AccountCreated(ctx context.Context, user models.User) error {
	return e.publish(ctx, AccountEvent{
		ID:         uuid.NewString(),
		Type:       RoutingAccountCreated,
		UserID:     user.ID,
		Email:      user.Email,
		Grade:      string(user.Grade),
		OccurredAt: e.now().UTC(),
	})
}

// AccountCancelled публикует событие удаления аккаунта.
func (e *AccountEvents) AccountCancelled(ctx context.Context, userID int64) error {
	return e.publish(ctx, AccountEvent{
		ID:         uuid.NewString(),
		Type:       RoutingAccountCancelled,
		UserID:     userID,
		OccurredAt: e.now().UTC(),
	})
}

func (e *AccountEvents) publish(ctx context.Context, ev AccountEvent) error {
	return publisher.PublishMessage(ctx, e.ch, e.exchange, ev.Type, publisher.Message{
		ID:      ev.ID,
		Type:    ev.Type,
		Payload: ev,
	})
}
