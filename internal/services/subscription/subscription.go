// Package subscription изменяет документ настроек подписок пользователя.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/magabrotheeeer/api-aggregator/internal/cache"
	"github.com/magabrotheeeer/api-aggregator/internal/lib/sl"
	"github.com/magabrotheeeer/api-aggregator/internal/metrics"
	"github.com/magabrotheeeer/api-aggregator/internal/models"
	"github.com/magabrotheeeer/api-aggregator/internal/registry"
	"github.com/magabrotheeeer/api-aggregator/internal/storage"
)

// ErrUnknownService возвращается при изменении сервиса, которого нет в реестре.
var ErrUnknownService = fmt.Errorf("unknown service: %w", storage.ErrMalformed)

// ConfigStore — хранилище документов настроек.
type ConfigStore interface {
	// GetConfig возвращает последний зафиксированный документ.
	GetConfig(ctx context.Context, userID int64) (models.SubscriptionConfig, error)
	// UpdateConfig атомарно применяет fn к документу под блокировкой строки.
	UpdateConfig(ctx context.Context, userID int64, fn storage.Mutator) (models.SubscriptionConfig, error)
}

// Cache описывает сброс закешированного документа.
type Cache interface {
	Invalidate(ctx context.Context, key string) error
}

// Patch — частичное изменение записи сервиса. nil означает «поле не передано».
type Patch struct {
	Token      *string
	Keys       *string
	ParamName  *string
	ParamValue *string
}

// Empty сообщает, что патч ничего не меняет.
func (p Patch) Empty() bool {
	return p.Token == nil && p.Keys == nil && (p.ParamName == nil || p.ParamValue == nil)
}

// Service — редактор настроек подписок.
type Service struct {
	store    ConfigStore
	cache    Cache
	registry *registry.Registry
	log      *slog.Logger
}

// NewService создаёт редактор. cache может быть nil.
func NewService(store ConfigStore, cache Cache, reg *registry.Registry, log *slog.Logger) *Service {
	return &Service{
		store:    store,
		cache:    cache,
		registry: reg,
		log:      log,
	}
}

// Config возвращает зафиксированный документ настроек пользователя.
func (s *Service) Config(ctx context.Context, userID int64) (models.SubscriptionConfig, error) {
	const op = "subscription.Config"
	cfg, err := s.store.GetConfig(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return cfg, nil
}

// ApplyPatch изменяет запись сервиса service в документе пользователя.
// Остальные поля записи и записи других сервисов не меняются.
func (s *Service) ApplyPatch(ctx context.Context, userID int64, service string, patch Patch) (models.SubscriptionConfig, error) {
	const op = "subscription.ApplyPatch"
	log := s.log.With(slog.String("op", op), sl.UserID(userID), sl.Service(service))

	if _, ok := s.registry.Lookup(service); !ok {
		return nil, fmt.Errorf("%s: %w: %q", op, ErrUnknownService, service)
	}

	updated, err := s.store.UpdateConfig(ctx, userID, func(cfg models.SubscriptionConfig) (models.SubscriptionConfig, error) {
		raw, err := applyToEntry(cfg[service], patch)
		if err != nil {
			return nil, fmt.Errorf("service %q: %w: %w", service, storage.ErrMalformed, err)
		}
		cfg[service] = raw
		return cfg, nil
	})
	metrics.RecordPatch(service, err == nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, cache.ConfigKey(userID)); err != nil {
			log.Warn("failed to invalidate cached config", sl.Err(err))
		}
	}
	log.Info("subscription config patched")
	return updated, nil
}

// IsMalformed сообщает, что ошибка вызвана некорректным запросом или документом.
func IsMalformed(err error) bool {
	return errors.Is(err, storage.ErrMalformed)
}

func trimmed(s *string) string {
	return strings.TrimSpace(*s)
}
