// Package aggregator параллельно опрашивает внешние сервисы, на которые подписан пользователь.
package aggregator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/magabrotheeeer/api-aggregator/internal/apiclient"
	"github.com/magabrotheeeer/api-aggregator/internal/cache"
	"github.com/magabrotheeeer/api-aggregator/internal/lib/sl"
	"github.com/magabrotheeeer/api-aggregator/internal/metrics"
	"github.com/magabrotheeeer/api-aggregator/internal/models"
	"github.com/magabrotheeeer/api-aggregator/internal/registry"
)

// ConfigSource возвращает зафиксированный документ настроек пользователя.
type ConfigSource interface {
	GetConfig(ctx context.Context, userID int64) (models.SubscriptionConfig, error)
}

// Cache описывает методы для кэширования документа настроек.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
}

// Fetcher выполняет один запрос к внешнему сервису.
type Fetcher interface {
	Fetch(ctx context.Context, d registry.Descriptor, entry models.ServiceEntry) (json.RawMessage, error)
}

// Service собирает данные из всех сервисов пользователя.
type Service struct {
	store       ConfigSource
	cache       Cache
	cacheTTL    time.Duration
	registry    *registry.Registry
	fetcher     Fetcher
	maxParallel int
	log         *slog.Logger
}

// NewService создаёт агрегатор. cache может быть nil, тогда документ всегда читается из хранилища.
func NewService(store ConfigSource, cache Cache, cacheTTL time.Duration, reg *registry.Registry, fetcher Fetcher, maxParallel int, log *slog.Logger) *Service {
	if maxParallel <= 0 {
		maxParallel = 1
	}
	return &Service{
		store:       store,
		cache:       cache,
		cacheTTL:    cacheTTL,
		registry:    reg,
		fetcher:     fetcher,
		maxParallel: maxParallel,
		log:         log,
	}
}

// FetchAll опрашивает каждый сервис, на который подписан пользователь, и возвращает
// результат по каждому из них. Ошибка возвращается, только если не удалось прочитать
// документ настроек; сбой отдельного сервиса попадает в его Result.
//
// Запросы к сервисам не отменяются вместе с ctx: каждый ограничен только своим
// таймаутом из реестра, и метод возвращается после завершения всех запросов.
func (s *Service) FetchAll(ctx context.Context, userID int64) (map[string]models.Result, error) {
	const op = "aggregator.FetchAll"
	log := s.log.With(
		slog.String("op", op),
		sl.UserID(userID),
		sl.AggregationID(uuid.NewString()),
	)

	cfg, err := s.loadConfig(ctx, userID, log)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var (
		mu      sync.Mutex
		results = make(map[string]models.Result)
	)
	record := func(name string, res models.Result) {
		mu.Lock()
		results[name] = res
		mu.Unlock()
	}

	detached := context.WithoutCancel(ctx)
	g := new(errgroup.Group)
	g.SetLimit(s.maxParallel)

	for _, name := range s.registry.Names() {
		d, _ := s.registry.Lookup(name)
		entry, found, err := cfg.Entry(name)
		if err != nil {
			log.Warn("subscription entry cannot be decoded", sl.Service(name), sl.Err(err))
			metrics.ObserveExternalCall(name, string(models.ErrorBadConfig), 0)
			record(name, models.Result{Error: models.ErrorBadConfig})
			continue
		}
		if !found || !d.Subscribed(entry) {
			continue
		}
		g.Go(func() error {
			record(name, s.fetchOne(detached, d, entry, log))
			return nil
		})
	}
	_ = g.Wait()

	log.Debug("aggregation finished", slog.Int("services", len(results)))
	return results, nil
}

func (s *Service) fetchOne(ctx context.Context, d registry.Descriptor, entry models.ServiceEntry, log *slog.Logger) models.Result {
	callCtx, cancel := context.WithTimeout(ctx, d.Timeout)
	defer cancel()

	start := time.Now()
	data, err := s.fetcher.Fetch(callCtx, d, entry)
	elapsed := time.Since(start)
	if err != nil {
		kind := apiclient.KindOf(err)
		metrics.ObserveExternalCall(d.Name, string(kind), elapsed)
		log.Warn("external service call failed",
			sl.Service(d.Name),
			slog.String("kind", string(kind)),
			slog.Duration("elapsed", elapsed),
			sl.Err(err),
		)
		return models.Result{Error: kind}
	}
	metrics.ObserveExternalCall(d.Name, metrics.OutcomeOK, elapsed)
	return models.Result{Data: data}
}

func (s *Service) loadConfig(ctx context.Context, userID int64, log *slog.Logger) (models.SubscriptionConfig, error) {
	key := cache.ConfigKey(userID)
	if s.cache != nil {
		var cached models.SubscriptionConfig
		found, err := s.cache.Get(ctx, key, &cached)
		if err != nil {
			log.Warn("failed to read cached config", sl.Err(err))
		}
		if found && cached != nil {
			return cached, nil
		}
	}

	cfg, err := s.store.GetConfig(ctx, userID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, cfg, s.cacheTTL); err != nil {
			log.Warn("failed to cache config", sl.Err(err))
		}
	}
	return cfg, nil
}
