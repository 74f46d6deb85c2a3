// Package account отвечает за регистрацию, вход и удаление пользователей.
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/api-aggregator/internal/cache"
	"github.com/magabrotheeeer/api-aggregator/internal/lib/jwt"
	"github.com/magabrotheeeer/api-aggregator/internal/lib/password"
	"github.com/magabrotheeeer/api-aggregator/internal/lib/sl"
	"github.com/magabrotheeeer/api-aggregator/internal/models"
	"github.com/magabrotheeeer/api-aggregator/internal/storage"
)

// ErrAuthFailure — неверные учётные данные или недействительная сессия.
var ErrAuthFailure = errors.New("authentication failed")

// UserRepository описывает контракт для работы с пользователями в базе данных.
type UserRepository interface {
	// CreateUser сохраняет пользователя вместе с пустым документом настроек.
	CreateUser(ctx context.Context, user models.User) (int64, error)
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	// DeleteUser удаляет пользователя и все его данные.
	DeleteUser(ctx context.Context, id int64) error
}

// Cache описывает сброс закешированного документа.
type Cache interface {
	Invalidate(ctx context.Context, key string) error
}

// Events публикует события жизненного цикла аккаунта.
type Events interface {
	AccountCreated(ctx context.Context, user models.User) error
	AccountCancelled(ctx context.Context, userID int64) error
}

// Service реализует жизненный цикл аккаунта.
type Service struct {
	users    UserRepository
	jwtMaker jwt.Maker
	cache    Cache
	events   Events
	log      *slog.Logger
}

// NewService создаёт сервис аккаунтов. cache и events могут быть nil.
func NewService(users UserRepository, jwtMaker jwt.Maker, cache Cache, events Events, log *slog.Logger) *Service {
	return &Service{
		users:    users,
		jwtMaker: jwtMaker,
		cache:    cache,
		events:   events,
		log:      log,
	}
}

// Signup создаёт пользователя с солёным хэшем пароля и пустым документом настроек.
func (s *Service) Signup(ctx context.Context, email, rawPassword string, grade models.Grade) (int64, error) {
	const op = "account.Signup"
	if !grade.Valid() {
		return 0, fmt.Errorf("%s: unknown grade %q: %w", op, grade, storage.ErrMalformed)
	}
	if len(rawPassword) > password.MaxPasswordLength {
		return 0, fmt.Errorf("%s: password too long: %w", op, storage.ErrMalformed)
	}

	salt, err := password.GenerateSalt(password.SaltLength)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	hashed, err := password.GetHash(salt, rawPassword)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	user := models.User{
		Email:        email,
		Salt:         salt,
		PasswordHash: hashed,
		Grade:        grade,
	}
	id, err := s.users.CreateUser(ctx, user)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	user.ID = id

	if s.events != nil {
		if err := s.events.AccountCreated(ctx, user); err != nil {
			s.log.Warn("failed to publish account event", slog.String("op", op), sl.UserID(id), sl.Err(err))
		}
	}
	return id, nil
}

// Authenticate проверяет пароль и возвращает подписанный токен сессии.
func (s *Service) Authenticate(ctx context.Context, email, rawPassword string) (string, *models.User, error) {
	const op = "account.Authenticate"
	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		return "", nil, fmt.Errorf("%s: %w", op, ErrAuthFailure)
	}
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := password.CompareHash(user.PasswordHash, user.Salt, rawPassword); err != nil {
		return "", nil, fmt.Errorf("%s: %w", op, ErrAuthFailure)
	}

	token, err := s.jwtMaker.GenerateToken(user.ID, user.Email, string(user.Grade))
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", op, err)
	}
	return token, user, nil
}

// CurrentUser проверяет токен и возвращает актуальные данные пользователя.
// Токен удалённого пользователя считается недействительным.
func (s *Service) CurrentUser(ctx context.Context, token string) (*models.User, error) {
	const op = "account.CurrentUser"
	claims, err := s.jwtMaker.ParseToken(token)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrAuthFailure, err)
	}

	user, err := s.users.GetUser(ctx, claims.UserID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, ErrAuthFailure)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

// Cancel удаляет пользователя вместе с его настройками.
func (s *Service) Cancel(ctx context.Context, userID int64) error {
	const op = "account.Cancel"
	log := s.log.With(slog.String("op", op), sl.UserID(userID))

	if err := s.users.DeleteUser(ctx, userID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, cache.ConfigKey(userID)); err != nil {
			log.Warn("failed to invalidate cached config", sl.Err(err))
		}
	}
	if s.events != nil {
		if err := s.events.AccountCancelled(ctx, userID); err != nil {
			log.Warn("failed to publish account event", sl.Err(err))
		}
	}
	log.Info("account cancelled")
	return nil
}
