package middlewarectx_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/api-aggregator/internal/http/middlewarectx"
	"github.com/magabrotheeeer/api-aggregator/internal/models"
	"github.com/magabrotheeeer/api-aggregator/internal/services/account"
)

type AccountServiceMock struct {
	mock.Mock
}

func (m *AccountServiceMock) CurrentUser(ctx context.Context, token string) (*models.User, error) {
	args := m.Called(ctx, token)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestJWTMiddleware(t *testing.T) {
	tests := []struct {
		name           string
		authHeader     string
		setupMock      func(m *AccountServiceMock)
		wantStatusCode int
		wantCalled     bool
	}{
		{
			name:       "valid token",
			authHeader: "Bearer good",
			setupMock: func(m *AccountServiceMock) {
				m.On("CurrentUser", mock.Anything, "good").
					Return(&models.User{ID: 3, Email: "u@example.com", Grade: models.GradeMicro}, nil).Once()
			},
			wantStatusCode: http.StatusOK,
			wantCalled:     true,
		},
		{
			name:           "missing header",
			authHeader:     "",
			setupMock:      func(*AccountServiceMock) {},
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "wrong scheme",
			authHeader:     "Basic abc",
			setupMock:      func(*AccountServiceMock) {},
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:       "invalid token",
			authHeader: "Bearer bad",
			setupMock: func(m *AccountServiceMock) {
				m.On("CurrentUser", mock.Anything, "bad").Return(nil, account.ErrAuthFailure).Once()
			},
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:       "storage failure",
			authHeader: "Bearer good",
			setupMock: func(m *AccountServiceMock) {
				m.On("CurrentUser", mock.Anything, "good").Return(nil, errors.New("db down")).Once()
			},
			wantStatusCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(AccountServiceMock)
			tt.setupMock(svc)

			called := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				user, ok := middlewarectx.UserFromContext(r.Context())
				assert.True(t, ok)
				assert.Equal(t, int64(3), user.ID)
				assert.Equal(t, int64(3), r.Context().Value(middlewarectx.UserID))
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/api/v1/data", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rr := httptest.NewRecorder()

			middlewarectx.JWTMiddleware(svc, newNoopLogger())(next).ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatusCode, rr.Code)
			assert.Equal(t, tt.wantCalled, called)
			svc.AssertExpectations(t)
		})
	}
}

func TestUserFromContext_Missing(t *testing.T) {
	_, ok := middlewarectx.UserFromContext(context.Background())
	assert.False(t, ok)
}
