package modify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/api-aggregator/internal/http/middlewarectx"
	"github.com/magabrotheeeer/api-aggregator/internal/models"
	"github.com/magabrotheeeer/api-aggregator/internal/services/subscription"
	"github.com/magabrotheeeer/api-aggregator/internal/storage"
)

// MockService реализует интерфейс modify.Service
type MockService struct {
	mock.Mock
}

func (m *MockService) ApplyPatch(ctx context.Context, userID int64, service string, patch subscription.Patch) (models.SubscriptionConfig, error) {
	args := m.Called(ctx, userID, service, patch)
	cfg, _ := args.Get(0).(models.SubscriptionConfig)
	return cfg, args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func hasParam(name, value string) func(subscription.Patch) bool {
	return func(p subscription.Patch) bool {
		return p.Token == nil && p.Keys == nil &&
			p.ParamName != nil && *p.ParamName == name &&
			p.ParamValue != nil && *p.ParamValue == value
	}
}

func TestModifyHandler(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		user           *models.User
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "param upsert",
			body: `{"service":"twitter","param_name":"count","param_value":"10"}`,
			user: &models.User{ID: 1},
			setupMock: func(m *MockService) {
				m.On("ApplyPatch", mock.Anything, int64(1), "twitter", mock.MatchedBy(hasParam("count", "10"))).
					Return(models.SubscriptionConfig{"twitter": json.RawMessage(`{"params":{"count":"10"},"token":"t1"}`)}, nil).Once()
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"entry":{"params":{"count":"10"},"token":"t1"}`,
		},
		{
			name: "token only",
			body: `{"service":"github","token":"abc"}`,
			user: &models.User{ID: 1},
			setupMock: func(m *MockService) {
				m.On("ApplyPatch", mock.Anything, int64(1), "github", mock.MatchedBy(func(p subscription.Patch) bool {
					return p.Token != nil && *p.Token == "abc" && p.Keys == nil && p.ParamName == nil
				})).Return(models.SubscriptionConfig{"github": json.RawMessage(`{"token":"abc"}`)}, nil).Once()
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"service":"github"`,
		},
		{
			name:           "invalid json",
			body:           `not a json`,
			user:           &models.User{ID: 1},
			setupMock:      func(*MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"status":"Error","error":"failed to decode request"}`,
		},
		{
			name:           "missing service",
			body:           `{"token":"abc"}`,
			user:           &models.User{ID: 1},
			setupMock:      func(*MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `field Service is a required field`,
		},
		{
			name: "unknown service",
			body: `{"service":"myspace","token":"abc"}`,
			user: &models.User{ID: 1},
			setupMock: func(m *MockService) {
				m.On("ApplyPatch", mock.Anything, int64(1), "myspace", mock.Anything).
					Return(nil, subscription.ErrUnknownService).Once()
			},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `"error":"malformed request"`,
		},
		{
			name: "config missing",
			body: `{"service":"github","token":"abc"}`,
			user: &models.User{ID: 1},
			setupMock: func(m *MockService) {
				m.On("ApplyPatch", mock.Anything, int64(1), "github", mock.Anything).
					Return(nil, storage.ErrNotFound).Once()
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `"error":"not found"`,
		},
		{
			name: "storage failure",
			body: `{"service":"github","token":"abc"}`,
			user: &models.User{ID: 1},
			setupMock: func(m *MockService) {
				m.On("ApplyPatch", mock.Anything, int64(1), "github", mock.Anything).
					Return(nil, errors.New("db error")).Once()
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `"error":"internal error"`,
		},
		{
			name:           "no user",
			body:           `{"service":"github","token":"abc"}`,
			setupMock:      func(*MockService) {},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `{"status":"Error","error":"unauthorized"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			tt.setupMock(svc)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/modify", bytes.NewReader([]byte(tt.body)))
			req.Header.Set("Content-Type", "application/json")
			ctx := context.WithValue(req.Context(), middleware.RequestIDKey, "req-id")
			if tt.user != nil {
				ctx = middlewarectx.WithUser(ctx, tt.user)
			}
			req = req.WithContext(ctx)
			w := httptest.NewRecorder()

			New(newNoopLogger(), svc).ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.expectedBody)
			svc.AssertExpectations(t)
		})
	}
}

func TestRequest_PatchKeepsAbsentFieldsNil(t *testing.T) {
	var req Request
	require.NoError(t, json.Unmarshal([]byte(`{"service":"x","keys":"a b"}`), &req))
	p := req.patch()
	assert.Nil(t, p.Token)
	require.NotNil(t, p.Keys)
	assert.Equal(t, "a b", *p.Keys)
	assert.Nil(t, p.ParamName)
}
