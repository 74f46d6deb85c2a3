package apiclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/api-aggregator/internal/models"
	"github.com/magabrotheeeer/api-aggregator/internal/registry"
)

func descriptor(t *testing.T, d registry.Descriptor) registry.Descriptor {
	t.Helper()
	reg, err := registry.New([]registry.Descriptor{d}, time.Second)
	require.NoError(t, err)
	out, ok := reg.Lookup(d.Name)
	require.True(t, ok)
	return out
}

func TestBuildRequest(t *testing.T) {
	tests := []struct {
		name       string
		desc       registry.Descriptor
		entry      models.ServiceEntry
		wantURL    string
		wantHeader map[string]string
		wantErr    bool
	}{
		{
			name:    "keys in path",
			desc:    registry.Descriptor{Name: "ken", Endpoint: "http://api.local/ken/{keys}", Required: []registry.Field{registry.FieldKeys}},
			entry:   models.ServiceEntry{Keys: []string{"690", "0014"}},
			wantURL: "http://api.local/ken/690,0014",
		},
		{
			name:    "keys are path escaped",
			desc:    registry.Descriptor{Name: "ken", Endpoint: "http://api.local/ken/{keys}", KeysSeparator: "/", Required: []registry.Field{registry.FieldKeys}},
			entry:   models.ServiceEntry{Keys: []string{"a b", "c"}},
			wantURL: "http://api.local/ken/a%20b/c",
		},
		{
			name:    "params sorted in query",
			desc:    registry.Descriptor{Name: "surname", Endpoint: "http://api.local/surname"},
			entry:   models.ServiceEntry{Params: map[string]string{"q": "yamada", "limit": "5"}},
			wantURL: "http://api.local/surname?limit=5&q=yamada",
		},
		{
			name:    "token in query",
			desc:    registry.Descriptor{Name: "tenki", Endpoint: "http://api.local/tenki", TokenType: registry.TokenQuery, TokenKey: "zipcode"},
			entry:   models.ServiceEntry{Token: "1000001"},
			wantURL: "http://api.local/tenki?zipcode=1000001",
		},
		{
			name:       "token in header with prefix",
			desc:       registry.Descriptor{Name: "github", Endpoint: "https://api.local/user", TokenType: registry.TokenHeader, TokenKey: "Authorization", TokenPrefix: "Bearer "},
			entry:      models.ServiceEntry{Token: "abc"},
			wantURL:    "https://api.local/user",
			wantHeader: map[string]string{"Authorization": "Bearer abc"},
		},
		{
			name:    "unsupported scheme",
			desc:    registry.Descriptor{Name: "bad", Endpoint: "ftp://api.local/x"},
			entry:   models.ServiceEntry{Token: "t"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := BuildRequest(context.Background(), descriptor(t, tt.desc), tt.entry)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantURL, req.URL.String())
			assert.Equal(t, http.MethodGet, req.Method)
			for k, v := range tt.wantHeader {
				assert.Equal(t, v, req.Header.Get(k))
			}
		})
	}
}

func TestClient_Fetch(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		resultPath string
		timeout    time.Duration
		wantData   string
		wantKind   models.ErrorKind
	}{
		{
			name: "success",
			handler: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "secret", r.Header.Get("X-Token"))
				_, _ = w.Write([]byte(`{"name":"octocat"}`))
			},
			wantData: `{"name":"octocat"}`,
		},
		{
			name: "result path",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"tokens":["a","b"],"meta":1}`))
			},
			resultPath: "tokens",
			wantData:   `["a","b"]`,
		},
		{
			name: "missing result path",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"meta":1}`))
			},
			resultPath: "tokens",
			wantKind:   models.ErrorBadBody,
		},
		{
			name: "bad status",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
			wantKind: models.ErrorBadStatus,
		},
		{
			name: "bad body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`<html>`))
			},
			wantKind: models.ErrorBadBody,
		},
		{
			name: "timeout",
			handler: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-time.After(2 * time.Second):
				}
			},
			timeout:  50 * time.Millisecond,
			wantKind: models.ErrorTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			d := descriptor(t, registry.Descriptor{
				Name:       "svc",
				Endpoint:   srv.URL,
				TokenType:  registry.TokenHeader,
				TokenKey:   "X-Token",
				ResultPath: tt.resultPath,
			})

			ctx := context.Background()
			if tt.timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, tt.timeout)
				defer cancel()
			}

			data, err := NewClient(srv.Client()).Fetch(ctx, d, models.ServiceEntry{Token: "secret"})
			if tt.wantKind != "" {
				require.Error(t, err)
				var fe *FetchError
				require.True(t, errors.As(err, &fe))
				assert.Equal(t, tt.wantKind, fe.Kind)
				assert.Equal(t, tt.wantKind, KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.JSONEq(t, tt.wantData, string(data))
		})
	}
}

func TestClient_Fetch_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	d := descriptor(t, registry.Descriptor{Name: "down", Endpoint: addr})
	_, err := NewClient(nil).Fetch(context.Background(), d, models.ServiceEntry{Token: "t"})
	assert.Equal(t, models.ErrorNetwork, KindOf(err))
}

func TestClient_Fetch_BadConfig(t *testing.T) {
	d := descriptor(t, registry.Descriptor{Name: "bad", Endpoint: "mailto:someone"})
	_, err := NewClient(nil).Fetch(context.Background(), d, models.ServiceEntry{Token: "t"})
	assert.Equal(t, models.ErrorBadConfig, KindOf(err))
}

func TestClient_Fetch_RateLimitedPastDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	d := descriptor(t, registry.Descriptor{Name: "limited", Endpoint: srv.URL, RateLimit: 0.001, RateBurst: 1})
	client := NewClient(srv.Client())

	_, err := client.Fetch(context.Background(), d, models.ServiceEntry{Token: "t"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = client.Fetch(ctx, d, models.ServiceEntry{Token: "t"})
	assert.Equal(t, models.ErrorTimeout, KindOf(err))
}

func TestKindOf_ForeignError(t *testing.T) {
	assert.Equal(t, models.ErrorNetwork, KindOf(errors.New("boom")))
}
