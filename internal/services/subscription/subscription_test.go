package subscription_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/api-aggregator/internal/models"
	"github.com/magabrotheeeer/api-aggregator/internal/registry"
	"github.com/magabrotheeeer/api-aggregator/internal/services/subscription"
	"github.com/magabrotheeeer/api-aggregator/internal/storage"
)

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memoryStore хранит документы в памяти и сериализует UpdateConfig, как блокировка строки.
type memoryStore struct {
	mu   sync.Mutex
	docs map[int64][]byte
}

func newMemoryStore(docs map[int64]string) *memoryStore {
	s := &memoryStore{docs: map[int64][]byte{}}
	for id, doc := range docs {
		s.docs[id] = []byte(doc)
	}
	return s
}

func (s *memoryStore) GetConfig(_ context.Context, userID int64) (models.SubscriptionConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[userID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return models.DecodeConfig(doc)
}

func (s *memoryStore) UpdateConfig(_ context.Context, userID int64, fn storage.Mutator) (models.SubscriptionConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[userID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cfg, err := models.DecodeConfig(doc)
	if err != nil {
		return nil, errors.Join(storage.ErrMalformed, err)
	}
	updated, err := fn(cfg)
	if err != nil {
		return nil, err
	}
	encoded, err := updated.Encode()
	if err != nil {
		return nil, err
	}
	s.docs[userID] = encoded
	return updated, nil
}

func (s *memoryStore) raw(userID int64) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return string(s.docs[userID])
}

type CacheMock struct {
	mock.Mock
}

func (m *CacheMock) Invalidate(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := registry.New([]registry.Descriptor{
		{Name: "twitter", Endpoint: "https://twitter.local/feed", TokenType: registry.TokenHeader, TokenKey: "Authorization", Required: []registry.Field{registry.FieldToken}},
		{Name: "github", Endpoint: "https://github.local/users/{keys}", Required: []registry.Field{registry.FieldKeys}},
		{Name: "ken", Endpoint: "https://ken.local/{keys}", Required: []registry.Field{registry.FieldKeys}},
	}, time.Second)
	require.NoError(t, err)
	return reg
}

func ptr(s string) *string { return &s }

func TestService_ApplyPatch_ExampleScenario(t *testing.T) {
	store := newMemoryStore(map[int64]string{
		1: `{"twitter":{"token":"t1"},"github":{"keys":["k1"]}}`,
	})
	cache := new(CacheMock)
	cache.On("Invalidate", mock.Anything, "subscriptions:1").Return(nil).Once()

	svc := subscription.NewService(store, cache, testRegistry(t), newNoopLogger())
	before, err := svc.Config(context.Background(), 1)
	require.NoError(t, err)
	githubBefore := string(before["github"])

	_, err = svc.ApplyPatch(context.Background(), 1, "twitter", subscription.Patch{ParamName: ptr("count"), ParamValue: ptr("10")})
	require.NoError(t, err)

	after, err := svc.Config(context.Background(), 1)
	require.NoError(t, err)
	twitter, found, err := after.Entry("twitter")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "t1", twitter.Token)
	assert.Equal(t, map[string]string{"count": "10"}, twitter.Params)
	assert.Equal(t, githubBefore, string(after["github"]))
	cache.AssertExpectations(t)
}

func TestService_ApplyPatch(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		service string
		patch   subscription.Patch
		want    string
		wantErr error
	}{
		{
			name:    "missing entry is created",
			doc:     `{}`,
			service: "ken",
			patch:   subscription.Patch{Keys: ptr("  6900014   1000001 ")},
			want:    `{"ken":{"keys":["6900014","1000001"]}}`,
		},
		{
			name:    "null entry treated as empty",
			doc:     `{"ken":null}`,
			service: "ken",
			patch:   subscription.Patch{Token: ptr("  abc ")},
			want:    `{"ken":{"token":"abc"}}`,
		},
		{
			name:    "token overwritten, other fields kept",
			doc:     `{"twitter":{"token":"old","extra":{"b":1,"a":2},"params":{"x":"y"}}}`,
			service: "twitter",
			patch:   subscription.Patch{Token: ptr("new")},
			want:    `{"twitter":{"extra":{"b":1,"a":2},"params":{"x":"y"},"token":"new"}}`,
		},
		{
			name:    "param upsert keeps existing params",
			doc:     `{"github":{"keys":["k1"],"params":{"a":"1"}}}`,
			service: "github",
			patch:   subscription.Patch{ParamName: ptr(" b "), ParamValue: ptr(" 2 ")},
			want:    `{"github":{"keys":["k1"],"params":{"a":"1","b":"2"}}}`,
		},
		{
			name:    "param name without value ignored",
			doc:     `{"github":{"keys":["k1"]}}`,
			service: "github",
			patch:   subscription.Patch{ParamName: ptr("b")},
			want:    `{"github":{"keys":["k1"]}}`,
		},
		{
			name:    "empty keys string clears keys",
			doc:     `{"github":{"keys":["k1"]}}`,
			service: "github",
			patch:   subscription.Patch{Keys: ptr("   ")},
			want:    `{"github":{"keys":[]}}`,
		},
		{
			name:    "unknown service",
			doc:     `{}`,
			service: "myspace",
			patch:   subscription.Patch{Token: ptr("t")},
			wantErr: subscription.ErrUnknownService,
		},
		{
			name:    "non-object entry",
			doc:     `{"ken":[1,2]}`,
			service: "ken",
			patch:   subscription.Patch{Token: ptr("t")},
			wantErr: storage.ErrMalformed,
		},
		{
			name:    "non-object params",
			doc:     `{"ken":{"params":"bad"}}`,
			service: "ken",
			patch:   subscription.Patch{ParamName: ptr("a"), ParamValue: ptr("b")},
			wantErr: storage.ErrMalformed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemoryStore(map[int64]string{7: tt.doc})
			svc := subscription.NewService(store, nil, testRegistry(t), newNoopLogger())

			_, err := svc.ApplyPatch(context.Background(), 7, tt.service, tt.patch)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.True(t, subscription.IsMalformed(err))
				assert.Equal(t, tt.doc, store.raw(7), "document must stay unchanged")
				return
			}
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, store.raw(7))
		})
	}
}

func TestService_ApplyPatch_OtherEntriesByteIdentical(t *testing.T) {
	doc := `{"github":{"keys":["k1"],"params":{"z":"1","a":"2"}},"legacy":{"any":[true,null]},"twitter":{"token":"t1"}}`
	store := newMemoryStore(map[int64]string{3: doc})
	svc := subscription.NewService(store, nil, testRegistry(t), newNoopLogger())

	_, err := svc.ApplyPatch(context.Background(), 3, "twitter", subscription.Patch{Token: ptr("t2")})
	require.NoError(t, err)

	cfg, err := svc.Config(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, `{"keys":["k1"],"params":{"z":"1","a":"2"}}`, string(cfg["github"]))
	assert.Equal(t, `{"any":[true,null]}`, string(cfg["legacy"]))
}

func TestService_ApplyPatch_ConcurrentDisjointFields(t *testing.T) {
	store := newMemoryStore(map[int64]string{5: `{}`})
	svc := subscription.NewService(store, nil, testRegistry(t), newNoopLogger())

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := svc.ApplyPatch(context.Background(), 5, "github", subscription.Patch{Keys: ptr("k1 k2")})
			assert.NoError(t, err)
		}()
		go func(i int) {
			defer wg.Done()
			name := string(rune('a' + i))
			_, err := svc.ApplyPatch(context.Background(), 5, "github", subscription.Patch{ParamName: ptr(name), ParamValue: ptr("v")})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	cfg, err := svc.Config(context.Background(), 5)
	require.NoError(t, err)
	entry, _, err := cfg.Entry("github")
	require.NoError(t, err)
	assert.Equal(t, []string{"k1", "k2"}, entry.Keys)
	assert.Len(t, entry.Params, 20)
}

func TestService_ApplyPatch_NotFound(t *testing.T) {
	svc := subscription.NewService(newMemoryStore(nil), nil, testRegistry(t), newNoopLogger())
	_, err := svc.ApplyPatch(context.Background(), 99, "ken", subscription.Patch{Token: ptr("x")})
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.False(t, subscription.IsMalformed(err))
}

func TestService_ApplyPatch_CacheFailureIgnored(t *testing.T) {
	store := newMemoryStore(map[int64]string{1: `{}`})
	cache := new(CacheMock)
	cache.On("Invalidate", mock.Anything, "subscriptions:1").Return(errors.New("redis down")).Once()

	svc := subscription.NewService(store, cache, testRegistry(t), newNoopLogger())
	_, err := svc.ApplyPatch(context.Background(), 1, "ken", subscription.Patch{Keys: ptr("1")})
	require.NoError(t, err)
	cache.AssertExpectations(t)
}

func TestPatch_Empty(t *testing.T) {
	assert.True(t, subscription.Patch{}.Empty())
	assert.True(t, subscription.Patch{ParamName: ptr("a")}.Empty())
	assert.False(t, subscription.Patch{Token: ptr("")}.Empty())
	assert.False(t, subscription.Patch{ParamName: ptr("a"), ParamValue: ptr("b")}.Empty())
}
