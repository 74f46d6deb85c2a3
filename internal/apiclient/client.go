// Package apiclient выполняет запрос к одному внешнему сервису по его описанию из реестра.
package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/magabrotheeeer/api-aggregator/internal/models"
	"github.com/magabrotheeeer/api-aggregator/internal/registry"
)

// maxBodySize ограничивает размер ответа внешнего сервиса.
const maxBodySize = 4 << 20

// FetchError — ошибка обращения к сервису с категорией Kind.
type FetchError struct {
	Kind models.ErrorKind
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// KindOf возвращает категорию ошибки. Любая ошибка не из этого пакета считается сетевой.
func KindOf(err error) models.ErrorKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return models.ErrorNetwork
}

func fail(kind models.ErrorKind, err error) error {
	return &FetchError{Kind: kind, Err: err}
}

// Doer — интерфейс http.Client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client обращается к внешним сервисам. Один экземпляр безопасен для параллельного использования.
type Client struct {
	httpClient Doer
}

// NewClient создаёт клиент. Таймауты задаются контекстом каждого запроса.
func NewClient(httpClient Doer) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{httpClient: httpClient}
}

// Fetch выполняет одну попытку запроса к сервису d с данными пользователя entry.
func (c *Client) Fetch(ctx context.Context, d registry.Descriptor, entry models.ServiceEntry) (json.RawMessage, error) {
	req, err := BuildRequest(ctx, d, entry)
	if err != nil {
		return nil, fail(models.ErrorBadConfig, err)
	}

	if lim := d.Limiter(); lim != nil {
		if err := lim.Wait(ctx); err != nil {
			return nil, fail(models.ErrorTimeout, err)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fail(transportKind(ctx, err), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		return nil, fail(models.ErrorBadStatus, fmt.Errorf("unexpected status: %s", resp.Status))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fail(transportKind(ctx, err), err)
	}

	return extract(body, d.ResultPath)
}

func extract(body []byte, path string) (json.RawMessage, error) {
	if !gjson.ValidBytes(body) {
		return nil, fail(models.ErrorBadBody, errors.New("response is not valid JSON"))
	}
	if path == "" {
		return json.RawMessage(strings.TrimSpace(string(body))), nil
	}
	res := gjson.GetBytes(body, path)
	if !res.Exists() {
		return nil, fail(models.ErrorBadBody, fmt.Errorf("result path %q not found", path))
	}
	return json.RawMessage(res.Raw), nil
}

func transportKind(ctx context.Context, err error) models.ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return models.ErrorTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return models.ErrorTimeout
	}
	return models.ErrorNetwork
}

// BuildRequest собирает HTTP-запрос: ключи подставляются в путь, параметры
// добавляются в query в порядке сортировки, токен — в заголовок или query.
func BuildRequest(ctx context.Context, d registry.Descriptor, entry models.ServiceEntry) (*http.Request, error) {
	const op = "apiclient.BuildRequest"

	endpoint := d.Endpoint
	if strings.Contains(endpoint, registry.KeysPlaceholder) {
		escaped := make([]string, 0, len(entry.Keys))
		for _, k := range entry.Keys {
			escaped = append(escaped, url.PathEscape(k))
		}
		endpoint = strings.ReplaceAll(endpoint, registry.KeysPlaceholder, strings.Join(escaped, d.KeysSeparator))
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%s: unsupported scheme %q", op, u.Scheme)
	}

	query := u.Query()
	names := make([]string, 0, len(entry.Params))
	for name := range entry.Params {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		query.Set(name, entry.Params[name])
	}
	if d.TokenType == registry.TokenQuery && entry.Token != "" {
		query.Set(d.TokenKey, d.TokenPrefix+entry.Token)
	}
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, d.Method, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if d.TokenType == registry.TokenHeader && entry.Token != "" {
		req.Header.Set(d.TokenKey, d.TokenPrefix+entry.Token)
	}
	return req, nil
}
