// Package registry содержит статический каталог внешних сервисов, к которым
// обращается агрегатор: адрес, способ передачи токена, обязательные поля и таймаут.
// Каталог загружается один раз при старте и далее только читается.
package registry

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/api-aggregator/internal/models"
)

// TokenType определяет, куда подставляется токен пользователя.
type TokenType string

const (
	TokenNone   TokenType = "none"
	TokenHeader TokenType = "header"
	TokenQuery  TokenType = "query"
)

// Field — поле записи ServiceEntry, которое может требоваться сервису.
type Field string

const (
	FieldToken  Field = "token"
	FieldKeys   Field = "keys"
	FieldParams Field = "params"
)

// KeysPlaceholder заменяется в Endpoint на ключи пользователя.
const KeysPlaceholder = "{keys}"

// ErrInvalidDescriptor возвращается при некорректном описании сервиса.
var ErrInvalidDescriptor = errors.New("invalid service descriptor")

// Descriptor описывает, как обращаться к одному внешнему сервису.
type Descriptor struct {
	Name          string        `yaml:"name"`
	Method        string        `yaml:"method"`
	Endpoint      string        `yaml:"endpoint"`
	TokenType     TokenType     `yaml:"token_type"`
	TokenKey      string        `yaml:"token_key"`
	TokenPrefix   string        `yaml:"token_prefix"`
	KeysSeparator string        `yaml:"keys_separator"`
	Required      []Field       `yaml:"required"`
	Timeout       time.Duration `yaml:"timeout"`
	ResultPath    string        `yaml:"result_path"`
	RateLimit     float64       `yaml:"rate_limit"`
	RateBurst     int           `yaml:"rate_burst"`

	limiter *rate.Limiter
}

// Limiter возвращает ограничитель исходящих запросов или nil, если лимита нет.
func (d Descriptor) Limiter() *rate.Limiter {
	return d.limiter
}

// Requires сообщает, обязательно ли поле для сервиса.
func (d Descriptor) Requires(f Field) bool {
	return slices.Contains(d.Required, f)
}

// Subscribed сообщает, подписан ли пользователь на сервис: запись непустая
// и содержит все обязательные поля.
func (d Descriptor) Subscribed(entry models.ServiceEntry) bool {
	if entry.Empty() {
		return false
	}
	for _, f := range d.Required {
		switch f {
		case FieldToken:
			if entry.Token == "" {
				return false
			}
		case FieldKeys:
			if len(entry.Keys) == 0 {
				return false
			}
		case FieldParams:
			if len(entry.Params) == 0 {
				return false
			}
		}
	}
	return true
}

func (d *Descriptor) normalize(defaultTimeout time.Duration) error {
	d.Name = strings.TrimSpace(d.Name)
	if d.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidDescriptor)
	}
	if d.Endpoint == "" {
		return fmt.Errorf("%w: %s: empty endpoint", ErrInvalidDescriptor, d.Name)
	}
	if d.Method == "" {
		d.Method = http.MethodGet
	}
	d.Method = strings.ToUpper(d.Method)
	if d.TokenType == "" {
		d.TokenType = TokenNone
	}
	switch d.TokenType {
	case TokenNone:
	case TokenHeader, TokenQuery:
		if d.TokenKey == "" {
			return fmt.Errorf("%w: %s: token_key is required for token_type %s", ErrInvalidDescriptor, d.Name, d.TokenType)
		}
	default:
		return fmt.Errorf("%w: %s: unknown token_type %q", ErrInvalidDescriptor, d.Name, d.TokenType)
	}
	for _, f := range d.Required {
		switch f {
		case FieldToken, FieldKeys, FieldParams:
		default:
			return fmt.Errorf("%w: %s: unknown required field %q", ErrInvalidDescriptor, d.Name, f)
		}
	}
	if d.Requires(FieldKeys) && !strings.Contains(d.Endpoint, KeysPlaceholder) {
		return fmt.Errorf("%w: %s: endpoint has no %s placeholder", ErrInvalidDescriptor, d.Name, KeysPlaceholder)
	}
	if d.KeysSeparator == "" {
		d.KeysSeparator = ","
	}
	if d.Timeout < 0 {
		return fmt.Errorf("%w: %s: negative timeout", ErrInvalidDescriptor, d.Name)
	}
	if d.Timeout == 0 {
		d.Timeout = defaultTimeout
	}
	if d.RateLimit > 0 {
		burst := d.RateBurst
		if burst <= 0 {
			burst = 1
		}
		d.limiter = rate.NewLimiter(rate.Limit(d.RateLimit), burst)
	}
	return nil
}

// Registry — неизменяемый каталог сервисов.
type Registry struct {
	byName map[string]Descriptor
	names  []string
}

type file struct {
	Services []Descriptor `yaml:"services"`
}

// Load читает каталог из YAML-файла.
func Load(path string, defaultTimeout time.Duration) (*Registry, error) {
	const op = "registry.Load"
	var f file
	if err := cleanenv.ReadConfig(path, &f); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	r, err := New(f.Services, defaultTimeout)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return r, nil
}

// New проверяет описания сервисов и строит каталог.
func New(descriptors []Descriptor, defaultTimeout time.Duration) (*Registry, error) {
	r := &Registry{byName: make(map[string]Descriptor, len(descriptors))}
	for _, d := range descriptors {
		if err := d.normalize(defaultTimeout); err != nil {
			return nil, err
		}
		if _, dup := r.byName[d.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate service %q", ErrInvalidDescriptor, d.Name)
		}
		r.byName[d.Name] = d
		r.names = append(r.names, d.Name)
	}
	sort.Strings(r.names)
	return r, nil
}

// Lookup возвращает описание сервиса по имени.
func (r *Registry) Lookup(name string) (Descriptor, bool) {
	d, ok := r.byName[name]
	return d, ok
}

// Names возвращает отсортированные имена всех сервисов.
func (r *Registry) Names() []string {
	return slices.Clone(r.names)
}

// Len возвращает количество сервисов в каталоге.
func (r *Registry) Len() int {
	return len(r.names)
}

// MaxTimeout возвращает наибольший таймаут среди сервисов.
func (r *Registry) MaxTimeout() time.Duration {
	var longest time.Duration
	for _, d := range r.byName {
		longest = max(longest, d.Timeout)
	}
	return longest
}
