package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotObject возвращается, когда значение в документе не является JSON-объектом.
var ErrNotObject = errors.New("value is not a JSON object")

// ServiceEntry — учётные данные и параметры пользователя для одного внешнего сервиса.
type ServiceEntry struct {
	Token  string            `json:"token,omitempty"`
	Keys   []string          `json:"keys,omitempty"`
	Params map[string]string `json:"params,omitempty"`
}

// Empty сообщает, что в записи нет ни токена, ни ключей, ни параметров.
func (e ServiceEntry) Empty() bool {
	return e.Token == "" && len(e.Keys) == 0 && len(e.Params) == 0
}

// SubscriptionConfig — документ настроек пользователя: имя сервиса -> JSON записи.
// Записи хранятся в сыром виде, чтобы изменение одного сервиса
// не трогало байты остальных, в том числе неизвестных реестру.
type SubscriptionConfig map[string]json.RawMessage

// DecodeConfig разбирает документ настроек. Документ обязан быть JSON-объектом.
func DecodeConfig(data []byte) (SubscriptionConfig, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, ErrNotObject
	}
	cfg := SubscriptionConfig{}
	if err := json.Unmarshal(trimmed, &cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Encode сериализует документ в каноническом виде: ключи отсортированы, без пробелов.
func (c SubscriptionConfig) Encode() ([]byte, error) {
	if c == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]json.RawMessage(c))
}

// Entry возвращает запись сервиса. found=false, если ключа нет или он равен null.
func (c SubscriptionConfig) Entry(service string) (entry ServiceEntry, found bool, err error) {
	raw, ok := c[service]
	if !ok {
		return ServiceEntry{}, false, nil
	}
	trimmed := bytes.TrimSpace(raw)
	if bytes.Equal(trimmed, []byte("null")) {
		return ServiceEntry{}, false, nil
	}
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return ServiceEntry{}, false, fmt.Errorf("service %q: %w", service, ErrNotObject)
	}
	if err := json.Unmarshal(trimmed, &entry); err != nil {
		return ServiceEntry{}, false, fmt.Errorf("service %q: %w", service, err)
	}
	return entry, true, nil
}

// SetEntry записывает запись сервиса, остальные ключи не изменяются.
func (c SubscriptionConfig) SetEntry(service string, entry ServiceEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	c[service] = raw
	return nil
}

// Clone возвращает независимую копию документа.
func (c SubscriptionConfig) Clone() SubscriptionConfig {
	out := make(SubscriptionConfig, len(c))
	for k, v := range c {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}
