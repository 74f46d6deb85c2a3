package subscription

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/magabrotheeeer/api-aggregator/internal/models"
)

// applyToEntry применяет патч к сырой записи сервиса. Отсутствующая запись или null
// считаются пустым объектом; ключи, которые патч не трогает, сохраняются как есть.
func applyToEntry(raw json.RawMessage, p Patch) (json.RawMessage, error) {
	fields, err := decodeObject(raw)
	if err != nil {
		return nil, err
	}

	if p.Token != nil {
		if fields["token"], err = json.Marshal(trimmed(p.Token)); err != nil {
			return nil, err
		}
	}
	if p.Keys != nil {
		if fields["keys"], err = json.Marshal(strings.Fields(*p.Keys)); err != nil {
			return nil, err
		}
	}
	if p.ParamName != nil && p.ParamValue != nil {
		params, err := decodeObject(fields["params"])
		if err != nil {
			return nil, err
		}
		if params[trimmed(p.ParamName)], err = json.Marshal(trimmed(p.ParamValue)); err != nil {
			return nil, err
		}
		if fields["params"], err = json.Marshal(params); err != nil {
			return nil, err
		}
	}

	return json.Marshal(fields)
}

func decodeObject(raw json.RawMessage) (map[string]json.RawMessage, error) {
	out := map[string]json.RawMessage{}
	data := bytes.TrimSpace(raw)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return out, nil
	}
	if data[0] != '{' {
		return nil, models.ErrNotObject
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
