package models

import "encoding/json"

// ErrorKind — категория ошибки обращения к внешнему сервису.
type ErrorKind string

const (
	ErrorTimeout   ErrorKind = "timeout"
	ErrorNetwork   ErrorKind = "network"
	ErrorBadStatus ErrorKind = "bad_status"
	ErrorBadBody   ErrorKind = "bad_body"
	ErrorBadConfig ErrorKind = "bad_config"
)

// Result — итог обращения к одному сервису: либо Data, либо Error.
type Result struct {
	Data  json.RawMessage `json:"data,omitempty"`
	Error ErrorKind       `json:"error,omitempty"`
}

// OK сообщает, что сервис ответил корректными данными.
func (r Result) OK() bool {
	return r.Error == ""
}
