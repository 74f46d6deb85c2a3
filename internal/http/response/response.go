// Package response формирует JSON-конверт ответов HTTP API.
package response

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator"
)

const (
	StatusOK    = "OK"
	StatusError = "Error"
)

// Response — конверт любого ответа API.
type Response struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Data   any    `json:"data,omitempty"`
}

// ErrorResponse — конверт ответа с ошибкой, используется в @Failure.
type ErrorResponse struct {
	Status string `json:"status" example:"Error"`
	Error  string `json:"error" example:"malformed request"`
}

func StatusOKWithData(data any) Response {
	return Response{Status: StatusOK, Data: data}
}

func Error(msg string) ErrorResponse {
	return ErrorResponse{Status: StatusError, Error: msg}
}

// ValidationError собирает нарушения валидации в одну строку через запятую.
func ValidationError(errs validator.ValidationErrors) Response {
	msgs := make([]string, 0, len(errs))
	for _, fe := range errs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return Response{Status: StatusError, Error: strings.Join(msgs, ", ")}
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch tag := fe.ActualTag(); tag {
	case "required":
		return fmt.Sprintf("field %s is a required field", field)
	case "email":
		return fmt.Sprintf("field %s must be a valid email", field)
	case "oneof":
		return fmt.Sprintf("field %s must be one of [%s]", field, fe.Param())
	case "min", "max":
		return fmt.Sprintf("field %s must have length %s %s", field, tag, fe.Param())
	default:
		return fmt.Sprintf("field %s is not valid", field)
	}
}
