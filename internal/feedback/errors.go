package feedback

import (
	"errors"
	"fmt"
)

// ErrMalformedAnswer отсутствующие или недопустимые поля ответа
var ErrMalformedAnswer = errors.New("некорректный ответ")

// MalformedAnswerError указывает поле, из-за которого ответ отклонен
type MalformedAnswerError struct {
	Field  string
	Reason string
}

func (e *MalformedAnswerError) Error() string {
	return fmt.Sprintf("некорректный ответ: %s: %s", e.Field, e.Reason)
}

func (e *MalformedAnswerError) Unwrap() error { return ErrMalformedAnswer }

func malformed(field, reason string) error {
	return &MalformedAnswerError{Field: field, Reason: reason}
}
