package storage

import "errors"

var (
	// ErrNotFound запись отсутствует (первый запуск, новый пользователь)
	ErrNotFound = errors.New("не найдено")

	// ErrInvalidInput некорректные аргументы
	ErrInvalidInput = errors.New("некорректные входные данные")
)
