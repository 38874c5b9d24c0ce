package config

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig — конфигурация не прошла проверку.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrUnknownEnvironment — в environments нет секции текущего окружения.
	ErrUnknownEnvironment = errors.New("unknown environment")
)

// ValidationError — ошибка проверки конкретного поля.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidConfig
}
