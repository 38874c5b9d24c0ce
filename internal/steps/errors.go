package steps

import (
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/shaiso/rpabot/internal/domain"
)

// Ошибки шагов.
var (
	// ErrInvalidIndex — индекс шага меньше 1.
	ErrInvalidIndex = errors.New("step index must be >= 1")

	// ErrDuplicateStep — индекс уже занят в таблице.
	ErrDuplicateStep = errors.New("step index already registered")

	// ErrInvalidConfig — невалидная конфигурация шага.
	ErrInvalidConfig = errors.New("invalid step config")

	// ErrStepTimeout — шаг превысил таймаут.
	ErrStepTimeout = errors.New("step execution timeout")
)

// BusinessError — ожидаемое нарушение бизнес-правила.
//
// Такая ошибка прерывает run со статусом WARNING и никогда не повторяется.
// Payload описывает письмо, которое нужно отправить пользователю.
type BusinessError struct {
	Message string
	Payload domain.BusinessPayload
}

func (e *BusinessError) Error() string {
	return "business exception: " + e.Message
}

// NewBusinessError создаёт BusinessError.
func NewBusinessError(message string, payload domain.BusinessPayload) error {
	return &BusinessError{Message: message, Payload: payload}
}

// SystemError — непредвиденная ошибка со стеком вызовов в месте создания.
type SystemError struct {
	Err   error
	Stack []byte
}

func (e *SystemError) Error() string {
	return e.Err.Error()
}

func (e *SystemError) Unwrap() error {
	return e.Err
}

// Systemf создаёт SystemError и запоминает текущий стек.
func Systemf(format string, args ...any) error {
	return &SystemError{Err: fmt.Errorf(format, args...), Stack: debug.Stack()}
}

// AsSystem оборачивает произвольную ошибку в SystemError.
// BusinessError и SystemError возвращаются как есть.
func AsSystem(err error) error {
	if err == nil {
		return nil
	}
	var be *BusinessError
	var se *SystemError
	if errors.As(err, &be) || errors.As(err, &se) {
		return err
	}
	return &SystemError{Err: err, Stack: debug.Stack()}
}

// FromPanic превращает восстановленную панику в SystemError.
// stack нужно снять через debug.Stack() внутри recover.
func FromPanic(v any, stack []byte) error {
	if err, ok := v.(error); ok {
		return &SystemError{Err: fmt.Errorf("panic: %w", err), Stack: stack}
	}
	return &SystemError{Err: fmt.Errorf("panic: %v", v), Stack: stack}
}

// Classify определяет класс ошибки. Всё, что не BusinessError, — SYSTEM.
func Classify(err error) domain.FailureKind {
	var be *BusinessError
	if errors.As(err, &be) {
		return domain.FailureBusiness
	}
	return domain.FailureSystem
}

// Failure строит FailureRecord для прерванного run.
func Failure(err error, index int, name string, attempts int) *domain.FailureRecord {
	rec := &domain.FailureRecord{
		Kind:      Classify(err),
		StepIndex: index,
		StepName:  name,
		Attempts:  attempts,
		Message:   err.Error(),
	}

	var be *BusinessError
	if errors.As(err, &be) {
		rec.Message = be.Message
		payload := be.Payload
		rec.Business = &payload
		return rec
	}

	var se *SystemError
	if errors.As(err, &se) {
		rec.Trace = string(se.Stack)
	}
	return rec
}
