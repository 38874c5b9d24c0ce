package steps

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/shaiso/rpabot/internal/calendar"
	"github.com/shaiso/rpabot/internal/config"
	"github.com/shaiso/rpabot/internal/mail"
)

// Step — один шаг (state) процесса.
//
// Execute возвращает nil при успехе, *BusinessError при нарушении
// бизнес-правила или любую другую ошибку, которая считается system failure.
// Шаг не хранит состояние между попытками: на каждую попытку
// секвенсор строит новый экземпляр через Factory.
type Step interface {
	// Name возвращает имя шага для логов и отчётов.
	Name() string

	// Execute выполняет шаг.
	// Шаг должен проверять ctx.Done() в длительных ожиданиях.
	Execute(ctx context.Context) error
}

// Factory строит новый экземпляр шага для одной попытки.
// Ошибка построения считается system failure этой попытки.
type Factory func(env *Env) (Step, error)

// Mailer — отправка писем из шагов.
type Mailer interface {
	Send(ctx context.Context, req mail.Request) error
}

// Env — окружение, которое шаги получают через композицию.
//
// Config — неизменяемая конфигурация процесса, Date — контекст даты
// исполнения. Env создаётся один раз на run и разделяется всеми шагами.
type Env struct {
	Config *config.Config
	Date   *calendar.RobotDate
	Mailer Mailer
	HTTP   *http.Client
	Logger *slog.Logger
}

// log возвращает логгер окружения с именем шага.
func (e *Env) log(step string) *slog.Logger {
	l := e.Logger
	if l == nil {
		l = slog.Default()
	}
	return l.With("state", step)
}

// StepFunc — шаг из функции. Удобен для тестов и простых шагов.
type StepFunc struct {
	StepName string
	Fn       func(ctx context.Context) error
}

func (s StepFunc) Name() string { return s.StepName }

func (s StepFunc) Execute(ctx context.Context) error { return s.Fn(ctx) }
