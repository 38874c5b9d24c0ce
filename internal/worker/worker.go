package worker

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shaiso/rpabot/internal/domain"
	"github.com/shaiso/rpabot/internal/steps"
)

// Default configuration values.
const (
	defaultKillTimeout = 10 * time.Second
)

// ProcessKiller завершает внешние процессы по имени.
// Ошибки только логируются.
type ProcessKiller interface {
	Kill(ctx context.Context, names []string) error
}

// Observer получает события секвенсора: метрики, история, очередь событий.
// Вызовы синхронные, поэтому реализация не должна блокироваться надолго.
type Observer interface {
	AttemptFinished(ctx context.Context, attempt domain.StepAttempt)
	RunFinished(ctx context.Context, run *domain.Run)
}

// Worker — секвенсор шагов.
//
// Worker выполняет шаги таблицы строго последовательно в одной горутине:
//   - индекс за пределами таблицы или без шага → SUCCESS
//   - успех шага → следующий индекс, attempt = 1
//   - ошибка → kill процессов, решение RetryPolicy
//   - запрос остановки → STOPPED на границе итерации
//
// Run изменяет только горутина секвенсора; остальные читают его через Snapshot.
type Worker struct {
	table  *steps.Table
	env    *steps.Env
	policy RetryPolicy

	killer        ProcessKiller
	killProcesses bool
	killList      []string

	observer Observer

	// Lifecycle
	logger  *slog.Logger
	mu      sync.RWMutex
	run     *domain.Run
	stop    atomic.Bool
	stopCh  chan struct{}
	once    sync.Once
	started atomic.Bool
	done    chan struct{}
	result  *domain.Run
}

// Config — конфигурация Worker.
type Config struct {
	// Table — таблица шагов (обязательна).
	Table *steps.Table

	// Env — окружение шагов. Передаётся в каждую фабрику.
	Env *steps.Env

	// Policy — политика повторов.
	Policy RetryPolicy

	// Killer, KillProcesses, KillList — завершение процессов при ошибке шага.
	Killer        ProcessKiller
	KillProcesses bool
	KillList      []string

	// Observer (опционально).
	Observer Observer

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Worker.
func New(cfg Config) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	env := cfg.Env
	if env == nil {
		env = &steps.Env{Logger: logger}
	}

	return &Worker{
		table:         cfg.Table,
		env:           env,
		policy:        cfg.Policy,
		killer:        cfg.Killer,
		killProcesses: cfg.KillProcesses,
		killList:      cfg.KillList,
		observer:      cfg.Observer,
		logger:        logger,
		stopCh:        make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// Start запускает run в отдельной горутине.
// Результат доступен через Wait после закрытия Done.
func (w *Worker) Start(ctx context.Context, run *domain.Run) error {
	if w.table == nil {
		return ErrNoTable
	}
	if !w.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	go func() {
		defer close(w.done)
		w.result = w.execute(ctx, run)
	}()
	return nil
}

// Run выполняет run синхронно в текущей горутине.
func (w *Worker) Run(ctx context.Context, run *domain.Run) (*domain.Run, error) {
	if err := w.Start(ctx, run); err != nil {
		return nil, err
	}
	return w.Wait(), nil
}

// Done закрывается, когда секвенсор завершился.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// IsAlive возвращает true, пока секвенсор выполняется.
func (w *Worker) IsAlive() bool {
	if !w.started.Load() {
		return false
	}
	select {
	case <-w.done:
		return false
	default:
		return true
	}
}

// Wait ждёт завершения и возвращает итоговый run.
func (w *Worker) Wait() *domain.Run {
	<-w.done
	return w.result
}

// Stop запрашивает кооперативную остановку.
// Текущий шаг доработает до конца; статус STOPPED выставится
// на следующей границе итерации.
func (w *Worker) Stop() {
	w.once.Do(func() {
		w.stop.Store(true)
		close(w.stopCh)
		w.logger.Info("stop requested")
	})
}

// IsStopped проверяет, запрошена ли остановка.
func (w *Worker) IsStopped() bool {
	return w.stop.Load()
}

// Snapshot возвращает копию текущего run (nil до Start).
func (w *Worker) Snapshot() *domain.Run {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.run == nil {
		return nil
	}
	return w.run.Clone()
}

// Table возвращает таблицу шагов.
func (w *Worker) Table() *steps.Table {
	return w.table
}

// update изменяет run под блокировкой.
func (w *Worker) update(fn func(r *domain.Run)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fn(w.run)
}
