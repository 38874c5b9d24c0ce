package api

import (
	"context"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/shaiso/rpabot/internal/domain"
	"github.com/shaiso/rpabot/internal/repo"
	"github.com/shaiso/rpabot/internal/steps"
)

// StatusSource — источник текущего состояния run.
type StatusSource interface {
	Snapshot() *domain.Run
	Table() *steps.Table
}

// History — локальная история запусков.
type History interface {
	List(ctx context.Context, limit int) ([]repo.HistoryEntry, error)
}

// Handler — главный обработчик API с зависимостями.
//
// Handler также служит источником остановки: POST /api/v1/stop
// выставляет флаг, который супервизор читает через Requested.
type Handler struct {
	status  StatusSource
	history History
	metrics http.Handler
	logger  *slog.Logger

	startedAt time.Time
	stop      atomic.Bool
}

// Config — конфигурация для создания Handler.
type Config struct {
	Status  StatusSource
	History History
	Metrics http.Handler
	Logger  *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		status:    cfg.Status,
		history:   cfg.History,
		metrics:   cfg.Metrics,
		logger:    logger,
		startedAt: time.Now(),
	}
}

// Name возвращает имя источника остановки.
func (h *Handler) Name() string { return "api" }

// Requested возвращает true после POST /api/v1/stop.
func (h *Handler) Requested(context.Context) (bool, error) {
	return h.stop.Load(), nil
}
