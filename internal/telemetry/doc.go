// Package telemetry обеспечивает наблюдаемость бота.
//
// Включает:
//   - logging.go — structured logging через slog (консоль + файл run)
//   - metrics.go — Prometheus метрики и отправка в Pushgateway
//
// Лог-файл run прикладывается к отчёту мониторинга и выгружается
// в объектное хранилище в QAS/PRD.
package telemetry
