// Package mq публикует события бота в RabbitMQ и читает их.
//
// Структура:
//   - connection.go — соединение и канал
//   - topology.go   — обменник rpabot.events, очередь итогов, tail-очереди
//   - publisher.go  — события run.started, run.finished, step.attempt
//   - consumer.go   — чтение событий (команда events)
//
// Ключ маршрутизации: <тип>.<process_code>, например step.attempt.P001.
// Очередь rpabot.runs.finished получает все run.finished.* для
// внешнего мониторинга.
package mq
