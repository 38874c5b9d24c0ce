// Package api содержит HTTP-сервер статуса бота.
//
// Структура:
//   - handler.go        — Handler с DI (источник статуса, история, метрики)
//   - routes.go         — регистрация маршрутов
//   - middleware.go     — middleware (logging, recovery)
//   - response.go       — унифицированные JSON-ответы
//   - dto.go            — ответы API
//   - status_handler.go — обработчики /status, /states, /history, /stop
//   - server.go         — запуск и остановка сервера
//
// Сервер включается параметром framework.status_addr и живёт, пока идёт run.
package api
