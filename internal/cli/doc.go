// Package cli реализует инструмент командной строки rpabot.
//
// # Обзор
//
// CLI запускает бота и даёт доступ к его окружению: таблице шагов,
// локальной истории, событиям в RabbitMQ и календарю праздников.
//
// # Ключевые компоненты
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON (json.MarshalIndent) — с флагом -o json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: rpabot history -o json | jq .
//
// ## Commands
//
//   - run [start-step]: выполнить процесс, начиная с шага
//   - states: таблица шагов
//   - history: последние запуски из локальной истории
//   - events: поток событий run из RabbitMQ
//   - holidays: обновить календарь праздников
//   - stop: запросить остановку через Redis или stop-файл
//   - version
//
// Каждая команда создаётся фабричной функцией (NewRunCmd и т.д.),
// принимающей configFn и outputFn — замыкания для ленивой загрузки
// конфигурации и Output после парсинга PersistentFlags.
//
// Код выхода: 0 для SUCCESS, WARNING и STOPPED; 1 для FAILED и ошибок
// подготовки (см. ExitError).
package cli
