// Package orchestrator управляет одним запуском бота.
//
// Supervisor отвечает за:
//   - Подготовку каталогов и завершение процессов перед запуском
//   - Запуск секвенсора шагов в отдельной горутине
//   - Опрос источников отмены (сигналы, stop-файл, ключ Redis)
//   - Teardown: сводку, отчёт об ошибке, историю и публикацию в мониторинг
//
// Teardown выполняется всегда, в том числе после паники супервизора.
package orchestrator
