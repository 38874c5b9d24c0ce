// Package steps содержит шаги процесса и таблицу их конструкторов.
//
// # Обзор
//
// Шаг (Step) — одна единица работы процесса. Секвенсор (пакет worker)
// на каждую попытку строит новый экземпляр через Factory из Table и
// вызывает Execute. Шаг не хранит состояние между попытками.
//
// # Классы ошибок
//
// Execute возвращает:
//   - nil — шаг выполнен, секвенсор переходит к следующему индексу;
//   - *BusinessError — нарушение бизнес-правила, run завершается WARNING
//     без повторов, Payload описывает письмо пользователю;
//   - любую другую ошибку — system failure, шаг повторяется до max_tries.
//
// Паника внутри шага перехватывается секвенсором и превращается в
// SystemError со стеком (FromPanic).
//
// # Таблица шагов
//
//	table := steps.DefaultTable()
//	entry, ok := table.Get(1)
//	step, err := entry.Factory(env)
//
// Таблица может быть разреженной: индекс без шага завершает run
// со статусом SUCCESS.
//
// # Шаги процесса
//
//   - 1 generate_worktray — входной Excel → worktray (worktray.go)
//   - 2 fetch_api_data    — задачи из API трекера → process_data/api (fetch.go)
//   - 3 delegated_flow    — внешний desktop-поток через письмо и флаг-файл (delegated.go)
//   - 4 send_exe_report   — письмо с отчётом об исполнении (exe_report.go)
//
// # Окружение
//
// Env собирает то, что нужно шагам: неизменяемый Config, дату робота,
// Mailer, HTTP клиент и логгер. Шаги получают Env через Factory.
package steps
