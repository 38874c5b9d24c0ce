// Package worker выполняет шаги бота по порядку.
//
// # Обзор
//
// Worker — секвенсор состояний. Он владеет индексом текущего шага и
// счётчиком попыток, строит новый экземпляр шага на каждую попытку и
// применяет RetryPolicy к ошибкам.
//
//	IDLE → RUNNING → {SUCCESS, FAILED, WARNING, STOPPED}
//
// # Цикл
//
//  1. Запрошена остановка → STOPPED
//  2. Индекс за пределами таблицы или без шага → SUCCESS
//  3. Фабрика строит шаг, вызывается Execute
//  4. Успех → индекс + 1, attempt = 1
//  5. Ошибка → kill процессов, RetryPolicy.Decide
//
// # Retry
//
// Business failure никогда не повторяется и завершает run со статусом
// WARNING. System failure повторяется, пока attempt < MaxTries, затем
// run завершается со статусом FAILED. Между попытками возможна пауза:
//   - "none" (по умолчанию): без паузы
//   - "fixed": delay = initialDelay
//   - "exponential": delay = initialDelay * 2^(attempt-1), capped at maxDelay
//
// # Остановка
//
// Stop только выставляет флаг. Выполняющийся шаг не прерывается:
// контекст шага не наследует отмену, статус STOPPED выставляется
// на следующей границе итерации.
//
// Worker одноразовый: один экземпляр выполняет один run.
package worker
