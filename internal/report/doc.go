// Package report формирует отчёты о завершённом run.
//
// Reporter вызывается супервизором ровно один раз после терминального
// статуса. Для WARNING он пересылает письмо из payload бизнес-ошибки,
// для FAILED разбирает стек вызовов в таблицу кадров и отправляет письмо
// о системной ошибке. Ошибки отправки только логируются: отчёт никогда
// не прерывает teardown.
//
// Кроме писем об ошибках пакет пишет JSON-сводку run
// (<process_data>/<yyyymmdd_hhmmss>_exe_report.json) и отправляет
// мониторинговое письмо со сводкой и последним лог-файлом.
package report
