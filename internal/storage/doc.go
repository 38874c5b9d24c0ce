// Package storage выгружает логи и отчёты run в S3-совместимое хранилище.
//
// Объекты раскладываются по префиксу <PROCESS_CODE>/<yyyy>/<mm>/<run_id>.
// Выгрузка включается только в QAS и PRD.
package storage
