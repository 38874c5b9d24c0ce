// Package domain содержит модели run, попыток шагов и отчётов.
//
// Пакет не зависит от остальных пакетов приложения: секвенсор, репозитории
// и отчёты обмениваются этими типами.
package domain
