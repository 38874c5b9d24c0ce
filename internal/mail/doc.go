// Package mail собирает и отправляет письма бота.
//
// Письмо строится из двух HTML-шаблонов: тело (body file) с позиционными
// полями {} / {0} и обёртка (wrapper), куда тело подставляется полем 0.
// Фигурные скобки в шаблонах экранируются удвоением: {{ и }}.
//
// Получатели берутся либо из запроса, либо из Excel-файла получателей
// по окружению и типу письма. Вне PRD к теме добавляется префикс [TEST].
package mail
