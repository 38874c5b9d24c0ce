// Package config загружает конфигурацию бота.
//
// Источник — YAML-файл с секциями metadata, framework, global, email,
// environments, monitoring и calendar. Переменные окружения (в том числе
// из .env рядом с файлом) подставляются до разбора.
//
// Теги путей:
//
//	{PROCESS_DATA}  каталог framework.process_data
//	{OUTPUT}        каталог framework.output
//	{USER_PROFILE}  домашний каталог пользователя
//
// Относительные пути считаются от каталога файла конфигурации.
package config
