// Package calendar — дата исполнения робота и рабочие дни.
//
// RobotDate фиксирует «сейчас» процесса в файле
// <process_data>/_execution_datetime.txt, чтобы повторные запуски с
// середины последовательности работали с той же датой. К дате применяются
// смещения окружения (execution_*_offset) и смещения вызова.
//
// Праздники хранятся в <process_data>/robot_date/robot_holidays.xlsx и при
// необходимости загружаются с сайта календаря через headless-браузер.
package calendar
