package calendar

import "time"

var daysES = [...]string{"Domingo", "Lunes", "Martes", "Miércoles", "Jueves", "Viernes", "Sábado"}

var monthsES = [...]string{"Enero", "Febrero", "Marzo", "Abril", "Mayo", "Junio",
	"Julio", "Agosto", "Septiembre", "Octubre", "Noviembre", "Diciembre"}

// DayNameES возвращает название дня недели по-испански.
func DayNameES(t time.Time) string { return daysES[t.Weekday()] }

// MonthNameES возвращает название месяца по-испански.
func MonthNameES(t time.Time) string { return monthsES[t.Month()-1] }

// DayNameES возвращает день недели даты робота по-испански.
func (d *RobotDate) DayNameES() string { return DayNameES(d.t) }

// MonthNameES возвращает месяц даты робота по-испански.
func (d *RobotDate) MonthNameES() string { return MonthNameES(d.t) }

// Short обрезает название до n символов (с учётом юникода).
func Short(name string, n int) string {
	r := []rune(name)
	if len(r) <= n {
		return name
	}
	return string(r[:n])
}
