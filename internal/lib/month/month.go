// Package month содержит календарную арифметику для расчёта дат списаний.
//
// В отличие от time.AddDate, переполнение дня не переносится в следующий месяц:
// 31 января + 1 месяц даёт последний день февраля, а не начало марта.
package month

import (
	"fmt"
	"time"
)

// DateLayout формат даты, в котором приходит дата старта из формы.
const DateLayout = "2006-01-02"

// DaysIn возвращает количество дней в месяце m года year.
func DaysIn(year int, m time.Month) int {
	return time.Date(year, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// AddMonths прибавляет n месяцев к t, ограничивая день последним днём целевого месяца.
func AddMonths(t time.Time, n int) time.Time {
	year, m, day := t.Date()
	target := time.Date(year, m+time.Month(n), 1, 0, 0, 0, 0, t.Location())
	if last := DaysIn(target.Year(), target.Month()); day > last {
		day = last
	}
	return time.Date(target.Year(), target.Month(), day,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// NextBilling считает дату следующего списания: старт плюс один период.
func NextBilling(start time.Time, yearly bool) time.Time {
	if yearly {
		return AddMonths(start, 12)
	}
	return AddMonths(start, 1)
}

// ParseStart разбирает дату старта в формате 2006-01-02 либо RFC3339.
func ParseStart(s string) (time.Time, error) {
	const op = "month.ParseStart"
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", op, err)
	}
	return t, nil
}
