// Package period содержит арифметику периодов подписки: длину периода в днях,
// пересчёт дней в баллы возврата и даты продления.
package period

import (
	"time"

	"github.com/magabrotheeeer/mealkit-lifecycle/internal/models"
)

const day = 24 * time.Hour

// Days возвращает длину периода подписки: 7 дней для weekly, 30 для остальных типов.
func Days(subscriptionType string) int {
	if subscriptionType == models.SubscriptionWeekly {
		return 7
	}
	return 30
}

// Date отбрасывает время и возвращает полночь по UTC того же дня.
func Date(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NextDate возвращает полночь по UTC следующего дня.
func NextDate(t time.Time) time.Time {
	return Date(t).AddDate(0, 0, 1)
}

// WholeDays считает количество полных суток между from и to.
// Дробная часть отбрасывается, результат может быть отрицательным.
func WholeDays(from, to time.Time) int {
	return int(to.Sub(from) / day)
}

// RefundPoints пересчитывает дни в баллы: days * price / periodDays.
// Деление целочисленное, остаток отбрасывается.
func RefundPoints(days, price int, subscriptionType string) int {
	if days <= 0 || price <= 0 {
		return 0
	}
	return days * price / Days(subscriptionType)
}

// Renewal возвращает границы подписки, продлевающей период, закончившийся в end.
// Новый период начинается через сутки после end и длится Days(subscriptionType) дней без одной секунды.
func Renewal(end time.Time, subscriptionType string) (time.Time, time.Time) {
	start := end.Add(day)
	return start, start.AddDate(0, 0, Days(subscriptionType)).Add(-time.Second)
}
