package period

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDays(t *testing.T) {
	assert.Equal(t, 7, Days("weekly"))
	assert.Equal(t, 30, Days("monthly"))
	assert.Equal(t, 30, Days(""))
}

func TestRefundPoints_TableTests(t *testing.T) {
	tests := []struct {
		name    string
		days    int
		price   int
		subType string
		want    int
	}{
		{name: "weekly five days", days: 5, price: 70, subType: "weekly", want: 50},
		{name: "monthly truncates", days: 7, price: 100, subType: "monthly", want: 23},
		{name: "less than one point", days: 1, price: 5, subType: "weekly", want: 0},
		{name: "no days", days: 0, price: 70, subType: "weekly", want: 0},
		{name: "negative days", days: -3, price: 70, subType: "weekly", want: 0},
		{name: "zero price", days: 5, price: 0, subType: "weekly", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RefundPoints(tt.days, tt.price, tt.subType))
		})
	}
}

func TestDateAndNextDate(t *testing.T) {
	moscow := time.FixedZone("MSK", 3*60*60)
	ts := time.Date(2025, 3, 10, 1, 30, 0, 0, moscow)

	assert.Equal(t, time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC), Date(ts))
	assert.Equal(t, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), NextDate(ts))
}

func TestWholeDays(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, 3, WholeDays(base, base.Add(3*24*time.Hour+23*time.Hour)))
	assert.Equal(t, 0, WholeDays(base, base.Add(time.Hour)))
	assert.Equal(t, -2, WholeDays(base, base.Add(-48*time.Hour)))
}

func TestRenewal(t *testing.T) {
	end := time.Date(2025, 1, 7, 23, 59, 59, 0, time.UTC)

	start, newEnd := Renewal(end, "weekly")
	assert.Equal(t, time.Date(2025, 1, 8, 23, 59, 59, 0, time.UTC), start)
	assert.Equal(t, time.Date(2025, 1, 15, 23, 59, 58, 0, time.UTC), newEnd)

	start, newEnd = Renewal(end, "monthly")
	assert.Equal(t, start.AddDate(0, 0, 30).Add(-time.Second), newEnd)
}
