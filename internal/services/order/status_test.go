package order

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/magabrotheeeer/mealkit-lifecycle/internal/models"
)

func TestComputeStatus_Thresholds(t *testing.T) {
	orderTime := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		elapsed time.Duration
		want    models.OrderStatus
	}{
		{name: "just created", elapsed: 0, want: models.OrderPreparing},
		{name: "before first stage", elapsed: 29*time.Second + 999*time.Millisecond, want: models.OrderPreparing},
		{name: "exactly 30s", elapsed: 30 * time.Second, want: models.OrderOutForDelivery},
		{name: "exactly 60s", elapsed: 60 * time.Second, want: models.OrderDelivered},
		{name: "89s", elapsed: 89 * time.Second, want: models.OrderDelivered},
		{name: "exactly 90s", elapsed: 90 * time.Second, want: models.OrderCompleted},
		{name: "long after", elapsed: 48 * time.Hour, want: models.OrderCompleted},
		{name: "clock behind order time", elapsed: -time.Minute, want: models.OrderPreparing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeStatus(orderTime, orderTime.Add(tt.elapsed)))
		})
	}
}

func TestComputeStatus_Monotonic(t *testing.T) {
	orderTime := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

	prev := ComputeStatus(orderTime, orderTime.Add(-10*time.Second))
	for step := -10 * time.Second; step <= 200*time.Second; step += 250 * time.Millisecond {
		cur := ComputeStatus(orderTime, orderTime.Add(step))
		assert.GreaterOrEqual(t, cur.Rank(), prev.Rank(), "status regressed at %s", step)
		prev = cur
	}
}

func TestTimeline_CustomStage(t *testing.T) {
	tl := Timeline{Stage: time.Minute}
	orderTime := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, models.OrderPreparing, tl.Status(orderTime, orderTime.Add(45*time.Second)))
	assert.Equal(t, models.OrderOutForDelivery, tl.Status(orderTime, orderTime.Add(90*time.Second)))
	assert.Equal(t, models.OrderCompleted, tl.Status(orderTime, orderTime.Add(3*time.Minute)))
}

func TestTimeline_Advance(t *testing.T) {
	orderTime := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		current     models.OrderStatus
		elapsed     time.Duration
		want        models.OrderStatus
		wantChanged bool
	}{
		{name: "moves forward", current: models.OrderPreparing, elapsed: 45 * time.Second, want: models.OrderOutForDelivery, wantChanged: true},
		{name: "skips stages when late", current: models.OrderPreparing, elapsed: 95 * time.Second, want: models.OrderCompleted, wantChanged: true},
		{name: "already current", current: models.OrderDelivered, elapsed: 75 * time.Second, want: models.OrderDelivered},
		{name: "never regresses", current: models.OrderDelivered, elapsed: 10 * time.Second, want: models.OrderDelivered},
		{name: "completed is terminal", current: models.OrderCompleted, elapsed: time.Second, want: models.OrderCompleted},
		{name: "unknown status untouched", current: models.OrderStatus("Refunded"), elapsed: 95 * time.Second, want: models.OrderStatus("Refunded")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed := DefaultTimeline.Advance(tt.current, orderTime, orderTime.Add(tt.elapsed))
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantChanged, changed)
		})
	}
}
