package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus — статус доставки заказа.
type OrderStatus string

const (
	OrderPreparing      OrderStatus = "Preparing"
	OrderOutForDelivery OrderStatus = "OutForDelivery"
	OrderDelivered      OrderStatus = "Delivered"
	OrderCompleted      OrderStatus = "Completed"
)

// OrderSequence — единственный допустимый порядок статусов заказа.
var OrderSequence = []OrderStatus{OrderPreparing, OrderOutForDelivery, OrderDelivered, OrderCompleted}

// Rank возвращает позицию статуса в OrderSequence или -1 для неизвестного статуса.
func (s OrderStatus) Rank() int {
	for i, st := range OrderSequence {
		if st == s {
			return i
		}
	}
	return -1
}

// Order представляет заказ пользователя.
type Order struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	OrderType       string          `json:"order_type"`
	DeliveryAddress string          `json:"delivery_address"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Shipping        decimal.Decimal `json:"shipping"`
	Tax             decimal.Decimal `json:"tax"`
	VoucherDiscount decimal.Decimal `json:"voucher_discount"`
	Total           decimal.Decimal `json:"total"`
	OrderTime       time.Time       `json:"order_time"`
	ScheduledShipAt *time.Time      `json:"scheduled_ship_at,omitempty"`
	Status          OrderStatus     `json:"status"`
	Items           []OrderItem     `json:"items,omitempty"`
}

// OrderItem описывает позицию заказа.
type OrderItem struct {
	MealKitID string          `json:"meal_kit_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// OrderStatusChange описывает один переход статуса заказа.
type OrderStatusChange struct {
	OrderID string      `json:"order_id"`
	UserID  string      `json:"user_id"`
	From    OrderStatus `json:"from"`
	To      OrderStatus `json:"to"`
}

// OrderStatusChanged публикуется во внешнюю шину при смене статуса.
type OrderStatusChanged struct {
	EventID    string      `json:"event_id"`
	OrderID    string      `json:"order_id"`
	UserID     string      `json:"user_id"`
	From       OrderStatus `json:"from"`
	To         OrderStatus `json:"to"`
	OccurredAt time.Time   `json:"occurred_at"`
}
