// Package models содержит доменные структуры заказов, подписок и истории заморозок,
// а также вспомогательные типы для приёма данных из JSON-запросов.
package models

import "time"

// SubscriptionStatus — статус подписки.
type SubscriptionStatus string

const (
	SubscriptionActive   SubscriptionStatus = "Active"
	SubscriptionCanceled SubscriptionStatus = "Canceled"
	SubscriptionExpired  SubscriptionStatus = "Expired"
)

// Terminal сообщает, что подписка больше не изменяется движком.
func (s SubscriptionStatus) Terminal() bool {
	return s == SubscriptionCanceled || s == SubscriptionExpired
}

const (
	SubscriptionWeekly  = "weekly"
	SubscriptionMonthly = "monthly"
)

// Subscription представляет подписку пользователя на наборы блюд.
// Price хранится в баллах за весь период подписки.
type Subscription struct {
	ID                   int64              `json:"id"`
	UserID               string             `json:"user_id"`
	Frequency            string             `json:"frequency"`
	StartDate            time.Time          `json:"start_date"`
	EndDate              time.Time          `json:"end_date"`
	SubscriptionType     string             `json:"subscription_type"` // weekly или monthly
	Choice               string             `json:"choice"`            // выбранный план блюд
	Price                int                `json:"price"`
	AutoRenewal          bool               `json:"auto_renewal"`
	IsFrozen             bool               `json:"is_frozen"`
	Status               SubscriptionStatus `json:"status"`
	ScheduledFreezeStart *time.Time         `json:"scheduled_freeze_start,omitempty"`
	ScheduledFreezeEnd   *time.Time         `json:"scheduled_freeze_end,omitempty"`
}

// FreezeRecord — запись истории заморозок подписки.
// FreezeEndDate == nil означает, что заморозка запланирована или активна.
type FreezeRecord struct {
	ID              int64      `json:"id"`
	SubscriptionID  int64      `json:"subscription_id"`
	FreezeStartDate time.Time  `json:"freeze_start_date"`
	FreezeEndDate   *time.Time `json:"freeze_end_date,omitempty"`
}

// Open сообщает, что заморозка ещё не закрыта.
func (f FreezeRecord) Open() bool {
	return f.FreezeEndDate == nil
}

// DummyFreeze используется для приёма даты заморозки из JSON-запроса.
type DummyFreeze struct {
	StartDate string `json:"start_date" validate:"required"`
}
