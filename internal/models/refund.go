package models

import "fmt"

// Причины начисления возврата.
const (
	RefundReasonCancel = "cancel"
	RefundReasonFreeze = "freeze-refund"
)

// RefundRequest — начисление баллов на кошелёк пользователя.
// ID стабилен для одной и той же операции и служит ключом идемпотентности.
type RefundRequest struct {
	ID             string `json:"refund_id" validate:"required"`
	UserID         string `json:"user_id" validate:"required"`
	SubscriptionID int64  `json:"subscription_id"`
	Points         int    `json:"points" validate:"gt=0"`
	Reason         string `json:"reason"`
}

// RefundID возвращает ключ идемпотентности начисления для подписки и причины.
func RefundID(subscriptionID int64, reason string) string {
	return fmt.Sprintf("subscription:%d:%s", subscriptionID, reason)
}
