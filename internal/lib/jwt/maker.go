// Package jwt выпускает и проверяет HS256-токены с ID пользователя и ролью.
package jwt

import (
	"time"
)

// RoleAdmin — роль сотрудника, которому доступны чужие заказы и подписки.
const RoleAdmin = "admin"

// Maker описывает генерацию и разбор токенов.
type Maker interface {
	GenerateToken(userID, role string) (string, error)
	ParseToken(tokenStr string) (*CustomClaims, error)
}

// MakerImpl подписывает токены общим секретом.
type MakerImpl struct {
	secretKey string
	tokenTTL  time.Duration
}

// NewJWTMaker создаёт MakerImpl на основе секретного ключа и TTL.
func NewJWTMaker(secretKey string, ttl time.Duration) *MakerImpl {
	return &MakerImpl{
		secretKey: secretKey,
		tokenTTL:  ttl,
	}
}
