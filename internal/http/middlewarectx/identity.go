package middlewarectx

import (
	"context"

	"github.com/magabrotheeeer/mealkit-lifecycle/internal/lib/jwt"
)

// UserFromContext возвращает ID и роль пользователя, положенные JWTMiddleware.
func UserFromContext(ctx context.Context) (userID, role string, ok bool) {
	userID, ok = ctx.Value(UserID).(string)
	if !ok || userID == "" {
		return "", "", false
	}
	role, _ = ctx.Value(Role).(string)
	return userID, role, true
}

// IsAdmin сообщает, что запрос сделан сотрудником.
func IsAdmin(ctx context.Context) bool {
	role, _ := ctx.Value(Role).(string)
	return role == jwt.RoleAdmin
}

// CanAccess разрешает доступ к записи владельцу и сотруднику.
func CanAccess(ctx context.Context, ownerID string) bool {
	userID, _, ok := UserFromContext(ctx)
	if !ok {
		return false
	}
	return userID == ownerID || IsAdmin(ctx)
}
