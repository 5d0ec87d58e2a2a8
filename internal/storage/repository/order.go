package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/mealkit-lifecycle/internal/models"
)

// Позиция статуса в последовательности; неизвестные статусы дают NULL и никогда не обновляются.
const statusRank = `array_position(ARRAY['Preparing','OutForDelivery','Delivered','Completed'], %s)`

var updateOrderStatusQuery = fmt.Sprintf(
	`UPDATE orders SET status = $1 WHERE id = $2 AND %s < %s`,
	fmt.Sprintf(statusRank, "status"), fmt.Sprintf(statusRank, "$1::text"),
)

const orderColumns = `id::text, user_id, order_type, delivery_address, subtotal, shipping, tax,
	voucher_discount, total, order_time, scheduled_ship_at, status`

// GetOrder возвращает заказ с позициями. Строка, не являющаяся UUID, даёт ErrNotFound.
func (s *Storage) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	const op = "storage.GetOrder"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	if err := uuid.Validate(id); err != nil {
		return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}

	row := s.DB.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	order, err := scanOrder(row)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	if err := s.attachItems(ctx, []*models.Order{order}); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return order, nil
}

// ListOrdersByUser возвращает заказы пользователя с пагинацией, новые первыми.
func (s *Storage) ListOrdersByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Order, error) {
	const op = "storage.ListOrdersByUser"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	orders, err := s.queryOrders(ctx, `SELECT `+orderColumns+` FROM orders
		WHERE user_id = $1 ORDER BY order_time DESC LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return orders, nil
}

// ListOrders возвращает все заказы с пагинацией.
func (s *Storage) ListOrders(ctx context.Context, limit, offset int) ([]*models.Order, error) {
	const op = "storage.ListOrders"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	orders, err := s.queryOrders(ctx, `SELECT `+orderColumns+` FROM orders
		ORDER BY order_time DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return orders, nil
}

// ListPendingOrders возвращает незавершённые заказы без позиций.
// Завершённые заказы не загружаются вовсе.
func (s *Storage) ListPendingOrders(ctx context.Context) ([]*models.Order, error) {
	const op = "storage.ListPendingOrders"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT id::text, user_id, order_time, status
		FROM orders WHERE status <> $1 ORDER BY order_time`, models.OrderCompleted)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var result []*models.Order
	for rows.Next() {
		var o models.Order
		if err := rows.Scan(&o.ID, &o.UserID, &o.OrderTime, &o.Status); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// SaveOrderStatuses записывает изменения статусов одной транзакцией и возвращает
// только реально применённые. Обновление, которое откатило бы статус назад
// или повторяет уже записанный, ничего не меняет и в результат не попадает.
func (s *Storage) SaveOrderStatuses(ctx context.Context, changes []models.OrderStatusChange) ([]models.OrderStatusChange, error) {
	const op = "storage.SaveOrderStatuses"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	if len(changes) == 0 {
		return nil, nil
	}

	var applied []models.OrderStatusChange
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, updateOrderStatusQuery)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, c := range changes {
			res, err := stmt.ExecContext(ctx, c.To, c.OrderID)
			if err != nil {
				return err
			}
			ok, err := affected(res, op)
			if err != nil {
				return err
			}
			if ok {
				applied = append(applied, c)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return applied, nil
}

func (s *Storage) queryOrders(ctx context.Context, query string, args ...any) ([]*models.Order, error) {
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	var result []*models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		result = append(result, order)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := s.attachItems(ctx, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Storage) attachItems(ctx context.Context, orders []*models.Order) error {
	if len(orders) == 0 {
		return nil
	}
	byID := make(map[string]*models.Order, len(orders))
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		byID[o.ID] = o
		ids = append(ids, o.ID)
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT order_id::text, meal_kit_id, quantity, unit_price
		FROM order_items WHERE order_id = ANY($1::uuid[]) ORDER BY id`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var orderID string
		var item models.OrderItem
		if err := rows.Scan(&orderID, &item.MealKitID, &item.Quantity, &item.UnitPrice); err != nil {
			return err
		}
		if o, ok := byID[orderID]; ok {
			o.Items = append(o.Items, item)
		}
	}
	return rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(row scanner) (*models.Order, error) {
	var o models.Order
	var shipAt sql.NullTime
	err := row.Scan(&o.ID, &o.UserID, &o.OrderType, &o.DeliveryAddress, &o.Subtotal, &o.Shipping,
		&o.Tax, &o.VoucherDiscount, &o.Total, &o.OrderTime, &shipAt, &o.Status)
	if err != nil {
		return nil, err
	}
	if shipAt.Valid {
		t := shipAt.Time
		o.ScheduledShipAt = &t
	}
	return &o, nil
}
