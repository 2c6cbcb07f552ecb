package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/EladReuveny/electronics-store-api/internal/domain"
	"github.com/EladReuveny/electronics-store-api/pkg/database"
	apperrors "github.com/EladReuveny/electronics-store-api/pkg/errors"
)

// OrderRepository implements repository.OrderRepository using PostgreSQL.
type OrderRepository struct {
	db database.DBTX
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(db database.DBTX) *OrderRepository {
	return &OrderRepository{db: db}
}

const orderColumns = `id, user_id, status, total_amount, created_at, updated_at`

const queryGetOrder = `
	SELECT ` + orderColumns + `
	FROM orders
	WHERE id = $1`

// GetByID retrieves an order with its lines.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (_ *domain.Order, err error) {
	ctx, end := database.TraceQuery(ctx, "GetOrderByID", queryGetOrder)
	defer func() { end(err) }()

	var (
		o      domain.Order
		status string
	)
	err = r.db.QueryRow(ctx, queryGetOrder, id).Scan(
		&o.ID, &o.UserID, &status, &o.TotalAmount, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("order", id)
		}
		return nil, fmt.Errorf("get order by id: %w", err)
	}
	o.Status = domain.OrderStatus(status)

	if o.Items, err = loadLines(ctx, r.db, ownerOrder, o.ID); err != nil {
		return nil, err
	}
	return &o, nil
}

const queryListOrdersByUser = `
	SELECT ` + orderColumns + `, 0 AS total_count
	FROM orders
	WHERE user_id = $1
	ORDER BY created_at DESC, id ASC`

// ListByUserID returns every order placed by a user, newest first.
func (r *OrderRepository) ListByUserID(ctx context.Context, userID string) (_ []domain.Order, err error) {
	ctx, end := database.TraceQuery(ctx, "ListOrdersByUser", queryListOrdersByUser)
	defer func() { end(err) }()

	orders, _, err := r.list(ctx, queryListOrdersByUser, userID)
	return orders, err
}

const queryListOrders = `
	SELECT ` + orderColumns + `, count(*) OVER() AS total_count
	FROM orders
	ORDER BY created_at DESC, id ASC
	LIMIT $1 OFFSET $2`

// List returns a page of orders, newest first, and the total count.
func (r *OrderRepository) List(ctx context.Context, offset, limit int) (_ []domain.Order, _ int, err error) {
	ctx, end := database.TraceQuery(ctx, "ListOrders", queryListOrders)
	defer func() { end(err) }()

	return r.list(ctx, queryListOrders, limit, offset)
}

func (r *OrderRepository) list(ctx context.Context, query string, args ...any) ([]domain.Order, int, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}

	orders := []domain.Order{}
	total := 0
	for rows.Next() {
		var (
			o      domain.Order
			status string
		)
		if err := rows.Scan(&o.ID, &o.UserID, &status, &o.TotalAmount, &o.CreatedAt, &o.UpdatedAt, &total); err != nil {
			rows.Close()
			return nil, 0, fmt.Errorf("scan order row: %w", err)
		}
		o.Status = domain.OrderStatus(status)
		orders = append(orders, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate order rows: %w", err)
	}

	// Lines are loaded once the result set is closed; a transaction's
	// connection cannot run a second query while rows are open.
	for i := range orders {
		if orders[i].Items, err = loadLines(ctx, r.db, ownerOrder, orders[i].ID); err != nil {
			return nil, 0, err
		}
	}
	if total == 0 {
		total = len(orders)
	}
	return orders, total, nil
}

const queryInsertOrder = `
	INSERT INTO orders (` + orderColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6)`

// Create inserts an order and its lines.
func (r *OrderRepository) Create(ctx context.Context, o *domain.Order) (err error) {
	ctx, end := database.TraceQuery(ctx, "CreateOrder", queryInsertOrder)
	defer func() { end(err) }()

	_, err = r.db.Exec(ctx, queryInsertOrder,
		o.ID, o.UserID, string(o.Status), o.TotalAmount, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("order", "id", o.ID)
		}
		return fmt.Errorf("create order: %w", err)
	}
	return insertLines(ctx, r.db, ownerOrder, o.ID, o.Items)
}

const queryUpdateOrderStatus = `
	UPDATE orders
	SET status = $2, updated_at = $3
	WHERE id = $1`

// UpdateStatus overwrites the status of an order.
func (r *OrderRepository) UpdateStatus(ctx context.Context, o *domain.Order) (err error) {
	ctx, end := database.TraceQuery(ctx, "UpdateOrderStatus", queryUpdateOrderStatus)
	defer func() { end(err) }()

	tag, err := r.db.Exec(ctx, queryUpdateOrderStatus, o.ID, string(o.Status), o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("order", o.ID)
	}
	return nil
}

const queryDeleteOrder = `DELETE FROM orders WHERE id = $1`

// Delete removes an order; its lines go with it through ON DELETE CASCADE.
func (r *OrderRepository) Delete(ctx context.Context, id string) (err error) {
	ctx, end := database.TraceQuery(ctx, "DeleteOrder", queryDeleteOrder)
	defer func() { end(err) }()

	tag, err := r.db.Exec(ctx, queryDeleteOrder, id)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("order", id)
	}
	return nil
}
