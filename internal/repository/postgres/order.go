package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"reconcile/internal/domain"
	"reconcile/internal/repository"
)

// OrderRepository is a PostgreSQL implementation of repository.OrderRepository.
type OrderRepository struct {
	q Querier
}

// NewOrderRepository creates a new PostgreSQL order repository.
func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{q: db}
}

// NewOrderRepositoryWithTx creates an order repository using a transaction.
func NewOrderRepositoryWithTx(tx *sql.Tx) *OrderRepository {
	return &OrderRepository{q: tx}
}

// itemRow is the JSON shape of an order line in the items column.
type itemRow struct {
	MenuItemID string          `json:"menu_item_id"`
	Name       string          `json:"name"`
	Quantity   int             `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
}

const orderColumns = `order_id, customer_name, table_number, items, amount, status, payment_status, payment_method, transaction_id, paid_at, created_at, updated_at`

// Upsert creates or replaces an order. Rows already paid keep their payment
// fields and cancelled rows stay cancelled.
func (r *OrderRepository) Upsert(ctx context.Context, order *domain.Order) error {
	query := `
		INSERT INTO orders (order_id, customer_name, table_number, items, amount, status, payment_status, payment_method, transaction_id, paid_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (order_id) DO UPDATE
		SET customer_name = EXCLUDED.customer_name,
			table_number = EXCLUDED.table_number,
			items = EXCLUDED.items,
			amount = CASE WHEN orders.payment_status = 'pending' THEN EXCLUDED.amount ELSE orders.amount END,
			status = CASE WHEN orders.status = 'cancelled' THEN orders.status ELSE EXCLUDED.status END,
			updated_at = EXCLUDED.updated_at
	`

	items, err := encodeItems(order.Items)
	if err != nil {
		return err
	}

	paymentStatus := order.PaymentStatus
	if paymentStatus == "" {
		paymentStatus = domain.PaymentStatusPending
	}

	status := order.Status
	if status == "" {
		status = domain.OrderStatusPending
	}

	_, err = r.q.ExecContext(ctx, query,
		order.ID,
		order.CustomerName,
		nullString(order.TableNumber),
		string(items),
		order.Amount,
		status,
		paymentStatus,
		nullString(string(order.PaymentMethod)),
		nullString(order.TransactionID),
		nullTime(order.PaidAt),
		order.CreatedAt,
		order.UpdatedAt,
	)

	return err
}

// GetByID retrieves an order by order id.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE order_id = $1`

	order, err := scanOrder(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return order, nil
}

// ListPending returns orders awaiting payment, oldest first.
func (r *OrderRepository) ListPending(ctx context.Context, filter repository.PendingFilter) ([]*domain.Order, error) {
	conds := []string{"payment_status = 'pending'", "status <> 'cancelled'"}
	var args []any

	if !filter.From.IsZero() {
		args = append(args, filter.From)
		conds = append(conds, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		conds = append(conds, fmt.Sprintf("created_at < $%d", len(args)))
	}
	if filter.Amount != nil {
		args = append(args, *filter.Amount)
		conds = append(conds, fmt.Sprintf("amount = $%d", len(args)))
	}

	query := `SELECT ` + orderColumns + ` FROM orders WHERE ` + strings.Join(conds, " AND ") +
		` ORDER BY created_at ASC, order_id ASC`

	return r.list(ctx, query, args...)
}

// ListPaid returns orders paid in [from, to), newest first.
func (r *OrderRepository) ListPaid(ctx context.Context, from, to time.Time) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders
		WHERE payment_status = 'paid' AND paid_at >= $1 AND paid_at < $2
		ORDER BY paid_at DESC`

	return r.list(ctx, query, from, to)
}

// MarkPaid transitions a pending order to paid. The WHERE clause is the
// single-writer guard: only one caller can move an order out of pending.
func (r *OrderRepository) MarkPaid(ctx context.Context, id string, method domain.PaymentMethod, transactionID string, at time.Time) error {
	query := `
		UPDATE orders
		SET payment_status = 'paid', payment_method = $2, transaction_id = $3, paid_at = $4, updated_at = $4
		WHERE order_id = $1 AND payment_status = 'pending' AND status <> 'cancelled'
	`

	return r.execOne(ctx, query, id, method, nullString(transactionID), at)
}

// Cancel transitions a pending order to cancelled.
func (r *OrderRepository) Cancel(ctx context.Context, id string, at time.Time) error {
	query := `
		UPDATE orders
		SET status = 'cancelled', updated_at = $2
		WHERE order_id = $1 AND payment_status = 'pending' AND status <> 'cancelled'
	`

	return r.execOne(ctx, query, id, at)
}

// UpdateStatus updates the kitchen status of an order. Cancelled is terminal;
// such rows are reported as ErrNotFound.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus, at time.Time) error {
	query := `UPDATE orders SET status = $2, updated_at = $3 WHERE order_id = $1 AND status <> 'cancelled'`

	return r.execOne(ctx, query, id, status, at)
}

func (r *OrderRepository) execOne(ctx context.Context, query string, args ...any) error {
	result, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

func (r *OrderRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Order, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

func scanOrder(s scanner) (*domain.Order, error) {
	var order domain.Order
	var tableNumber sql.NullString
	var items []byte
	var paymentMethod sql.NullString
	var transactionID sql.NullString
	var paidAt sql.NullTime

	if err := s.Scan(
		&order.ID,
		&order.CustomerName,
		&tableNumber,
		&items,
		&order.Amount,
		&order.Status,
		&order.PaymentStatus,
		&paymentMethod,
		&transactionID,
		&paidAt,
		&order.CreatedAt,
		&order.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if tableNumber.Valid {
		order.TableNumber = tableNumber.String
	}
	if paymentMethod.Valid {
		order.PaymentMethod = domain.PaymentMethod(paymentMethod.String)
	}
	if transactionID.Valid {
		order.TransactionID = transactionID.String
	}
	if paidAt.Valid {
		order.PaidAt = paidAt.Time
	}

	decoded, err := decodeItems(items)
	if err != nil {
		return nil, err
	}
	order.Items = decoded

	return &order, nil
}

func encodeItems(items []domain.OrderItem) ([]byte, error) {
	rows := make([]itemRow, 0, len(items))
	for _, it := range items {
		rows = append(rows, itemRow{
			MenuItemID: it.MenuItemID,
			Name:       it.Name,
			Quantity:   it.Quantity,
			Price:      it.Price,
		})
	}
	return json.Marshal(rows)
}

func decodeItems(data []byte) ([]domain.OrderItem, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var rows []itemRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("decode order items: %w", err)
	}

	items := make([]domain.OrderItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, domain.OrderItem{
			MenuItemID: row.MenuItemID,
			Name:       row.Name,
			Quantity:   row.Quantity,
			Price:      row.Price,
		})
	}
	return items, nil
}
