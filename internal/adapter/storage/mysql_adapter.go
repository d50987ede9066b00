package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/zeshalondrag/sorapc-checkout/internal/core/domain"
)

// MySQLAdapter is the durable document store: products, users, orders
// and carts. It backs the catalog, order and cart ports plus the
// identity lookup.
type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func (m *MySQLAdapter) GetByArticle(ctx context.Context, article string) (*domain.StockRecord, error) {
	var rec domain.StockRecord
	err := m.db.QueryRowContext(ctx, `
		SELECT article, title, price, quantity, sales_count
		FROM products WHERE article = ?`, article,
	).Scan(&rec.Article, &rec.Title, &rec.UnitPrice, &rec.Available, &rec.SalesCount)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}

	return &rec, nil
}

// ReconcileStock applies every item's decrement in one transaction.
// Each update is conditional on remaining stock; the first item that
// fails the check rolls the whole batch back, so a checkout either
// reserves everything or touches nothing.
func (m *MySQLAdapter) ReconcileStock(ctx context.Context, items []domain.LineItem) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, it := range items {
		result, err := tx.ExecContext(ctx, `
			UPDATE products
			SET quantity = quantity - ?, sales_count = sales_count + ?
			WHERE article = ? AND quantity >= ?`,
			it.Quantity, it.Quantity, it.Article, it.Quantity,
		)
		if err != nil {
			return fmt.Errorf("update stock %s: %w", it.Article, err)
		}

		rows, _ := result.RowsAffected()
		if rows == 0 {
			var n int
			if err := tx.QueryRowContext(ctx,
				`SELECT COUNT(*) FROM products WHERE article = ?`, it.Article,
			).Scan(&n); err != nil {
				return fmt.Errorf("recheck product %s: %w", it.Article, err)
			}
			if n == 0 {
				return fmt.Errorf("%w: %s", domain.ErrArticleNotFound, it.Article)
			}
			return fmt.Errorf("%w: %s", domain.ErrInsufficientStock, it.Article)
		}
	}

	return tx.Commit()
}

func (m *MySQLAdapter) Quantities(ctx context.Context, articles []string) (map[string]int, error) {
	if len(articles) == 0 {
		return map[string]int{}, nil
	}

	placeholders := strings.Repeat("?,", len(articles))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(articles))
	for i, a := range articles {
		args[i] = a
	}

	rows, err := m.db.QueryContext(ctx,
		`SELECT article, quantity FROM products WHERE article IN (`+placeholders+`)`, args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query quantities: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int, len(articles))
	for rows.Next() {
		var article string
		var quantity int
		if err := rows.Scan(&article, &quantity); err != nil {
			return nil, fmt.Errorf("scan quantity: %w", err)
		}
		out[article] = quantity
	}
	return out, rows.Err()
}

func (m *MySQLAdapter) Append(ctx context.Context, order domain.Order) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, total_price, commission, final_total, payment_method, placed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		order.ID, order.UserID, order.TotalPrice, order.Commission,
		order.FinalTotal, string(order.Payment), order.PlacedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for _, it := range order.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, article, title, unit_price, quantity)
			VALUES (?, ?, ?, ?, ?)`,
			order.ID, it.Article, it.Title, it.UnitPrice, it.Quantity,
		)
		if err != nil {
			return fmt.Errorf("insert order item %s: %w", it.Article, err)
		}
	}

	return tx.Commit()
}

func (m *MySQLAdapter) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, user_id, total_price, commission, final_total, payment_method, placed_at
		FROM orders WHERE user_id = ?
		ORDER BY placed_at DESC`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	index := make(map[string]int)
	for rows.Next() {
		var o domain.Order
		var payment string
		if err := rows.Scan(&o.ID, &o.UserID, &o.TotalPrice, &o.Commission, &o.FinalTotal, &payment, &o.PlacedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		o.Payment = domain.PaymentMethod(payment)
		index[o.ID] = len(orders)
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, nil
	}

	itemRows, err := m.db.QueryContext(ctx, `
		SELECT i.order_id, i.article, i.title, i.unit_price, i.quantity
		FROM order_items i
		JOIN orders o ON o.id = i.order_id
		WHERE o.user_id = ?`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var orderID string
		var it domain.LineItem
		if err := itemRows.Scan(&orderID, &it.Article, &it.Title, &it.UnitPrice, &it.Quantity); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		if idx, ok := index[orderID]; ok {
			orders[idx].Items = append(orders[idx].Items, it)
		}
	}
	if err := itemRows.Err(); err != nil {
		return nil, err
	}

	for i := range orders {
		orders[i].Articles = domain.Articles(orders[i].Items)
	}
	return orders, nil
}

func (m *MySQLAdapter) HasPurchased(ctx context.Context, userID, article string) (bool, error) {
	var exists bool
	err := m.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM orders o
			JOIN order_items i ON i.order_id = o.id
			WHERE o.user_id = ? AND i.article = ?
		)`, userID, article,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query purchase: %w", err)
	}
	return exists, nil
}

func (m *MySQLAdapter) Items(ctx context.Context, userID string) ([]domain.LineItem, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT c.article, p.title, p.price, c.quantity
		FROM cart_items c
		JOIN products p ON p.article = c.article
		WHERE c.user_id = ?`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query cart: %w", err)
	}
	defer rows.Close()

	var items []domain.LineItem
	for rows.Next() {
		var it domain.LineItem
		if err := rows.Scan(&it.Article, &it.Title, &it.UnitPrice, &it.Quantity); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (m *MySQLAdapter) Put(ctx context.Context, userID, article string, quantity int) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO cart_items (user_id, article, quantity)
		VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE quantity = VALUES(quantity)`,
		userID, article, quantity,
	)
	if err != nil {
		return fmt.Errorf("upsert cart item: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) Remove(ctx context.Context, userID, article string) error {
	_, err := m.db.ExecContext(ctx,
		`DELETE FROM cart_items WHERE user_id = ? AND article = ?`, userID, article,
	)
	if err != nil {
		return fmt.Errorf("remove cart item: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) Clear(ctx context.Context, userID string) error {
	_, err := m.db.ExecContext(ctx,
		`DELETE FROM cart_items WHERE user_id = ?`, userID,
	)
	if err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

// Email resolves a user's registered contact address.
func (m *MySQLAdapter) Email(ctx context.Context, userID string) (string, error) {
	var email string
	err := m.db.QueryRowContext(ctx,
		`SELECT email FROM users WHERE id = ?`, userID,
	).Scan(&email)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("user %s has no registered address", userID)
	}
	if err != nil {
		return "", fmt.Errorf("query user email: %w", err)
	}
	return email, nil
}
