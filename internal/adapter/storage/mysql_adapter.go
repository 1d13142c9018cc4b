package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"

	"github.com/rl1809/jewel-store/internal/core/domain"
	"github.com/rl1809/jewel-store/internal/port"
)

const mysqlDuplicateEntry = 1062

type MySQLAdapter struct {
	db *sql.DB
}

var _ port.Store = (*MySQLAdapter)(nil)

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

// OpenMySQL opens and pings a connection pool.
func OpenMySQL(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}

	db.SetMaxOpenConns(100)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	return db, nil
}

func (m *MySQLAdapter) RunInTx(ctx context.Context, fn func(ctx context.Context, tx port.OrderTx) error) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(ctx, &mysqlOrderTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type mysqlOrderTx struct {
	tx *sql.Tx
}

func (t *mysqlOrderTx) InsertOrder(ctx context.Context, order *domain.Order) error {
	items, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("encode order items: %w", err)
	}
	address, err := json.Marshal(order.ShippingAddress)
	if err != nil {
		return fmt.Errorf("encode shipping address: %w", err)
	}

	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO orders (id, order_number, user_id, items, shipping_address, total_amount,
			status, payment_method, payment_status, amount_paid, transaction_id, payment_date,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID, order.OrderNumber, order.UserID, items, address, order.TotalAmount,
		order.Status, order.PaymentMethod, order.Payment.Status, order.Payment.AmountPaid,
		order.Payment.TransactionID, order.Payment.PaymentDate,
		order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		var myErr *mysql.MySQLError
		if errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry {
			return port.ErrDuplicateOrderNumber
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// DecrementStock is a conditional write: the row only changes while enough
// stock remains, so concurrent transactions can never drive it negative.
func (t *mysqlOrderTx) DecrementStock(ctx context.Context, dec domain.StockDecrement) error {
	var (
		result sql.Result
		err    error
	)
	if dec.VariantID == "" {
		result, err = t.tx.ExecContext(ctx, `
			UPDATE products
			SET stock = stock - ?, updated_at = NOW()
			WHERE id = ? AND active = TRUE AND stock >= ?`,
			dec.Quantity, dec.ProductID, dec.Quantity,
		)
	} else {
		result, err = t.tx.ExecContext(ctx, `
			UPDATE product_variants v
			JOIN products p ON p.id = v.product_id
			SET v.stock = v.stock - ?
			WHERE v.product_id = ? AND v.id = ? AND p.active = TRUE AND v.stock >= ?`,
			dec.Quantity, dec.ProductID, dec.VariantID, dec.Quantity,
		)
	}
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}
	if rows == 0 {
		return port.ErrStockConflict
	}
	return nil
}

// ClearCart locks the user's cart rows, so a concurrent placement of the same
// cart blocks here and then sees the rows already gone.
func (t *mysqlOrderTx) ClearCart(ctx context.Context, snapshot *domain.Cart) error {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT product_id, variant_id, quantity FROM cart_items
		WHERE user_id = ? FOR UPDATE`,
		snapshot.UserID,
	)
	if err != nil {
		return fmt.Errorf("lock cart: %w", err)
	}

	var current []domain.CartItem
	for rows.Next() {
		var item domain.CartItem
		if err := rows.Scan(&item.ProductID, &item.VariantID, &item.Quantity); err != nil {
			rows.Close()
			return fmt.Errorf("scan cart item: %w", err)
		}
		current = append(current, item)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("lock cart: %w", err)
	}

	if !snapshot.SameLines(current) {
		return port.ErrCartChanged
	}

	if _, err := t.tx.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = ?`, snapshot.UserID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

func (t *mysqlOrderTx) AppendOrderToHistory(ctx context.Context, userID, orderID string) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO user_orders (user_id, order_id, created_at) VALUES (?, ?, NOW())`,
		userID, orderID,
	)
	if err != nil {
		return fmt.Errorf("append order history: %w", err)
	}
	return nil
}

const orderColumns = `id, order_number, user_id, items, shipping_address, total_amount, status,
	payment_method, payment_status, amount_paid, transaction_id, payment_date, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		o              domain.Order
		items, address []byte
		txn            sql.NullString
		paidAt         sql.NullTime
	)
	err := row.Scan(&o.ID, &o.OrderNumber, &o.UserID, &items, &address, &o.TotalAmount, &o.Status,
		&o.PaymentMethod, &o.Payment.Status, &o.Payment.AmountPaid, &txn, &paidAt, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, fmt.Errorf("decode order items: %w", err)
	}
	if err := json.Unmarshal(address, &o.ShippingAddress); err != nil {
		return nil, fmt.Errorf("decode shipping address: %w", err)
	}
	if txn.Valid {
		o.Payment.TransactionID = &txn.String
	}
	if paidAt.Valid {
		o.Payment.PaymentDate = &paidAt.Time
	}
	return &o, nil
}

func (m *MySQLAdapter) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	row := m.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, orderID)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}
	return o, nil
}

func (m *MySQLAdapter) ListOrdersByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT `+orderColumns+` FROM orders WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

func (m *MySQLAdapter) UpdatePayment(ctx context.Context, u port.PaymentUpdate) (bool, error) {
	result, err := m.db.ExecContext(ctx, `
		UPDATE orders
		SET payment_status = ?, amount_paid = ?, transaction_id = ?, payment_date = ?, updated_at = NOW()
		WHERE id = ? AND payment_status = ?`,
		u.To, u.AmountPaid, u.TransactionID, u.PaymentDate, u.OrderID, u.From,
	)
	if err != nil {
		return false, fmt.Errorf("update payment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update payment: %w", err)
	}
	return rows > 0, nil
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}
