package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/jewel-store/internal/core/domain"
)

const productColumns = `id, name, sku, image_url, metal, active, stock, weight_grams, purity,
	making_charges, gst_percent, base_price, making_price, gst_amount, final_price, created_at, updated_at`

func scanProduct(row rowScanner) (*domain.Product, error) {
	var (
		p              domain.Product
		weight, making decimal.NullDecimal
		purity         sql.NullString
	)
	err := row.Scan(&p.ID, &p.Name, &p.SKU, &p.ImageURL, &p.Metal, &p.Active, &p.Stock, &weight, &purity,
		&making, &p.GSTPercent, &p.Price.Base, &p.Price.Making, &p.Price.GST, &p.Price.Final,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if weight.Valid {
		p.WeightGrams = &weight.Decimal
	}
	if making.Valid {
		p.MakingCharges = &making.Decimal
	}
	if purity.Valid {
		p.Purity = &purity.String
	}
	return &p, nil
}

func (m *MySQLAdapter) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	row := m.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ?`, productID)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}

	variants, err := m.variantsFor(ctx, []string{p.ID})
	if err != nil {
		return nil, err
	}
	p.Variants = variants[p.ID]
	return p, nil
}

func (m *MySQLAdapter) ListActiveProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT `+productColumns+` FROM products WHERE active = TRUE ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var (
		products []domain.Product
		ids      []string
	)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, *p)
		ids = append(ids, p.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}

	variants, err := m.variantsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range products {
		products[i].Variants = variants[products[i].ID]
	}
	return products, nil
}

func (m *MySQLAdapter) variantsFor(ctx context.Context, productIDs []string) (map[string][]domain.Variant, error) {
	out := make(map[string][]domain.Variant, len(productIDs))
	if len(productIDs) == 0 {
		return out, nil
	}

	args := make([]any, len(productIDs))
	for i, id := range productIDs {
		args[i] = id
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(productIDs)), ",")

	rows, err := m.db.QueryContext(ctx, `
		SELECT product_id, id, size, color, stock, price_adjustment
		FROM product_variants WHERE product_id IN (`+placeholders+`)
		ORDER BY product_id, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("query variants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			productID string
			v         domain.Variant
		)
		if err := rows.Scan(&productID, &v.ID, &v.Size, &v.Color, &v.Stock, &v.PriceAdjustment); err != nil {
			return nil, fmt.Errorf("scan variant: %w", err)
		}
		out[productID] = append(out[productID], v)
	}
	return out, rows.Err()
}

// BulkUpdatePrices writes every price in one transaction.
func (m *MySQLAdapter) BulkUpdatePrices(ctx context.Context, updates []domain.PriceUpdate) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		UPDATE products
		SET base_price = ?, making_price = ?, gst_amount = ?, final_price = ?, updated_at = NOW()
		WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("prepare price update: %w", err)
	}
	defer stmt.Close()

	for _, u := range updates {
		if _, err := stmt.ExecContext(ctx, u.Price.Base, u.Price.Making, u.Price.GST, u.Price.Final, u.ProductID); err != nil {
			return fmt.Errorf("update price of %s: %w", u.ProductID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit price updates: %w", err)
	}
	return nil
}

// SaveProduct upserts a product and replaces its variants.
func (m *MySQLAdapter) SaveProduct(ctx context.Context, p *domain.Product) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var purity sql.NullString
	if p.Purity != nil {
		purity = sql.NullString{String: *p.Purity, Valid: true}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NOW(), NOW())
		ON DUPLICATE KEY UPDATE name = VALUES(name), sku = VALUES(sku), image_url = VALUES(image_url),
			metal = VALUES(metal), active = VALUES(active), stock = VALUES(stock),
			weight_grams = VALUES(weight_grams), purity = VALUES(purity),
			making_charges = VALUES(making_charges), gst_percent = VALUES(gst_percent),
			base_price = VALUES(base_price), making_price = VALUES(making_price),
			gst_amount = VALUES(gst_amount), final_price = VALUES(final_price), updated_at = NOW()`,
		p.ID, p.Name, p.SKU, p.ImageURL, p.Metal, p.Active, p.Stock,
		nullDecimal(p.WeightGrams), purity, nullDecimal(p.MakingCharges), p.GSTPercent,
		p.Price.Base, p.Price.Making, p.Price.GST, p.Price.Final,
	)
	if err != nil {
		return fmt.Errorf("upsert product: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM product_variants WHERE product_id = ?`, p.ID); err != nil {
		return fmt.Errorf("delete variants: %w", err)
	}
	for _, v := range p.Variants {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO product_variants (product_id, id, size, color, stock, price_adjustment)
			VALUES (?, ?, ?, ?, ?, ?)`,
			p.ID, v.ID, v.Size, v.Color, v.Stock, v.PriceAdjustment,
		)
		if err != nil {
			return fmt.Errorf("insert variant %s: %w", v.ID, err)
		}
	}

	return tx.Commit()
}

func (m *MySQLAdapter) GetAddressForUser(ctx context.Context, addressID, userID string) (*domain.Address, error) {
	var a domain.Address
	err := m.db.QueryRowContext(ctx, `
		SELECT id, user_id, full_name, phone, line1, line2, city, state, postal_code, country
		FROM addresses WHERE id = ? AND user_id = ?`, addressID, userID,
	).Scan(&a.ID, &a.UserID, &a.FullName, &a.Phone, &a.Line1, &a.Line2, &a.City, &a.State, &a.PostalCode, &a.Country)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query address: %w", err)
	}
	return &a, nil
}

func (m *MySQLAdapter) SaveAddress(ctx context.Context, a *domain.Address) error {
	_, err := m.db.ExecContext(ctx, `
		REPLACE INTO addresses (id, user_id, full_name, phone, line1, line2, city, state, postal_code, country)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.UserID, a.FullName, a.Phone, a.Line1, a.Line2, a.City, a.State, a.PostalCode, a.Country,
	)
	if err != nil {
		return fmt.Errorf("save address: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT product_id, variant_id, quantity, added_at
		FROM cart_items WHERE user_id = ? ORDER BY added_at, product_id, variant_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query cart: %w", err)
	}
	defer rows.Close()

	cart := &domain.Cart{UserID: userID}
	for rows.Next() {
		var item domain.CartItem
		if err := rows.Scan(&item.ProductID, &item.VariantID, &item.Quantity, &item.AddedAt); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		if item.AddedAt.After(cart.UpdatedAt) {
			cart.UpdatedAt = item.AddedAt
		}
		cart.Items = append(cart.Items, item)
	}
	return cart, rows.Err()
}

// SaveCart replaces the user's cart lines.
func (m *MySQLAdapter) SaveCart(ctx context.Context, cart *domain.Cart) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = ?`, cart.UserID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	for _, item := range cart.Items {
		addedAt := item.AddedAt
		if addedAt.IsZero() {
			addedAt = time.Now().UTC()
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO cart_items (user_id, product_id, variant_id, quantity, added_at)
			VALUES (?, ?, ?, ?, ?)`,
			cart.UserID, item.ProductID, item.VariantID, item.Quantity, addedAt,
		)
		if err != nil {
			return fmt.Errorf("insert cart item: %w", err)
		}
	}

	return tx.Commit()
}

func (m *MySQLAdapter) SaveUser(ctx context.Context, u *domain.User) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO users (id, email, name, verified, created_at) VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE email = VALUES(email), name = VALUES(name), verified = VALUES(verified)`,
		u.ID, u.Email, u.Name, u.Verified, u.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) DeleteUnverifiedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := m.db.ExecContext(ctx, `
		DELETE FROM users WHERE verified = FALSE AND created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete unverified users: %w", err)
	}
	return result.RowsAffected()
}
