package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/jewel-store/internal/core/domain"
	"github.com/rl1809/jewel-store/internal/port"
)

type CartStore interface {
	GetProduct(ctx context.Context, productID string) (*domain.Product, error)
	port.CartRepository
}

// CartService keeps carts within available stock on every mutation. The
// check is best effort; PlaceOrder re-validates authoritatively.
type CartService struct {
	store  CartStore
	logger *zap.Logger
	now    func() time.Time
}

func NewCartService(store CartStore, logger *zap.Logger) *CartService {
	return &CartService{store: store, logger: logger, now: time.Now}
}

func (s *CartService) GetCart(ctx context.Context, userID string) (*domain.CartView, error) {
	cart, err := s.store.GetCart(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	return s.view(ctx, cart)
}

// AddItem adds quantity units of a product/variant, merging with an existing line.
func (s *CartService) AddItem(ctx context.Context, userID, productID, variantID string, quantity int) (*domain.CartView, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	cart, err := s.store.GetCart(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}

	want := quantity
	idx := cart.Find(productID, variantID)
	if idx >= 0 {
		want += cart.Items[idx].Quantity
	}

	if err := s.checkStock(ctx, productID, variantID, want); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if idx >= 0 {
		cart.Items[idx].Quantity = want
	} else {
		cart.Items = append(cart.Items, domain.CartItem{
			ProductID: productID,
			VariantID: variantID,
			Quantity:  want,
			AddedAt:   now,
		})
	}
	return s.save(ctx, cart, now)
}

// UpdateItemQuantity sets a line's quantity; zero removes the line.
func (s *CartService) UpdateItemQuantity(ctx context.Context, userID, productID, variantID string, quantity int) (*domain.CartView, error) {
	if quantity < 0 {
		return nil, ErrInvalidQuantity
	}
	if quantity == 0 {
		return s.RemoveItem(ctx, userID, productID, variantID)
	}

	cart, err := s.store.GetCart(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}

	idx := cart.Find(productID, variantID)
	if idx < 0 {
		return nil, ErrCartItemNotFound
	}

	if err := s.checkStock(ctx, productID, variantID, quantity); err != nil {
		return nil, err
	}

	cart.Items[idx].Quantity = quantity
	return s.save(ctx, cart, s.now().UTC())
}

func (s *CartService) RemoveItem(ctx context.Context, userID, productID, variantID string) (*domain.CartView, error) {
	cart, err := s.store.GetCart(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}

	idx := cart.Find(productID, variantID)
	if idx < 0 {
		return nil, ErrCartItemNotFound
	}

	cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)
	return s.save(ctx, cart, s.now().UTC())
}

func (s *CartService) checkStock(ctx context.Context, productID, variantID string, quantity int) error {
	product, err := s.store.GetProduct(ctx, productID)
	if err != nil {
		return fmt.Errorf("load product %s: %w", productID, err)
	}
	_, err = checkLine(product, productID, variantID, quantity)
	return err
}

func (s *CartService) save(ctx context.Context, cart *domain.Cart, now time.Time) (*domain.CartView, error) {
	cart.UpdatedAt = now
	if err := s.store.SaveCart(ctx, cart); err != nil {
		return nil, fmt.Errorf("save cart: %w", err)
	}
	return s.view(ctx, cart)
}

// view prices every line against the current catalog. Lines whose product
// or variant has gone away stay in the view marked unavailable and do not
// count towards the totals.
func (s *CartService) view(ctx context.Context, cart *domain.Cart) (*domain.CartView, error) {
	v := &domain.CartView{
		UserID:     cart.UserID,
		Lines:      make([]domain.CartLine, 0, len(cart.Items)),
		TotalPrice: decimal.Zero,
	}

	for _, item := range cart.Items {
		line := domain.CartLine{CartItem: item, UnitPrice: decimal.Zero, LineTotal: decimal.Zero}

		product, err := s.store.GetProduct(ctx, item.ProductID)
		if err != nil {
			return nil, fmt.Errorf("load product %s: %w", item.ProductID, err)
		}

		if product != nil {
			line.Name = product.Name
			line.ImageURL = product.ImageURL
			if unit, ok := unitPrice(product, item.VariantID); ok && product.Active {
				line.Available = true
				line.UnitPrice = unit
				line.LineTotal = unit.Mul(decimal.NewFromInt(int64(item.Quantity)))
			}
		}

		if line.Available {
			v.TotalQuantity += item.Quantity
			v.TotalPrice = v.TotalPrice.Add(line.LineTotal)
		}
		v.Lines = append(v.Lines, line)
	}

	return v, nil
}

func unitPrice(product *domain.Product, variantID string) (decimal.Decimal, bool) {
	if variantID == "" {
		return product.Price.Final, true
	}
	v := product.Variant(variantID)
	if v == nil {
		return decimal.Zero, false
	}
	return product.Price.Final.Add(v.PriceAdjustment), true
}
