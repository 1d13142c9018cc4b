package storage

import (
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/rl1809/jewel-store/internal/core/domain"
)

const (
	collProducts  = "products"
	collAddresses = "addresses"
	collUsers     = "users"
	collCarts     = "carts"
	collOrders    = "orders"
)

// toDec128 stores money as Decimal128; amounts never pass through float64.
func toDec128(d decimal.Decimal) primitive.Decimal128 {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.NewDecimal128(0, 0)
	}
	return v
}

func fromDec128(v primitive.Decimal128) decimal.Decimal {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero
	}
	return d
}

func toDec128Ptr(d *decimal.Decimal) *primitive.Decimal128 {
	if d == nil {
		return nil
	}
	v := toDec128(*d)
	return &v
}

func fromDec128Ptr(v *primitive.Decimal128) *decimal.Decimal {
	if v == nil {
		return nil
	}
	d := fromDec128(*v)
	return &d
}

type priceDoc struct {
	Base   primitive.Decimal128 `bson:"base"`
	Making primitive.Decimal128 `bson:"making"`
	GST    primitive.Decimal128 `bson:"gst"`
	Final  primitive.Decimal128 `bson:"final"`
}

func newPriceDoc(p domain.Price) priceDoc {
	return priceDoc{Base: toDec128(p.Base), Making: toDec128(p.Making), GST: toDec128(p.GST), Final: toDec128(p.Final)}
}

func (d priceDoc) toDomain() domain.Price {
	return domain.Price{Base: fromDec128(d.Base), Making: fromDec128(d.Making), GST: fromDec128(d.GST), Final: fromDec128(d.Final)}
}

type variantDoc struct {
	ID              string               `bson:"id"`
	Size            string               `bson:"size,omitempty"`
	Color           string               `bson:"color,omitempty"`
	Stock           int                  `bson:"stock"`
	PriceAdjustment primitive.Decimal128 `bson:"price_adjustment"`
}

type productDoc struct {
	ID            string                `bson:"_id"`
	Name          string                `bson:"name"`
	SKU           string                `bson:"sku,omitempty"`
	ImageURL      string                `bson:"image_url,omitempty"`
	Metal         string                `bson:"metal,omitempty"`
	Active        bool                  `bson:"active"`
	Stock         int                   `bson:"stock"`
	WeightGrams   *primitive.Decimal128 `bson:"weight_grams,omitempty"`
	Purity        *string               `bson:"purity,omitempty"`
	MakingCharges *primitive.Decimal128 `bson:"making_charges,omitempty"`
	GSTPercent    primitive.Decimal128  `bson:"gst_percent"`
	Price         priceDoc              `bson:"price"`
	Variants      []variantDoc          `bson:"variants,omitempty"`
	CreatedAt     time.Time             `bson:"created_at"`
	UpdatedAt     time.Time             `bson:"updated_at"`
}

func newProductDoc(p *domain.Product) productDoc {
	doc := productDoc{
		ID:            p.ID,
		Name:          p.Name,
		SKU:           p.SKU,
		ImageURL:      p.ImageURL,
		Metal:         string(p.Metal),
		Active:        p.Active,
		Stock:         p.Stock,
		WeightGrams:   toDec128Ptr(p.WeightGrams),
		Purity:        p.Purity,
		MakingCharges: toDec128Ptr(p.MakingCharges),
		GSTPercent:    toDec128(p.GSTPercent),
		Price:         newPriceDoc(p.Price),
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
	for _, v := range p.Variants {
		doc.Variants = append(doc.Variants, variantDoc{
			ID:              v.ID,
			Size:            v.Size,
			Color:           v.Color,
			Stock:           v.Stock,
			PriceAdjustment: toDec128(v.PriceAdjustment),
		})
	}
	return doc
}

func (d *productDoc) toDomain() *domain.Product {
	p := &domain.Product{
		ID:            d.ID,
		Name:          d.Name,
		SKU:           d.SKU,
		ImageURL:      d.ImageURL,
		Metal:         domain.Metal(d.Metal),
		Active:        d.Active,
		Stock:         d.Stock,
		WeightGrams:   fromDec128Ptr(d.WeightGrams),
		Purity:        d.Purity,
		MakingCharges: fromDec128Ptr(d.MakingCharges),
		GSTPercent:    fromDec128(d.GSTPercent),
		Price:         d.Price.toDomain(),
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
	for _, v := range d.Variants {
		p.Variants = append(p.Variants, domain.Variant{
			ID:              v.ID,
			Size:            v.Size,
			Color:           v.Color,
			Stock:           v.Stock,
			PriceAdjustment: fromDec128(v.PriceAdjustment),
		})
	}
	return p
}

type userDoc struct {
	ID           string    `bson:"_id"`
	Email        string    `bson:"email"`
	Name         string    `bson:"name,omitempty"`
	Verified     bool      `bson:"verified"`
	CreatedAt    time.Time `bson:"created_at"`
	OrderHistory []string  `bson:"order_history,omitempty"`
}

type orderItemDoc struct {
	ProductID string               `bson:"product_id"`
	VariantID string               `bson:"variant_id,omitempty"`
	Name      string               `bson:"name"`
	SKU       string               `bson:"sku,omitempty"`
	ImageURL  string               `bson:"image_url,omitempty"`
	Size      string               `bson:"size,omitempty"`
	Color     string               `bson:"color,omitempty"`
	UnitPrice primitive.Decimal128 `bson:"unit_price"`
	Quantity  int                  `bson:"quantity"`
	LineTotal primitive.Decimal128 `bson:"line_total"`
}

type paymentDoc struct {
	Status        string               `bson:"status"`
	AmountPaid    primitive.Decimal128 `bson:"amount_paid"`
	TransactionID *string              `bson:"transaction_id"`
	PaymentDate   *time.Time           `bson:"payment_date"`
}

type orderDoc struct {
	ID              string               `bson:"_id"`
	OrderNumber     string               `bson:"order_number"`
	UserID          string               `bson:"user_id"`
	Items           []orderItemDoc       `bson:"items"`
	ShippingAddress domain.Address       `bson:"shipping_address"`
	TotalAmount     primitive.Decimal128 `bson:"total_amount"`
	Status          string               `bson:"status"`
	PaymentMethod   string               `bson:"payment_method"`
	Payment         paymentDoc           `bson:"payment"`
	CreatedAt       time.Time            `bson:"created_at"`
	UpdatedAt       time.Time            `bson:"updated_at"`
}

func newOrderDoc(o *domain.Order) orderDoc {
	doc := orderDoc{
		ID:              o.ID,
		OrderNumber:     o.OrderNumber,
		UserID:          o.UserID,
		Items:           make([]orderItemDoc, 0, len(o.Items)),
		ShippingAddress: o.ShippingAddress,
		TotalAmount:     toDec128(o.TotalAmount),
		Status:          string(o.Status),
		PaymentMethod:   string(o.PaymentMethod),
		Payment: paymentDoc{
			Status:        string(o.Payment.Status),
			AmountPaid:    toDec128(o.Payment.AmountPaid),
			TransactionID: o.Payment.TransactionID,
			PaymentDate:   o.Payment.PaymentDate,
		},
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
	for _, it := range o.Items {
		doc.Items = append(doc.Items, orderItemDoc{
			ProductID: it.ProductID,
			VariantID: it.VariantID,
			Name:      it.Name,
			SKU:       it.SKU,
			ImageURL:  it.ImageURL,
			Size:      it.Size,
			Color:     it.Color,
			UnitPrice: toDec128(it.UnitPrice),
			Quantity:  it.Quantity,
			LineTotal: toDec128(it.LineTotal),
		})
	}
	return doc
}

func (d *orderDoc) toDomain() *domain.Order {
	o := &domain.Order{
		ID:              d.ID,
		OrderNumber:     d.OrderNumber,
		UserID:          d.UserID,
		Items:           make([]domain.OrderItem, 0, len(d.Items)),
		ShippingAddress: d.ShippingAddress,
		TotalAmount:     fromDec128(d.TotalAmount),
		Status:          domain.OrderStatus(d.Status),
		PaymentMethod:   domain.PaymentMethod(d.PaymentMethod),
		Payment: domain.PaymentDetails{
			Status:        domain.PaymentStatus(d.Payment.Status),
			AmountPaid:    fromDec128(d.Payment.AmountPaid),
			TransactionID: d.Payment.TransactionID,
			PaymentDate:   d.Payment.PaymentDate,
		},
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	for _, it := range d.Items {
		o.Items = append(o.Items, domain.OrderItem{
			ProductID: it.ProductID,
			VariantID: it.VariantID,
			Name:      it.Name,
			SKU:       it.SKU,
			ImageURL:  it.ImageURL,
			Size:      it.Size,
			Color:     it.Color,
			UnitPrice: fromDec128(it.UnitPrice),
			Quantity:  it.Quantity,
			LineTotal: fromDec128(it.LineTotal),
		})
	}
	return o
}
