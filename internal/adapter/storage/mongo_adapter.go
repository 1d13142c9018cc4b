package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/rl1809/jewel-store/internal/core/domain"
	"github.com/rl1809/jewel-store/internal/port"
)

// MongoAdapter is the document-store backend. Products embed their variants
// and users embed their order history.
type MongoAdapter struct {
	db *mongo.Database
}

var _ port.Store = (*MongoAdapter)(nil)

func NewMongoAdapter(db *mongo.Database) *MongoAdapter {
	return &MongoAdapter{db: db}
}

func (m *MongoAdapter) coll(name string) *mongo.Collection {
	return m.db.Collection(name)
}

func (m *MongoAdapter) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	var doc productDoc
	err := m.coll(collProducts).FindOne(ctx, bson.M{"_id": productID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return doc.toDomain(), nil
}

func (m *MongoAdapter) ListActiveProducts(ctx context.Context) ([]domain.Product, error) {
	cursor, err := m.coll(collProducts).Find(ctx, bson.M{"active": true}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []productDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode products: %w", err)
	}

	products := make([]domain.Product, 0, len(docs))
	for i := range docs {
		products = append(products, *docs[i].toDomain())
	}
	return products, nil
}

func (m *MongoAdapter) BulkUpdatePrices(ctx context.Context, updates []domain.PriceUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	now := time.Now().UTC()
	models := make([]mongo.WriteModel, 0, len(updates))
	for _, u := range updates {
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": u.ProductID}).
			SetUpdate(bson.M{"$set": bson.M{"price": newPriceDoc(u.Price), "updated_at": now}}))
	}

	if _, err := m.coll(collProducts).BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false)); err != nil {
		return fmt.Errorf("failed to bulk update prices: %w", err)
	}
	return nil
}

func (m *MongoAdapter) SaveProduct(ctx context.Context, p *domain.Product) error {
	doc := newProductDoc(p)
	_, err := m.coll(collProducts).ReplaceOne(ctx, bson.M{"_id": p.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save product: %w", err)
	}
	return nil
}

func (m *MongoAdapter) GetAddressForUser(ctx context.Context, addressID, userID string) (*domain.Address, error) {
	var a domain.Address
	err := m.coll(collAddresses).FindOne(ctx, bson.M{"_id": addressID, "user_id": userID}).Decode(&a)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get address: %w", err)
	}
	return &a, nil
}

func (m *MongoAdapter) SaveAddress(ctx context.Context, a *domain.Address) error {
	_, err := m.coll(collAddresses).ReplaceOne(ctx, bson.M{"_id": a.ID}, a, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save address: %w", err)
	}
	return nil
}

func (m *MongoAdapter) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	var cart domain.Cart
	err := m.coll(collCarts).FindOne(ctx, bson.M{"user_id": userID}).Decode(&cart)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return &domain.Cart{UserID: userID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}
	return &cart, nil
}

func (m *MongoAdapter) SaveCart(ctx context.Context, cart *domain.Cart) error {
	if cart.Items == nil {
		cart.Items = []domain.CartItem{}
	}
	_, err := m.coll(collCarts).ReplaceOne(ctx, bson.M{"user_id": cart.UserID}, cart, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save cart: %w", err)
	}
	return nil
}

func (m *MongoAdapter) SaveUser(ctx context.Context, u *domain.User) error {
	filter := bson.M{"_id": u.ID}
	update := bson.M{
		"$set":         bson.M{"email": u.Email, "name": u.Name, "verified": u.Verified},
		"$setOnInsert": bson.M{"created_at": u.CreatedAt},
	}
	if _, err := m.coll(collUsers).UpdateOne(ctx, filter, update, options.Update().SetUpsert(true)); err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

func (m *MongoAdapter) DeleteUnverifiedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := m.coll(collUsers).DeleteMany(ctx, bson.M{
		"verified":   false,
		"created_at": bson.M{"$lt": cutoff},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete unverified users: %w", err)
	}
	return res.DeletedCount, nil
}

// RunInTx runs fn inside a multi-document transaction. The driver retries fn
// on transient transaction errors.
func (m *MongoAdapter) RunInTx(ctx context.Context, fn func(ctx context.Context, tx port.OrderTx) error) error {
	session, err := m.db.Client().StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc, &mongoOrderTx{m: m})
	})
	return err
}

type mongoOrderTx struct {
	m *MongoAdapter
}

func (t *mongoOrderTx) InsertOrder(ctx context.Context, order *domain.Order) error {
	if _, err := t.m.coll(collOrders).InsertOne(ctx, newOrderDoc(order)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return port.ErrDuplicateOrderNumber
		}
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

func (t *mongoOrderTx) DecrementStock(ctx context.Context, dec domain.StockDecrement) error {
	var filter, update bson.M
	if dec.VariantID == "" {
		filter = bson.M{"_id": dec.ProductID, "active": true, "stock": bson.M{"$gte": dec.Quantity}}
		update = bson.M{"$inc": bson.M{"stock": -dec.Quantity}}
	} else {
		filter = bson.M{
			"_id":    dec.ProductID,
			"active": true,
			"variants": bson.M{"$elemMatch": bson.M{
				"id":    dec.VariantID,
				"stock": bson.M{"$gte": dec.Quantity},
			}},
		}
		update = bson.M{"$inc": bson.M{"variants.$.stock": -dec.Quantity}}
	}

	res, err := t.m.coll(collProducts).UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to decrement stock: %w", err)
	}
	if res.MatchedCount == 0 {
		return port.ErrStockConflict
	}
	return nil
}

// ClearCart matches the stored items array against the snapshot exactly. A
// concurrent transaction touching the same cart either write-conflicts or
// finds the items already changed.
func (t *mongoOrderTx) ClearCart(ctx context.Context, snapshot *domain.Cart) error {
	res, err := t.m.coll(collCarts).UpdateOne(ctx,
		bson.M{"user_id": snapshot.UserID, "items": snapshot.Items},
		bson.M{"$set": bson.M{"items": []domain.CartItem{}, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	if res.MatchedCount == 0 {
		return port.ErrCartChanged
	}
	return nil
}

func (t *mongoOrderTx) AppendOrderToHistory(ctx context.Context, userID, orderID string) error {
	_, err := t.m.coll(collUsers).UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$addToSet": bson.M{"order_history": orderID}},
	)
	if err != nil {
		return fmt.Errorf("failed to append order history: %w", err)
	}
	return nil
}

func (m *MongoAdapter) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	var doc orderDoc
	err := m.coll(collOrders).FindOne(ctx, bson.M{"_id": orderID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return doc.toDomain(), nil
}

func (m *MongoAdapter) ListOrdersByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := m.coll(collOrders).Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []orderDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode orders: %w", err)
	}

	orders := make([]domain.Order, 0, len(docs))
	for i := range docs {
		orders = append(orders, *docs[i].toDomain())
	}
	return orders, nil
}

func (m *MongoAdapter) UpdatePayment(ctx context.Context, u port.PaymentUpdate) (bool, error) {
	filter := bson.M{"_id": u.OrderID, "payment.status": string(u.From)}
	update := bson.M{"$set": bson.M{
		"payment": paymentDoc{
			Status:        string(u.To),
			AmountPaid:    toDec128(u.AmountPaid),
			TransactionID: u.TransactionID,
			PaymentDate:   u.PaymentDate,
		},
		"updated_at": time.Now().UTC(),
	}}

	res, err := m.coll(collOrders).UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to update payment: %w", err)
	}
	return res.ModifiedCount > 0, nil
}
