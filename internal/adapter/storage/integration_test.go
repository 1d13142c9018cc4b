package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rl1809/jewel-store/internal/core/domain"
	"github.com/rl1809/jewel-store/internal/core/service"
)

type testEnv struct {
	redis   *redis.Client
	cache   *RedisAdapter
	db      *MySQLAdapter
	cleanup func()
}

func setupTestEnv(t *testing.T) *testEnv {
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	db := getMySQLDB(t)

	return &testEnv{
		redis: rdb,
		cache: NewRedisAdapter(rdb),
		db:    NewMySQLAdapter(db),
		cleanup: func() {
			rdb.Close()
			db.Close()
		},
	}
}

func seedBuyer(t *testing.T, env *testEnv, productID string, qty int) string {
	t.Helper()
	ctx := context.Background()
	userID := "buyer-" + uuid.NewString()[:8]

	if err := env.db.SaveAddress(ctx, &domain.Address{ID: "addr-" + userID, UserID: userID, City: "Surat"}); err != nil {
		t.Fatalf("seed address failed: %v", err)
	}
	if err := env.db.SaveCart(ctx, &domain.Cart{UserID: userID, Items: []domain.CartItem{{ProductID: productID, Quantity: qty}}}); err != nil {
		t.Fatalf("seed cart failed: %v", err)
	}
	return userID
}

func TestIntegration_ConcurrentOrdersNeverOversell(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	ctx := context.Background()
	initialStock := 10
	p := seedMySQLProduct(t, env.db, initialStock)

	buyers := make([]string, 25)
	for i := range buyers {
		buyers[i] = seedBuyer(t, env, p.ID, 1)
	}

	svc := service.NewOrderService(env.db, env.cache, zap.NewNop())

	var (
		wg        sync.WaitGroup
		successes atomic.Int32
	)
	for _, userID := range buyers {
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			_, err := svc.PlaceOrder(ctx, service.PlaceOrderInput{
				UserID:        userID,
				AddressID:     "addr-" + userID,
				PaymentMethod: domain.PaymentMethodCOD,
				RequestID:     uuid.NewString(),
			})
			if err == nil {
				successes.Add(1)
			}
		}(userID)
	}
	wg.Wait()

	if successes.Load() != int32(initialStock) {
		t.Errorf("expected %d successful orders, got %d", initialStock, successes.Load())
	}

	got, err := env.db.GetProduct(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetProduct failed: %v", err)
	}
	if got.Stock != 0 {
		t.Errorf("expected stock 0, got %d", got.Stock)
	}
}

func TestIntegration_IdempotencyPreventsDoubleOrder(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	ctx := context.Background()
	p := seedMySQLProduct(t, env.db, 5)
	userID := seedBuyer(t, env, p.ID, 1)

	svc := service.NewOrderService(env.db, env.cache, zap.NewNop())
	in := service.PlaceOrderInput{
		UserID:        userID,
		AddressID:     "addr-" + userID,
		PaymentMethod: domain.PaymentMethodCOD,
		RequestID:     fmt.Sprintf("idem-%s", uuid.NewString()),
	}

	if _, err := svc.PlaceOrder(ctx, in); err != nil {
		t.Fatalf("first order failed: %v", err)
	}

	// Refill the cart so only the idempotency claim can stop the retry.
	if err := env.db.SaveCart(ctx, &domain.Cart{UserID: userID, Items: []domain.CartItem{{ProductID: p.ID, Quantity: 1}}}); err != nil {
		t.Fatalf("refill cart failed: %v", err)
	}

	if _, err := svc.PlaceOrder(ctx, in); !errors.Is(err, service.ErrDuplicateRequest) {
		t.Errorf("expected ErrDuplicateRequest, got: %v", err)
	}

	orders, err := env.db.ListOrdersByUser(ctx, userID)
	if err != nil {
		t.Fatalf("ListOrdersByUser failed: %v", err)
	}
	if len(orders) != 1 {
		t.Errorf("expected 1 order, got %d", len(orders))
	}
}
