package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/rl1809/jewel-store/internal/adapter/handler"
	"github.com/rl1809/jewel-store/internal/adapter/storage"
	"github.com/rl1809/jewel-store/internal/core/domain"
	"github.com/rl1809/jewel-store/internal/core/service"
)

// placer places one COD order for a buyer whose cart is already filled.
type placer func(ctx context.Context, userID string) error

func main() {
	var (
		dsn          = flag.String("mysql", getEnv("MYSQL_DSN", "root:root@tcp(localhost:3306)/jewelstore?parseTime=true&multiStatements=true"), "MySQL DSN")
		redisAddr    = flag.String("redis", getEnv("REDIS_ADDR", "localhost:6379"), "Redis address")
		grpcTarget   = flag.String("grpc", "", "place orders through a running server at this gRPC address instead of in-process")
		initialStock = flag.Int("stock", 20, "initial stock of the seeded product")
		buyers       = flag.Int("buyers", 50, "number of concurrent buyers")
	)
	flag.Parse()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	ctx := context.Background()

	db, err := storage.OpenMySQL(ctx, *dsn)
	if err != nil {
		logger.Fatal("failed to connect mysql", zap.Error(err))
	}
	defer db.Close()
	if err := storage.RunMigrations(db); err != nil {
		logger.Fatal("failed to migrate", zap.Error(err))
	}
	store := storage.NewMySQLAdapter(db)

	// Seed one limited product and a cart per buyer
	product := &domain.Product{
		ID:         "stress-" + uuid.NewString()[:8],
		Name:       "Stress Test Pendant",
		Metal:      domain.MetalGold,
		Active:     true,
		Stock:      *initialStock,
		GSTPercent: decimal.NewFromInt(3),
		Price:      domain.Price{Final: decimal.NewFromInt(25000)},
	}
	if err := store.SaveProduct(ctx, product); err != nil {
		logger.Fatal("failed to seed product", zap.Error(err))
	}

	userIDs := make([]string, *buyers)
	for i := range userIDs {
		userID := fmt.Sprintf("stress-user-%d-%s", i, uuid.NewString()[:6])
		if err := store.SaveAddress(ctx, &domain.Address{ID: addressID(userID), UserID: userID, City: "Jaipur"}); err != nil {
			logger.Fatal("failed to seed address", zap.Error(err))
		}
		if err := store.SaveCart(ctx, &domain.Cart{UserID: userID, Items: []domain.CartItem{{ProductID: product.ID, Quantity: 1}}}); err != nil {
			logger.Fatal("failed to seed cart", zap.Error(err))
		}
		userIDs[i] = userID
	}

	var place placer
	if *grpcTarget != "" {
		conn, err := grpc.NewClient(*grpcTarget, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			logger.Fatal("failed to dial grpc", zap.Error(err))
		}
		defer conn.Close()
		place = grpcPlacer(handler.NewOrderServiceClient(conn))
	} else {
		rdb := redis.NewClient(&redis.Options{Addr: *redisAddr, PoolSize: 100})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatal("failed to connect redis", zap.Error(err))
		}
		defer rdb.Close()
		place = servicePlacer(service.NewOrderService(store, storage.NewRedisAdapter(rdb), logger))
	}

	var (
		successCount  atomic.Int32
		conflictCount atomic.Int32
		failCount     atomic.Int32
		wg            sync.WaitGroup
	)
	start := time.Now()

	for _, userID := range userIDs {
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			switch err := place(ctx, userID); {
			case err == nil:
				successCount.Add(1)
			case isStockConflict(err):
				conflictCount.Add(1)
			default:
				failCount.Add(1)
			}
		}(userID)
	}

	wg.Wait()
	elapsed := time.Since(start)

	final, err := store.GetProduct(ctx, product.ID)
	if err != nil {
		logger.Fatal("failed to read final stock", zap.Error(err))
	}

	success := int(successCount.Load())
	expected := min(*initialStock, *buyers)

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Product:          %s\n", product.ID)
	fmt.Printf("Initial Stock:    %d\n", *initialStock)
	fmt.Printf("Buyers:           %d\n", *buyers)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Out of stock:     %d\n", conflictCount.Load())
	fmt.Printf("Other failures:   %d\n", failCount.Load())
	fmt.Printf("Final Stock:      %d\n", final.Stock)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	ok := true
	if final.Stock < 0 {
		fmt.Printf("FAIL: stock went negative (%d)\n", final.Stock)
		ok = false
	}
	if success+final.Stock != *initialStock {
		fmt.Printf("FAIL: %d orders + %d remaining != %d initial\n", success, final.Stock, *initialStock)
		ok = false
	}
	if success != expected {
		fmt.Printf("FAIL: expected %d successful orders, got %d\n", expected, success)
		ok = false
	}
	if !ok {
		os.Exit(1)
	}
	fmt.Println("PASS: no overselling")
}

func servicePlacer(svc *service.OrderService) placer {
	return func(ctx context.Context, userID string) error {
		_, err := svc.PlaceOrder(ctx, service.PlaceOrderInput{
			UserID:        userID,
			AddressID:     addressID(userID),
			PaymentMethod: domain.PaymentMethodCOD,
			RequestID:     uuid.NewString(),
		})
		return err
	}
}

func grpcPlacer(client *handler.OrderServiceClient) placer {
	return func(ctx context.Context, userID string) error {
		_, err := client.PlaceOrder(ctx, &handler.PlaceOrderRequest{
			UserID:        userID,
			AddressID:     addressID(userID),
			PaymentMethod: string(domain.PaymentMethodCOD),
			RequestID:     uuid.NewString(),
		})
		return err
	}
}

func isStockConflict(err error) bool {
	if errors.Is(err, service.ErrInsufficientStock) || errors.Is(err, service.ErrStockConflict) || errors.Is(err, service.ErrCartChanged) {
		return true
	}
	switch status.Code(err) {
	case codes.FailedPrecondition, codes.Aborted:
		return true
	}
	return false
}

func addressID(userID string) string {
	return "addr-" + userID
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
