package checkout

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/luisromero-dev/storefront-backend/internal/cart"
	"github.com/luisromero-dev/storefront-backend/internal/catalog"
	"github.com/luisromero-dev/storefront-backend/internal/orders"
	"github.com/luisromero-dev/storefront-backend/internal/pricing"
	"github.com/luisromero-dev/storefront-backend/pkg/db/models"
	"github.com/luisromero-dev/storefront-backend/pkg/enums"
	pkgerrors "github.com/luisromero-dev/storefront-backend/pkg/errors"
	"github.com/luisromero-dev/storefront-backend/pkg/types"
)

type sqliteTxRunner struct {
	db *gorm.DB
}

func (s sqliteTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return s.db.WithContext(ctx).Transaction(fn)
}

func setupCheckoutTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("opening sqlite: %v", err)
	}

	statements := []string{`
CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  image_url TEXT NOT NULL,
  price_cents INTEGER NOT NULL,
  stock INTEGER NOT NULL DEFAULT 0,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS carts (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL UNIQUE,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS cart_items (
  id TEXT PRIMARY KEY,
  cart_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  created_at DATETIME,
  updated_at DATETIME,
  UNIQUE (cart_id, product_id)
);`, `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  courier_id TEXT,
  status TEXT NOT NULL DEFAULT 'created',
  payment_method TEXT NOT NULL,
  shipping_address TEXT,
  items_price_cents INTEGER NOT NULL,
  tax_price_cents INTEGER NOT NULL,
  shipping_price_cents INTEGER NOT NULL,
  total_price_cents INTEGER NOT NULL,
  paid INTEGER NOT NULL DEFAULT 0,
  paid_at DATETIME,
  delivered INTEGER NOT NULL DEFAULT 0,
  delivered_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS order_lines (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  name TEXT NOT NULL,
  image_url TEXT NOT NULL,
  unit_price_cents INTEGER NOT NULL,
  quantity INTEGER NOT NULL,
  line_total_cents INTEGER NOT NULL,
  created_at DATETIME
);`}
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("creating schema: %v", err)
		}
	}
	return db
}

func testRules() pricing.Rules {
	return pricing.Rules{
		TaxRate:                    decimal.RequireFromString("0.08"),
		FreeShippingThresholdCents: 5000,
		ShippingFeeCents:           1000,
	}
}

func testAddress() types.Address {
	return types.Address{
		Line1:      "500 Market St",
		City:       "Springfield",
		PostalCode: "62701",
		Country:    "US",
	}
}

func newTestService(t *testing.T, db *gorm.DB) *Service {
	t.Helper()

	svc, err := NewService(
		cart.NewRepository(db),
		catalog.NewRepository(db),
		orders.NewRepository(db),
		sqliteTxRunner{db: db},
		testRules(),
	)
	if err != nil {
		t.Fatalf("building service: %v", err)
	}
	return svc
}

func seedProduct(t *testing.T, db *gorm.DB, name string, priceCents, stock int) *models.Product {
	t.Helper()

	product := &models.Product{
		ID:         uuid.New(),
		Name:       name,
		ImageURL:   "https://cdn.example.com/" + name + ".jpg",
		PriceCents: priceCents,
		Stock:      stock,
		IsActive:   true,
	}
	if err := db.Create(product).Error; err != nil {
		t.Fatalf("seeding product: %v", err)
	}
	return product
}

func seedCart(t *testing.T, db *gorm.DB, userID uuid.UUID, lines map[uuid.UUID]int) {
	t.Helper()

	repo := cart.NewRepository(db)
	ctx := context.Background()
	record, err := repo.FindOrCreateByUser(ctx, userID)
	if err != nil {
		t.Fatalf("creating cart: %v", err)
	}
	for productID, quantity := range lines {
		if err := repo.IncrementItem(ctx, record.ID, productID, quantity); err != nil {
			t.Fatalf("seeding cart item: %v", err)
		}
	}
}

func TestPlaceOrderSnapshotsCartAndClears(t *testing.T) {
	db := setupCheckoutTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	product := seedProduct(t, db, "checkout-basic", 1000, 10)
	userID := uuid.New()
	seedCart(t, db, userID, map[uuid.UUID]int{product.ID: 2})

	result, err := svc.PlaceOrder(ctx, userID, PlaceOrderInput{
		PaymentMethod:   enums.PaymentMethodCashOnDelivery,
		ShippingAddress: testAddress(),
	})
	if err != nil {
		t.Fatalf("place order: %v", err)
	}

	order := result.Order
	if order.Status != enums.OrderStatusCreated {
		t.Fatalf("expected created status, got %s", order.Status)
	}
	if order.Paid {
		t.Fatal("expected new order unpaid")
	}
	if order.ItemsPriceCents != 2000 || order.TaxPriceCents != 160 || order.ShippingPriceCents != 1000 || order.TotalPriceCents != 3160 {
		t.Fatalf("unexpected totals: %+v", order)
	}
	if len(order.Lines) != 1 || order.Lines[0].Quantity != 2 || order.Lines[0].UnitPriceCents != 1000 {
		t.Fatalf("unexpected lines: %+v", order.Lines)
	}

	// The persisted order carries the snapshot too.
	persisted, err := orders.NewRepository(db).GetByID(ctx, order.ID)
	if err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if len(persisted.Lines) != 1 || persisted.Lines[0].Name != "checkout-basic" {
		t.Fatalf("unexpected persisted lines: %+v", persisted.Lines)
	}

	record, err := cart.NewRepository(db).FindByUser(ctx, userID)
	if err != nil {
		t.Fatalf("reload cart: %v", err)
	}
	rows, err := cart.NewRepository(db).LoadLines(ctx, record.ID)
	if err != nil {
		t.Fatalf("load cart lines: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected cart cleared, got %+v", rows)
	}
}

func TestPlaceOrderLaterCatalogEditsDoNotTouchSnapshot(t *testing.T) {
	db := setupCheckoutTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	product := seedProduct(t, db, "checkout-snapshot", 1500, 10)
	userID := uuid.New()
	seedCart(t, db, userID, map[uuid.UUID]int{product.ID: 1})

	result, err := svc.PlaceOrder(ctx, userID, PlaceOrderInput{
		PaymentMethod:   enums.PaymentMethodCard,
		ShippingAddress: testAddress(),
	})
	if err != nil {
		t.Fatalf("place order: %v", err)
	}

	if err := db.Model(product).Updates(map[string]any{"price_cents": 9999, "name": "renamed"}).Error; err != nil {
		t.Fatalf("editing product: %v", err)
	}

	persisted, err := orders.NewRepository(db).GetByID(ctx, result.Order.ID)
	if err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if persisted.Lines[0].UnitPriceCents != 1500 || persisted.Lines[0].Name != "checkout-snapshot" {
		t.Fatalf("snapshot changed after catalog edit: %+v", persisted.Lines[0])
	}
}

func TestPlaceOrderClampsToCurrentStock(t *testing.T) {
	db := setupCheckoutTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	product := seedProduct(t, db, "checkout-clamp", 1000, 10)
	userID := uuid.New()
	seedCart(t, db, userID, map[uuid.UUID]int{product.ID: 5})

	// Stock dropped between add-to-cart and checkout.
	if err := db.Model(product).Update("stock", 3).Error; err != nil {
		t.Fatalf("reducing stock: %v", err)
	}

	result, err := svc.PlaceOrder(ctx, userID, PlaceOrderInput{
		PaymentMethod:   enums.PaymentMethodCashOnDelivery,
		ShippingAddress: testAddress(),
	})
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	if len(result.Clamped) != 1 || result.Clamped[0].FinalQuantity != 3 {
		t.Fatalf("expected clamp notice to 3, got %+v", result.Clamped)
	}
	if result.Order.Lines[0].Quantity != 3 {
		t.Fatalf("expected ordered quantity 3, got %d", result.Order.Lines[0].Quantity)
	}
}

func TestPlaceOrderEmptyCart(t *testing.T) {
	db := setupCheckoutTestDB(t)
	svc := newTestService(t, db)

	_, err := svc.PlaceOrder(context.Background(), uuid.New(), PlaceOrderInput{
		PaymentMethod:   enums.PaymentMethodCashOnDelivery,
		ShippingAddress: testAddress(),
	})
	if err == nil {
		t.Fatal("expected error for empty cart")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error code: %v", err)
	}
}

func TestPlaceOrderIncompleteAddress(t *testing.T) {
	db := setupCheckoutTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	product := seedProduct(t, db, "checkout-address", 1000, 10)
	userID := uuid.New()
	seedCart(t, db, userID, map[uuid.UUID]int{product.ID: 1})

	_, err := svc.PlaceOrder(ctx, userID, PlaceOrderInput{
		PaymentMethod:   enums.PaymentMethodCashOnDelivery,
		ShippingAddress: types.Address{Line1: "500 Market St"},
	})
	if err == nil {
		t.Fatal("expected error for incomplete address")
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error code: %v", err)
	}

	// The cart must survive a rejected checkout.
	record, err := cart.NewRepository(db).FindByUser(ctx, userID)
	if err != nil {
		t.Fatalf("reload cart: %v", err)
	}
	rows, err := cart.NewRepository(db).LoadLines(ctx, record.ID)
	if err != nil {
		t.Fatalf("load cart lines: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected cart retained, got %+v", rows)
	}
}

func TestPlaceOrderFreeShippingThreshold(t *testing.T) {
	db := setupCheckoutTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	product := seedProduct(t, db, "checkout-free-shipping", 3000, 10)
	userID := uuid.New()
	seedCart(t, db, userID, map[uuid.UUID]int{product.ID: 2})

	result, err := svc.PlaceOrder(ctx, userID, PlaceOrderInput{
		PaymentMethod:   enums.PaymentMethodBankTransfer,
		ShippingAddress: testAddress(),
	})
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	if result.Order.ShippingPriceCents != 0 {
		t.Fatalf("expected free shipping, got %d", result.Order.ShippingPriceCents)
	}
	if result.Order.TotalPriceCents != result.Order.ItemsPriceCents+result.Order.TaxPriceCents {
		t.Fatalf("total does not sum components: %+v", result.Order)
	}
}
