package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/luisromero-dev/storefront-backend/pkg/db/models"
	"github.com/luisromero-dev/storefront-backend/pkg/enums"
	"github.com/luisromero-dev/storefront-backend/pkg/pagination"
	"github.com/luisromero-dev/storefront-backend/pkg/types"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	users := `
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  first_name TEXT NOT NULL,
  last_name TEXT NOT NULL,
  role TEXT NOT NULL DEFAULT 'customer',
  is_active INTEGER NOT NULL DEFAULT 1,
  last_login_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	orders := `
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
);`
	orderLines := `
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
);`
	require.NoError(t, db.Exec(users).Error)
	require.NoError(t, db.Exec(orders).Error)
	require.NoError(t, db.Exec(orderLines).Error)
	return db
}

func testAddress() types.Address {
	return types.Address{
		Line1:      "500 Market St",
		City:       "Springfield",
		PostalCode: "62701",
		Country:    "US",
	}
}

func newUser(t *testing.T, db *gorm.DB, role enums.UserRole) *models.User {
	t.Helper()

	user := &models.User{
		ID:        uuid.New(),
		Email:     uuid.NewString() + "@example.com",
		FirstName: "Test",
		LastName:  "User",
		Role:      role,
		IsActive:  true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func newOrder(t *testing.T, db *gorm.DB, userID uuid.UUID, status enums.OrderStatus, created time.Time) *models.Order {
	t.Helper()
	return newOrderWithMethod(t, db, userID, status, created, enums.PaymentMethodCashOnDelivery)
}

func newOrderWithMethod(t *testing.T, db *gorm.DB, userID uuid.UUID, status enums.OrderStatus, created time.Time, method enums.PaymentMethod) *models.Order {
	t.Helper()

	order := &models.Order{
		ID:                 uuid.New(),
		UserID:             userID,
		Status:             status,
		PaymentMethod:      method,
		ShippingAddress:    testAddress(),
		ItemsPriceCents:    2000,
		TaxPriceCents:      160,
		ShippingPriceCents: 1000,
		TotalPriceCents:    3160,
		CreatedAt:          created,
		UpdatedAt:          created,
		Lines: []models.OrderLine{{
			ID:             uuid.New(),
			ProductID:      uuid.New(),
			Name:           "Test Item",
			ImageURL:       "https://cdn.example.com/item.jpg",
			UnitPriceCents: 1000,
			Quantity:       2,
			LineTotalCents: 2000,
		}},
	}
	require.NoError(t, db.Create(order).Error)
	return order
}

func TestRepositoryGetByIDPreloadsLines(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	customer := newUser(t, db, enums.UserRoleCustomer)
	created := newOrder(t, db, customer.ID, enums.OrderStatusCreated, time.Now().UTC())

	got, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, got.Lines, 1)
	assert.Equal(t, "Test Item", got.Lines[0].Name)
	assert.Equal(t, 3160, got.TotalPriceCents)
}

func TestRepositoryListByUserPagination(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	customer := newUser(t, db, enums.UserRoleCustomer)
	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		newOrder(t, db, customer.ID, enums.OrderStatusCreated, base.Add(time.Duration(i)*time.Minute))
	}

	first, next, err := repo.ListByUser(ctx, customer.ID, pagination.Params{Limit: 3}, ListFilters{})
	require.NoError(t, err)
	require.Len(t, first, 3)
	require.NotEmpty(t, next)

	second, last, err := repo.ListByUser(ctx, customer.ID, pagination.Params{Limit: 3, Cursor: next}, ListFilters{})
	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.Empty(t, last)

	// Newest first, no overlap across pages.
	seen := map[uuid.UUID]bool{}
	for _, order := range append(first, second...) {
		require.False(t, seen[order.ID])
		seen[order.ID] = true
	}
	assert.True(t, first[0].CreatedAt.After(first[2].CreatedAt))
}

func TestRepositoryListByUserStatusFilter(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	customer := newUser(t, db, enums.UserRoleCustomer)
	base := time.Now().UTC().Add(-time.Hour)
	newOrder(t, db, customer.ID, enums.OrderStatusCreated, base)
	newOrder(t, db, customer.ID, enums.OrderStatusDelivered, base.Add(time.Minute))
	newOrder(t, db, customer.ID, enums.OrderStatusDelivered, base.Add(2*time.Minute))

	delivered := enums.OrderStatusDelivered
	rows, next, err := repo.ListByUser(ctx, customer.ID, pagination.Params{Limit: 10}, ListFilters{Status: &delivered})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Empty(t, next)
	for _, order := range rows {
		assert.Equal(t, enums.OrderStatusDelivered, order.Status)
	}
}

func TestRepositoryAdvanceStatusCompareAndSet(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	customer := newUser(t, db, enums.UserRoleCustomer)
	order := newOrder(t, db, customer.ID, enums.OrderStatusCreated, time.Now().UTC())
	courierID := uuid.New()

	ok, err := repo.AdvanceStatus(ctx, order.ID, enums.OrderStatusCreated, map[string]any{
		"status":     enums.OrderStatusAssigned,
		"courier_id": courierID,
	})
	require.NoError(t, err)
	assert.True(t, ok)

	// Same precondition again: the first writer already moved the row.
	ok, err = repo.AdvanceStatus(ctx, order.ID, enums.OrderStatusCreated, map[string]any{
		"status": enums.OrderStatusAssigned,
	})
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusAssigned, got.Status)
	require.NotNil(t, got.CourierID)
	assert.Equal(t, courierID, *got.CourierID)
}

func TestRepositoryMarkPaidOnce(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	customer := newUser(t, db, enums.UserRoleCustomer)
	order := newOrder(t, db, customer.ID, enums.OrderStatusCreated, time.Now().UTC())

	ok, err := repo.MarkPaid(ctx, order.ID, time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.MarkPaid(ctx, order.ID, time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, got.Paid)
	require.NotNil(t, got.PaidAt)
}

func TestRepositoryListUnassigned(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	customer := newUser(t, db, enums.UserRoleCustomer)
	waiting := newOrder(t, db, customer.ID, enums.OrderStatusCreated, time.Now().UTC())
	assigned := newOrder(t, db, customer.ID, enums.OrderStatusCreated, time.Now().UTC())

	courierID := uuid.New()
	ok, err := repo.AdvanceStatus(ctx, assigned.ID, enums.OrderStatusCreated, map[string]any{
		"status":     enums.OrderStatusAssigned,
		"courier_id": courierID,
	})
	require.NoError(t, err)
	require.True(t, ok)

	rows, _, err := repo.ListUnassigned(ctx, pagination.Params{})
	require.NoError(t, err)

	ids := map[uuid.UUID]bool{}
	for _, row := range rows {
		ids[row.ID] = true
	}
	assert.True(t, ids[waiting.ID])
	assert.False(t, ids[assigned.ID])
}
