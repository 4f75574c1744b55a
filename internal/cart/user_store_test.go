package cart

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/luisromero-dev/storefront-backend/internal/catalog"
	pkgerrors "github.com/luisromero-dev/storefront-backend/pkg/errors"
)

type sqliteTxRunner struct {
	db *gorm.DB
}

func (s sqliteTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return s.db.WithContext(ctx).Transaction(fn)
}

func newTestUserStore(t *testing.T, db *gorm.DB) *UserStore {
	t.Helper()

	store, err := NewUserStore(NewRepository(db), catalog.NewRepository(db), sqliteTxRunner{db: db})
	if err != nil {
		t.Fatalf("building user store: %v", err)
	}
	return store
}

func TestUserStoreAddItemAccumulates(t *testing.T) {
	db := setupCartTestDB(t)
	store := newTestUserStore(t, db)
	ctx := context.Background()

	product := newProduct(t, db, "user-add", 1200, 10)
	owner := uuid.New().String()

	if _, err := store.AddItem(ctx, owner, product.ID, 1); err != nil {
		t.Fatalf("first add: %v", err)
	}
	res, err := store.AddItem(ctx, owner, product.ID, 2)
	if err != nil {
		t.Fatalf("second add: %v", err)
	}
	if res.Line.Quantity != 3 {
		t.Fatalf("expected quantity 3, got %d", res.Line.Quantity)
	}
	if res.Clamped {
		t.Fatal("expected no clamp within stock")
	}
	if res.Line.UnitPriceCents != 1200 {
		t.Fatalf("expected unit price 1200, got %d", res.Line.UnitPriceCents)
	}
}

func TestUserStoreAddItemClampsToStock(t *testing.T) {
	db := setupCartTestDB(t)
	store := newTestUserStore(t, db)
	ctx := context.Background()

	product := newProduct(t, db, "user-clamp", 500, 3)
	owner := uuid.New().String()

	res, err := store.AddItem(ctx, owner, product.ID, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Clamped {
		t.Fatal("expected clamp when request exceeds stock")
	}
	if res.Line.Quantity != 3 {
		t.Fatalf("expected clamped quantity 3, got %d", res.Line.Quantity)
	}
	if res.AvailableStock != 3 {
		t.Fatalf("expected available stock 3, got %d", res.AvailableStock)
	}

	snap, err := store.Get(ctx, owner)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snap.Lines) != 1 || snap.Lines[0].Quantity != 3 {
		t.Fatalf("expected persisted clamped line, got %+v", snap.Lines)
	}
}

func TestUserStoreAddItemRejectsNonPositiveQuantity(t *testing.T) {
	db := setupCartTestDB(t)
	store := newTestUserStore(t, db)

	_, err := store.AddItem(context.Background(), uuid.New().String(), uuid.New(), 0)
	if err == nil {
		t.Fatal("expected error for zero quantity")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error code: %v", err)
	}
}

func TestUserStoreAddItemUnknownProduct(t *testing.T) {
	db := setupCartTestDB(t)
	store := newTestUserStore(t, db)

	_, err := store.AddItem(context.Background(), uuid.New().String(), uuid.New(), 1)
	if err == nil {
		t.Fatal("expected error for missing product")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("unexpected error code: %v", err)
	}
}

func TestUserStoreUpdateQuantityZeroRemoves(t *testing.T) {
	db := setupCartTestDB(t)
	store := newTestUserStore(t, db)
	ctx := context.Background()

	product := newProduct(t, db, "user-update-zero", 900, 10)
	owner := uuid.New().String()

	if _, err := store.AddItem(ctx, owner, product.ID, 2); err != nil {
		t.Fatalf("add: %v", err)
	}
	res, err := store.UpdateQuantity(ctx, owner, product.ID, 0)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !res.Removed {
		t.Fatal("expected zero quantity to remove the line")
	}

	snap, err := store.Get(ctx, owner)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(snap.Lines) != 0 {
		t.Fatalf("expected empty cart, got %+v", snap.Lines)
	}
}

func TestUserStoreUpdateQuantityMissingLine(t *testing.T) {
	db := setupCartTestDB(t)
	store := newTestUserStore(t, db)

	product := newProduct(t, db, "user-update-missing", 900, 10)

	_, err := store.UpdateQuantity(context.Background(), uuid.New().String(), product.ID, 2)
	if err == nil {
		t.Fatal("expected error for missing line")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("unexpected error code: %v", err)
	}
}

func TestUserStoreUpdateQuantityZeroOnMissingLineIsNoOp(t *testing.T) {
	db := setupCartTestDB(t)
	store := newTestUserStore(t, db)

	product := newProduct(t, db, "user-update-zero-missing", 900, 10)

	result, err := store.UpdateQuantity(context.Background(), uuid.New().String(), product.ID, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Removed {
		t.Fatalf("expected removal result, got %+v", result)
	}
}

func TestUserStoreGetWithoutCart(t *testing.T) {
	db := setupCartTestDB(t)
	store := newTestUserStore(t, db)

	snap, err := store.Get(context.Background(), uuid.New().String())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snap.Lines) != 0 {
		t.Fatalf("expected empty snapshot, got %+v", snap.Lines)
	}
}

func TestUserStoreRemoveAndClearAreIdempotent(t *testing.T) {
	db := setupCartTestDB(t)
	store := newTestUserStore(t, db)
	ctx := context.Background()
	owner := uuid.New().String()

	if err := store.RemoveItem(ctx, owner, uuid.New()); err != nil {
		t.Fatalf("remove on missing cart: %v", err)
	}
	if err := store.Clear(ctx, owner); err != nil {
		t.Fatalf("clear on missing cart: %v", err)
	}
}
