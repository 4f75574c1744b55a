package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/luisromero-dev/storefront-backend/internal/catalog"
	pkgerrors "github.com/luisromero-dev/storefront-backend/pkg/errors"
	pkgredis "github.com/luisromero-dev/storefront-backend/pkg/redis"
)

// guestStorage is the slice of the redis client the guest store consumes:
// one hash per guest token, one field per product.
type guestStorage interface {
	HGet(ctx context.Context, key, field string) (string, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HSet(ctx context.Context, key string, pairs ...any) error
	HDel(ctx context.Context, key string, fields ...string) error
	Del(ctx context.Context, keys ...string) error
	Expire(ctx context.Context, key string, ttl time.Duration) error
	GuestCartKey(guestToken string) string
}

// GuestStore keeps anonymous carts in redis, keyed by the caller's guest
// session token. Each line carries the product fields captured at add time;
// the authoritative price is re-resolved when the cart is merged or checked
// out. The hash TTL is refreshed on every mutation.
type GuestStore struct {
	storage guestStorage
	catalog catalog.Loader
	ttl     time.Duration
}

// NewGuestStore wires the anonymous cart store.
func NewGuestStore(storage guestStorage, catalogLoader catalog.Loader, ttl time.Duration) (*GuestStore, error) {
	if storage == nil {
		return nil, fmt.Errorf("guest cart storage is required")
	}
	if catalogLoader == nil {
		return nil, fmt.Errorf("catalog loader is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("guest cart ttl must be positive")
	}
	return &GuestStore{storage: storage, catalog: catalogLoader, ttl: ttl}, nil
}

func (s *GuestStore) Get(ctx context.Context, owner string) (*Snapshot, error) {
	if owner == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "guest token is required")
	}

	fields, err := s.storage.HGetAll(ctx, s.storage.GuestCartKey(owner))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load guest cart")
	}

	lines := make([]LineSnapshot, 0, len(fields))
	for _, raw := range fields {
		var line LineSnapshot
		if err := json.Unmarshal([]byte(raw), &line); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode guest cart line")
		}
		lines = append(lines, line)
	}
	return &Snapshot{Lines: lines}, nil
}

func (s *GuestStore) AddItem(ctx context.Context, owner string, productID uuid.UUID, quantity int) (*MutationResult, error) {
	if owner == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "guest token is required")
	}
	if quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	key := s.storage.GuestCartKey(owner)
	current := 0
	raw, err := s.storage.HGet(ctx, key, productID.String())
	if err != nil && !pkgredis.IsNil(err) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load guest cart line")
	}
	if err == nil {
		var existing LineSnapshot
		if err := json.Unmarshal([]byte(raw), &existing); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode guest cart line")
		}
		current = existing.Quantity
	}

	final, clamped := clampToStock(current+quantity, product.Stock)
	line := LineSnapshot{
		ProductID:      productID,
		Name:           product.Name,
		ImageURL:       product.ImageURL,
		UnitPriceCents: product.PriceCents,
		Quantity:       final,
	}

	if final == 0 {
		if err := s.storage.HDel(ctx, key, productID.String()); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove guest cart line")
		}
		return &MutationResult{Line: line, Clamped: clamped, AvailableStock: product.Stock, Removed: true}, nil
	}

	if err := s.writeLine(ctx, key, line); err != nil {
		return nil, err
	}
	return &MutationResult{Line: line, Clamped: clamped, AvailableStock: product.Stock}, nil
}

func (s *GuestStore) UpdateQuantity(ctx context.Context, owner string, productID uuid.UUID, quantity int) (*MutationResult, error) {
	if owner == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "guest token is required")
	}
	if quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must not be negative")
	}

	key := s.storage.GuestCartKey(owner)
	if _, err := s.storage.HGet(ctx, key, productID.String()); err != nil {
		if pkgredis.IsNil(err) {
			// Quantity zero means remove, and removing an absent line is a
			// no-op, not an error.
			if quantity == 0 {
				return &MutationResult{Line: LineSnapshot{ProductID: productID}, Removed: true}, nil
			}
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load guest cart line")
	}

	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	if quantity == 0 {
		if err := s.storage.HDel(ctx, key, productID.String()); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove guest cart line")
		}
		return &MutationResult{
			Line: LineSnapshot{
				ProductID:      productID,
				Name:           product.Name,
				ImageURL:       product.ImageURL,
				UnitPriceCents: product.PriceCents,
			},
			AvailableStock: product.Stock,
			Removed:        true,
		}, nil
	}

	final, clamped := clampToStock(quantity, product.Stock)
	line := LineSnapshot{
		ProductID:      productID,
		Name:           product.Name,
		ImageURL:       product.ImageURL,
		UnitPriceCents: product.PriceCents,
		Quantity:       final,
	}

	if final == 0 {
		if err := s.storage.HDel(ctx, key, productID.String()); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove guest cart line")
		}
		return &MutationResult{Line: line, Clamped: clamped, AvailableStock: product.Stock, Removed: true}, nil
	}

	if err := s.writeLine(ctx, key, line); err != nil {
		return nil, err
	}
	return &MutationResult{Line: line, Clamped: clamped, AvailableStock: product.Stock}, nil
}

func (s *GuestStore) RemoveItem(ctx context.Context, owner string, productID uuid.UUID) error {
	if owner == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "guest token is required")
	}
	key := s.storage.GuestCartKey(owner)
	if err := s.storage.HDel(ctx, key, productID.String()); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove guest cart line")
	}
	return nil
}

func (s *GuestStore) Clear(ctx context.Context, owner string) error {
	if owner == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "guest token is required")
	}
	if err := s.storage.Del(ctx, s.storage.GuestCartKey(owner)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear guest cart")
	}
	return nil
}

func (s *GuestStore) writeLine(ctx context.Context, key string, line LineSnapshot) error {
	encoded, err := json.Marshal(line)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode guest cart line")
	}
	if err := s.storage.HSet(ctx, key, line.ProductID.String(), string(encoded)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write guest cart line")
	}
	if err := s.storage.Expire(ctx, key, s.ttl); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "refresh guest cart ttl")
	}
	return nil
}
