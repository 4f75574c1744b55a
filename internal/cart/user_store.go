package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/luisromero-dev/storefront-backend/internal/catalog"
	pkgerrors "github.com/luisromero-dev/storefront-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// UserStore keeps authenticated carts in the database. Quantity mutations run
// inside one transaction so the increment and the stock clamp are applied as
// a unit.
type UserStore struct {
	repo    Repository
	catalog catalog.Repository
	tx      txRunner
}

// NewUserStore wires the persisted cart store.
func NewUserStore(repo Repository, catalogRepo catalog.Repository, tx txRunner) (*UserStore, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository is required")
	}
	if catalogRepo == nil {
		return nil, fmt.Errorf("catalog repository is required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner is required")
	}
	return &UserStore{repo: repo, catalog: catalogRepo, tx: tx}, nil
}

func (s *UserStore) Get(ctx context.Context, owner string) (*Snapshot, error) {
	userID, err := parseOwnerID(owner)
	if err != nil {
		return nil, err
	}

	cart, err := s.repo.FindByUser(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return &Snapshot{Lines: []LineSnapshot{}}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	rows, err := s.repo.LoadLines(ctx, cart.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart lines")
	}

	lines := make([]LineSnapshot, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, LineSnapshot{
			ProductID:      row.ProductID,
			Name:           row.Name,
			ImageURL:       row.ImageURL,
			UnitPriceCents: row.PriceCents,
			Quantity:       row.Quantity,
		})
	}
	return &Snapshot{Lines: lines}, nil
}

func (s *UserStore) AddItem(ctx context.Context, owner string, productID uuid.UUID, quantity int) (*MutationResult, error) {
	userID, err := parseOwnerID(owner)
	if err != nil {
		return nil, err
	}
	if quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	var result *MutationResult
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		product, err := s.catalog.WithTx(tx).GetProduct(ctx, productID)
		if err != nil {
			return err
		}

		cart, err := repo.FindOrCreateByUser(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve cart")
		}

		if err := repo.IncrementItem(ctx, cart.ID, productID, quantity); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "add cart item")
		}

		item, err := repo.GetItem(ctx, cart.ID, productID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read cart item")
		}

		final, clamped := clampToStock(item.Quantity, product.Stock)
		if clamped {
			if final == 0 {
				if err := repo.DeleteItem(ctx, cart.ID, productID); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove clamped item")
				}
			} else if err := repo.SetItemQuantity(ctx, cart.ID, productID, final); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clamp cart item")
			}
		}

		result = &MutationResult{
			Line: LineSnapshot{
				ProductID:      productID,
				Name:           product.Name,
				ImageURL:       product.ImageURL,
				UnitPriceCents: product.PriceCents,
				Quantity:       final,
			},
			Clamped:        clamped,
			AvailableStock: product.Stock,
			Removed:        clamped && final == 0,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *UserStore) UpdateQuantity(ctx context.Context, owner string, productID uuid.UUID, quantity int) (*MutationResult, error) {
	userID, err := parseOwnerID(owner)
	if err != nil {
		return nil, err
	}
	if quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must not be negative")
	}

	var result *MutationResult
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		cart, err := repo.FindByUser(ctx, userID)
		if err != nil {
			if isNotFound(err) {
				if quantity == 0 {
					result = &MutationResult{Line: LineSnapshot{ProductID: productID}, Removed: true}
					return nil
				}
				return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}

		if _, err := repo.GetItem(ctx, cart.ID, productID); err != nil {
			if isNotFound(err) {
				// Quantity zero means remove, and removing an absent line
				// is a no-op, not an error.
				if quantity == 0 {
					result = &MutationResult{Line: LineSnapshot{ProductID: productID}, Removed: true}
					return nil
				}
				return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read cart item")
		}

		product, err := s.catalog.WithTx(tx).GetProduct(ctx, productID)
		if err != nil {
			return err
		}

		if quantity == 0 {
			if err := repo.DeleteItem(ctx, cart.ID, productID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove cart item")
			}
			result = &MutationResult{
				Line: LineSnapshot{
					ProductID:      productID,
					Name:           product.Name,
					ImageURL:       product.ImageURL,
					UnitPriceCents: product.PriceCents,
				},
				AvailableStock: product.Stock,
				Removed:        true,
			}
			return nil
		}

		final, clamped := clampToStock(quantity, product.Stock)
		if final == 0 {
			if err := repo.DeleteItem(ctx, cart.ID, productID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove clamped item")
			}
		} else if err := repo.SetItemQuantity(ctx, cart.ID, productID, final); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "set cart item quantity")
		}

		result = &MutationResult{
			Line: LineSnapshot{
				ProductID:      productID,
				Name:           product.Name,
				ImageURL:       product.ImageURL,
				UnitPriceCents: product.PriceCents,
				Quantity:       final,
			},
			Clamped:        clamped,
			AvailableStock: product.Stock,
			Removed:        final == 0,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *UserStore) RemoveItem(ctx context.Context, owner string, productID uuid.UUID) error {
	userID, err := parseOwnerID(owner)
	if err != nil {
		return err
	}

	cart, err := s.repo.FindByUser(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	if err := s.repo.DeleteItem(ctx, cart.ID, productID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove cart item")
	}
	return nil
}

func (s *UserStore) Clear(ctx context.Context, owner string) error {
	userID, err := parseOwnerID(owner)
	if err != nil {
		return err
	}

	cart, err := s.repo.FindByUser(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	if err := s.repo.ClearItems(ctx, cart.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	return nil
}

func parseOwnerID(owner string) (uuid.UUID, error) {
	id, err := uuid.Parse(owner)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid cart owner")
	}
	return id, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
