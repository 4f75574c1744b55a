package cart

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/luisromero-dev/storefront-backend/internal/catalog"
	pkgerrors "github.com/luisromero-dev/storefront-backend/pkg/errors"
)

// ClampNotice reports one merge line whose quantity was reduced to the
// available stock.
type ClampNotice struct {
	ProductID         uuid.UUID `json:"product_id"`
	RequestedQuantity int       `json:"requested_quantity"`
	FinalQuantity     int       `json:"final_quantity"`
	AvailableStock    int       `json:"available_stock"`
}

// MergeResult is the outcome of folding a guest cart into a user cart.
// Dropped lists guest products that no longer exist in the catalog.
type MergeResult struct {
	Cart    *Snapshot     `json:"cart"`
	Clamped []ClampNotice `json:"clamped,omitempty"`
	Dropped []uuid.UUID   `json:"dropped,omitempty"`
}

// Reconciler folds an anonymous cart into the owner's persisted cart at
// sign-in. Quantities for a shared product are summed and clamped to stock.
// The guest cart is deleted only after the database merge commits, so a
// failed merge leaves the guest cart intact for retry.
type Reconciler struct {
	users   *UserStore
	guests  *GuestStore
	repo    Repository
	catalog catalog.Repository
	tx      txRunner
}

// NewReconciler wires the guest-to-user cart merge.
func NewReconciler(users *UserStore, guests *GuestStore, repo Repository, catalogRepo catalog.Repository, tx txRunner) (*Reconciler, error) {
	if users == nil {
		return nil, fmt.Errorf("user store is required")
	}
	if guests == nil {
		return nil, fmt.Errorf("guest store is required")
	}
	if repo == nil {
		return nil, fmt.Errorf("cart repository is required")
	}
	if catalogRepo == nil {
		return nil, fmt.Errorf("catalog repository is required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner is required")
	}
	return &Reconciler{users: users, guests: guests, repo: repo, catalog: catalogRepo, tx: tx}, nil
}

// Merge applies every guest line to the user cart in a single transaction.
func (r *Reconciler) Merge(ctx context.Context, guestToken string, userID uuid.UUID) (*MergeResult, error) {
	if guestToken == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "guest token is required")
	}

	guest, err := r.guests.Get(ctx, guestToken)
	if err != nil {
		return nil, err
	}

	result := &MergeResult{}
	if len(guest.Lines) > 0 {
		err = r.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := r.repo.WithTx(tx)
			loader := r.catalog.WithTx(tx)

			cart, err := repo.FindOrCreateByUser(ctx, userID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve cart")
			}

			for _, line := range guest.Lines {
				product, err := loader.GetProduct(ctx, line.ProductID)
				if err != nil {
					if perr := pkgerrors.As(err); perr != nil && perr.Code() == pkgerrors.CodeNotFound {
						result.Dropped = append(result.Dropped, line.ProductID)
						continue
					}
					return err
				}

				if err := repo.IncrementItem(ctx, cart.ID, line.ProductID, line.Quantity); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "merge cart item")
				}

				item, err := repo.GetItem(ctx, cart.ID, line.ProductID)
				if err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read merged item")
				}

				final, clamped := clampToStock(item.Quantity, product.Stock)
				if !clamped {
					continue
				}
				if final == 0 {
					if err := repo.DeleteItem(ctx, cart.ID, line.ProductID); err != nil {
						return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove merged item")
					}
				} else if err := repo.SetItemQuantity(ctx, cart.ID, line.ProductID, final); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clamp merged item")
				}
				result.Clamped = append(result.Clamped, ClampNotice{
					ProductID:         line.ProductID,
					RequestedQuantity: item.Quantity,
					FinalQuantity:     final,
					AvailableStock:    product.Stock,
				})
			}
			return nil
		})
		if err != nil {
			return nil, err
		}

		// The merge is committed; losing the guest cart now is acceptable,
		// keeping it would double quantities on a retried merge.
		if err := r.guests.Clear(ctx, guestToken); err != nil {
			return nil, err
		}
	}

	merged, err := r.users.Get(ctx, userID.String())
	if err != nil {
		return nil, err
	}
	result.Cart = merged
	return result, nil
}
