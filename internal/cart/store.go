package cart

import (
	"context"

	"github.com/google/uuid"
)

// LineSnapshot is one product-and-quantity entry of a cart, resolved against
// the catalog (user carts) or the snapshot captured at add time (guest carts).
type LineSnapshot struct {
	ProductID      uuid.UUID `json:"product_id"`
	Name           string    `json:"name"`
	ImageURL       string    `json:"image_url"`
	UnitPriceCents int       `json:"unit_price_cents"`
	Quantity       int       `json:"quantity"`
}

// Snapshot is the full cart contents at one point in time. Line order is not
// meaningful; a cart holds at most one line per product.
type Snapshot struct {
	Lines []LineSnapshot `json:"lines"`
}

// MutationResult reports the final state of the touched line. Clamped is set
// when the requested quantity exceeded the available stock and the store
// reduced it instead of rejecting the operation; the caller can notify the
// user without failing the flow.
type MutationResult struct {
	Line           LineSnapshot `json:"line"`
	Clamped        bool         `json:"clamped"`
	AvailableStock int          `json:"available_stock"`
	Removed        bool         `json:"removed"`
}

// Store is the single cart surface; the guest and user implementations are
// selected by authentication state. The owner key is the authenticated user
// ID for user carts or the guest session token for anonymous carts.
//
// Every operation is idempotent with respect to final state.
type Store interface {
	Get(ctx context.Context, owner string) (*Snapshot, error)
	AddItem(ctx context.Context, owner string, productID uuid.UUID, quantity int) (*MutationResult, error)
	UpdateQuantity(ctx context.Context, owner string, productID uuid.UUID, quantity int) (*MutationResult, error)
	RemoveItem(ctx context.Context, owner string, productID uuid.UUID) error
	Clear(ctx context.Context, owner string) error
}

func clampToStock(requested, stock int) (int, bool) {
	if stock < 0 {
		stock = 0
	}
	if requested > stock {
		return stock, true
	}
	return requested, false
}
