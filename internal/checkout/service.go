package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
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

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// PlaceOrderInput is what the buyer supplies at checkout; everything else on
// the order is derived from the cart and the catalog.
type PlaceOrderInput struct {
	PaymentMethod   enums.PaymentMethod
	ShippingAddress types.Address
}

// PlaceOrderResult carries the created order plus any adjustments applied to
// the cart on the way: quantities clamped to stock and products that left
// the catalog since they were added.
type PlaceOrderResult struct {
	Order   *models.Order      `json:"order"`
	Clamped []cart.ClampNotice `json:"clamped,omitempty"`
	Dropped []uuid.UUID        `json:"dropped,omitempty"`
}

// Service turns the authenticated user's cart into an order. The snapshot,
// totals, order creation, and cart clearing all commit in one transaction.
type Service struct {
	carts   cart.Repository
	catalog catalog.Repository
	orders  orders.Repository
	tx      txRunner
	rules   pricing.Rules
}

// NewService wires the checkout service.
func NewService(carts cart.Repository, catalogRepo catalog.Repository, ordersRepo orders.Repository, tx txRunner, rules pricing.Rules) (*Service, error) {
	if carts == nil {
		return nil, fmt.Errorf("cart repository is required")
	}
	if catalogRepo == nil {
		return nil, fmt.Errorf("catalog repository is required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("order repository is required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner is required")
	}
	return &Service{carts: carts, catalog: catalogRepo, orders: ordersRepo, tx: tx, rules: rules}, nil
}

// PlaceOrder validates the input, re-checks every cart line against the live
// catalog, snapshots the surviving lines, and creates the order with status
// created and payment pending.
func (s *Service) PlaceOrder(ctx context.Context, userID uuid.UUID, input PlaceOrderInput) (*PlaceOrderResult, error) {
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method").
			WithDetails(map[string]any{"payment_method": input.PaymentMethod})
	}
	if missing := input.ShippingAddress.MissingFields(); len(missing) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping address is incomplete").
			WithDetails(map[string]any{"missing_fields": missing})
	}

	result := &PlaceOrderResult{}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		cartRepo := s.carts.WithTx(tx)
		loader := s.catalog.WithTx(tx)

		record, err := cartRepo.FindByUser(ctx, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}

		rows, err := cartRepo.LoadLines(ctx, record.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart lines")
		}
		if len(rows) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
		}

		var orderLines []models.OrderLine
		var priceLines []pricing.Line
		for _, row := range rows {
			product, err := loader.GetProduct(ctx, row.ProductID)
			if err != nil {
				if perr := pkgerrors.As(err); perr != nil && perr.Code() == pkgerrors.CodeNotFound {
					result.Dropped = append(result.Dropped, row.ProductID)
					continue
				}
				return err
			}

			quantity, clamped := clampToStock(row.Quantity, product.Stock)
			if clamped {
				result.Clamped = append(result.Clamped, cart.ClampNotice{
					ProductID:         row.ProductID,
					RequestedQuantity: row.Quantity,
					FinalQuantity:     quantity,
					AvailableStock:    product.Stock,
				})
			}
			if quantity == 0 {
				continue
			}

			orderLines = append(orderLines, models.OrderLine{
				ID:             uuid.New(),
				ProductID:      product.ID,
				Name:           product.Name,
				ImageURL:       product.ImageURL,
				UnitPriceCents: product.PriceCents,
				Quantity:       quantity,
				LineTotalCents: product.PriceCents * quantity,
			})
			priceLines = append(priceLines, pricing.Line{
				UnitPriceCents: product.PriceCents,
				Quantity:       quantity,
			})
		}
		if len(orderLines) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart has no purchasable items")
		}

		totals, err := pricing.ComputeTotals(priceLines, s.rules)
		if err != nil {
			return err
		}

		order := &models.Order{
			ID:                 uuid.New(),
			UserID:             userID,
			Status:             enums.OrderStatusCreated,
			PaymentMethod:      input.PaymentMethod,
			ShippingAddress:    input.ShippingAddress,
			ItemsPriceCents:    totals.ItemsPriceCents,
			TaxPriceCents:      totals.TaxPriceCents,
			ShippingPriceCents: totals.ShippingPriceCents,
			TotalPriceCents:    totals.TotalPriceCents,
			Lines:              orderLines,
		}
		if err := s.orders.WithTx(tx).Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}

		if err := cartRepo.ClearItems(ctx, record.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
		}

		result.Order = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
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
