package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/luisromero-dev/storefront-backend/pkg/config"
	pkgerrors "github.com/luisromero-dev/storefront-backend/pkg/errors"
)

// Line is the slice of a cart the engine needs: a unit price and a quantity.
type Line struct {
	UnitPriceCents int
	Quantity       int
}

// Rules carries the business configuration the totals derive from.
type Rules struct {
	TaxRate                    decimal.Decimal
	FreeShippingThresholdCents int
	ShippingFeeCents           int
}

// Totals is the fully derived price breakdown for a cart snapshot.
// TotalPriceCents is always exactly the sum of the three components.
type Totals struct {
	ItemsPriceCents    int `json:"items_price_cents"`
	TaxPriceCents      int `json:"tax_price_cents"`
	ShippingPriceCents int `json:"shipping_price_cents"`
	TotalPriceCents    int `json:"total_price_cents"`
}

// RulesFromConfig converts the env-sourced pricing configuration into
// engine rules.
func RulesFromConfig(cfg config.PricingConfig) (Rules, error) {
	rate, err := cfg.Rate()
	if err != nil {
		return Rules{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "pricing configuration invalid")
	}
	return Rules{
		TaxRate:                    rate,
		FreeShippingThresholdCents: cfg.FreeShippingThresholdCents,
		ShippingFeeCents:           cfg.ShippingFeeCents,
	}, nil
}

// ComputeTotals derives the price breakdown for the given lines. It is pure:
// identical inputs always produce identical totals, which keeps checkout
// amounts reproducible independent of any caller state.
//
// Tax is computed on the items subtotal at the configured rate and rounded
// to whole cents, half up. Shipping is waived once the items subtotal
// reaches the free-shipping threshold.
func ComputeTotals(lines []Line, rules Rules) (Totals, error) {
	if len(lines) == 0 {
		return Totals{}, pkgerrors.New(pkgerrors.CodeValidation, "cart has no lines")
	}

	items := 0
	for _, line := range lines {
		if line.Quantity <= 0 {
			return Totals{}, pkgerrors.New(pkgerrors.CodeValidation, "line quantity must be positive").
				WithDetails(map[string]any{"quantity": line.Quantity})
		}
		if line.UnitPriceCents < 0 {
			return Totals{}, pkgerrors.New(pkgerrors.CodeValidation, "line unit price cannot be negative")
		}
		items += line.UnitPriceCents * line.Quantity
	}

	tax := int(decimal.NewFromInt(int64(items)).
		Mul(rules.TaxRate).
		Round(0).
		IntPart())

	shipping := rules.ShippingFeeCents
	if items >= rules.FreeShippingThresholdCents {
		shipping = 0
	}

	return Totals{
		ItemsPriceCents:    items,
		TaxPriceCents:      tax,
		ShippingPriceCents: shipping,
		TotalPriceCents:    items + tax + shipping,
	}, nil
}
