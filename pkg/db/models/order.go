package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/luisromero-dev/storefront-backend/pkg/enums"
	"github.com/luisromero-dev/storefront-backend/pkg/types"
)

// Order is immutable once created except for the delivery-status and payment
// fields, which are mutated solely through the order service's transition
// operations. Line items, prices, and the shipping address are snapshots
// taken at creation time and never re-derived from the live catalog.
type Order struct {
	ID                 uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID             uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index" json:"user_id"`
	CourierID          *uuid.UUID          `gorm:"column:courier_id;type:uuid;index" json:"courier_id,omitempty"`
	Status             enums.OrderStatus   `gorm:"column:status;type:text;not null;default:'created'" json:"status"`
	PaymentMethod      enums.PaymentMethod `gorm:"column:payment_method;type:text;not null" json:"payment_method"`
	ShippingAddress    types.Address       `gorm:"column:shipping_address;type:jsonb;serializer:json" json:"shipping_address"`
	ItemsPriceCents    int                 `gorm:"column:items_price_cents;not null" json:"items_price_cents"`
	TaxPriceCents      int                 `gorm:"column:tax_price_cents;not null" json:"tax_price_cents"`
	ShippingPriceCents int                 `gorm:"column:shipping_price_cents;not null" json:"shipping_price_cents"`
	TotalPriceCents    int                 `gorm:"column:total_price_cents;not null" json:"total_price_cents"`
	Paid               bool                `gorm:"column:paid;not null;default:false" json:"paid"`
	PaidAt             *time.Time          `gorm:"column:paid_at" json:"paid_at,omitempty"`
	Delivered          bool                `gorm:"column:delivered;not null;default:false" json:"delivered"`
	DeliveredAt        *time.Time          `gorm:"column:delivered_at" json:"delivered_at,omitempty"`
	Lines              []OrderLine         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"lines"`
	CreatedAt          time.Time           `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time           `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}
