package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderLine captures the snapshot of each item within an order. Name, price,
// and image are copied from the catalog at creation so later catalog edits
// cannot retroactively alter historical orders.
type OrderLine struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID        uuid.UUID `gorm:"column:order_id;type:uuid;not null;index" json:"order_id"`
	ProductID      uuid.UUID `gorm:"column:product_id;type:uuid;not null" json:"product_id"`
	Name           string    `gorm:"column:name;not null" json:"name"`
	ImageURL       string    `gorm:"column:image_url;not null" json:"image_url"`
	UnitPriceCents int       `gorm:"column:unit_price_cents;not null" json:"unit_price_cents"`
	Quantity       int       `gorm:"column:quantity;not null" json:"quantity"`
	LineTotalCents int       `gorm:"column:line_total_cents;not null" json:"line_total_cents"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}
