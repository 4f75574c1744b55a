package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/luisromero-dev/storefront-backend/pkg/enums"
)

// User represents the canonical identity entity. Credential material lives
// with the auth collaborator; this record only carries what the cart and
// order subsystem needs to scope ownership and authorize transitions.
type User struct {
	ID          uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Email       string         `gorm:"column:email;type:text;not null;uniqueIndex"`
	FirstName   string         `gorm:"column:first_name;not null"`
	LastName    string         `gorm:"column:last_name;not null"`
	Role        enums.UserRole `gorm:"column:role;type:text;not null;default:'customer'"`
	IsActive    bool           `gorm:"column:is_active;not null;default:true"`
	LastLoginAt *time.Time     `gorm:"column:last_login_at"`
	CreatedAt   time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
