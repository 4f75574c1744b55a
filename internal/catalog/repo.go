package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/luisromero-dev/storefront-backend/pkg/db/models"
	pkgerrors "github.com/luisromero-dev/storefront-backend/pkg/errors"
)

// Loader is the read-only catalog surface the cart and checkout services
// consume: current price, stock, name, and image for a product.
type Loader interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

// Repository extends Loader with transaction binding so stock checks and
// snapshots can share the caller's transaction.
type Repository interface {
	Loader
	WithTx(tx *gorm.DB) Repository
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a catalog loader bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Where("id = ? AND is_active = ?", id, true).
		First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return &product, nil
}
