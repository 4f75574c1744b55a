package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/luisromero-dev/storefront-backend/internal/identity"
	"github.com/luisromero-dev/storefront-backend/pkg/db/models"
	"github.com/luisromero-dev/storefront-backend/pkg/enums"
	pkgerrors "github.com/luisromero-dev/storefront-backend/pkg/errors"
	"github.com/luisromero-dev/storefront-backend/pkg/pagination"
)

// Actor is the authenticated principal performing an order operation.
type Actor struct {
	ID   uuid.UUID
	Role enums.UserRole
}

// TransitionInput carries the optional payload of a delivery transition.
// CollectPayment records a cash-on-delivery collection together with the
// delivered advance; it is ignored on every other target.
type TransitionInput struct {
	CollectPayment bool
}

// Service owns the order lifecycle after checkout: reads, courier
// assignment, the forward-only delivery chain, and the payment flag.
type Service struct {
	repo  Repository
	users identity.Loader
	now   func() time.Time
}

// NewService wires the order service.
func NewService(repo Repository, users identity.Loader) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("order repository is required")
	}
	if users == nil {
		return nil, fmt.Errorf("user loader is required")
	}
	return &Service{repo: repo, users: users, now: time.Now}, nil
}

// Get returns one order. Customers see their own orders, couriers the ones
// assigned to them, sellers and admins any order.
func (s *Service) Get(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeRead(actor, order); err != nil {
		return nil, err
	}
	return order, nil
}

// ListMine returns the actor's own orders, newest first, optionally
// narrowed to a single status.
func (s *Service) ListMine(ctx context.Context, actor Actor, params pagination.Params, filters ListFilters) (*pagination.Page[models.Order], error) {
	rows, next, err := s.repo.ListByUser(ctx, actor.ID, params, filters)
	if err != nil {
		return nil, err
	}
	return &pagination.Page[models.Order]{Items: rows, NextCursor: next}, nil
}

// ListForCourier returns the orders assigned to the acting courier.
func (s *Service) ListForCourier(ctx context.Context, actor Actor, params pagination.Params) (*pagination.Page[models.Order], error) {
	if actor.Role != enums.UserRoleCourier && actor.Role != enums.UserRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "courier role required")
	}
	rows, next, err := s.repo.ListByCourier(ctx, actor.ID, params)
	if err != nil {
		return nil, err
	}
	return &pagination.Page[models.Order]{Items: rows, NextCursor: next}, nil
}

// ListUnassigned returns orders awaiting courier assignment.
func (s *Service) ListUnassigned(ctx context.Context, actor Actor, params pagination.Params) (*pagination.Page[models.Order], error) {
	if actor.Role != enums.UserRoleSeller && actor.Role != enums.UserRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "seller or admin role required")
	}
	rows, next, err := s.repo.ListUnassigned(ctx, params)
	if err != nil {
		return nil, err
	}
	return &pagination.Page[models.Order]{Items: rows, NextCursor: next}, nil
}

// Assign moves a created order to assigned and binds the courier. The target
// user must hold the courier role.
func (s *Service) Assign(ctx context.Context, actor Actor, orderID, courierID uuid.UUID) (*models.Order, error) {
	rule, _ := ruleFor(enums.OrderStatusAssigned)
	if !rule.allows(actor.Role) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "seller or admin role required")
	}

	courier, err := s.users.GetUser(ctx, courierID)
	if err != nil {
		return nil, err
	}
	if courier.Role != enums.UserRoleCourier {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "assignee is not a courier").
			WithDetails(map[string]any{"user_id": courierID, "role": courier.Role})
	}

	ok, err := s.repo.AdvanceStatus(ctx, orderID, rule.from, map[string]any{
		"status":     enums.OrderStatusAssigned,
		"courier_id": courierID,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.conflictFor(ctx, orderID, enums.OrderStatusAssigned, rule.from)
	}
	return s.repo.GetByID(ctx, orderID)
}

// Transition advances the delivery chain one step. The acting courier must
// be the one bound to the order; admins may step in for any order.
func (s *Service) Transition(ctx context.Context, actor Actor, orderID uuid.UUID, target enums.OrderStatus, input TransitionInput) (*models.Order, error) {
	if target == enums.OrderStatusAssigned {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "assignment requires a courier id")
	}
	rule, ok := ruleFor(target)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown transition target").
			WithDetails(map[string]any{"target": target})
	}
	if !rule.allows(actor.Role) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "courier role required")
	}

	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status.IsTerminal() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order status does not permit this transition").
			WithDetails(map[string]any{
				"current":  order.Status,
				"expected": rule.from,
				"target":   target,
			})
	}
	if actor.Role == enums.UserRoleCourier {
		if order.CourierID == nil || *order.CourierID != actor.ID {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order is assigned to another courier")
		}
	}

	updates := map[string]any{"status": target}
	if target == enums.OrderStatusDelivered {
		now := s.now()
		updates["delivered"] = true
		updates["delivered_at"] = now
		if input.CollectPayment {
			// Couriers collect cash only; every other method is settled
			// out of band and confirmed through the admin pay flow.
			if order.PaymentMethod != enums.PaymentMethodCashOnDelivery {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, "cash collection applies only to cash on delivery orders").
					WithDetails(map[string]any{"payment_method": order.PaymentMethod})
			}
			if !order.Paid {
				updates["paid"] = true
				updates["paid_at"] = now
			}
		}
	}

	advanced, err := s.repo.AdvanceStatus(ctx, orderID, rule.from, updates)
	if err != nil {
		return nil, err
	}
	if !advanced {
		return nil, s.conflictFor(ctx, orderID, target, rule.from)
	}
	return s.repo.GetByID(ctx, orderID)
}

// MarkPaid records an out-of-band payment confirmation.
func (s *Service) MarkPaid(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Order, error) {
	if actor.Role != enums.UserRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}

	ok, err := s.repo.MarkPaid(ctx, orderID, s.now())
	if err != nil {
		return nil, err
	}
	if !ok {
		order, err := s.repo.GetByID(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if order.Paid {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is already paid")
		}
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment update did not apply")
	}
	return s.repo.GetByID(ctx, orderID)
}

func (s *Service) authorizeRead(actor Actor, order *models.Order) error {
	switch actor.Role {
	case enums.UserRoleAdmin, enums.UserRoleSeller:
		return nil
	case enums.UserRoleCourier:
		if order.CourierID != nil && *order.CourierID == actor.ID {
			return nil
		}
	case enums.UserRoleCustomer:
		if order.UserID == actor.ID {
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "not allowed to view this order")
}

// conflictFor distinguishes a missing order from a status mismatch after a
// compare-and-set update touched no rows.
func (s *Service) conflictFor(ctx context.Context, orderID uuid.UUID, target, expected enums.OrderStatus) error {
	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict, "order status does not permit this transition").
		WithDetails(map[string]any{
			"current":  order.Status,
			"expected": expected,
			"target":   target,
		})
}
