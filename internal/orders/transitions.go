package orders

import (
	"github.com/luisromero-dev/storefront-backend/pkg/enums"
)

// transitionRule binds a target delivery status to the status the order must
// currently hold and the roles allowed to trigger the advance. The chain is
// forward-only; there is no rule that moves an order backwards.
type transitionRule struct {
	from   enums.OrderStatus
	actors []enums.UserRole
}

var transitionRules = map[enums.OrderStatus]transitionRule{
	enums.OrderStatusAssigned: {
		from:   enums.OrderStatusCreated,
		actors: []enums.UserRole{enums.UserRoleSeller, enums.UserRoleAdmin},
	},
	enums.OrderStatusPickedUp: {
		from:   enums.OrderStatusAssigned,
		actors: []enums.UserRole{enums.UserRoleCourier, enums.UserRoleAdmin},
	},
	enums.OrderStatusInTransit: {
		from:   enums.OrderStatusPickedUp,
		actors: []enums.UserRole{enums.UserRoleCourier, enums.UserRoleAdmin},
	},
	enums.OrderStatusDelivered: {
		from:   enums.OrderStatusInTransit,
		actors: []enums.UserRole{enums.UserRoleCourier, enums.UserRoleAdmin},
	},
}

func ruleFor(target enums.OrderStatus) (transitionRule, bool) {
	rule, ok := transitionRules[target]
	return rule, ok
}

func (r transitionRule) allows(role enums.UserRole) bool {
	for _, candidate := range r.actors {
		if candidate == role {
			return true
		}
	}
	return false
}
