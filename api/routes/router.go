package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/luisromero-dev/storefront-backend/api/controllers"
	cartcontrollers "github.com/luisromero-dev/storefront-backend/api/controllers/cart"
	ordercontrollers "github.com/luisromero-dev/storefront-backend/api/controllers/orders"
	"github.com/luisromero-dev/storefront-backend/api/middleware"
	cartsvc "github.com/luisromero-dev/storefront-backend/internal/cart"
	checkoutsvc "github.com/luisromero-dev/storefront-backend/internal/checkout"
	orderssvc "github.com/luisromero-dev/storefront-backend/internal/orders"
	"github.com/luisromero-dev/storefront-backend/pkg/auth/session"
	"github.com/luisromero-dev/storefront-backend/pkg/config"
	"github.com/luisromero-dev/storefront-backend/pkg/db"
	"github.com/luisromero-dev/storefront-backend/pkg/enums"
	"github.com/luisromero-dev/storefront-backend/pkg/logger"
	"github.com/luisromero-dev/storefront-backend/pkg/metrics"
	"github.com/luisromero-dev/storefront-backend/pkg/redis"
)

// Deps bundles everything the router mounts.
type Deps struct {
	Config      *config.Config
	Logger      *logger.Logger
	DB          db.Pinger
	Redis       *redis.Client
	Sessions    session.AccessSessionChecker
	HTTPMetrics *metrics.HTTPMetrics
	Gatherer    prometheus.Gatherer
	UserCarts   *cartsvc.UserStore
	GuestCarts  *cartsvc.GuestStore
	Reconciler  *cartsvc.Reconciler
	Checkout    *checkoutsvc.Service
	Orders      *orderssvc.Service
}

// NewRouter assembles the HTTP surface.
func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(deps.HTTPMetrics),
		middleware.CORS(),
	)

	pingers := []controllers.Pinger{deps.DB}
	if deps.Redis != nil {
		pingers = append(pingers, deps.Redis)
	}
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, pingers...))
	})

	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	// Anonymous carts, keyed by the client-held guest token.
	r.Route("/api/v1/guest/cart", func(r chi.Router) {
		r.Use(middleware.GuestSession(logg))
		r.Get("/", cartcontrollers.Get(deps.GuestCarts, cartcontrollers.GuestOwner, logg))
		r.Delete("/", cartcontrollers.Clear(deps.GuestCarts, cartcontrollers.GuestOwner, logg))
		r.Post("/items", cartcontrollers.AddItem(deps.GuestCarts, cartcontrollers.GuestOwner, logg))
		r.Patch("/items/{productID}", cartcontrollers.UpdateItem(deps.GuestCarts, cartcontrollers.GuestOwner, logg))
		r.Delete("/items/{productID}", cartcontrollers.RemoveItem(deps.GuestCarts, cartcontrollers.GuestOwner, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, deps.Sessions, logg))

		var idempotencyStore redis.IdempotencyStore
		if deps.Redis != nil {
			idempotencyStore = deps.Redis
		}
		r.Use(middleware.Idempotency(idempotencyStore, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartcontrollers.Get(deps.UserCarts, cartcontrollers.UserOwner, logg))
			r.Delete("/", cartcontrollers.Clear(deps.UserCarts, cartcontrollers.UserOwner, logg))
			r.Post("/items", cartcontrollers.AddItem(deps.UserCarts, cartcontrollers.UserOwner, logg))
			r.Patch("/items/{productID}", cartcontrollers.UpdateItem(deps.UserCarts, cartcontrollers.UserOwner, logg))
			r.Delete("/items/{productID}", cartcontrollers.RemoveItem(deps.UserCarts, cartcontrollers.UserOwner, logg))
			r.With(middleware.GuestSession(logg)).Post("/merge", cartcontrollers.Merge(deps.Reconciler, logg))
		})

		r.Post("/checkout", controllers.Checkout(deps.Checkout, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", ordercontrollers.List(deps.Orders, logg))

			r.With(middleware.RequireRole(logg, enums.UserRoleSeller.String(), enums.UserRoleAdmin.String())).
				Get("/queue", ordercontrollers.Queue(deps.Orders, logg))

			r.Route("/{orderID}", func(r chi.Router) {
				r.Get("/", ordercontrollers.Get(deps.Orders, logg))

				r.With(middleware.RequireRole(logg, enums.UserRoleSeller.String(), enums.UserRoleAdmin.String())).
					Post("/assign", ordercontrollers.Assign(deps.Orders, logg))

				courierOnly := middleware.RequireRole(logg, enums.UserRoleCourier.String(), enums.UserRoleAdmin.String())
				r.With(courierOnly).Post("/pickup", ordercontrollers.Transition(deps.Orders, enums.OrderStatusPickedUp, logg))
				r.With(courierOnly).Post("/transit", ordercontrollers.Transition(deps.Orders, enums.OrderStatusInTransit, logg))
				r.With(courierOnly).Post("/deliver", ordercontrollers.Transition(deps.Orders, enums.OrderStatusDelivered, logg))

				r.With(middleware.RequireRole(logg, enums.UserRoleAdmin.String())).
					Post("/pay", ordercontrollers.MarkPaid(deps.Orders, logg))
			})
		})

		r.With(middleware.RequireRole(logg, enums.UserRoleCourier.String(), enums.UserRoleAdmin.String())).
			Get("/courier/orders", ordercontrollers.CourierList(deps.Orders, logg))
	})

	return r
}
