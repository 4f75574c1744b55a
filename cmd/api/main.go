package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/luisromero-dev/storefront-backend/api/routes"
	"github.com/luisromero-dev/storefront-backend/internal/cart"
	"github.com/luisromero-dev/storefront-backend/internal/catalog"
	"github.com/luisromero-dev/storefront-backend/internal/checkout"
	"github.com/luisromero-dev/storefront-backend/internal/identity"
	"github.com/luisromero-dev/storefront-backend/internal/orders"
	"github.com/luisromero-dev/storefront-backend/internal/pricing"
	"github.com/luisromero-dev/storefront-backend/pkg/auth/session"
	"github.com/luisromero-dev/storefront-backend/pkg/config"
	"github.com/luisromero-dev/storefront-backend/pkg/db"
	"github.com/luisromero-dev/storefront-backend/pkg/logger"
	"github.com/luisromero-dev/storefront-backend/pkg/metrics"
	"github.com/luisromero-dev/storefront-backend/pkg/migrate"
	"github.com/luisromero-dev/storefront-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	cartRepo := cart.NewRepository(dbClient.DB())
	catalogRepo := catalog.NewRepository(dbClient.DB())
	ordersRepo := orders.NewRepository(dbClient.DB())
	usersRepo := identity.NewRepository(dbClient.DB())

	userCarts, err := cart.NewUserStore(cartRepo, catalogRepo, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create user cart store", err)
		os.Exit(1)
	}

	guestCarts, err := cart.NewGuestStore(redisClient, catalogRepo, cfg.GuestCart.TTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create guest cart store", err)
		os.Exit(1)
	}

	reconciler, err := cart.NewReconciler(userCarts, guestCarts, cartRepo, catalogRepo, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart reconciler", err)
		os.Exit(1)
	}

	rules, err := pricing.RulesFromConfig(cfg.Pricing)
	if err != nil {
		logg.Error(context.Background(), "failed to load pricing rules", err)
		os.Exit(1)
	}

	checkoutService, err := checkout.NewService(cartRepo, catalogRepo, ordersRepo, dbClient, rules)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	ordersService, err := orders.NewService(ordersRepo, usersRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	httpMetrics := metrics.NewHTTPMetrics(registry)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:      cfg,
			Logger:      logg,
			DB:          dbClient,
			Redis:       redisClient,
			Sessions:    sessionManager,
			HTTPMetrics: httpMetrics,
			Gatherer:    registry,
			UserCarts:   userCarts,
			GuestCarts:  guestCarts,
			Reconciler:  reconciler,
			Checkout:    checkoutService,
			Orders:      ordersService,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
