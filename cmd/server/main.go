package main

import (
    "log"
    "time"

    "github.com/joho/godotenv"
    "github.com/labstack/echo/v4"

    "github.com/AyushRai7/parkmate/internal/config"
    "github.com/AyushRai7/parkmate/internal/database"
    "github.com/AyushRai7/parkmate/internal/handler"
    "github.com/AyushRai7/parkmate/internal/middleware"
    "github.com/AyushRai7/parkmate/internal/payment"
    "github.com/AyushRai7/parkmate/internal/queue"
    "github.com/AyushRai7/parkmate/internal/repository"
    "github.com/AyushRai7/parkmate/internal/reservation"
    "github.com/AyushRai7/parkmate/internal/router"
)

func main() {
    // .env is optional; real deployments set the environment directly.
    _ = godotenv.Load()
    cfg := config.Load()

    db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
    if err != nil {
        log.Fatalf("database: %v", err)
    }
    defer db.Close()

    userRepo := repository.NewUserRepo(db)
    venueRepo := repository.NewVenueRepo(db)
    bookingRepo := repository.NewBookingRepo(db)

    engine := reservation.NewEngine(
        reservation.RunInTx(db),
        venueRepo,
        bookingRepo,
        time.Duration(cfg.HoldMin)*time.Minute,
    )

    gateway, err := payment.NewGateway(cfg.StripeSecretKey, cfg.CheckoutSuccessURL, cfg.CheckoutCancelURL, cfg.Currency)
    if err != nil {
        log.Fatalf("payment gateway: %v", err)
    }

    e := echo.New()
    e.HideBanner = true

    router.RegisterRoutes(e)
    router.RegisterPublic(e, handler.NewPublicHandler(venueRepo, bookingRepo))
    router.RegisterAuth(e, handler.NewAuthHandler(cfg, userRepo), cfg.JWTSecret)

    // Booking creation is the abuse-prone endpoint; it gets a per-user
    // token bucket backed by Redis.  Disabled automatically when the rate
    // limit config says so or Redis is absent.
    rlCfg := config.LoadRateLimitConfig()
    rateLimit := middleware.NewTokenBucket(rlCfg, config.NewRedisClient())

    router.RegisterCustomer(e, handler.NewCustomerHandler(cfg, engine, bookingRepo, gateway), cfg.JWTSecret, rateLimit)
    router.RegisterOwner(e, handler.NewOwnerHandler(cfg, venueRepo, bookingRepo, engine), cfg.JWTSecret)
    router.RegisterWebhook(e, handler.NewWebhookHandler(cfg.StripeWebhookSecret, engine, bookingRepo))

    // Background consumer appends confirmed bookings to logs/booking.log.
    go func() {
        if err := queue.StartBookingConsumer(); err != nil {
            log.Printf("booking consumer stopped: %v", err)
        }
    }()

    addr := ":" + cfg.Port
    log.Printf("listening on %s (env=%s)", addr, cfg.Env)

    if err := e.Start(addr); err != nil {
        log.Fatal(err)
    }
}
