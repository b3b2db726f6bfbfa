package config // package config loads application configuration from environment variables

import (
    "log"     // log is used to report configuration errors and halt execution
    "os"      // os provides access to environment variables
    "strconv" // strconv converts strings to other types
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  The types reflect how the values are used in
// the application: strings for identifiers and secrets, ints for durations
// and amounts.  Fare amounts are fixed per vehicle class; there are no
// pricing rules beyond them.
type Config struct {
    Env           string // application environment (e.g. "dev", "prod")
    Port          string // HTTP port to listen on
    DBUser        string // database username
    DBPass        string // database password (optional)
    DBHost        string // database host address
    DBPort        string // database port number
    DBName        string // database name
    JWTSecret     string // secret used to sign JWTs
    AccessTTLMin  int    // access token time-to-live in minutes
    BcryptCost    int    // bcrypt cost for password hashing
    HoldMin       int    // reservation hold window in minutes
    CarFareCents  int    // fixed fare for a car booking
    BikeFareCents int    // fixed fare for a bike booking
    Currency      string // ISO currency code passed to the payment gateway

    StripeSecretKey     string // secret API key for the payment gateway
    StripeWebhookSecret string // shared secret used to verify webhook signatures
    CheckoutSuccessURL  string // where the gateway redirects after payment
    CheckoutCancelURL   string // where the gateway redirects on abandon
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.  Values with sane
// defaults use envStr/envInt (shared with the rate limiter config).
func Load() Config {
    return Config{
        Env:           must("APP_ENV"),
        Port:          must("APP_PORT"),
        DBUser:        must("DB_USER"),
        DBPass:        os.Getenv("DB_PASS"), // empty allowed
        DBHost:        must("DB_HOST"),
        DBPort:        must("DB_PORT"),
        DBName:        must("DB_NAME"),
        JWTSecret:     must("JWT_SECRET"),
        AccessTTLMin:  mustInt("ACCESS_TOKEN_TTL_MIN"),
        BcryptCost:    mustInt("BCRYPT_COST"),
        HoldMin:       envInt("BOOKING_HOLD_MIN", 15),
        CarFareCents:  envInt("CAR_FARE_CENTS", 6000),
        BikeFareCents: envInt("BIKE_FARE_CENTS", 2500),
        Currency:      envStr("CURRENCY", "inr"),

        StripeSecretKey:     must("STRIPE_SECRET_KEY"),
        StripeWebhookSecret: must("STRIPE_WEBHOOK_SECRET"),
        CheckoutSuccessURL:  must("CHECKOUT_SUCCESS_URL"),
        CheckoutCancelURL:   must("CHECKOUT_CANCEL_URL"),
    }
}

// FareCents returns the fixed fare for the given vehicle class, or zero
// for an unknown class.
func (c Config) FareCents(vehicleClass string) uint32 {
    switch vehicleClass {
    case "CAR":
        return uint32(c.CarFareCents)
    case "BIKE":
        return uint32(c.BikeFareCents)
    }
    return 0
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        log.Fatalf("missing required env var: %s", key)
    }
    return v
}

// mustInt is like must() but converts the retrieved string into an integer.
// If conversion fails, the application logs a fatal error and exits.
func mustInt(key string) int {
    s := must(key)
    n, err := strconv.Atoi(s)
    if err != nil {
        log.Fatalf("invalid int for %s: %q", key, s)
    }
    return n
}
