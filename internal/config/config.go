package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config aggregates application configuration values.
type Config struct {
	HTTP      HTTPConfig
	Storage   StorageConfig
	Auth      AuthConfig
	Club      ClubConfig
	Logging   LoggingConfig
	Reconcile ReconcileConfig
}

// HTTPConfig governs HTTP server behaviour.
type HTTPConfig struct {
	Host              string        `env:"SERVER_HOST" envDefault:"0.0.0.0"`
	Port              int           `env:"SERVER_PORT" envDefault:"8080"`
	ReadTimeout       time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout      time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"15s"`
	IdleTimeout       time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout   time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	MetricsEnabled    bool          `env:"SERVER_METRICS_ENABLED" envDefault:"false"`
	AllowedOriginsCSV string        `env:"SERVER_ALLOWED_ORIGINS"`
}

// StorageConfig describes the persistence backend.
type StorageConfig struct {
	SQLitePath string `env:"STORAGE_SQLITE_PATH" envDefault:"memberclub.db"`
}

// AuthConfig controls bearer-token issuance and admin bootstrap.
type AuthConfig struct {
	JWTSecret     string        `env:"AUTH_JWT_SECRET"`
	TokenTTL      time.Duration `env:"AUTH_TOKEN_TTL" envDefault:"24h"`
	Issuer        string        `env:"AUTH_ISSUER" envDefault:"memberclub"`
	AdminEmail    string        `env:"AUTH_ADMIN_EMAIL"`
	AdminPassword string        `env:"AUTH_ADMIN_PASSWORD"`
}

// ClubConfig holds the membership product configuration. Dues of zero means
// free membership: dues are settled immediately at registration.
type ClubConfig struct {
	DuesUSD       float64       `env:"CLUB_DUES_USD" envDefault:"21"`
	CashstampUSD  float64       `env:"CLUB_CASHSTAMP_USD" envDefault:"15"`
	CommissionUSD float64       `env:"CLUB_COMMISSION_USD" envDefault:"5"`
	IntentTTL     time.Duration `env:"CLUB_INTENT_TTL" envDefault:"24h"`
	BCHPriceUSD   float64       `env:"CLUB_BCH_PRICE_USD" envDefault:"0"`
	BCHPriceURL   string        `env:"CLUB_BCH_PRICE_URL"`
	BCHAddress    string        `env:"CLUB_BCH_ADDRESS"`
	CashAppHandle string        `env:"CLUB_CASHAPP_HANDLE"`
	VenmoHandle   string        `env:"CLUB_VENMO_HANDLE"`
	ZelleHandle   string        `env:"CLUB_ZELLE_HANDLE"`
}

// LoggingConfig controls structured logging settings.
type LoggingConfig struct {
	Level         string `env:"LOG_LEVEL" envDefault:"info"`
	Format        string `env:"LOG_FORMAT" envDefault:"text"` // text|json
	IncludeCaller bool   `env:"LOG_INCLUDE_CALLER" envDefault:"false"`
}

// ReconcileConfig tunes the background expiry sweep.
type ReconcileConfig struct {
	SweepInterval time.Duration `env:"RECONCILE_SWEEP_INTERVAL" envDefault:"1m"`
}

// Load reads configuration from environment variables, applying defaults.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return Config{}, fmt.Errorf("port %d is out of range", cfg.HTTP.Port)
	}
	if cfg.Auth.JWTSecret == "" {
		return Config{}, fmt.Errorf("AUTH_JWT_SECRET is required")
	}
	if cfg.Club.DuesUSD < 0 {
		return Config{}, fmt.Errorf("CLUB_DUES_USD must not be negative")
	}
	return cfg, nil
}
