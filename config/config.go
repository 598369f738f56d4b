/*
Package config loads service configuration and builds the logger.

PURPOSE:
  One typed Config read at startup. Sources in increasing priority:
  built-in defaults, an optional .env file, LABOR_* environment variables,
  then command-line flags applied by cmd/server.

SEE ALSO:
  - cmd/server: applies -port and -db on top of Load()
*/
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every key: PORT is read from LABOR_PORT.
const EnvPrefix = "LABOR"

// Store backends.
const (
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Subscription gate modes.
const (
	GateStripe = "stripe"
	GateStore  = "store"
	GateOff    = "off"
)

type Config struct {
	Env      string
	LogLevel string
	Port     int

	Store       string
	SQLitePath  string
	DatabaseURL string

	// Timezone is the IANA name recorded in every parameters snapshot and
	// used to decide "today".
	Timezone      string
	TaxTablesFile string

	CORSAllowedOrigins []string

	StripeSecretKey  string
	SubscriptionGate string

	NATSURL     string
	NATSSubject string

	MetricsEnabled bool
	BatchWorkers   int
}

func (c Config) IsProd() bool { return c.Env == "prod" }

func defaults(v *viper.Viper) {
	v.SetDefault("env", "dev")
	v.SetDefault("log_level", "info")
	v.SetDefault("port", 8080)
	v.SetDefault("store", StoreSQLite)
	v.SetDefault("sqlite_path", "labor.db")
	v.SetDefault("database_url", "")
	v.SetDefault("timezone", "America/Fortaleza")
	v.SetDefault("tax_tables_file", "")
	v.SetDefault("cors_allowed_origins", "http://localhost:5173,http://localhost:3000")
	v.SetDefault("stripe_secret_key", "")
	v.SetDefault("subscription_gate", GateOff)
	v.SetDefault("nats_url", "")
	v.SetDefault("nats_subject", "labor.calculations.created")
	v.SetDefault("metrics_enabled", true)
	v.SetDefault("batch_workers", 4)
}

// Load reads envFiles (".env" when none are given; a missing file is not
// an error) and then the environment.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	defaults(v)

	cfg := &Config{
		Env:                v.GetString("env"),
		LogLevel:           v.GetString("log_level"),
		Port:               v.GetInt("port"),
		Store:              strings.ToLower(v.GetString("store")),
		SQLitePath:         v.GetString("sqlite_path"),
		DatabaseURL:        v.GetString("database_url"),
		Timezone:           v.GetString("timezone"),
		TaxTablesFile:      v.GetString("tax_tables_file"),
		CORSAllowedOrigins: splitList(v.GetString("cors_allowed_origins")),
		StripeSecretKey:    v.GetString("stripe_secret_key"),
		SubscriptionGate:   strings.ToLower(v.GetString("subscription_gate")),
		NATSURL:            v.GetString("nats_url"),
		NATSSubject:        v.GetString("nats_subject"),
		MetricsEnabled:     v.GetBool("metrics_enabled"),
		BatchWorkers:       v.GetInt("batch_workers"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field requirements.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	switch c.Store {
	case StoreSQLite, StoreMemory:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return errors.New("LABOR_DATABASE_URL is required when LABOR_STORE=postgres")
		}
	default:
		return fmt.Errorf("unknown store %q", c.Store)
	}
	switch c.SubscriptionGate {
	case GateOff, GateStore:
	case GateStripe:
		if c.StripeSecretKey == "" {
			return errors.New("LABOR_STRIPE_SECRET_KEY is required when LABOR_SUBSCRIPTION_GATE=stripe")
		}
	default:
		return fmt.Errorf("unknown subscription gate %q", c.SubscriptionGate)
	}
	if c.BatchWorkers < 1 {
		c.BatchWorkers = 1
	}
	return nil
}

// splitList splits on commas. viper's GetStringSlice splits env values on
// whitespace, which does not match how origins are written.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
