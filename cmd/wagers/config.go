package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"

	"github.com/nkiryanov/wagers/internal/logger"
	"github.com/nkiryanov/wagers/internal/service/settlement"
)

const (
	defaultListenAddr    = "localhost:8000"
	defaultLoggingLevel  = logger.LevelInfo
	defaultEnvironment   = logger.EnvProduction
	defaultAuditInterval = time.Minute
)

type Config struct {
	// Default logging level
	LogLevel string

	// Address on which the wagers service will be run
	ListenAddr string

	// Database to connect to
	DatabaseDSN string

	// Redis to keep revoked sessions and idempotency keys, redis://...
	RedisURL string

	// Secret key
	// Some internal parts (like signing JWT tokens) uses symmetric encryption, so this key is used for that purpose
	SecretKey string

	// Secret shared with payment gateway to verify webhooks
	PaystackSecretKey string

	// Part of the pool taken by resolver, 0.10 is 10%
	CommissionRate decimal.Decimal

	// How often ledger audit runs
	AuditInterval time.Duration

	// Environment
	Environment string
}

func NewConfig() *Config {
	return &Config{
		LogLevel:       defaultLoggingLevel,
		ListenAddr:     defaultListenAddr,
		Environment:    defaultEnvironment,
		CommissionRate: settlement.DefaultCommissionRate,
		AuditInterval:  defaultAuditInterval,
	}
}

// Load variable from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		return c.LoadEnv(func(key string) string {
			return envMap[key]
		})
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) error {
	// Set option to value if it not empty
	setString := func(o *string) func(value string) error {
		return func(value string) error {
			if value != "" {
				*o = value
			}
			return nil
		}
	}
	setDecimal := func(o *decimal.Decimal) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			d, err := decimal.NewFromString(value)
			if err != nil {
				return err
			}
			*o = d
			return nil
		}
	}
	setDuration := func(o *time.Duration) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			*o = d
			return nil
		}
	}

	envMap := map[string]func(string) error{
		"RUN_ADDRESS":         setString(&c.ListenAddr),
		"DATABASE_URI":        setString(&c.DatabaseDSN),
		"REDIS_URI":           setString(&c.RedisURL),
		"SECRET_KEY":          setString(&c.SecretKey),
		"PAYSTACK_SECRET_KEY": setString(&c.PaystackSecretKey),
		"COMMISSION_RATE":     setDecimal(&c.CommissionRate),
		"AUDIT_INTERVAL":      setDuration(&c.AuditInterval),
		"LOG_LEVEL":           setString(&c.LogLevel),
		"ENVIRONMENT":         setString(&c.Environment),
	}

	for key, parseFn := range envMap {
		if err := parseFn(getenv(key)); err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
	}

	return nil
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("wagers", pflag.ContinueOnError)

	commissionRate := c.CommissionRate.String()

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string")
	fs.StringVarP(&c.RedisURL, "redis", "r", c.RedisURL, "Redis connection url")
	fs.StringVarP(&c.SecretKey, "secret-key", "s", c.SecretKey, "Secret key")
	fs.StringVar(&c.PaystackSecretKey, "paystack-secret-key", c.PaystackSecretKey, "Payment gateway webhook secret")
	fs.StringVar(&commissionRate, "commission-rate", commissionRate, "Commission rate taken from resolved pools")
	fs.DurationVar(&c.AuditInterval, "audit-interval", c.AuditInterval, "Ledger audit interval")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	rate, err := decimal.NewFromString(commissionRate)
	if err != nil {
		return fmt.Errorf("invalid commission rate: %w", err)
	}
	c.CommissionRate = rate

	return nil
}

// Validate options that have no sane default
func (c *Config) Validate() error {
	switch {
	case c.DatabaseDSN == "":
		return errors.New("database dsn is required")
	case c.RedisURL == "":
		return errors.New("redis url is required")
	case c.SecretKey == "":
		return errors.New("secret key is required")
	case c.CommissionRate.IsNegative() || c.CommissionRate.GreaterThanOrEqual(decimal.NewFromInt(1)):
		return fmt.Errorf("commission rate must be in [0, 1), got %s", c.CommissionRate)
	case c.AuditInterval <= 0:
		return fmt.Errorf("audit interval must be positive, got %s", c.AuditInterval)
	}
	return nil
}
