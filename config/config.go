package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server         ServerConfig         `mapstructure:"server"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Redis          RedisConfig          `mapstructure:"redis"`
	JWT            JWTConfig            `mapstructure:"jwt"`
	Log            LogConfig            `mapstructure:"log"`
	Settlement     SettlementConfig     `mapstructure:"settlement"`
	Withdrawal     WithdrawalConfig     `mapstructure:"withdrawal"`
	Reconciliation ReconciliationConfig `mapstructure:"reconciliation"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	PoolSize    int           `mapstructure:"pool_size"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	// Bounds every command; the settlement fast path must not stall on Redis.
	OpTimeout time.Duration `mapstructure:"op_timeout"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// SettlementConfig tunes invoice generation and profit crediting.
type SettlementConfig struct {
	ShippingShare      float64       `mapstructure:"shipping_share"` // fraction of customer shipping owed to the platform
	TaxRate            float64       `mapstructure:"tax_rate"`       // applied to production cost
	InvoiceMaxAttempts int           `mapstructure:"invoice_max_attempts"`
	RetryMinDelay      time.Duration `mapstructure:"retry_min_delay"`
	RetryMaxDelay      time.Duration `mapstructure:"retry_max_delay"`
	Currency           string        `mapstructure:"currency"`
	CacheTTL           time.Duration `mapstructure:"cache_ttl"`
}

type WithdrawalConfig struct {
	MinAmountPaise int64  `mapstructure:"min_amount_paise"`
	Currency       string `mapstructure:"currency"`
}

// ReconciliationConfig drives the background job that repairs missed
// settlements and profit credits.
type ReconciliationConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Interval    time.Duration `mapstructure:"interval"`
	BatchSize   int           `mapstructure:"batch_size"`
	GracePeriod time.Duration `mapstructure:"grace_period"`
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: MSE_ (Merchant Settlement Engine).
// Nested keys use underscore: MSE_DATABASE_HOST, MSE_SETTLEMENT_TAX_RATE, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "merchant_settlement")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 20)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.op_timeout", "500ms")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "24h")
	v.SetDefault("jwt.issuer", "merchant-settlement")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("settlement.shipping_share", 0.8)
	v.SetDefault("settlement.tax_rate", 0.12)
	v.SetDefault("settlement.invoice_max_attempts", 5)
	v.SetDefault("settlement.retry_min_delay", "10ms")
	v.SetDefault("settlement.retry_max_delay", "60ms")
	v.SetDefault("settlement.currency", "INR")
	v.SetDefault("settlement.cache_ttl", "24h")
	v.SetDefault("withdrawal.min_amount_paise", 10000)
	v.SetDefault("withdrawal.currency", "INR")
	v.SetDefault("reconciliation.enabled", true)
	v.SetDefault("reconciliation.interval", "5m")
	v.SetDefault("reconciliation.batch_size", 50)
	v.SetDefault("reconciliation.grace_period", "10m")

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: MSE_DATABASE_HOST -> database.host
	v.SetEnvPrefix("MSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required, env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects settings the settlement engine cannot run with.
func (c *Config) Validate() error {
	s := c.Settlement
	if s.ShippingShare < 0 || s.ShippingShare > 1 {
		return fmt.Errorf("settlement.shipping_share must be within [0,1], got %v", s.ShippingShare)
	}
	if s.TaxRate < 0 {
		return fmt.Errorf("settlement.tax_rate must not be negative, got %v", s.TaxRate)
	}
	if s.InvoiceMaxAttempts < 1 {
		return fmt.Errorf("settlement.invoice_max_attempts must be at least 1, got %d", s.InvoiceMaxAttempts)
	}
	if s.RetryMaxDelay < s.RetryMinDelay {
		return fmt.Errorf("settlement.retry_max_delay (%s) is below retry_min_delay (%s)", s.RetryMaxDelay, s.RetryMinDelay)
	}
	if c.Withdrawal.MinAmountPaise <= 0 {
		return fmt.Errorf("withdrawal.min_amount_paise must be positive, got %d", c.Withdrawal.MinAmountPaise)
	}
	// Withdrawals debit the wallet the ledger credits, so both must share one currency.
	if c.Withdrawal.Currency != s.Currency {
		return fmt.Errorf("withdrawal.currency (%s) must match settlement.currency (%s)", c.Withdrawal.Currency, s.Currency)
	}
	if c.Reconciliation.Enabled && c.Reconciliation.Interval <= 0 {
		return fmt.Errorf("reconciliation.interval must be positive when enabled")
	}
	return nil
}
