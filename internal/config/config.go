package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/coopfin/credito-engine/internal/domain"
)

// Config holds all configuration for our application
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Business  BusinessConfig  `mapstructure:"business"`
	Health    HealthConfig    `mapstructure:"health"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"SERVER_PORT"`
	Host         string        `mapstructure:"SERVER_HOST"`
	Env          string        `mapstructure:"ENV"`
	ReadTimeout  time.Duration `mapstructure:"SERVER_READ_TIMEOUT"`
	WriteTimeout time.Duration `mapstructure:"SERVER_WRITE_TIMEOUT"`
}

type DatabaseConfig struct {
	URL             string        `mapstructure:"DATABASE_URL"`
	MaxOpenConns    int           `mapstructure:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `mapstructure:"DATABASE_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `mapstructure:"DATABASE_CONN_MAX_LIFETIME"`
	MigrationsPath  string        `mapstructure:"DATABASE_MIGRATIONS_PATH"`
}

type RedisConfig struct {
	Host     string `mapstructure:"REDIS_HOST"`
	Port     string `mapstructure:"REDIS_PORT"`
	Password string `mapstructure:"REDIS_PASSWORD"`
	DB       int    `mapstructure:"REDIS_DB"`
}

type SchedulerConfig struct {
	MoraCronSpec string `mapstructure:"SCHEDULER_MORA_CRON"`
	Timezone     string `mapstructure:"SCHEDULER_TIMEZONE"`
}

// BusinessConfig carries lending policy. Everything here is an input to the
// engine, never a constant inside it: the approval ceiling, the daily mora
// rate and the provision table all vary per cooperative.
type BusinessConfig struct {
	// CurrencyScale is the number of decimal digits of the operating
	// currency (0 for COP).
	CurrencyScale int32 `mapstructure:"CURRENCY_SCALE"`

	// ApprovalCeilingBp caps monto_aprobado at monto_solicitado times this
	// factor, in basis points (12000 = 120%).
	ApprovalCeilingBp int64 `mapstructure:"APPROVAL_CEILING_BP"`

	// MoraDailyRateBp is the daily arrears charge on overdue installments,
	// in basis points of the unpaid installment value.
	MoraDailyRateBp int64 `mapstructure:"MORA_DAILY_RATE_BP"`

	// Provision rates per mora band, in basis points of capital balance.
	Provision1a30Bp  int64 `mapstructure:"PROVISION_1_30_BP"`
	Provision31a60Bp int64 `mapstructure:"PROVISION_31_60_BP"`
	Provision61a90Bp int64 `mapstructure:"PROVISION_61_90_BP"`
	Provision91Bp    int64 `mapstructure:"PROVISION_91_BP"`

	// Comma-separated roles allowed to run privileged lifecycle operations
	// (aprobar, rechazar, desembolsar, castigar, reversar).
	PrivilegedRoles string `mapstructure:"PRIVILEGED_ROLES"`
}

type HealthConfig struct {
	Timeout time.Duration `mapstructure:"HEALTH_CHECK_TIMEOUT"`
}

// Load reads configuration from environment variables and files
func Load() (*Config, error) {
	// Set defaults
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("SERVER_READ_TIMEOUT", "15s")
	viper.SetDefault("SERVER_WRITE_TIMEOUT", "15s")
	viper.SetDefault("DATABASE_MAX_OPEN_CONNS", 25)
	viper.SetDefault("DATABASE_MAX_IDLE_CONNS", 5)
	viper.SetDefault("DATABASE_CONN_MAX_LIFETIME", "30m")
	viper.SetDefault("DATABASE_MIGRATIONS_PATH", "file://migrations")
	viper.SetDefault("REDIS_HOST", "localhost")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("SCHEDULER_MORA_CRON", "0 0 1 * * *")
	viper.SetDefault("SCHEDULER_TIMEZONE", "America/Bogota")
	viper.SetDefault("HEALTH_CHECK_TIMEOUT", "5s")
	viper.SetDefault("CURRENCY_SCALE", 0)
	viper.SetDefault("APPROVAL_CEILING_BP", 12000)
	viper.SetDefault("MORA_DAILY_RATE_BP", 10)
	viper.SetDefault("PROVISION_1_30_BP", 100)
	viper.SetDefault("PROVISION_31_60_BP", 1000)
	viper.SetDefault("PROVISION_61_90_BP", 2000)
	viper.SetDefault("PROVISION_91_BP", 5000)
	viper.SetDefault("PRIVILEGED_ROLES", "admin,gerente,analista")

	// Read from environment variables
	viper.AutomaticEnv()

	// Try to read from .env file (optional)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./deployments")

	// Don't fail if .env file doesn't exist
	_ = viper.ReadInConfig()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("SERVER_PORT is required")
	}

	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Business.CurrencyScale < 0 || c.Business.CurrencyScale > 6 {
		return fmt.Errorf("CURRENCY_SCALE must be between 0 and 6")
	}

	if c.Business.ApprovalCeilingBp <= 0 {
		return fmt.Errorf("APPROVAL_CEILING_BP must be greater than 0")
	}

	if c.Business.MoraDailyRateBp < 0 {
		return fmt.Errorf("MORA_DAILY_RATE_BP must not be negative")
	}

	return nil
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development" || c.Server.Env == "dev"
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production" || c.Server.Env == "prod"
}

// ProvisionTable assembles the configured provision rates.
func (c *Config) ProvisionTable() domain.ProvisionTable {
	return domain.ProvisionTable{
		Banda1a30Bp:  c.Business.Provision1a30Bp,
		Banda31a60Bp: c.Business.Provision31a60Bp,
		Banda61a90Bp: c.Business.Provision61a90Bp,
		Banda91MasBp: c.Business.Provision91Bp,
	}
}

// RoleIsPrivileged reports whether a caller role may run privileged
// lifecycle operations.
func (c *Config) RoleIsPrivileged(role string) bool {
	for _, r := range strings.Split(c.Business.PrivilegedRoles, ",") {
		if strings.TrimSpace(r) == role && role != "" {
			return true
		}
	}
	return false
}
