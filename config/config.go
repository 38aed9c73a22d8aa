package config

import (
	"time"

	"findmyspot/pkg/logger"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const (
	DefaultReservationDurationSeconds = 300
	DefaultOperationTimeoutSeconds    = 30
	DefaultFewSpotsThreshold          = "0.20"
)

type Config struct {
	GeneralVersion       string `mapstructure:"GENERAL_VERSION"`
	Environment          string `mapstructure:"ENVIRONMENT"`
	ServerPort           int    `mapstructure:"SERVER_PORT"`
	DatabaseHost         string `mapstructure:"DB_HOST"`
	DatabasePort         int    `mapstructure:"DB_PORT"`
	DatabaseName         string `mapstructure:"DB_NAME"`
	DatabaseUser         string `mapstructure:"DB_USER"`
	DatabasePassword     string `mapstructure:"DB_PASSWORD"`
	DatabaseCacheAddress string `mapstructure:"DB_CACHE_ADDRESS"`
	DatabaseCachePort    int    `mapstructure:"DB_CACHE_PORT"`
	DatabaseCacheReset   int    `mapstructure:"DB_CACHE_RESET"`
	CorsAllowOrigins     string `mapstructure:"CORS_ALLOW_ORIGINS"`
	SchedulerEnabled     bool   `mapstructure:"SCHEDULER_ENABLED"`

	IdentityIssuer   string `mapstructure:"IDENTITY_ISSUER"`
	IdentityClientID string `mapstructure:"IDENTITY_CLIENT_ID"`
	IdentityJWKSURL  string `mapstructure:"IDENTITY_JWKS_URL"`

	ReservationDurationSeconds int    `mapstructure:"RESERVATION_DURATION_SECONDS"`
	OperationTimeoutSeconds    int    `mapstructure:"RESERVATION_OPERATION_TIMEOUT_SECONDS"`
	FewSpotsThreshold          string `mapstructure:"FEW_SPOTS_THRESHOLD"`
	ExpirySweepEnabled         bool   `mapstructure:"RESERVATION_EXPIRY_SWEEP"`
}

var ConfigInstance Config

var envVars = []string{
	"GENERAL_VERSION", "ENVIRONMENT", "SERVER_PORT",
	"DB_HOST", "DB_PORT", "DB_NAME", "DB_USER", "DB_PASSWORD",
	"DB_CACHE_ADDRESS", "DB_CACHE_PORT", "DB_CACHE_RESET",
	"CORS_ALLOW_ORIGINS", "SCHEDULER_ENABLED",
	"IDENTITY_ISSUER", "IDENTITY_CLIENT_ID", "IDENTITY_JWKS_URL",
	"RESERVATION_DURATION_SECONDS", "RESERVATION_OPERATION_TIMEOUT_SECONDS",
	"FEW_SPOTS_THRESHOLD", "RESERVATION_EXPIRY_SWEEP",
}

func New() (Config, error) {
	log := logger.New("config").Function("New")
	log.Info("Initializing config")

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	for _, env := range envVars {
		if err := v.BindEnv(env); err != nil {
			log.Warn("Failed to bind environment variable", "env", env, "error", err)
		}
	}

	if v.IsSet("SERVER_PORT") && v.IsSet("DB_HOST") {
		log.Info("Environment variables detected, skipping file loading")
	} else {
		log.Info("Environment variables not found, attempting to load from files")

		v.SetConfigFile(".env")
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			log.Warn("Could not find .env file", "error", err)
		} else {
			log.Info("Loaded .env file")
		}

		v.SetConfigFile(".env.local")
		if err := v.MergeInConfig(); err != nil {
			log.Debug("No .env.local file found", "error", err)
		} else {
			log.Info("Loaded .env.local overrides")
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return Config{}, log.Err("Fatal error: could not unmarshal config", err)
	}

	if err := validateConfig(config, log); err != nil {
		return Config{}, err
	}

	log.Info("Successfully initialized config",
		"environment", config.Environment,
		"serverPort", config.ServerPort,
		"reservationDuration", config.ReservationDuration(),
	)
	ConfigInstance = config
	return config, nil
}

func GetConfig() Config {
	return ConfigInstance
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENVIRONMENT", "production")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_CACHE_RESET", -1)
	v.SetDefault("SCHEDULER_ENABLED", true)
	v.SetDefault("RESERVATION_DURATION_SECONDS", DefaultReservationDurationSeconds)
	v.SetDefault("RESERVATION_OPERATION_TIMEOUT_SECONDS", DefaultOperationTimeoutSeconds)
	v.SetDefault("FEW_SPOTS_THRESHOLD", DefaultFewSpotsThreshold)
	v.SetDefault("RESERVATION_EXPIRY_SWEEP", true)
}

func validateConfig(config Config, log logger.Logger) error {
	if config.ServerPort <= 0 {
		return log.Error("Fatal error: invalid server port", "port", config.ServerPort)
	}

	if config.ReservationDurationSeconds <= 0 {
		return log.Error(
			"Fatal error: reservation duration must be positive",
			"seconds", config.ReservationDurationSeconds,
		)
	}

	if config.OperationTimeoutSeconds <= 0 {
		return log.Error(
			"Fatal error: operation timeout must be positive",
			"seconds", config.OperationTimeoutSeconds,
		)
	}

	threshold, err := decimal.NewFromString(config.FewSpotsThreshold)
	if err != nil {
		return log.Err("Fatal error: invalid few spots threshold", err,
			"threshold", config.FewSpotsThreshold)
	}
	if threshold.IsNegative() || threshold.GreaterThan(decimal.NewFromInt(1)) {
		return log.Error("Fatal error: few spots threshold must be between 0 and 1",
			"threshold", config.FewSpotsThreshold)
	}

	if config.IdentityIssuer != "" && config.IdentityClientID == "" {
		return log.ErrMsg("Fatal error: IDENTITY_CLIENT_ID required when IDENTITY_ISSUER is set")
	}

	return nil
}

// ReservationDuration is how long a new reservation holds its space.
func (c Config) ReservationDuration() time.Duration {
	if c.ReservationDurationSeconds <= 0 {
		return DefaultReservationDurationSeconds * time.Second
	}
	return time.Duration(c.ReservationDurationSeconds) * time.Second
}

// OperationTimeout bounds every reservation operation.
func (c Config) OperationTimeout() time.Duration {
	if c.OperationTimeoutSeconds <= 0 {
		return DefaultOperationTimeoutSeconds * time.Second
	}
	return time.Duration(c.OperationTimeoutSeconds) * time.Second
}

// Threshold returns the share of free spaces at or below which a basement is
// reported as having few spots left.
func (c Config) Threshold() decimal.Decimal {
	threshold, err := decimal.NewFromString(c.FewSpotsThreshold)
	if err != nil {
		return decimal.RequireFromString(DefaultFewSpotsThreshold)
	}
	return threshold
}
