package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAppName            = "MesaPay"
	defaultAppEnv             = "development"
	defaultPort               = "8080"
	defaultLogLevel           = "info"
	defaultShutdownDelay      = 10 * time.Second
	defaultIdempotencyTTL     = 24 * time.Hour
	defaultContinueWait       = 2 * time.Second
	defaultContinueAttempts   = 8
	defaultSettlementDelay    = 10 * time.Second
	defaultSettlementInterval = 5 * time.Second

	shutdownSecondsEnvVar  = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar = "SHUTDOWN_TIMEOUT"
	idemTTLSecondsEnvVar   = "IDEMPOTENCY_TTL_SECONDS"
	idemTTLDurEnvVar       = "IDEMPOTENCY_TTL"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	DatabaseURL    string
	RedisURL       string
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration

	// Payment network endpoints.
	AuthServerURL     string
	ResourceServerURL string
	PaymentHost       string
	SignatureURL      string
	DepositURL        string

	// Identity of this backend when acting as a payment-network client.
	ClientWalletAddress string
	ClientKeyID         string
	ClientPrivateKey    string

	// ContinueWait is the initial delay before polling the grant continuation
	// endpoint; subsequent attempts back off from it.
	ContinueWait     time.Duration
	ContinueAttempts uint

	// SettlementDelay is how long a deposit-settlement task waits before it
	// becomes due; SettlementInterval is the worker poll cadence.
	SettlementDelay    time.Duration
	SettlementInterval time.Duration

	SentryDSN string
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	cfg := Config{
		AppName:             getEnv("APP_NAME", defaultAppName),
		AppEnv:              getEnv("APP_ENV", defaultAppEnv),
		Port:                getEnv("PORT", defaultPort),
		LogLevel:            strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		RedisURL:            os.Getenv("REDIS_URL"),
		ShutdownPeriod:      defaultShutdownDelay,
		IdempotencyTTL:      defaultIdempotencyTTL,
		AuthServerURL:       os.Getenv("AUTH_SERVER_URL"),
		ResourceServerURL:   os.Getenv("RESOURCE_SERVER_URL"),
		PaymentHost:         os.Getenv("PAYMENT_HOST"),
		SignatureURL:        os.Getenv("SIGNATURE_URL"),
		DepositURL:          os.Getenv("DEPOSIT_URL"),
		ClientWalletAddress: os.Getenv("CLIENT_WALLET_ADDRESS"),
		ClientKeyID:         os.Getenv("CLIENT_KEY_ID"),
		ClientPrivateKey:    os.Getenv("CLIENT_PRIVATE_KEY"),
		ContinueWait:        defaultContinueWait,
		ContinueAttempts:    defaultContinueAttempts,
		SettlementDelay:     defaultSettlementDelay,
		SettlementInterval:  defaultSettlementInterval,
		SentryDSN:           os.Getenv("SENTRY_DSN"),
	}

	if v := os.Getenv(shutdownSecondsEnvVar); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", shutdownSecondsEnvVar, err)
		}
		cfg.ShutdownPeriod = time.Duration(seconds) * time.Second
	} else if v := os.Getenv(shutdownDurationEnvVar); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", shutdownDurationEnvVar, err)
		}
		cfg.ShutdownPeriod = d
	}

	if v := os.Getenv(idemTTLSecondsEnvVar); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", idemTTLSecondsEnvVar, err)
		}
		cfg.IdempotencyTTL = time.Duration(seconds) * time.Second
	} else if v := os.Getenv(idemTTLDurEnvVar); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", idemTTLDurEnvVar, err)
		}
		cfg.IdempotencyTTL = d
	}

	var err error
	if cfg.ContinueWait, err = durationEnv("CONTINUE_WAIT", cfg.ContinueWait); err != nil {
		return Config{}, err
	}
	if cfg.SettlementDelay, err = durationEnv("SETTLEMENT_DELAY", cfg.SettlementDelay); err != nil {
		return Config{}, err
	}
	if cfg.SettlementInterval, err = durationEnv("SETTLEMENT_INTERVAL", cfg.SettlementInterval); err != nil {
		return Config{}, err
	}
	if v := os.Getenv("CONTINUE_ATTEMPTS"); v != "" {
		attempts, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return Config{}, fmt.Errorf("invalid CONTINUE_ATTEMPTS: %w", err)
		}
		cfg.ContinueAttempts = uint(attempts)
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL must be set")
	}
	if cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("REDIS_URL must be set")
	}
	if cfg.AuthServerURL == "" {
		return Config{}, fmt.Errorf("AUTH_SERVER_URL must be set")
	}
	if cfg.ResourceServerURL == "" {
		return Config{}, fmt.Errorf("RESOURCE_SERVER_URL must be set")
	}
	if cfg.SignatureURL == "" {
		return Config{}, fmt.Errorf("SIGNATURE_URL must be set")
	}
	if cfg.PaymentHost == "" {
		cfg.PaymentHost = cfg.ResourceServerURL
	}
	if cfg.DepositURL == "" {
		cfg.DepositURL = strings.TrimRight(cfg.ResourceServerURL, "/") + "/deposits"
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
