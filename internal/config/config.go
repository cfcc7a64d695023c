package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/buildtall-systems/gifticon/internal/catalog"
	"github.com/buildtall-systems/gifticon/internal/payment"
	"github.com/buildtall-systems/gifticon/internal/share"
	"github.com/spf13/viper"
)

// ErrInvalidConfig indicates a setting outside its allowed values.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds all application configuration.
type Config struct {
	Verbose  bool
	LogLevel string
	Brand    string
	Currency catalog.Currency
	Database DatabaseConfig
	Payment  PaymentConfig
	Share    ShareConfig
	Nostr    NostrConfig
	Kafka    KafkaConfig
	Redis    RedisConfig
	Auth     AuthConfig
	HTTP     HTTPConfig
}

// DatabaseConfig holds the catalog feed and contact directory location.
// An empty path serves the built-in catalog and no directory.
type DatabaseConfig struct {
	Path string
	Seed bool // load the built-in catalog into an empty feed
}

// PaymentConfig selects and tunes the payment gateway.
type PaymentConfig struct {
	Timeout          time.Duration
	Endpoint         string // HTTP gateway base URL; empty uses the simulated gateway
	APIKey           string
	SimulatedLatency time.Duration
	SimulatedOutcome payment.Outcome
}

// ShareConfig holds share channel settings.
type ShareConfig struct {
	Channels       []share.ChannelKind
	GenericLinkURL string
}

// NostrConfig holds contact delivery settings. Delivery is off without a secret.
type NostrConfig struct {
	Relays    []string
	SecretHex string
}

// KafkaConfig holds lifecycle publishing settings. Publishing is off without brokers.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// RedisConfig holds the session store location. Sessions stay in memory
// without an address.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// AuthConfig holds session token settings.
type AuthConfig struct {
	JWTSecret  string
	SessionTTL time.Duration
}

// HTTPConfig holds server settings.
type HTTPConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// Load reads configuration from Viper and returns a Config struct.
func Load() (*Config, error) {
	cfg := &Config{
		Verbose:  viper.GetBool("verbose"),
		LogLevel: viper.GetString("log.level"),
		Brand:    viper.GetString("brand"),
		Currency: catalog.Currency{
			Symbol:   viper.GetString("currency.symbol"),
			Exponent: viper.GetInt32("currency.exponent"),
		},
		Database: DatabaseConfig{
			Path: viper.GetString("database.path"),
			Seed: viper.GetBool("database.seed"),
		},
		Payment: PaymentConfig{
			Timeout:          viper.GetDuration("payment.timeout"),
			Endpoint:         viper.GetString("payment.endpoint"),
			APIKey:           viper.GetString("payment.api_key"),
			SimulatedLatency: viper.GetDuration("payment.simulated.latency"),
			SimulatedOutcome: payment.Outcome(viper.GetString("payment.simulated.outcome")),
		},
		Share: ShareConfig{
			GenericLinkURL: viper.GetString("share.generic_link_url"),
		},
		Nostr: NostrConfig{
			Relays:    viper.GetStringSlice("nostr.relays"),
			SecretHex: viper.GetString("nostr.secret"),
		},
		Kafka: KafkaConfig{
			Brokers: viper.GetStringSlice("kafka.brokers"),
			Topic:   viper.GetString("kafka.topic"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		Auth: AuthConfig{
			JWTSecret:  viper.GetString("auth.jwt_secret"),
			SessionTTL: viper.GetDuration("auth.session_ttl"),
		},
		HTTP: HTTPConfig{
			Addr:            viper.GetString("http.addr"),
			ShutdownTimeout: viper.GetDuration("http.shutdown_timeout"),
		},
	}

	for _, raw := range viper.GetStringSlice("share.channels") {
		kind, err := share.ParseChannel(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: share.channels: %v", ErrInvalidConfig, err)
		}
		cfg.Share.Channels = append(cfg.Share.Channels, kind)
	}

	// Apply defaults
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
		if cfg.Verbose {
			cfg.LogLevel = "debug"
		}
	}
	if cfg.Brand == "" {
		cfg.Brand = "Capo 靠谱"
	}
	if cfg.Currency.Symbol == "" {
		cfg.Currency = catalog.KRW
	}
	if cfg.Payment.Timeout == 0 {
		cfg.Payment.Timeout = 10 * time.Second
	}
	if cfg.Payment.SimulatedLatency == 0 {
		cfg.Payment.SimulatedLatency = time.Second
	}
	switch cfg.Payment.SimulatedOutcome {
	case "":
		cfg.Payment.SimulatedOutcome = payment.OutcomeApprove
	case payment.OutcomeApprove, payment.OutcomeDecline, payment.OutcomeHang:
	default:
		return nil, fmt.Errorf("%w: payment.simulated.outcome %q", ErrInvalidConfig, cfg.Payment.SimulatedOutcome)
	}
	if len(cfg.Share.Channels) == 0 {
		cfg.Share.Channels = share.Channels()
	}
	if cfg.Share.GenericLinkURL == "" {
		cfg.Share.GenericLinkURL = "https://gifticon.example/share?text="
	}
	if len(cfg.Nostr.Relays) == 0 {
		cfg.Nostr.Relays = []string{"wss://relay.damus.io"}
	}
	if cfg.Auth.SessionTTL == 0 {
		cfg.Auth.SessionTTL = 24 * time.Hour
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.HTTP.ShutdownTimeout == 0 {
		cfg.HTTP.ShutdownTimeout = 10 * time.Second
	}

	return cfg, nil
}

// LoadWithSecrets loads the configuration and requires the secrets that
// serving depends on.
func LoadWithSecrets() (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("%w: auth.jwt_secret is required (GIFTICON_AUTH_JWT_SECRET)", ErrInvalidConfig)
	}
	return cfg, nil
}
