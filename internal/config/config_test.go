package config

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/buildtall-systems/gifticon/internal/catalog"
	"github.com/buildtall-systems/gifticon/internal/payment"
	"github.com/buildtall-systems/gifticon/internal/share"
	"github.com/spf13/viper"
)

func TestLoadDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Brand != "Capo 靠谱" {
		t.Errorf("Brand = %q", cfg.Brand)
	}
	if cfg.Currency != catalog.KRW {
		t.Errorf("Currency = %+v, want KRW", cfg.Currency)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if cfg.Payment.Timeout != 10*time.Second {
		t.Errorf("Payment.Timeout = %v, want 10s", cfg.Payment.Timeout)
	}
	if cfg.Payment.SimulatedOutcome != payment.OutcomeApprove {
		t.Errorf("SimulatedOutcome = %q", cfg.Payment.SimulatedOutcome)
	}
	if !reflect.DeepEqual(cfg.Share.Channels, share.Channels()) {
		t.Errorf("Share.Channels = %v, want all", cfg.Share.Channels)
	}
	if cfg.Database.Path != "" {
		t.Errorf("Database.Path = %q, want empty (built-in catalog)", cfg.Database.Path)
	}
	if cfg.HTTP.Addr != ":8080" {
		t.Errorf("HTTP.Addr = %q", cfg.HTTP.Addr)
	}
	if cfg.Auth.SessionTTL != 24*time.Hour {
		t.Errorf("Auth.SessionTTL = %v", cfg.Auth.SessionTTL)
	}
}

func TestLoadOverrides(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	viper.Set("verbose", true)
	viper.Set("brand", "Test Shop")
	viper.Set("payment.timeout", "3s")
	viper.Set("payment.simulated.outcome", "decline")
	viper.Set("share.channels", []string{"sms"})
	viper.Set("kafka.brokers", []string{"k1:9092", "k2:9092"})
	viper.Set("redis.addr", "localhost:6379")
	viper.Set("database.path", "feed.db")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("verbose LogLevel = %q, want debug", cfg.LogLevel)
	}
	if cfg.Brand != "Test Shop" {
		t.Errorf("Brand = %q", cfg.Brand)
	}
	if cfg.Payment.Timeout != 3*time.Second {
		t.Errorf("Payment.Timeout = %v", cfg.Payment.Timeout)
	}
	if cfg.Payment.SimulatedOutcome != payment.OutcomeDecline {
		t.Errorf("SimulatedOutcome = %q", cfg.Payment.SimulatedOutcome)
	}
	if !reflect.DeepEqual(cfg.Share.Channels, []share.ChannelKind{share.ChannelSMS}) {
		t.Errorf("Share.Channels = %v", cfg.Share.Channels)
	}
	if len(cfg.Kafka.Brokers) != 2 {
		t.Errorf("Kafka.Brokers = %v", cfg.Kafka.Brokers)
	}
	if cfg.Redis.Addr != "localhost:6379" || cfg.Database.Path != "feed.db" {
		t.Errorf("Redis/Database not loaded: %+v %+v", cfg.Redis, cfg.Database)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		key   string
		value any
	}{
		{"share.channels", []string{"fax"}},
		{"payment.simulated.outcome", "maybe"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			viper.Reset()
			t.Cleanup(viper.Reset)
			viper.Set(tt.key, tt.value)

			if _, err := Load(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Load() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestLoadWithSecrets(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	if _, err := LoadWithSecrets(); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("missing jwt secret error = %v, want ErrInvalidConfig", err)
	}

	viper.Set("auth.jwt_secret", "s3cret")
	cfg, err := LoadWithSecrets()
	if err != nil {
		t.Fatalf("LoadWithSecrets() error: %v", err)
	}
	if cfg.Auth.JWTSecret != "s3cret" {
		t.Errorf("JWTSecret = %q", cfg.Auth.JWTSecret)
	}
}
