package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Defaults for the bridge runtime.
const (
	DefaultStreamURL = "wss://actions.near.stream/ws"
	DefaultEventsURL = "https://events.pagerduty.com/v2/enqueue"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	StreamURL            string
	EventsURL            string
	RoutingKey           string
	ReconnectDelay       time.Duration
	DeliveryWorkers      int
	DeliveryQueueSize    int
	DeliveryMaxRetries   int
	DeliveryRetryBackoff time.Duration
	ShutdownGrace        time.Duration
	JournalPath          string
	PostgresDSN          string
	LogLevel             string
	Subscriptions        []Subscription
}

// Subscription is one alert rule as written in the config file. The account
// and method shorthand and the generic condition tree may both be present;
// they combine as a conjunction when compiled.
type Subscription struct {
	Name             string                 `mapstructure:"name"`
	AccountID        string                 `mapstructure:"account_id"`
	MethodName       string                 `mapstructure:"method_name"`
	Condition        map[string]interface{} `mapstructure:"condition"`
	Severity         string                 `mapstructure:"severity"`
	SummaryTemplate  string                 `mapstructure:"summary_template"`
	DedupKeyTemplate string                 `mapstructure:"dedup_key_template"`
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("ws-url", DefaultStreamURL)
	v.SetDefault("events-url", DefaultEventsURL)
	v.SetDefault("reconnect-delay", 5*time.Second)
	v.SetDefault("delivery-workers", 4)
	v.SetDefault("delivery-queue-size", 64)
	v.SetDefault("delivery-max-retries", 4)
	v.SetDefault("delivery-retry-backoff", 500*time.Millisecond)
	v.SetDefault("shutdown-grace", 10*time.Second)
	v.SetDefault("journal", "./data/deliveries.jsonl")
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var subs []Subscription
	if err := v.UnmarshalKey("subscriptions", &subs); err != nil {
		return Config{}, fmt.Errorf("parse subscriptions: %w", err)
	}

	cfg := Config{
		StreamURL:            v.GetString("ws-url"),
		EventsURL:            v.GetString("events-url"),
		RoutingKey:           v.GetString("routing-key"),
		ReconnectDelay:       v.GetDuration("reconnect-delay"),
		DeliveryWorkers:      v.GetInt("delivery-workers"),
		DeliveryQueueSize:    v.GetInt("delivery-queue-size"),
		DeliveryMaxRetries:   v.GetInt("delivery-max-retries"),
		DeliveryRetryBackoff: v.GetDuration("delivery-retry-backoff"),
		ShutdownGrace:        v.GetDuration("shutdown-grace"),
		JournalPath:          v.GetString("journal"),
		PostgresDSN:          v.GetString("pg-dsn"),
		LogLevel:             v.GetString("log-level"),
		Subscriptions:        subs,
	}

	if cfg.RoutingKey == "" {
		cfg.RoutingKey = os.Getenv("PAGERDUTY_ROUTING_KEY")
	}

	return cfg, nil
}

// Validate rejects configurations that could never produce a valid alert.
// Severity and condition trees are validated when subscriptions are compiled.
func (c Config) Validate() error {
	if c.RoutingKey == "" {
		return fmt.Errorf("routing key is required (set routing-key or PAGERDUTY_ROUTING_KEY)")
	}
	if c.StreamURL == "" {
		return fmt.Errorf("stream url is required")
	}
	if len(c.Subscriptions) == 0 {
		return fmt.Errorf("at least one subscription is required")
	}
	if c.ReconnectDelay <= 0 {
		return fmt.Errorf("reconnect delay must be positive")
	}
	if c.DeliveryWorkers <= 0 {
		return fmt.Errorf("delivery workers must be positive")
	}
	if c.DeliveryQueueSize <= 0 {
		return fmt.Errorf("delivery queue size must be positive")
	}

	seen := make(map[string]struct{}, len(c.Subscriptions))
	for i, sub := range c.Subscriptions {
		if sub.Name == "" {
			return fmt.Errorf("subscription %d: name is required", i)
		}
		if _, dup := seen[sub.Name]; dup {
			return fmt.Errorf("subscription %q: duplicate name", sub.Name)
		}
		seen[sub.Name] = struct{}{}
		if sub.AccountID == "" && len(sub.Condition) == 0 {
			return fmt.Errorf("subscription %q: account_id or condition is required", sub.Name)
		}
	}
	return nil
}
