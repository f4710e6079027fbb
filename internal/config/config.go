package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the application configuration loaded from files and environment variables.
type Config struct {
	AppName        string `mapstructure:"app_name"`
	Env            string `mapstructure:"app_env"`
	LogLevel       string `mapstructure:"log_level"`
	SourcesFile    string `mapstructure:"sources_file"`
	PublishersFile string `mapstructure:"publishers_file"`
	Port           int    `mapstructure:"port"`

	CheckIntervalSeconds int64         `mapstructure:"check_interval"`
	FoundIntervalSeconds int64         `mapstructure:"found_interval"`
	JitterSeconds        int64         `mapstructure:"jitter_seconds"`
	ErrorCooldownSeconds int64         `mapstructure:"error_cooldown"`
	StartupDelaySeconds  int64         `mapstructure:"startup_delay"`
	DispatchPauseMs      int64         `mapstructure:"dispatch_pause_ms"`
	CheckInterval        time.Duration `mapstructure:"-"`
	FoundInterval        time.Duration `mapstructure:"-"`
	Jitter               time.Duration `mapstructure:"-"`
	ErrorCooldown        time.Duration `mapstructure:"-"`
	StartupDelay         time.Duration `mapstructure:"-"`
	DispatchPause        time.Duration `mapstructure:"-"`
	StartupNotice        bool          `mapstructure:"startup_notice"`

	UrgencyThreshold int `mapstructure:"urgency_threshold"`
	TopN             int `mapstructure:"top_n"`

	StorageType    string        `mapstructure:"storage_type"`
	SeenCapacity   int           `mapstructure:"seen_capacity"`
	SeenTTLSeconds int64         `mapstructure:"seen_ttl_seconds"`
	SeenTTL        time.Duration `mapstructure:"-"`

	RedditClientID     string `mapstructure:"reddit_client_id"`
	RedditClientSecret string `mapstructure:"reddit_client_secret"`
	RedditUsername     string `mapstructure:"reddit_username"`
	RedditPassword     string `mapstructure:"reddit_password"`
	RedditUserAgent    string `mapstructure:"reddit_user_agent"`

	TwitterBearerToken string `mapstructure:"twitter_bearer_token"`
	TwitterAPIKey      string `mapstructure:"twitter_api_key"`
	TwitterAPISecret   string `mapstructure:"twitter_api_secret"`

	TelegramToken  string `mapstructure:"telegram_token"`
	TelegramChatID string `mapstructure:"chat_id"`
}

// Load reads configuration from environment variables and config files.
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()

	v.SetDefault("app_name", "alpha-hunter")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("sources_file", "./configs/sources.yaml")
	v.SetDefault("publishers_file", "./configs/publishers.yaml")
	v.SetDefault("port", 10000)
	v.SetDefault("check_interval", 300) // seconds
	v.SetDefault("found_interval", 120)
	v.SetDefault("jitter_seconds", 120)
	v.SetDefault("error_cooldown", 300)
	v.SetDefault("startup_delay", 10)
	v.SetDefault("dispatch_pause_ms", 1000)
	v.SetDefault("startup_notice", true)
	v.SetDefault("urgency_threshold", 40)
	v.SetDefault("top_n", 25)
	v.SetDefault("storage_type", "memory")
	v.SetDefault("seen_capacity", 100000)
	v.SetDefault("seen_ttl_seconds", int64((7*24*time.Hour)/time.Second))
	v.SetDefault("reddit_client_id", "")
	v.SetDefault("reddit_client_secret", "")
	v.SetDefault("reddit_username", "")
	v.SetDefault("reddit_password", "")
	v.SetDefault("reddit_user_agent", "AlphaHunterBot/1.0")
	v.SetDefault("twitter_bearer_token", "")
	v.SetDefault("twitter_api_key", "")
	v.SetDefault("twitter_api_secret", "")
	v.SetDefault("telegram_token", "")
	v.SetDefault("chat_id", "")

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) normalize() error {
	if cfg.CheckIntervalSeconds <= 0 {
		return fmt.Errorf("invalid check_interval (must be positive seconds)")
	}
	if cfg.FoundIntervalSeconds <= 0 {
		return fmt.Errorf("invalid found_interval (must be positive seconds)")
	}
	if cfg.ErrorCooldownSeconds <= 0 {
		return fmt.Errorf("invalid error_cooldown (must be positive seconds)")
	}
	if cfg.JitterSeconds < 0 || cfg.StartupDelaySeconds < 0 || cfg.DispatchPauseMs < 0 {
		return fmt.Errorf("jitter_seconds, startup_delay and dispatch_pause_ms must not be negative")
	}
	if cfg.UrgencyThreshold < 0 {
		return fmt.Errorf("invalid urgency_threshold (must not be negative)")
	}
	if cfg.TopN <= 0 {
		return fmt.Errorf("invalid top_n (must be positive)")
	}

	cfg.StorageType = strings.ToLower(strings.TrimSpace(cfg.StorageType))
	switch cfg.StorageType {
	case "memory", "lru":
	default:
		return fmt.Errorf("unsupported storage_type %q", cfg.StorageType)
	}
	if cfg.StorageType == "lru" {
		if cfg.SeenCapacity <= 0 {
			return fmt.Errorf("invalid seen_capacity (must be positive for lru storage)")
		}
		if cfg.SeenTTLSeconds <= 0 {
			return fmt.Errorf("invalid seen_ttl_seconds (must be positive for lru storage)")
		}
	}

	cfg.CheckInterval = time.Duration(cfg.CheckIntervalSeconds) * time.Second
	cfg.FoundInterval = time.Duration(cfg.FoundIntervalSeconds) * time.Second
	cfg.Jitter = time.Duration(cfg.JitterSeconds) * time.Second
	cfg.ErrorCooldown = time.Duration(cfg.ErrorCooldownSeconds) * time.Second
	cfg.StartupDelay = time.Duration(cfg.StartupDelaySeconds) * time.Second
	cfg.DispatchPause = time.Duration(cfg.DispatchPauseMs) * time.Millisecond
	cfg.SeenTTL = time.Duration(cfg.SeenTTLSeconds) * time.Second
	return nil
}

// Redacted returns a copy safe for logging, with credentials masked.
func (cfg Config) Redacted() Config {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "***"
	}
	cfg.RedditClientSecret = mask(cfg.RedditClientSecret)
	cfg.RedditPassword = mask(cfg.RedditPassword)
	cfg.TwitterBearerToken = mask(cfg.TwitterBearerToken)
	cfg.TwitterAPISecret = mask(cfg.TwitterAPISecret)
	cfg.TelegramToken = mask(cfg.TelegramToken)
	return cfg
}
