package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Adda-Baaj/cine-khobor/internal/domain"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const defaultUserAgent = "Mozilla/5.0 (Chrome/91.0.4472.124)"

// Config holds the application configuration loaded from the environment and configs/.env.
type Config struct {
	AppName  string `mapstructure:"app_name"`
	Env      string `mapstructure:"app_env"`
	LogLevel string `mapstructure:"log_level" validate:"omitempty,oneof=debug info warn warning error"`

	FeedURL   string `mapstructure:"reddit_url" validate:"required,url"`
	UserAgent string `mapstructure:"user_agent"`

	BotToken    string `mapstructure:"bot_token" validate:"required_with=GroupChatID"`
	GroupChatID string `mapstructure:"group_chat_id" validate:"required_with=BotToken"`

	SocialUsername string `mapstructure:"social_username" validate:"required_with=SocialPassword"`
	SocialPassword string `mapstructure:"social_password" validate:"required_with=SocialUsername"`
	SocialPDSURL   string `mapstructure:"social_pds_url" validate:"omitempty,url"`

	SinksFile       string `mapstructure:"sinks_file"`
	ScrapeRulesFile string `mapstructure:"scrape_rules_file"`

	PollIntervalSeconds    int64         `mapstructure:"poll_interval" validate:"gt=0"`
	BackoffIntervalSeconds int64         `mapstructure:"backoff_interval" validate:"gt=0"`
	HTTPTimeoutSeconds     int64         `mapstructure:"http_timeout" validate:"gt=0"`
	PollInterval           time.Duration `mapstructure:"-"`
	BackoffInterval        time.Duration `mapstructure:"-"`
	HTTPTimeout            time.Duration `mapstructure:"-"`

	StorageType string `mapstructure:"storage_type" validate:"oneof=file snapshot bbolt sqlite none"`
	SeenFile    string `mapstructure:"seen_file"`
	BBoltPath   string `mapstructure:"bbolt_path"`
	SQLitePath  string `mapstructure:"sqlite_path"`

	PostersDir        string   `mapstructure:"posters_dir" validate:"required"`
	PosterLookupURL   string   `mapstructure:"poster_lookup_url" validate:"required"`
	EnrichRatePerSec  float64  `mapstructure:"enrich_rate_per_sec" validate:"gt=0"`
	TargetDomain      string   `mapstructure:"target_domain" validate:"required"`
	DenyDomainsRaw    string   `mapstructure:"deny_domains"`
	DenyDomains       []string `mapstructure:"-"`
	MarkUnmatchedSeen bool     `mapstructure:"mark_unmatched_seen"`

	DisplayTimezone string         `mapstructure:"display_timezone"`
	Location        *time.Location `mapstructure:"-"`

	MetricsAddr string `mapstructure:"metrics_addr"`
}

// Load reads configuration from environment variables and configs/.env.
// Every returned error wraps domain.ErrConfiguration.
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()

	v.SetDefault("app_name", "cine-khobor")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("reddit_url", "")
	v.SetDefault("user_agent", defaultUserAgent)
	v.SetDefault("bot_token", "")
	v.SetDefault("group_chat_id", "")
	v.SetDefault("social_username", "")
	v.SetDefault("social_password", "")
	v.SetDefault("social_pds_url", "https://bsky.social")
	v.SetDefault("sinks_file", "")
	v.SetDefault("scrape_rules_file", "")
	v.SetDefault("poll_interval", 1800) // seconds
	v.SetDefault("backoff_interval", 60)
	v.SetDefault("http_timeout", 15)
	v.SetDefault("storage_type", "file")
	v.SetDefault("seen_file", "./seen_posts.txt")
	v.SetDefault("bbolt_path", "./data/seen.db")
	v.SetDefault("sqlite_path", "./data/seen.sqlite")
	v.SetDefault("posters_dir", "./posters")
	v.SetDefault("poster_lookup_url", "https://www.imdb.com/title/{id}/")
	v.SetDefault("enrich_rate_per_sec", 2.0)
	v.SetDefault("target_domain", "imdb.com")
	v.SetDefault("deny_domains", "l.facebook.com,out.reddit.com,t.co,bit.ly")
	v.SetDefault("mark_unmatched_seen", true)
	v.SetDefault("display_timezone", "UTC")
	v.SetDefault("metrics_addr", "")

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: unmarshal config: %v", domain.ErrConfiguration, err)
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// normalize trims raw values and derives the computed fields.
func (c *Config) normalize() error {
	c.FeedURL = strings.TrimSpace(c.FeedURL)
	c.BotToken = strings.TrimSpace(c.BotToken)
	c.GroupChatID = strings.TrimSpace(c.GroupChatID)
	c.SocialUsername = strings.TrimSpace(c.SocialUsername)
	c.StorageType = strings.ToLower(strings.TrimSpace(c.StorageType))
	c.TargetDomain = strings.ToLower(strings.TrimSpace(c.TargetDomain))
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if strings.TrimSpace(c.UserAgent) == "" {
		c.UserAgent = defaultUserAgent
	}

	c.DenyDomains = splitList(c.DenyDomainsRaw)

	c.PollInterval = time.Duration(c.PollIntervalSeconds) * time.Second
	c.BackoffInterval = time.Duration(c.BackoffIntervalSeconds) * time.Second
	c.HTTPTimeout = time.Duration(c.HTTPTimeoutSeconds) * time.Second

	tz := strings.TrimSpace(c.DisplayTimezone)
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return fmt.Errorf("%w: invalid display_timezone %q: %v", domain.ErrConfiguration, tz, err)
	}
	c.Location = loc
	return nil
}

var validate = validator.New()

// Validate checks required settings so the process fails before the first cycle.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", domain.ErrConfiguration, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
	}
	if !c.TelegramEnabled() && !c.SocialEnabled() && strings.TrimSpace(c.SinksFile) == "" {
		return fmt.Errorf("%w: no delivery sink configured (set BOT_TOKEN/GROUP_CHAT_ID, SOCIAL_USERNAME/SOCIAL_PASSWORD or SINKS_FILE)", domain.ErrConfiguration)
	}
	return nil
}

// TelegramEnabled reports whether the chat sink credentials are present.
func (c *Config) TelegramEnabled() bool {
	return c.BotToken != "" && c.GroupChatID != ""
}

// SocialEnabled reports whether the social sink credentials are present.
func (c *Config) SocialEnabled() bool {
	return c.SocialUsername != "" && c.SocialPassword != ""
}

// StoragePath returns the path used by the configured seen-set backend.
func (c *Config) StoragePath() string {
	switch c.StorageType {
	case "bbolt":
		return c.BBoltPath
	case "sqlite":
		return c.SQLitePath
	default:
		return c.SeenFile
	}
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			out = append(out, p)
		}
	}
	return out
}
