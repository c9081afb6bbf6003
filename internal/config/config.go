package config

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig
	S3      S3Config
	App     AppConfig
	Session SessionConfig
}

type ServerConfig struct {
	Host string
	Port string
}

type S3Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	BucketName      string
	Region          string
}

type AppConfig struct {
	MaxUploadSize   int64
	AllowedFormats  []string
	DemoMode        bool
	FallbackImage   string
	TickInterval    time.Duration
	CompletionDelay time.Duration
	LogLevel        string
}

type SessionConfig struct {
	// Backend is one of "memory", "sqlite" or "s3".
	Backend      string
	SQLitePath   string
	TTL          time.Duration
	SweepEvery   time.Duration
	CookieName   string
	CookieSecure bool
}

// Load reads configuration from defaults, the optional config file and the
// environment, in increasing priority.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Host: v.GetString("SERVER_HOST"),
			Port: v.GetString("SERVER_PORT"),
		},
		S3: S3Config{
			Endpoint:        v.GetString("S3_ENDPOINT"),
			AccessKeyID:     v.GetString("S3_ACCESS_KEY_ID"),
			SecretAccessKey: v.GetString("S3_SECRET_ACCESS_KEY"),
			UseSSL:          v.GetBool("S3_USE_SSL"),
			BucketName:      v.GetString("S3_BUCKET_NAME"),
			Region:          v.GetString("S3_REGION"),
		},
		App: AppConfig{
			MaxUploadSize:   v.GetInt64("APP_MAX_UPLOAD_SIZE"),
			AllowedFormats:  splitList(v.GetStringSlice("APP_ALLOWED_FORMATS")),
			DemoMode:        v.GetBool("APP_DEMO_MODE"),
			FallbackImage:   v.GetString("APP_FALLBACK_IMAGE"),
			TickInterval:    v.GetDuration("APP_TICK_INTERVAL"),
			CompletionDelay: v.GetDuration("APP_COMPLETION_DELAY"),
			LogLevel:        v.GetString("APP_LOG_LEVEL"),
		},
		Session: SessionConfig{
			Backend:      strings.ToLower(v.GetString("SESSION_BACKEND")),
			SQLitePath:   v.GetString("SESSION_SQLITE_PATH"),
			TTL:          v.GetDuration("SESSION_TTL"),
			SweepEvery:   v.GetDuration("SESSION_SWEEP_EVERY"),
			CookieName:   v.GetString("SESSION_COOKIE_NAME"),
			CookieSecure: v.GetBool("SESSION_COOKIE_SECURE"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_HOST", "localhost")
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("S3_ENDPOINT", "localhost:9000")
	v.SetDefault("S3_ACCESS_KEY_ID", "minioadmin")
	v.SetDefault("S3_SECRET_ACCESS_KEY", "minioadmin")
	v.SetDefault("S3_USE_SSL", false)
	v.SetDefault("S3_BUCKET_NAME", "sessions")
	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("APP_MAX_UPLOAD_SIZE", 10*1024*1024) // 10MB
	v.SetDefault("APP_ALLOWED_FORMATS", []string{"image/jpeg", "image/png", "image/bmp", "image/webp"})
	v.SetDefault("APP_DEMO_MODE", true)
	v.SetDefault("APP_FALLBACK_IMAGE", "https://images.unsplash.com/photo-1541888946425-d81bb19240f5")
	v.SetDefault("APP_TICK_INTERVAL", 300*time.Millisecond)
	v.SetDefault("APP_COMPLETION_DELAY", 500*time.Millisecond)
	v.SetDefault("APP_LOG_LEVEL", "info")
	v.SetDefault("SESSION_BACKEND", "memory")
	v.SetDefault("SESSION_SQLITE_PATH", "")
	v.SetDefault("SESSION_TTL", 30*time.Minute)
	v.SetDefault("SESSION_SWEEP_EVERY", time.Minute)
	v.SetDefault("SESSION_COOKIE_NAME", "dd_session")
	v.SetDefault("SESSION_COOKIE_SECURE", false)
}

// Validate checks that the loaded values are usable.
func (c *Config) Validate() error {
	if c.App.MaxUploadSize <= 0 {
		return fmt.Errorf("APP_MAX_UPLOAD_SIZE must be positive, got %d", c.App.MaxUploadSize)
	}
	if len(c.App.AllowedFormats) == 0 {
		return fmt.Errorf("APP_ALLOWED_FORMATS must not be empty")
	}
	if c.App.TickInterval <= 0 {
		return fmt.Errorf("APP_TICK_INTERVAL must be positive, got %s", c.App.TickInterval)
	}
	if c.App.CompletionDelay < 0 {
		return fmt.Errorf("APP_COMPLETION_DELAY must not be negative, got %s", c.App.CompletionDelay)
	}
	switch c.Session.Backend {
	case "memory", "sqlite", "s3":
	default:
		return fmt.Errorf("unknown SESSION_BACKEND %q (want memory, sqlite or s3)", c.Session.Backend)
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive, got %s", c.Session.TTL)
	}
	if c.Session.CookieName == "" {
		return fmt.Errorf("SESSION_COOKIE_NAME must not be empty")
	}
	return nil
}

// splitList flattens list settings given either as a YAML list or as one
// comma or space separated env value.
func splitList(items []string) []string {
	var out []string
	for _, item := range items {
		out = append(out, strings.FieldsFunc(item, func(r rune) bool {
			return r == ',' || unicode.IsSpace(r)
		})...)
	}
	return out
}

// Addr returns the listen address of the HTTP server.
func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}
