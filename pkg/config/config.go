package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Notification transports understood by NotifyConfig.Transport.
const (
	TransportLog      = "log"
	TransportSMS      = "sms"
	TransportWhatsApp = "whatsapp"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string
	Timezone  string
	// SessionIdleTTL expires tap sessions nobody has used for this long.
	SessionIdleTTL time.Duration

	Database   DatabaseConfig
	Redis      RedisConfig
	CORS       CORSConfig
	Log        LogConfig
	Notify     NotifyConfig
	ChangeFeed ChangeFeedConfig
	DayInit    DayInitConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// NotifyConfig selects and configures the parent notification transport.
type NotifyConfig struct {
	Transport string
	SMS       SMSConfig
	WhatsApp  WhatsAppConfig
}

// SMSConfig configures the HTTP SMS provider.
type SMSConfig struct {
	APIURL       string
	AccountSID   string
	AuthToken    string
	SenderNumber string
	Timeout      time.Duration
}

// WhatsAppConfig points at the whatsmeow device store.
type WhatsAppConfig struct {
	DataDir string
}

// ChangeFeedConfig names the pub/sub channel prefix used for live views.
type ChangeFeedConfig struct {
	Channel string
}

// DayInitConfig tunes the background day initialization queue.
type DayInitConfig struct {
	Workers    int
	Retries    int
	RetryDelay time.Duration
}

// Location resolves the configured timezone, falling back to the host's local zone.
func (c *Config) Location() *time.Location {
	if c == nil || c.Timezone == "" || strings.EqualFold(c.Timezone, "local") {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")
	cfg.Timezone = v.GetString("TIMEZONE")
	cfg.SessionIdleTTL = parseDuration(v.GetString("SESSION_IDLE_TTL"), 12*time.Hour)

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Notify = NotifyConfig{
		Transport: strings.ToLower(v.GetString("NOTIFY_TRANSPORT")),
		SMS: SMSConfig{
			APIURL:       v.GetString("SMS_API_URL"),
			AccountSID:   v.GetString("SMS_ACCOUNT_SID"),
			AuthToken:    v.GetString("SMS_AUTH_TOKEN"),
			SenderNumber: v.GetString("SMS_SENDER_NUMBER"),
			Timeout:      parseDuration(v.GetString("SMS_TIMEOUT"), 10*time.Second),
		},
		WhatsApp: WhatsAppConfig{
			DataDir: v.GetString("WHATSAPP_DATA_DIR"),
		},
	}

	cfg.ChangeFeed = ChangeFeedConfig{
		Channel: v.GetString("CHANGE_FEED_CHANNEL"),
	}

	cfg.DayInit = DayInitConfig{
		Workers:    v.GetInt("INIT_WORKERS"),
		Retries:    v.GetInt("INIT_RETRIES"),
		RetryDelay: parseDuration(v.GetString("INIT_RETRY_DELAY"), 2*time.Second),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")
	v.SetDefault("TIMEZONE", "Local")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "rollcall")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("NOTIFY_TRANSPORT", TransportLog)
	v.SetDefault("SMS_API_URL", "")
	v.SetDefault("SMS_ACCOUNT_SID", "")
	v.SetDefault("SMS_AUTH_TOKEN", "")
	v.SetDefault("SMS_SENDER_NUMBER", "")
	v.SetDefault("SMS_TIMEOUT", "10s")
	v.SetDefault("WHATSAPP_DATA_DIR", "./data")

	v.SetDefault("CHANGE_FEED_CHANNEL", "rollcall:changes")

	v.SetDefault("INIT_WORKERS", 1)
	v.SetDefault("INIT_RETRIES", 3)
	v.SetDefault("INIT_RETRY_DELAY", "2s")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
