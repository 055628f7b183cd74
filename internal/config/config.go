package config

import (
	"os"
	"strconv"
	"time"
)

// LogConfig controls the zap logger.
type LogConfig struct {
	Level   string
	Format  string
	Service string
}

// DatabaseConfig holds PostgreSQL database connection settings.
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
}

// MinIOConfig holds object storage settings for MinIO.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// RedisConfig holds the connection used for verified-OTP grants.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// GotenbergConfig points at the DOCX to PDF conversion service.
type GotenbergConfig struct {
	URL        string
	Timeout    time.Duration
	RetryCount int
}

// SMTPConfig holds outbound mail settings. An empty Host disables SMTP
// delivery and mails are only logged.
type SMTPConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	From        string
	DisplayName string
	UseTLS      bool
}

// SigningConfig describes where the sealing certificate comes from.
// Mode is one of "", "Disabled", "Base64" or "File".
type SigningConfig struct {
	Mode        string
	PfxBase64   string
	PfxPath     string
	PfxPassword string
	Reason      string
	Location    string
	Required    bool
}

// InviteConfig holds invite lifetimes.
type InviteConfig struct {
	OtpTTL   time.Duration
	LinkTTL  time.Duration
	GrantTTL time.Duration
}

// LocatorConfig holds default slot dimensions as page ratios.
type LocatorConfig struct {
	DefaultWidth  float64
	DefaultHeight float64
	Margin        float64
}

// AuthConfig holds bearer token verification settings for staff routes.
type AuthConfig struct {
	JWTSecret string
	Issuer    string
	Audience  string
}

// UploadConfig limits template uploads.
type UploadConfig struct {
	MaxDocxBytes int64
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	AppHost    string
	Port       string
	WebBaseURL string
	Log        LogConfig
	Database   DatabaseConfig
	MinIO      MinIOConfig
	Redis      RedisConfig
	Gotenberg  GotenbergConfig
	SMTP       SMTPConfig
	Signing    SigningConfig
	Invite     InviteConfig
	Locator    LocatorConfig
	Auth       AuthConfig
	Upload     UploadConfig
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
func Load() *AppConfig {
	return &AppConfig{
		AppHost:    getEnv("APP_HOST", "localhost:8080"),
		Port:       getEnv("PORT", "8080"),
		WebBaseURL: getEnv("PUBLIC_WEB_BASE_URL", "http://localhost:3000"),
		Log: LogConfig{
			Level:   getEnv("LOG_LEVEL", "info"),
			Format:  getEnv("LOG_FORMAT", "json"),
			Service: getEnv("LOG_SERVICE_NAME", "docsign"),
		},
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", ""),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Gotenberg: GotenbergConfig{
			URL:        getEnv("GOTENBERG_URL", "http://localhost:3000"),
			Timeout:    getEnvDuration("GOTENBERG_TIMEOUT", 60*time.Second),
			RetryCount: getEnvInt("GOTENBERG_RETRY_COUNT", 2),
		},
		SMTP: SMTPConfig{
			Host:        getEnv("SMTP_HOST", ""),
			Port:        getEnvInt("SMTP_PORT", 587),
			User:        getEnv("SMTP_USER", ""),
			Password:    getEnv("SMTP_PASSWORD", ""),
			From:        getEnv("SMTP_FROM", "no-reply@localhost"),
			DisplayName: getEnv("SMTP_DISPLAY_NAME", "DocSign"),
			UseTLS:      getEnvBool("SMTP_USE_TLS", true),
		},
		Signing: SigningConfig{
			Mode:        getEnv("SIGNING_MODE", ""),
			PfxBase64:   getEnv("SIGNING_PFX_BASE64", ""),
			PfxPath:     getEnv("SIGNING_PFX_PATH", ""),
			PfxPassword: getEnv("SIGNING_PFX_PASSWORD", ""),
			Reason:      getEnv("SIGNING_REASON", "Document signed electronically"),
			Location:    getEnv("SIGNING_LOCATION", ""),
			Required:    getEnvBool("SIGNING_REQUIRED", false),
		},
		Invite: InviteConfig{
			OtpTTL:   getEnvDuration("INVITE_OTP_TTL", 20*time.Minute),
			LinkTTL:  getEnvDuration("INVITE_LINK_TTL", 7*24*time.Hour),
			GrantTTL: getEnvDuration("INVITE_GRANT_TTL", 20*time.Minute),
		},
		Locator: LocatorConfig{
			DefaultWidth:  getEnvFloat("SLOT_DEFAULT_WIDTH", 0.15),
			DefaultHeight: getEnvFloat("SLOT_DEFAULT_HEIGHT", 0.04),
			Margin:        getEnvFloat("SLOT_MARGIN", 0),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			Issuer:    getEnv("JWT_ISSUER", ""),
			Audience:  getEnv("JWT_AUDIENCE", ""),
		},
		Upload: UploadConfig{
			MaxDocxBytes: int64(getEnvInt("UPLOAD_MAX_DOCX_BYTES", 10<<20)),
		},
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return f
		}
	}
	return def
}

// getEnvDuration accepts Go duration strings ("20m", "168h").
func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err == nil && d > 0 {
			return d
		}
	}
	return def
}
