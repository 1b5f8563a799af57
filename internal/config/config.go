package config

import (
	"fmt"
	"net/mail"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

type Config struct {
	// HTTP Server
	Port            string
	Environment     string
	CORSOrigin      string
	FrontendURL     string
	ShutdownTimeout time.Duration

	// Database
	SQLiteDBPath string

	// Auth
	JWTSecret      string
	JWTIssuer      string
	GoogleClientID string

	// Receipts
	UploadDir       string
	ReceiptMaxBytes int64

	// Rate limiting, requests per window per client IP
	RateLimit      int
	ResetRateLimit int

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// SMTP, used by the mailer worker
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	MailFrom     string

	LogLevel string
}

func Load() *Config {
	return &Config{
		Port:            getEnv("PORT", "5000"),
		Environment:     strings.ToLower(getEnv("ENVIRONMENT", EnvDevelopment)),
		CORSOrigin:      getEnv("CORS_ORIGIN", "http://localhost:5173"),
		FrontendURL:     getEnv("FRONTEND_URL", "http://localhost:5173"),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/expenses.db"),

		JWTSecret:      getEnv("JWT_SECRET", ""),
		JWTIssuer:      getEnv("JWT_ISSUER", "expenses"),
		GoogleClientID: getEnv("GOOGLE_CLIENT_ID", ""),

		UploadDir:       getEnv("UPLOAD_DIR", "./uploads/receipts"),
		ReceiptMaxBytes: int64(getEnvInt("RECEIPT_MAX_BYTES", 5<<20)),

		RateLimit:      getEnvInt("RATE_LIMIT", 120),
		ResetRateLimit: getEnvInt("RESET_RATE_LIMIT", 5),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "expenses"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "mail"),

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnvInt("SMTP_PORT", 587),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		MailFrom:     getEnv("MAIL_FROM", "Expense Tracker <noreply@localhost>"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// IsProduction reports whether error details must be hidden from clients.
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// Validate validates the configuration of the API server and returns an
// error listing every problem found.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch c.Environment {
	case EnvDevelopment, EnvProduction, EnvTest:
	default:
		errors = append(errors, fmt.Sprintf("invalid environment '%s': must be one of [development production test]", c.Environment))
	}

	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else if msg := ensureDir(filepath.Dir(c.SQLiteDBPath)); msg != "" {
		errors = append(errors, "cannot create SQLite database directory "+msg)
	}

	if c.JWTSecret == "" {
		errors = append(errors, "JWT_SECRET is required")
	} else if c.IsProduction() && len(c.JWTSecret) < 32 {
		errors = append(errors, "JWT_SECRET must be at least 32 characters in production")
	}
	if c.JWTIssuer == "" {
		errors = append(errors, "JWT issuer cannot be empty")
	}

	if c.UploadDir == "" {
		errors = append(errors, "upload directory cannot be empty")
	}
	if c.ReceiptMaxBytes < 1 {
		errors = append(errors, fmt.Sprintf("invalid receipt size limit %d: must be positive", c.ReceiptMaxBytes))
	}

	if c.RateLimit < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1", c.RateLimit))
	}
	if c.ResetRateLimit < 1 {
		errors = append(errors, fmt.Sprintf("invalid reset rate limit %d: must be at least 1", c.ResetRateLimit))
	}

	for name, raw := range map[string]string{"frontend URL": c.FrontendURL, "CORS origin": c.CORSOrigin} {
		if raw == "" || raw == "*" {
			continue
		}
		if u, err := url.Parse(raw); err != nil || u.Scheme == "" || u.Host == "" {
			errors = append(errors, fmt.Sprintf("invalid %s '%s': must be an absolute URL", name, raw))
		}
	}

	errors = append(errors, c.amqpErrors()...)

	if c.ShutdownTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid shutdown timeout %v: must be at least 1 second", c.ShutdownTimeout))
	}

	return combine(errors)
}

// ValidateWorker validates what the mailer worker needs: a queue and an
// SMTP relay.
func (c *Config) ValidateWorker() error {
	var errors []string
	if c.AMQPURL == "" {
		errors = append(errors, "AMQP_URL is required for the mailer worker")
	}
	errors = append(errors, c.amqpErrors()...)

	if c.SMTPHost == "" {
		errors = append(errors, "SMTP_HOST is required for the mailer worker")
	}
	if c.SMTPPort < 1 || c.SMTPPort > 65535 {
		errors = append(errors, fmt.Sprintf("invalid SMTP port %d: must be between 1 and 65535", c.SMTPPort))
	}
	if _, err := mail.ParseAddress(c.MailFrom); err != nil {
		errors = append(errors, fmt.Sprintf("invalid MAIL_FROM '%s': %v", c.MailFrom, err))
	}
	return combine(errors)
}

func (c *Config) amqpErrors() []string {
	if c.AMQPURL == "" {
		return nil
	}
	var errors []string
	if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
		errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
	} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
		errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
	}
	if c.AMQPExchange == "" {
		errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
	}
	if c.AMQPQueue == "" {
		errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
	}
	return errors
}

func ensureDir(dir string) string {
	if dir == "." || dir == "" {
		return ""
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Sprintf("'%s': %v", dir, err)
		}
	}
	return ""
}

func combine(errors []string) error {
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
