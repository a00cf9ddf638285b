package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// App holds the runtime configuration loaded from environment variables.
type App struct {
	Env      string
	LogLevel string

	Client Client

	CredentialBackend string
	CredentialFile    string
	CredentialKey     string
	CredentialTTL     time.Duration
	RedisAddr         string
	SQLDriver         string
	SQLDSN            string

	EventBackend string
	EventKey     string

	KioskSessionID    string
	KioskPollInterval time.Duration
	KioskListenAddr   string
	KioskCaptureDir   string
}

// Client holds the settings shared by every request client profile.
type Client struct {
	BaseURL         string
	APIPrefix       string
	RequestTimeout  time.Duration
	UploadTimeout   time.Duration
	RateLimitPerMin int
	UserAgent       string
}

// Endpoint returns the base URL joined with the API prefix, without a trailing slash.
func (c Client) Endpoint() string {
	return strings.TrimRight(c.BaseURL, "/") + "/" + strings.Trim(c.APIPrefix, "/")
}

// Load returns application config populated from environment variables with sensible defaults.
// A .env file in the working directory is applied first when present; real environment
// variables take precedence over it.
func Load() App {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("ignoring unreadable .env: %v", err)
	}
	return FromEnv()
}

// FromEnv reads the configuration without touching .env files.
func FromEnv() App {
	return App{
		Env:      getEnv("APP_ENV", "dev"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Client: Client{
			BaseURL:         getEnv("ATTEND_BASE_URL", "http://localhost:8000"),
			APIPrefix:       getEnv("ATTEND_API_PREFIX", "/api/v1"),
			RequestTimeout:  durationEnv("REQUEST_TIMEOUT", 15*time.Second),
			UploadTimeout:   durationEnv("UPLOAD_TIMEOUT", 60*time.Second),
			RateLimitPerMin: intEnv("RATE_LIMIT_PER_MIN", 120),
			UserAgent:       getEnv("USER_AGENT", "campusattend/1.0"),
		},
		CredentialBackend: getEnv("CREDENTIAL_BACKEND", "file"),
		CredentialFile:    getEnv("CREDENTIAL_FILE", defaultCredentialFile()),
		CredentialKey:     getEnv("CREDENTIAL_KEY", ""),
		CredentialTTL:     durationEnv("CREDENTIAL_TTL", 24*time.Hour),
		RedisAddr:         getEnv("REDIS_URL", getEnv("REDIS_ADDR", "localhost:6379")),
		SQLDriver:         getEnv("SQL_DRIVER", "sqlite3"),
		SQLDSN:            getEnv("SQL_DSN", "file:campusattend.db?_busy_timeout=5000"),
		EventBackend:      getEnv("EVENT_BACKEND", "memory"),
		EventKey:          getEnv("EVENT_KEY", "campusattend:events"),
		KioskSessionID:    getEnv("KIOSK_SESSION_ID", ""),
		KioskPollInterval: durationEnv("KIOSK_POLL_INTERVAL", 15*time.Second),
		KioskListenAddr:   getEnv("KIOSK_LISTEN_ADDR", "127.0.0.1:9100"),
		KioskCaptureDir:   getEnv("KIOSK_CAPTURE_DIR", ""),
	}
}

// Validate reports every setting that would make the client unusable.
func (a App) Validate() error {
	var problems []string
	if !strings.HasPrefix(a.Client.BaseURL, "http://") && !strings.HasPrefix(a.Client.BaseURL, "https://") {
		problems = append(problems, "ATTEND_BASE_URL must start with http:// or https://")
	}
	if a.Client.RequestTimeout <= 0 {
		problems = append(problems, "REQUEST_TIMEOUT must be positive")
	}
	if a.Client.UploadTimeout <= 0 {
		problems = append(problems, "UPLOAD_TIMEOUT must be positive")
	}
	switch a.CredentialBackend {
	case "memory", "redis":
	case "file":
		if a.CredentialFile == "" {
			problems = append(problems, "CREDENTIAL_FILE is required for the file backend")
		}
		if a.CredentialKey == "" {
			problems = append(problems, "CREDENTIAL_KEY is required for the file backend")
		}
	case "sql":
		if a.SQLDriver != "pgx" && a.SQLDriver != "sqlite3" {
			problems = append(problems, "SQL_DRIVER must be pgx or sqlite3")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown CREDENTIAL_BACKEND %q", a.CredentialBackend))
	}
	if a.EventBackend != "memory" && a.EventBackend != "redis" {
		problems = append(problems, fmt.Sprintf("unknown EVENT_BACKEND %q", a.EventBackend))
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func defaultCredentialFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home + "/.campusattend/credential"
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			log.Printf("invalid duration for %s: %v, using fallback %s", key, err, fallback)
			return fallback
		}
		return d
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		var parsed int
		if _, err := fmt.Sscanf(val, "%d", &parsed); err == nil {
			return parsed
		}
		log.Printf("invalid int for %s, using fallback %d", key, fallback)
	}
	return fallback
}
