package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds client configuration.
type Config struct {
	Env          string
	APIBaseURL   string
	HTTPTimeout  time.Duration
	SessionStore string
	SessionFile  string
	SessionKey   string
	RedisURL     string
	LogFile      string
	LogLevel     string
	OTelEnabled  bool
	OTelEndpoint string
	ProfilePath  string
}

// StubConfig holds configuration for the local stand-in backend.
type StubConfig struct {
	Env        string
	Port       string
	PublicURL  string
	DataDir    string
	JWTSecret  string
	TokenTTL   time.Duration
	S3Bucket   string
	S3Region   string
	S3Endpoint string
	NATSURL    string
	CORSOrigin string
	LogFile    string
	LogLevel   string
}

// Load reads client configuration. Precedence, lowest first: built-in defaults,
// YAML profile (SAINTPLUS_PROFILE), .env files, process environment.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles()

	profile, profilePath := loadProfile(os.Getenv("SAINTPLUS_PROFILE"))

	return Config{
		Env:          normalizeEnv(getEnv("ENV", profile.get("env", "dev"))),
		APIBaseURL:   strings.TrimRight(getEnv("SAINTPLUS_API_URL", profile.get("api_url", "http://localhost:8080")), "/"),
		HTTPTimeout:  time.Duration(getEnvInt("SAINTPLUS_HTTP_TIMEOUT_SECONDS", profile.getInt("http_timeout_seconds", 0))) * time.Second,
		SessionStore: normalizeSessionStore(getEnv("SAINTPLUS_SESSION_STORE", profile.get("session_store", "file"))),
		SessionFile:  getEnv("SAINTPLUS_SESSION_FILE", profile.get("session_file", defaultSessionFile())),
		SessionKey:   getEnv("SAINTPLUS_SESSION_KEY", profile.get("session_key", "default")),
		RedisURL:     getEnv("REDIS_URL", profile.get("redis_url", "redis://localhost:6379")),
		LogFile:      getEnv("SAINTPLUS_LOG_FILE", profile.get("log_file", "")),
		LogLevel:     getEnv("LOG_LEVEL", profile.get("log_level", "info")),
		OTelEnabled:  getEnvBool("OTEL_ENABLED", profile.getBool("otel_enabled", false)),
		OTelEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", profile.get("otel_endpoint", "localhost:4318")),
		ProfilePath:  profilePath,
	}
}

// LoadStub reads configuration for cmd/stubserver.
func LoadStub() StubConfig {
	loadEnvFiles()

	port := getEnv("STUB_PORT", "8080")
	return StubConfig{
		Env:        normalizeEnv(getEnv("ENV", "dev")),
		Port:       port,
		PublicURL:  strings.TrimRight(getEnv("STUB_PUBLIC_URL", "http://localhost:"+strings.TrimPrefix(port, ":")), "/"),
		DataDir:    getEnv("STUB_DATA_DIR", "./data"),
		JWTSecret:  getEnv("STUB_JWT_SECRET", ""),
		TokenTTL:   time.Duration(getEnvInt("STUB_TOKEN_TTL_MINUTES", 60)) * time.Minute,
		S3Bucket:   getEnv("STUB_S3_BUCKET", ""),
		S3Region:   getEnv("STUB_S3_REGION", "us-east-1"),
		S3Endpoint: getEnv("STUB_S3_ENDPOINT", ""),
		NATSURL:    getEnv("STUB_NATS_URL", ""),
		CORSOrigin: getEnv("STUB_CORS_ALLOW_ORIGIN", "http://localhost:3000"),
		LogFile:    getEnv("STUB_LOG_FILE", ""),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, def string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil && parsed >= 0 {
			return parsed
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return def
}

// loadEnvFiles never overrides variables already set in the process.
func loadEnvFiles() {
	var found []string
	for _, p := range []string{".env", filepath.Join("cmd", ".env")} {
		if _, err := os.Stat(p); err == nil {
			found = append(found, p)
		}
	}
	if len(found) == 0 {
		return
	}
	_ = godotenv.Load(found...)
}

func defaultSessionFile() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(".", ".saintplus", "session.json")
	}
	return filepath.Join(home, ".saintplus", "session.json")
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	default:
		return "dev"
	}
}

func normalizeSessionStore(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "redis":
		return "redis"
	case "memory", "mem":
		return "memory"
	default:
		return "file"
	}
}
