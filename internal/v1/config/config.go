package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Config holds validated environment configuration.
type Config struct {
	// Server
	Port string

	// Persistence
	StateDir        string
	RoomStateFile   string
	SessionStateFile string

	// CORS
	CorsAllowOrigins string

	// Socket behaviour
	SocketDisconnectGraceSeconds int

	// Question provider
	GeminiAPIKey        string
	GeminiModel         string
	GeminiTimeoutSeconds int

	// Optional variables with defaults
	GoEnv    string
	LogLevel string

	// Redis (optional distributed cache / rate-limit store)
	RedisEnabled  bool
	RedisAddr     string
	RedisPassword string

	// Rate limits
	RateLimitApiGlobal   string
	RateLimitApiPublic   string
	RateLimitApiRooms    string
	RateLimitApiMessages string
	RateLimitWsIp        string
}

// ValidateEnv reads the environment, applies defaults for unset variables,
// and returns a Config object. Returns an error listing every variable whose
// value is invalid.
func ValidateEnv() (*Config, error) {
	cfg := &Config{}
	var errors []string

	cfg.Port = os.Getenv("PORT")
	if cfg.Port == "" {
		cfg.Port = "8080"
	} else {
		port, err := strconv.Atoi(cfg.Port)
		if err != nil || port < 1 || port > 65535 {
			errors = append(errors, fmt.Sprintf("PORT must be a valid port number between 1 and 65535 (got '%s')", cfg.Port))
		}
	}

	cfg.StateDir = getEnvOrDefault("STATE_DIR", "/data")
	cfg.RoomStateFile = getEnvOrDefault("ROOM_STATE_FILE", "rooms.json")
	cfg.SessionStateFile = getEnvOrDefault("SESSION_STATE_FILE", "sessions.json")
	cfg.CorsAllowOrigins = getEnvOrDefault("CORS_ALLOW_ORIGINS", "*")

	graceRaw := getEnvOrDefault("SOCKET_DISCONNECT_GRACE_SECONDS", "0")
	grace, err := strconv.Atoi(graceRaw)
	if err != nil || grace < 0 {
		errors = append(errors, fmt.Sprintf("SOCKET_DISCONNECT_GRACE_SECONDS must be a non-negative integer (got '%s')", graceRaw))
	}
	cfg.SocketDisconnectGraceSeconds = grace

	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	cfg.GeminiModel = getEnvOrDefault("GEMINI_MODEL", "gemini-1.5-flash")

	timeoutRaw := getEnvOrDefault("GEMINI_TIMEOUT_SECONDS", "35")
	timeout, err := strconv.Atoi(timeoutRaw)
	if err != nil || timeout < 1 {
		errors = append(errors, fmt.Sprintf("GEMINI_TIMEOUT_SECONDS must be a positive integer (got '%s')", timeoutRaw))
	}
	cfg.GeminiTimeoutSeconds = timeout

	// Conditional: REDIS_ADDR (required if REDIS_ENABLED=true)
	cfg.RedisEnabled = os.Getenv("REDIS_ENABLED") == "true"
	if cfg.RedisEnabled {
		cfg.RedisAddr = os.Getenv("REDIS_ADDR")
		if cfg.RedisAddr == "" {
			cfg.RedisAddr = "localhost:6379"
			slog.Warn("REDIS_ADDR not set, using default", "addr", cfg.RedisAddr)
		} else if !isValidHostPort(cfg.RedisAddr) {
			errors = append(errors, fmt.Sprintf("REDIS_ADDR must be in format 'host:port' (got '%s')", cfg.RedisAddr))
		}
		cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	}

	cfg.GoEnv = getEnvOrDefault("GO_ENV", "production")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	cfg.RateLimitApiGlobal = getEnvOrDefault("RATE_LIMIT_API_GLOBAL", "1000-M")
	cfg.RateLimitApiPublic = getEnvOrDefault("RATE_LIMIT_API_PUBLIC", "100-M")
	cfg.RateLimitApiRooms = getEnvOrDefault("RATE_LIMIT_API_ROOMS", "100-M")
	cfg.RateLimitApiMessages = getEnvOrDefault("RATE_LIMIT_API_MESSAGES", "500-M")
	cfg.RateLimitWsIp = getEnvOrDefault("RATE_LIMIT_WS_IP", "100-M")

	if len(errors) > 0 {
		return nil, fmt.Errorf("environment validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	logValidatedConfig(cfg)

	return cfg, nil
}

// isValidHostPort checks if a string is in the format "host:port".
func isValidHostPort(addr string) bool {
	parts := strings.Split(addr, ":")
	if len(parts) != 2 {
		return false
	}

	port, err := strconv.Atoi(parts[1])
	if err != nil || port < 1 || port > 65535 {
		return false
	}

	if parts[0] == "" {
		return false
	}

	return true
}

// logValidatedConfig logs the validated configuration with secrets redacted.
func logValidatedConfig(cfg *Config) {
	slog.Info("environment configuration validated")
	slog.Info("configuration",
		"port", cfg.Port,
		"state_dir", cfg.StateDir,
		"room_state_file", cfg.RoomStateFile,
		"session_state_file", cfg.SessionStateFile,
		"gemini_api_key", redactSecret(cfg.GeminiAPIKey),
		"gemini_model", cfg.GeminiModel,
		"redis_enabled", cfg.RedisEnabled,
		"redis_addr", cfg.RedisAddr,
		"go_env", cfg.GoEnv,
		"log_level", cfg.LogLevel,
		"rate_limit_api_global", cfg.RateLimitApiGlobal,
	)
}

// getEnvOrDefault returns the value of the environment variable or a default value if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// redactSecret redacts a secret by showing only the first 8 characters.
func redactSecret(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return "***"
	}
	return secret[:8] + "***"
}
