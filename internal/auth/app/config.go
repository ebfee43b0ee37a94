package app

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tidehall/gatekeeper/internal/auth/domain"
)

// Config is the full server configuration, read from the environment.
type Config struct {
	Env     string
	Port    int
	Version string

	LogLevel  string
	LogFormat string

	Issuer string

	DatabaseDriver string // "sqlite" or "postgres"
	DatabaseDSN    string

	PepperFile string

	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	CodeTTL         time.Duration

	RefreshRotation bool
	RequirePKCE     bool

	// Scopes is the server scope registry, parsed from
	// AUTH_SCOPES="name=description,name=description".
	Scopes domain.ScopeRegistry

	// JWTSecret enables the HS256 service-token authenticator for the
	// admin API when non-empty.
	JWTSecret string

	ShutdownGracePeriod  time.Duration
	HousekeepingInterval time.Duration
}

// LoadConfig reads configuration from the environment with sane defaults for
// local development.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Env:     getEnv("ENV", "dev"),
		Port:    getEnvInt("PORT", 8080),
		Version: getEnv("VERSION", "dev"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		Issuer: getEnv("AUTH_ISSUER", "http://localhost:8080"),

		DatabaseDriver: getEnv("AUTH_DATABASE_DRIVER", "sqlite"),
		DatabaseDSN:    getEnv("AUTH_DATABASE_DSN", "file:auth.db?cache=shared"),

		PepperFile: getEnv("AUTH_PEPPER_FILE", "pepper.key"),

		AccessTokenTTL:  getEnvDurationSec("AUTH_ACCESS_TOKEN_TTL", time.Hour),
		RefreshTokenTTL: getEnvDurationSec("AUTH_REFRESH_TOKEN_TTL", 7*24*time.Hour),
		CodeTTL:         getEnvDurationSec("AUTH_CODE_TTL", 10*time.Minute),

		RefreshRotation: getEnvBool("AUTH_REFRESH_ROTATION", true),
		RequirePKCE:     getEnvBool("AUTH_REQUIRE_PKCE", true),

		JWTSecret: os.Getenv("AUTH_JWT_SECRET"),

		ShutdownGracePeriod:  getEnvDurationSec("SHUTDOWN_GRACE_PERIOD", 15*time.Second),
		HousekeepingInterval: getEnvDurationSec("HOUSEKEEPING_INTERVAL", time.Hour),
	}

	switch cfg.DatabaseDriver {
	case "sqlite", "postgres":
	default:
		return nil, fmt.Errorf("config: unknown AUTH_DATABASE_DRIVER %q", cfg.DatabaseDriver)
	}

	scopes, err := parseScopeRegistry(getEnv("AUTH_SCOPES",
		"openid=Sign you in,profile=Read your profile,clients:admin=Manage OAuth2 clients"))
	if err != nil {
		return nil, err
	}
	cfg.Scopes = scopes

	return cfg, nil
}

// parseScopeRegistry parses "name=description,name=description".
func parseScopeRegistry(raw string) (domain.ScopeRegistry, error) {
	var out domain.ScopeRegistry
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, desc, _ := strings.Cut(entry, "=")
		name = strings.TrimSpace(name)
		if name == "" || strings.ContainsAny(name, " \t") {
			return nil, fmt.Errorf("config: bad scope entry %q in AUTH_SCOPES", entry)
		}
		out = append(out, domain.Scope{Name: name, Description: strings.TrimSpace(desc)})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("config: AUTH_SCOPES must define at least one scope")
	}
	return out, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// getEnvDurationSec reads a duration expressed in whole seconds.
func getEnvDurationSec(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
	}
	return def
}
