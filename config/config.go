package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the web app configuration. Values come from the environment
// (after .env has been loaded by main). The NEXT_PUBLIC_* names are accepted
// so an existing deployment's environment keeps working.
type Config struct {
	Port       string
	GinMode    string
	Env        string
	APIURL     string
	WSURL      string
	RedisAddr  string
	SessionTTL time.Duration
	LogLevel   string
	// UpstreamTimeout bounds every proxied request.
	UpstreamTimeout time.Duration
	// LoginRate is the number of login attempts allowed per minute per IP.
	LoginRate int
	// AllowedOrigins may call /api with credentials from another origin.
	AllowedOrigins []string
}

// IsProduction drives the cookie Secure/SameSite flags.
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func Load() Config {
	return Config{
		Port:            getenv("PORT", "3000"),
		GinMode:         getenv("GIN_MODE", ""),
		Env:             getenv("NEXT_PUBLIC_ENV", getenv("APP_ENV", "development")),
		APIURL:          strings.TrimRight(getenv("NEXT_PUBLIC_API_URL", getenv("API_URL", "http://localhost:8000")), "/"),
		WSURL:           getenv("NEXT_PUBLIC_WS_URL", getenv("WS_URL", "ws://localhost:8000/ws")),
		RedisAddr:       getenv("REDIS_ADDR", ""),
		SessionTTL:      getduration("SESSION_TTL", 5*time.Minute),
		LogLevel:        getenv("LOG_LEVEL", "info"),
		UpstreamTimeout: getduration("UPSTREAM_TIMEOUT", 15*time.Second),
		LoginRate:       getint("LOGIN_RATE_PER_MINUTE", 10),
		AllowedOrigins:  getlist("ALLOWED_ORIGINS"),
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getlist(k string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(k), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
