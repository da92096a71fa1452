package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	DatabaseURL string
	RedisURL    string

	ClerkSecretKey     string
	ClerkWebhookSecret string
	AdminClerkIDs      []string

	QRSigningSecret string
	QRTokenTTL      time.Duration

	FCMServiceAccountJSON string
	FCMCredentialsFile    string

	MetricsUser string
	MetricsPass string
	PprofSecret string
	TrustProxy  bool

	LogLevel string
	LogPath  string

	CheckInCooldown      time.Duration
	CheckInRadiusMeters  float64
	DefaultCheckInPoints int
	PointsPerLevel       int

	LeaderboardCacheTTL time.Duration
	RaffleDrawSchedule  string
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function so tests can feed a map.
func FromEnv(getenv func(string) string) (*Config, error) {
	p := parser{getenv: getenv}

	cfg := &Config{
		Port:                  p.str("PORT", "3333"),
		DatabaseURL:           p.required("DATABASE_URL"),
		RedisURL:              p.str("REDIS_URL", ""),
		ClerkSecretKey:        p.required("CLERK_SECRET_KEY"),
		ClerkWebhookSecret:    p.str("CLERK_WEBHOOK_SECRET", ""),
		AdminClerkIDs:         p.list("ADMIN_CLERK_IDS"),
		QRSigningSecret:       p.required("QR_SIGNING_SECRET"),
		QRTokenTTL:            p.duration("QR_TOKEN_TTL", 720*time.Hour),
		FCMServiceAccountJSON: p.str("FCM_SERVICE_ACCOUNT_JSON", ""),
		FCMCredentialsFile:    p.str("FCM_CREDENTIALS_FILE", "./serviceAccountKey.json"),
		MetricsUser:           p.str("METRICS_USER", ""),
		MetricsPass:           p.str("METRICS_PASS", ""),
		PprofSecret:           p.str("PPROF_SECRET", ""),
		TrustProxy:            p.bool("TRUST_PROXY", false),
		LogLevel:              p.str("LOG_LEVEL", "info"),
		LogPath:               p.str("LOG_PATH", ""),
		CheckInCooldown:       p.duration("CHECKIN_COOLDOWN", 24*time.Hour),
		CheckInRadiusMeters:   p.float("CHECKIN_RADIUS_METERS", 150),
		DefaultCheckInPoints:  p.int("DEFAULT_CHECKIN_POINTS", 10),
		PointsPerLevel:        p.int("POINTS_PER_LEVEL", 100),
		LeaderboardCacheTTL:   p.duration("LEADERBOARD_CACHE_TTL", 60*time.Second),
		RaffleDrawSchedule:    p.str("RAFFLE_DRAW_SCHEDULE", "@every 1m"),
	}

	if p.err != nil {
		return nil, p.err
	}

	if cfg.PointsPerLevel <= 0 {
		return nil, fmt.Errorf("POINTS_PER_LEVEL must be positive, got %d", cfg.PointsPerLevel)
	}
	if cfg.CheckInRadiusMeters <= 0 {
		return nil, fmt.Errorf("CHECKIN_RADIUS_METERS must be positive, got %v", cfg.CheckInRadiusMeters)
	}
	if cfg.CheckInCooldown < 0 {
		return nil, fmt.Errorf("CHECKIN_COOLDOWN must not be negative, got %s", cfg.CheckInCooldown)
	}
	if cfg.DefaultCheckInPoints < 0 {
		return nil, fmt.Errorf("DEFAULT_CHECKIN_POINTS must not be negative, got %d", cfg.DefaultCheckInPoints)
	}
	if cfg.QRTokenTTL <= 0 {
		return nil, fmt.Errorf("QR_TOKEN_TTL must be positive, got %s", cfg.QRTokenTTL)
	}

	return cfg, nil
}

// IsAdmin reports whether the Clerk user is in ADMIN_CLERK_IDS.
func (c *Config) IsAdmin(clerkID string) bool {
	for _, id := range c.AdminClerkIDs {
		if id == clerkID {
			return true
		}
	}
	return false
}

// parser keeps the first error so Load can report it after reading every key.
type parser struct {
	getenv func(string) string
	err    error
}

func (p *parser) fail(err error) {
	if p.err == nil {
		p.err = err
	}
}

func (p *parser) str(key, def string) string {
	if v := strings.TrimSpace(p.getenv(key)); v != "" {
		return v
	}
	return def
}

func (p *parser) required(key string) string {
	v := strings.TrimSpace(p.getenv(key))
	if v == "" {
		p.fail(fmt.Errorf("%s environment variable is not set", key))
	}
	return v
}

func (p *parser) list(key string) []string {
	raw := p.getenv(key)
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(p.getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		p.fail(fmt.Errorf("invalid %s: %w", key, err))
		return def
	}
	return d
}

func (p *parser) int(key string, def int) int {
	raw := strings.TrimSpace(p.getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		p.fail(fmt.Errorf("invalid %s: %w", key, err))
		return def
	}
	return n
}

func (p *parser) bool(key string, def bool) bool {
	raw := strings.TrimSpace(p.getenv(key))
	if raw == "" {
		return def
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		p.fail(fmt.Errorf("invalid %s: %w", key, err))
		return def
	}
	return b
}

func (p *parser) float(key string, def float64) float64 {
	raw := strings.TrimSpace(p.getenv(key))
	if raw == "" {
		return def
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		p.fail(fmt.Errorf("invalid %s: %w", key, err))
		return def
	}
	return f
}
