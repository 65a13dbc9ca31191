package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/digitaljerry/mbus/source"
)

const (
	CacheMemory = "memory"
	CacheSQLite = "sqlite"
)

type Config struct {
	SourceKind string
	BaseURL    string
	WebURL     string
	TodayOnly  bool
	UserAgent  string
	Timeout    time.Duration

	CacheBackend string
	CacheDir     string
	CacheTTL     time.Duration

	SamplesPath string
	GroupsPath  string

	Location       *time.Location
	ListenAddr     string
	AllowedOrigins []string
}

// Loads configuration from MBUS_* environment variables. Any .env
// files given (or ./.env if none) are read into the environment
// first, without overriding variables already set.
func Load(files ...string) (*Config, error) {
	// Missing .env files are fine
	_ = godotenv.Load(files...)

	cfg := &Config{
		SourceKind:   getenvDefault("MBUS_SOURCE", source.KindStopTimes),
		BaseURL:      os.Getenv("MBUS_BASE_URL"),
		WebURL:       os.Getenv("MBUS_WEB_URL"),
		UserAgent:    getenvDefault("MBUS_USER_AGENT", source.DefaultUserAgent),
		CacheBackend: getenvDefault("MBUS_CACHE", CacheMemory),
		CacheDir:     getenvDefault("MBUS_CACHE_DIR", "."),
		SamplesPath:  os.Getenv("MBUS_SAMPLES"),
		GroupsPath:   getenvDefault("MBUS_GROUPS", "groups.yaml"),
		ListenAddr:   getenvDefault("MBUS_LISTEN", ":8080"),
	}

	switch cfg.SourceKind {
	case source.KindStopTimes, source.KindGTFSRT:
	default:
		return nil, fmt.Errorf("invalid MBUS_SOURCE: %q", cfg.SourceKind)
	}

	switch cfg.CacheBackend {
	case CacheMemory, CacheSQLite:
	default:
		return nil, fmt.Errorf("invalid MBUS_CACHE: %q", cfg.CacheBackend)
	}

	cfg.TodayOnly = parseBool(os.Getenv("MBUS_TODAY_ONLY"))

	// Upstream timeout (milliseconds)
	if v := os.Getenv("MBUS_TIMEOUT_MS"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil || ms <= 0 {
			return nil, fmt.Errorf("invalid MBUS_TIMEOUT_MS: %q", v)
		}
		cfg.Timeout = time.Duration(ms) * time.Millisecond
	} else {
		cfg.Timeout = source.DefaultTimeout
	}

	// Cache TTL (seconds)
	if v := os.Getenv("MBUS_CACHE_TTL_SEC"); v != "" {
		sec, err := strconv.Atoi(v)
		if err != nil || sec <= 0 {
			return nil, fmt.Errorf("invalid MBUS_CACHE_TTL_SEC: %q", v)
		}
		cfg.CacheTTL = time.Duration(sec) * time.Second
	} else {
		cfg.CacheTTL = 60 * time.Second
	}

	tzName := firstNonEmpty(os.Getenv("MBUS_TZ"), os.Getenv("TZ"))
	if tzName == "" {
		cfg.Location = time.Local
	} else {
		loc, err := time.LoadLocation(tzName)
		if err != nil {
			return nil, fmt.Errorf("invalid MBUS_TZ: %w", err)
		}
		cfg.Location = loc
	}

	if v := os.Getenv("MBUS_CORS_ORIGINS"); v != "" {
		for _, origin := range strings.Split(v, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
			}
		}
	} else {
		cfg.AllowedOrigins = []string{"*"}
	}

	return cfg, nil
}

// Source configuration derived from cfg.
func (cfg *Config) Source() source.Config {
	return source.Config{
		Kind:      cfg.SourceKind,
		BaseURL:   cfg.BaseURL,
		WebURL:    cfg.WebURL,
		UserAgent: cfg.UserAgent,
		Timeout:   cfg.Timeout,
		TodayOnly: cfg.TodayOnly,
		Location:  cfg.Location,
	}
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	}
	return false
}
