package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	_ "time/tzdata"

	"github.com/digitaljerry/mbus"
	"github.com/digitaljerry/mbus/config"
	"github.com/digitaljerry/mbus/metrics"
	"github.com/digitaljerry/mbus/model"
	"github.com/digitaljerry/mbus/parse"
	"github.com/digitaljerry/mbus/source"
	"github.com/digitaljerry/mbus/storage"
)

var rootCmd = &cobra.Command{
	Use:          "mbus",
	Short:        "Next bus departures",
	Long:         "Resolves upcoming departures for pinned stops and routes",
	SilenceUsage: true,
}

var (
	sourceKind   string
	baseURL      string
	webURL       string
	todayOnly    bool
	timeout      time.Duration
	userAgent    string
	headers      []string
	cacheBackend string
	cacheDir     string
	cacheTTL     time.Duration
	samplesPath  string
	groupsPath   string
	timezone     string
)

func registerFlags(cfg *config.Config) {
	tz := cfg.Location.String()
	if cfg.Location == time.Local {
		tz = ""
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&sourceKind, "source", "", cfg.SourceKind, "Upstream kind (stoptimes or gtfsrt)")
	flags.StringVarP(&baseURL, "base-url", "", cfg.BaseURL, "Upstream API base URL, or feed URL for gtfsrt")
	flags.StringVarP(&webURL, "web-url", "", cfg.WebURL, "Base of public stop page URLs")
	flags.BoolVarP(&todayOnly, "today-only", "", cfg.TodayOnly, "Upstream only serves the current day")
	flags.DurationVarP(&timeout, "timeout", "", cfg.Timeout, "Upstream request timeout")
	flags.StringVarP(&userAgent, "user-agent", "", cfg.UserAgent, "User-Agent sent upstream")
	flags.StringSliceVarP(&headers, "header", "", []string{}, "HTTP header sent upstream")
	flags.StringVarP(&cacheBackend, "cache", "", cfg.CacheBackend, "Cache backend (memory or sqlite)")
	flags.StringVarP(&cacheDir, "cache-dir", "", cfg.CacheDir, "Directory of the sqlite cache")
	flags.DurationVarP(&cacheTTL, "cache-ttl", "", cfg.CacheTTL, "Cache entry lifetime")
	flags.StringVarP(&samplesPath, "samples", "", cfg.SamplesPath, "Sample timetable CSV used when upstream is down")
	flags.StringVarP(&groupsPath, "groups", "", cfg.GroupsPath, "Journey groups YAML file")
	flags.StringVarP(&timezone, "tz", "", tz, "Timezone of the service area")
}

func main() {
	if os.Getenv("MBUS_LOG_FORMAT") != "JSON" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("MBUS_DEBUG") == "YES" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	appConfig = cfg
	registerFlags(cfg)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

var appConfig *config.Config

func parseHeaders(headers []string) (map[string]string, error) {
	parsed := map[string]string{}
	for _, header := range headers {
		parts := strings.SplitN(header, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("'%s' is not on form <key>:<value>", header)
		}
		parsed[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	return parsed, nil
}

func location() (*time.Location, error) {
	if timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone: %w", err)
	}
	return loc, nil
}

func openStorage() (storage.Storage, func(), error) {
	switch cacheBackend {
	case config.CacheMemory:
		return storage.NewMemoryStorage(), func() {}, nil
	case config.CacheSQLite:
		s, err := storage.NewSQLiteStorage(storage.SQLiteConfig{OnDisk: true, Directory: cacheDir})
		if err != nil {
			return nil, nil, fmt.Errorf("opening cache: %w", err)
		}
		return s, func() { s.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown cache backend %q", cacheBackend)
}

func loadSamples() (map[string][]model.SampleDeparture, error) {
	if samplesPath == "" {
		return map[string][]model.SampleDeparture{}, nil
	}

	f, err := os.Open(samplesPath)
	if err != nil {
		return nil, fmt.Errorf("opening samples: %w", err)
	}
	defer f.Close()

	samples, err := parse.ParseSamples(f)
	if err != nil {
		return nil, fmt.Errorf("parsing samples: %w", err)
	}
	return samples, nil
}

// Builds a Resolver from flags. The returned func releases its
// storage.
func buildResolver(collector *metrics.Collector) (*mbus.Resolver, func(), error) {
	loc, err := location()
	if err != nil {
		return nil, nil, err
	}

	h, err := parseHeaders(headers)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid header: %w", err)
	}

	srcConfig := appConfig.Source()
	srcConfig.Kind = sourceKind
	srcConfig.BaseURL = baseURL
	srcConfig.WebURL = webURL
	srcConfig.TodayOnly = todayOnly
	srcConfig.Timeout = timeout
	srcConfig.UserAgent = userAgent
	srcConfig.Headers = h
	srcConfig.Location = loc

	src, err := source.New(srcConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("creating source: %w", err)
	}

	samples, err := loadSamples()
	if err != nil {
		return nil, nil, err
	}

	s, closeStorage, err := openStorage()
	if err != nil {
		return nil, nil, err
	}

	cache := mbus.NewCache(s, src.SourceURL)
	cache.TTL = cacheTTL
	cache.Metrics = collector

	resolver := mbus.NewResolver(src, cache)
	resolver.Location = loc
	resolver.Samples = samples
	resolver.Metrics = collector

	log.Debug().
		Str("source", src.Name()).
		Str("cache", cacheBackend).
		Int("sample_stops", len(samples)).
		Msg("Resolver ready")

	return resolver, closeStorage, nil
}
