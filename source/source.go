package source

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/digitaljerry/mbus/downloader"
	"github.com/digitaljerry/mbus/model"
)

const (
	KindStopTimes = "stoptimes"
	KindGTFSRT    = "gtfsrt"

	DefaultTimeout   = 8 * time.Second
	DefaultMaxSize   = 4 << 20 // 4 MB
	DefaultUserAgent = "mbus/1.0 (+https://github.com/digitaljerry/mbus)"

	// The gtfsrt feed covers all stops, and is reused across
	// stops for this long.
	DefaultFeedTTL = 15 * time.Second
)

var (
	// Timeout, network failure, non-2xx or unparseable payload.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// Payload parsed, but held no arrival records.
	ErrUpstreamEmpty = errors.New("upstream returned no arrivals")
)

// An upstream transit data source. There is one implementation per
// upstream API generation; which one is used is a configuration
// choice.
type Source interface {
	Name() string

	// Retrieves raw arrival records for a stop on the given
	// service date. Times are relative to midnight of date. No
	// retries are made.
	FetchArrivals(ctx context.Context, stopID string, route string, date time.Time) ([]model.Arrival, error)

	// Public page where a user can check departures for a stop
	// and route. Must not require any network access.
	SourceURL(stopID string, route string) string

	// True if the source only serves the current service day.
	TodayOnly() bool
}

type Config struct {
	Kind string

	// Upstream API base URL, or feed URL for gtfsrt.
	BaseURL string

	// Base of the public, user followable URLs. Defaults to
	// BaseURL.
	WebURL string

	Headers   map[string]string
	UserAgent string
	Timeout   time.Duration
	MaxSize   int
	TodayOnly bool
	Location  *time.Location
	FeedTTL   time.Duration

	Downloader downloader.Downloader
}

// Creates the Source selected by cfg.Kind.
func New(cfg Config) (Source, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if cfg.WebURL == "" {
		cfg.WebURL = cfg.BaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultMaxSize
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.FeedTTL <= 0 {
		cfg.FeedTTL = DefaultFeedTTL
	}

	switch cfg.Kind {
	case KindStopTimes, "":
		if cfg.Downloader == nil {
			cfg.Downloader = downloader.HTTP{}
		}
		return &StopTimes{cfg: cfg}, nil
	case KindGTFSRT:
		if cfg.Downloader == nil {
			cfg.Downloader = downloader.NewMemoryDownloader()
		}
		return &GTFSRT{cfg: cfg}, nil
	}

	return nil, fmt.Errorf("unknown source kind %q", cfg.Kind)
}

// Headers sent with every upstream request. The User-Agent is the
// stable client identifier.
func (cfg Config) requestHeaders() map[string]string {
	headers := map[string]string{}
	for k, v := range cfg.Headers {
		headers[k] = v
	}
	headers["User-Agent"] = cfg.UserAgent
	return headers
}

// Downloads u. A positive cacheTTL allows a cached copy to be
// served, if the downloader keeps one.
func (cfg Config) get(ctx context.Context, u string, cacheTTL time.Duration) ([]byte, error) {
	body, err := cfg.Downloader.Get(ctx, u, cfg.requestHeaders(), downloader.GetOptions{
		Timeout:  cfg.Timeout,
		MaxSize:  cfg.MaxSize,
		Cache:    cacheTTL > 0,
		CacheTTL: cacheTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, fmt.Errorf("%w: empty body from %s", ErrUpstreamEmpty, u)
	}
	return body, nil
}

func (cfg Config) stopPage(stopID string, route string) string {
	u := fmt.Sprintf("%s/stops/%s", strings.TrimSuffix(cfg.WebURL, "/"), url.PathEscape(stopID))
	if route != "" {
		u += "?route=" + url.QueryEscape(route)
	}
	return u
}
