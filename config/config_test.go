package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digitaljerry/mbus/config"
	"github.com/digitaljerry/mbus/model"
	"github.com/digitaljerry/mbus/source"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{
		"MBUS_SOURCE", "MBUS_BASE_URL", "MBUS_WEB_URL", "MBUS_USER_AGENT",
		"MBUS_CACHE", "MBUS_CACHE_DIR", "MBUS_SAMPLES", "MBUS_GROUPS",
		"MBUS_LISTEN", "MBUS_TODAY_ONLY", "MBUS_TIMEOUT_MS", "MBUS_CACHE_TTL_SEC",
		"MBUS_TZ", "TZ", "MBUS_CORS_ORIGINS",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, source.KindStopTimes, cfg.SourceKind)
	assert.Equal(t, config.CacheMemory, cfg.CacheBackend)
	assert.Equal(t, source.DefaultTimeout, cfg.Timeout)
	assert.Equal(t, 60*time.Second, cfg.CacheTTL)
	assert.Equal(t, source.DefaultUserAgent, cfg.UserAgent)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, time.Local, cfg.Location)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.False(t, cfg.TodayOnly)
}

func TestLoadFromEnvFile(t *testing.T) {
	clearEnv(t)
	os.Unsetenv("MBUS_BASE_URL")
	os.Unsetenv("MBUS_TODAY_ONLY")
	os.Unsetenv("MBUS_TZ")

	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte(strings.Join([]string{
		"MBUS_BASE_URL=https://api.example.com",
		"MBUS_TODAY_ONLY=yes",
		"MBUS_TZ=Europe/Ljubljana",
	}, "\n")), 0644))
	t.Cleanup(func() {
		os.Unsetenv("MBUS_BASE_URL")
		os.Unsetenv("MBUS_TODAY_ONLY")
		os.Unsetenv("MBUS_TZ")
	})

	// Environment wins over the file
	t.Setenv("MBUS_SOURCE", "gtfsrt")
	t.Setenv("MBUS_TIMEOUT_MS", "2500")
	t.Setenv("MBUS_CACHE_TTL_SEC", "30")
	t.Setenv("MBUS_CORS_ORIGINS", "http://a.example.com, http://b.example.com")

	cfg, err := config.Load(envFile)
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.com", cfg.BaseURL)
	assert.True(t, cfg.TodayOnly)
	assert.Equal(t, "Europe/Ljubljana", cfg.Location.String())
	assert.Equal(t, source.KindGTFSRT, cfg.SourceKind)
	assert.Equal(t, 2500*time.Millisecond, cfg.Timeout)
	assert.Equal(t, 30*time.Second, cfg.CacheTTL)
	assert.Equal(t, []string{"http://a.example.com", "http://b.example.com"}, cfg.AllowedOrigins)

	src := cfg.Source()
	assert.Equal(t, "https://api.example.com", src.BaseURL)
	assert.True(t, src.TodayOnly)
}

func TestLoadInvalid(t *testing.T) {
	for _, tc := range []struct {
		key   string
		value string
	}{
		{"MBUS_SOURCE", "scraper"},
		{"MBUS_CACHE", "redis"},
		{"MBUS_TIMEOUT_MS", "-1"},
		{"MBUS_CACHE_TTL_SEC", "soon"},
		{"MBUS_TZ", "Mars/Olympus_Mons"},
	} {
		t.Run(tc.key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tc.key, tc.value)
			_, err := config.Load(filepath.Join(t.TempDir(), "missing.env"))
			assert.Error(t, err)
		})
	}
}

func TestParseGroups(t *testing.T) {
	groups, err := config.ParseGroups(strings.NewReader(`
groups:
  - id: to-work
    name: To work
    description: Either bus is fine
    stops:
      - stop: "123"
        route: G6
      - stop: " 456 "
        route: G1
  - name: Airport
    stops:
      - stop: "789"
        route: "2"
  - name: Empty
`))
	require.NoError(t, err)
	require.Equal(t, 3, len(groups))

	assert.Equal(t, model.JourneyGroup{
		ID:          "to-work",
		Name:        "To work",
		Description: "Either bus is fine",
		Stops: []model.StopRoutePair{
			{StopID: "123", Route: "G6"},
			{StopID: "456", Route: "G1"},
		},
	}, groups[0])

	// Generated id
	_, err = uuid.Parse(groups[1].ID)
	assert.NoError(t, err)
	assert.Equal(t, []model.StopRoutePair{{StopID: "789", Route: "2"}}, groups[1].Stops)

	assert.Equal(t, []model.StopRoutePair{}, groups[2].Stops)
}

func TestParseGroupsInvalid(t *testing.T) {
	for name, doc := range map[string]string{
		"duplicate id":  "groups:\n  - id: a\n  - id: a\n",
		"missing route": "groups:\n  - id: a\n    stops:\n      - stop: \"1\"\n",
		"not yaml":      "groups: [",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := config.ParseGroups(strings.NewReader(doc))
			assert.Error(t, err)
		})
	}

	groups, err := config.ParseGroups(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, []model.JourneyGroup{}, groups)
}

func TestReadGroups(t *testing.T) {
	path := filepath.Join(t.TempDir(), "groups.yaml")
	require.NoError(t, os.WriteFile(path, []byte("groups:\n  - id: a\n    stops:\n      - stop: \"1\"\n        route: G6\n"), 0644))

	groups, err := config.ReadGroups(path)
	require.NoError(t, err)
	assert.Equal(t, "a", groups[0].ID)

	_, err = config.ReadGroups(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
