package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromReaderDefaults(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(""))
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Crawl.MaxDepth)
	assert.Equal(t, 3, cfg.Crawl.MaxRetries)
	assert.Equal(t, 5, cfg.Worker.FetchConcurrency)
	assert.Equal(t, 3, cfg.Worker.ExtractConcurrency)
	assert.Equal(t, time.Second, cfg.Quiescence.PollInterval.Duration)
	assert.Equal(t, 4*time.Second, cfg.Quiescence.ConfirmInterval.Duration)
	assert.Equal(t, 3, cfg.Quiescence.ConfirmChecks)
	assert.Equal(t, "", cfg.Crawl.Proxy())
}

func TestLoadFromReaderOverrides(t *testing.T) {
	raw := `
crawl:
  max_depth: 2
  method: post
  sub_domain: " *.example.com "
  excluded_extensions: ".PNG, .css,,.png"
  proxy_enabled: true
  proxy_url: http://127.0.0.1:8081
timeouts:
  connect: 2s
  read: 1.5
quiescence:
  poll_interval: 50ms
  confirm_interval: 100ms
  confirm_checks: 2
`
	cfg, err := LoadFromReader(strings.NewReader(raw))
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Crawl.MaxDepth)
	assert.Equal(t, "POST", cfg.Crawl.Method)
	assert.Equal(t, "*.example.com", cfg.Crawl.SubDomain)
	assert.Equal(t, []string{".css", ".png"}, cfg.Crawl.ExtensionList())
	assert.Equal(t, "http://127.0.0.1:8081", cfg.Crawl.Proxy())
	assert.Equal(t, 2*time.Second, cfg.Timeouts.Connect.Duration)
	assert.Equal(t, 1500*time.Millisecond, cfg.Timeouts.Read.Duration)
	assert.Equal(t, 50*time.Millisecond, cfg.Quiescence.PollInterval.Duration)
}

func TestLoadFromReaderRejectsUnknownAndInvalid(t *testing.T) {
	cases := map[string]string{
		"unknown field":  "crawl:\n  max_dept: 3\n",
		"zero depth":     "crawl:\n  max_depth: 0\n",
		"bad duration":   "timeouts:\n  read: soon\n",
		"params no file": "params:\n  enabled: true\n  file: \"\"\n",
		"no workers":     "worker:\n  fetch_concurrency: 0\n",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadFromReader(strings.NewReader(raw))
			assert.Error(t, err)
		})
	}
}

func TestParseParams(t *testing.T) {
	params, err := ParseParams([]byte("id: 42\nuserId: \"166053\"\nredirectUri: http://www.baidu.com\n"))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"id":          "42",
		"userId":      "166053",
		"redirectUri": "http://www.baidu.com",
	}, params)

	_, err = ParseParams([]byte("id: [1, 2]\n"))
	assert.Error(t, err)
}

func TestLoadParamsDisabled(t *testing.T) {
	params, err := LoadParams(ParamsConfig{File: "does-not-exist.yml", Enabled: false})
	require.NoError(t, err)
	assert.Nil(t, params)
}

func TestReadSeeds(t *testing.T) {
	input := `
https://a.example.com/index
# comment
login/index.html
/api//list
`
	seeds, err := ReadSeeds(strings.NewReader(input), "https://b.example.com:1443", "/app")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://a.example.com/index",
		"https://b.example.com:1443/app/login/index.html",
		"https://b.example.com:1443/app/api/list",
	}, seeds)

	_, err = ReadSeeds(strings.NewReader("relative/path\n"), "", "")
	assert.Error(t, err)
}
