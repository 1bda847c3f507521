package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zx197009220/findApi/internal/config"
	"github.com/zx197009220/findApi/internal/rules"
	"github.com/zx197009220/findApi/pkg/types"
)

func TestShippedRulesCompile(t *testing.T) {
	set, err := rules.LoadFile(filepath.Join("..", "..", "configs", "rules.yml"))
	require.NoError(t, err)
	assert.Empty(t, set.Skipped())
	assert.NotEmpty(t, set.FindRules())
	assert.NotEmpty(t, set.ExcludeRules())
}

func TestShippedConfigLoads(t *testing.T) {
	cfg, err := config.Load(filepath.Join("..", "..", "configs", "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Crawl.MaxDepth)
}

func TestRulesCommandReportsSkipped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yml")
	raw := "rules:\n  - group: FindLink\n    rule:\n      - name: ok\n        f_regex: 'a(b)'\n      - name: broken\n        f_regex: '('\n"
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))

	var out bytes.Buffer
	cmd := newRulesCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--file", path})
	err := cmd.Execute()

	require.Error(t, err)
	assert.Contains(t, out.String(), "FindLink (1)")
	assert.Contains(t, out.String(), "skipped rule FindLink/broken")
}

func TestCollectSeeds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seeds.txt")
	require.NoError(t, os.WriteFile(path, []byte("https://b.test/x\n"), 0o600))

	cfg := config.Default()
	cfg.Crawl.Seeds = []string{"https://a.test/"}
	seeds, err := collectSeeds(&cfg, &crawlOptions{seeds: []string{"https://c.test/"}, seedsFile: path})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.test/", "https://c.test/", "https://b.test/x"}, seeds)

	_, err = collectSeeds(&cfg, &crawlOptions{})
	require.NoError(t, err)

	empty := config.Default()
	_, err = collectSeeds(&empty, &crawlOptions{})
	require.Error(t, err)
}

func TestOutcomeEvent(t *testing.T) {
	assert.Equal(t, "fetched", outcomeEvent(types.FetchSuccess{}))
	assert.Equal(t, "error", outcomeEvent(types.FetchError{}))
}
