package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samvad-hq/alpha-hunter/internal/config"
	"github.com/samvad-hq/alpha-hunter/internal/domain"
	"github.com/samvad-hq/alpha-hunter/internal/logger"
)

const launchpadPage = `<html><body>
<div class="card"><a href="/p/zoge">Fair launch presale live now, $ZOGE token</a></div>
<div class="card"><a href="/p/old">Community AMA recap</a></div>
</body></html>`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestScannerRunsOneCycleAgainstLaunchpad(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(launchpadPage))
	}))
	t.Cleanup(srv.Close)
	t.Setenv("TEST_LAUNCHPAD_URL", srv.URL+"/launches")

	dir := t.TempDir()
	sourcesFile := writeFile(t, dir, "sources.yaml", `
sources:
  - id: pads
    type: launchpad
    scopes: ["${TEST_LAUNCHPAD_URL}"]
    request_delay_ms: 1
    config:
      format: html
      selector: div.card
`)

	cfg := &config.Config{
		SourcesFile:      sourcesFile,
		StorageType:      "memory",
		TopN:             25,
		UrgencyThreshold: 40,
	}

	scanner, err := NewScanner(cfg, logger.NopLogger{})
	require.NoError(t, err)

	report, err := scanner.Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.Fetched)
	assert.Equal(t, 1, report.Annotated)
	assert.Equal(t, 1, report.Result.TokenMentions["ZOGE"])
	require.NotEmpty(t, report.Result.Opportunities)
	assert.Equal(t, domain.KindImminentLaunch, report.Result.Opportunities[0].Kind)
	assert.Equal(t, srv.URL+"/p/zoge", report.Result.Opportunities[0].Content.URL)
}

func TestNewScannerRejectsMissingSources(t *testing.T) {
	_, err := NewScanner(&config.Config{SourcesFile: filepath.Join(t.TempDir(), "nope.yaml")}, nil)
	require.Error(t, err)

	_, err = NewScanner(nil, nil)
	require.Error(t, err)
}

func TestBuildNotifierFallsBackToLog(t *testing.T) {
	cfg := &config.Config{PublishersFile: filepath.Join(t.TempDir(), "missing.yaml")}

	fanout, err := buildNotifier(context.Background(), cfg, logger.NopLogger{})
	require.NoError(t, err)
	assert.Equal(t, 1, fanout.Size())
}

func TestBuildNotifierUsesTelegramCredentials(t *testing.T) {
	cfg := &config.Config{
		PublishersFile: filepath.Join(t.TempDir(), "missing.yaml"),
		TelegramToken:  "token",
		TelegramChatID: "42",
	}

	fanout, err := buildNotifier(context.Background(), cfg, logger.NopLogger{})
	require.NoError(t, err)
	assert.Equal(t, 1, fanout.Size())
}

func TestBuildNotifierRejectsInvalidFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "publishers.yaml", `
publishers:
  - id: hook
    type: http
`)
	_, err := buildNotifier(context.Background(), &config.Config{PublishersFile: path}, nil)
	require.Error(t, err)
}
