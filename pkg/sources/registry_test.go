package sources

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadRegistryYAML(t *testing.T) {
	t.Setenv("TEST_PAD_URL", "https://pad.example/feed")
	dir := t.TempDir()
	file := filepath.Join(dir, "sources.yaml")
	content := `
keywords: [presale, " launch ", ""]
sources:
  - id: reddit-main
    type: reddit
    scopes: [CryptoMoonShots, " altcoin "]
    request_delay_ms: 2000
    min_engagement: 2
  - id: pads
    type: launchpad
    enabled: false
    scopes: ["${TEST_PAD_URL}"]
    config:
      format: feed
`
	if err := os.WriteFile(file, []byte(content), 0o644); err != nil {
		t.Fatalf("write sources file: %v", err)
	}

	reg, err := LoadRegistry(file)
	if err != nil {
		t.Fatalf("LoadRegistry returned error: %v", err)
	}
	if len(reg.Keywords) != 2 || reg.Keywords[1] != "launch" {
		t.Fatalf("unexpected keywords %#v", reg.Keywords)
	}
	if len(reg.Sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(reg.Sources))
	}

	reddit := reg.Sources[0]
	if reddit.Scopes[1] != "altcoin" {
		t.Fatalf("expected trimmed scope, got %q", reddit.Scopes[1])
	}
	if reddit.RequestDelay() != 2*time.Second {
		t.Fatalf("unexpected request delay %v", reddit.RequestDelay())
	}

	pads := reg.Sources[1]
	if pads.IsEnabled() {
		t.Fatalf("expected launchpad source disabled")
	}
	if pads.Scopes[0] != "https://pad.example/feed" {
		t.Fatalf("expected env expansion, got %q", pads.Scopes[0])
	}
	if ConfigString(pads, "format", "") != FormatFeed {
		t.Fatalf("expected format feed")
	}
	if enabled := reg.Enabled(); len(enabled) != 1 || enabled[0].ID != "reddit-main" {
		t.Fatalf("unexpected enabled sources %#v", enabled)
	}
}

func TestParseRegistryRejectsInvalidEntries(t *testing.T) {
	cases := map[string]string{
		"duplicate": `{"sources":[{"id":"a","type":"reddit","scopes":["x"]},{"id":"a","type":"twitter","scopes":["y"]}]}`,
		"type":      `{"sources":[{"id":"a","type":"mastodon","scopes":["x"]}]}`,
		"scopes":    `{"sources":[{"id":"a","type":"reddit"}]}`,
		"empty":     `{"sources":[]}`,
	}
	for name, doc := range cases {
		if _, err := ParseRegistry([]byte(doc), ".json"); err == nil {
			t.Fatalf("%s: expected error, got nil", name)
		}
	}
}

func TestBuildAllRequiresCredentials(t *testing.T) {
	reg, err := ParseRegistry([]byte(`{"sources":[{"id":"r","type":"reddit","scopes":["x"]}]}`), ".json")
	if err != nil {
		t.Fatalf("ParseRegistry returned error: %v", err)
	}
	if _, err := BuildAll(nil, reg, Deps{}); err == nil || !strings.Contains(err.Error(), "reddit") {
		t.Fatalf("expected missing reddit credentials error, got %v", err)
	}
}

func TestBuildAllWiresSourcesByType(t *testing.T) {
	doc := `{"keywords":["gem"],"sources":[
	  {"id":"r","type":"reddit","scopes":["x"]},
	  {"id":"t","type":"twitter","scopes":["gem"],"every_n_cycles":3},
	  {"id":"l","type":"launchpad","scopes":["https://pad.example"]}
	]}`
	reg, err := ParseRegistry([]byte(doc), ".json")
	if err != nil {
		t.Fatalf("ParseRegistry returned error: %v", err)
	}

	built, err := BuildAll(DefaultFactory(), reg, Deps{Credentials: Credentials{
		RedditClientID:     "id",
		RedditClientSecret: "secret",
		TwitterBearerToken: "bearer",
	}})
	if err != nil {
		t.Fatalf("BuildAll returned error: %v", err)
	}
	if len(built) != 3 {
		t.Fatalf("expected 3 sources, got %d", len(built))
	}

	reddit, ok := built[0].(*Reddit)
	if !ok {
		t.Fatalf("expected *Reddit, got %T", built[0])
	}
	if len(reddit.opts.Keywords) != 1 || reddit.opts.Keywords[0] != "gem" {
		t.Fatalf("expected shared keywords, got %#v", reddit.opts.Keywords)
	}
	if gate, ok := built[1].(EngagementGate); !ok || gate.MinEngagement() != twitterDefaultMinLikes {
		t.Fatalf("expected twitter engagement gate of %d", twitterDefaultMinLikes)
	}
	if built[2].ID() != "l" {
		t.Fatalf("unexpected launchpad id %q", built[2].ID())
	}
}
