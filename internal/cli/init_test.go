package cli

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/ppiankov/autodd/internal/config"
)

func TestInitWritesLoadableConfig(t *testing.T) {
	dir := filepath.Join(t.TempDir(), ".autodd")
	useConfigDir(t, dir, time.Now())

	out, err := captureStdout(t, func() error {
		return initAction(nil, nil)
	})
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	requireContains(t, out, "Initialized "+dir+" with 2 config files.")

	cfg, err := config.Load(dir)
	if err != nil {
		t.Fatalf("load generated config: %v", err)
	}
	if len(cfg.Forums) != 9 || cfg.Mode() != "hybrid" || cfg.Storage.RetainDays != 90 {
		t.Errorf("generated config = %+v", cfg)
	}

	proxies, err := config.LoadProxies(cfg.Resolve(cfg.Sources.Bulk.ProxyFile))
	if err != nil {
		t.Fatalf("load generated proxies: %v", err)
	}
	if !slices.Equal(proxies, []string{""}) {
		t.Errorf("proxies = %q, want one direct path", proxies)
	}
}

func TestInitKeepsExistingFiles(t *testing.T) {
	dir := t.TempDir()
	useConfigDir(t, dir, time.Now())
	writeTestConfig(t, dir, "lookback_hours: 6\n")

	out, err := captureStdout(t, func() error {
		return initAction(nil, nil)
	})
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	requireContains(t, out, "exists: "+filepath.Join(dir, "config.yaml"))
	requireContains(t, out, "with 1 config files.")

	data, err := os.ReadFile(filepath.Join(dir, "config.yaml"))
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	if string(data) != "lookback_hours: 6\n" {
		t.Errorf("existing config overwritten: %q", data)
	}

	out, err = captureStdout(t, func() error {
		return initAction(nil, nil)
	})
	if err != nil {
		t.Fatalf("init again: %v", err)
	}
	requireContains(t, out, "already initialized")
}
