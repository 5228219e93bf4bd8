package cli

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func fakeFeed(t *testing.T, newest time.Time) *httptest.Server {
	t.Helper()
	atom := `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>newest submissions : stocks</title>
  <entry>
    <id>t3_new</id>
    <title>GME earnings</title>
    <updated>` + newest.UTC().Format(time.RFC3339) + `</updated>
    <published>` + newest.UTC().Format(time.RFC3339) + `</published>
  </entry>
</feed>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/r/stocks/new/.rss" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/atom+xml")
		_, _ = w.Write([]byte(atom))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func useDoctorFlags(t *testing.T, noProbe bool) {
	t.Helper()
	old := doctorNoProbe
	t.Cleanup(func() { doctorNoProbe = old })
	doctorNoProbe = noProbe
}

func TestDoctorAllPass(t *testing.T) {
	feed := fakeFeed(t, time.Now().Add(-30*time.Minute))
	dir := t.TempDir()
	useConfigDir(t, dir, time.Now())
	useDoctorFlags(t, false)
	writeTestConfig(t, dir, "source_mode: bulk\n"+
		"forums: {stocks: stocks, pennystocks: pnnystks}\n"+
		"sanity_forums: []\n"+
		"sources: {probe: {base_url: \""+feed.URL+"\"}}\n"+
		"storage: {path: \""+filepath.Join(dir, "ledger.db")+"\"}\n")

	out, err := captureStdout(t, func() error {
		return doctorAction(doctorCmd, nil)
	})
	if err != nil {
		t.Fatalf("doctor: %v\n%s", err, out)
	}
	requireContains(t, out, "[ OK ] config.yaml (2 forums, bulk mode, 24h lookback)")
	requireContains(t, out, "(1 egress paths)")
	requireContains(t, out, "[INFO] live credentials not needed in bulk mode")
	requireContains(t, out, "(no runs yet)")
	requireContains(t, out, "[INFO] r/stocks: 1 entries, newest 30m0s ago")
	requireContains(t, out, "[INFO] unreachable: r/pennystocks")
	requireContains(t, out, "All checks passed.")
}

func TestDoctorStaleFeed(t *testing.T) {
	feed := fakeFeed(t, time.Now().Add(-72*time.Hour))
	dir := t.TempDir()
	useConfigDir(t, dir, time.Now())
	useDoctorFlags(t, false)
	writeTestConfig(t, dir, "source_mode: bulk\nforums: {stocks: stocks}\nsanity_forums: []\n"+
		"sources: {probe: {base_url: \""+feed.URL+"\"}}\n"+
		"storage: {path: \""+filepath.Join(dir, "ledger.db")+"\"}\n")

	out, err := captureStdout(t, func() error {
		return doctorAction(doctorCmd, nil)
	})
	if err != nil {
		t.Fatalf("doctor: %v", err)
	}
	requireContains(t, out, "[INFO] stale: r/stocks - newest post 72h0m0s ago")
}

func TestDoctorMissingCredentials(t *testing.T) {
	dir := t.TempDir()
	useConfigDir(t, dir, time.Now())
	useDoctorFlags(t, true)
	t.Setenv("AUTODD_CLIENT_ID", "")
	t.Setenv("AUTODD_CLIENT_SECRET", "")
	t.Setenv("AUTODD_USER_AGENT", "")
	writeTestConfig(t, dir, "source_mode: hybrid\n"+
		"storage: {path: \""+filepath.Join(dir, "ledger.db")+"\"}\n")

	out, err := captureStdout(t, func() error {
		return doctorAction(doctorCmd, nil)
	})
	if err == nil {
		t.Fatalf("expected failure, got:\n%s", out)
	}
	requireContains(t, out, "[FAIL] live credentials: live feed credentials: missing client_id, client_secret, user_agent")
	if strings.Contains(out, "r/") {
		t.Errorf("feeds probed with --no-probe:\n%s", out)
	}
}

func TestDoctorBadConfig(t *testing.T) {
	dir := t.TempDir()
	useConfigDir(t, dir, time.Now())
	useDoctorFlags(t, true)
	writeTestConfig(t, dir, "source_mode: pushshift\n")

	out, err := captureStdout(t, func() error {
		return doctorAction(doctorCmd, nil)
	})
	if err == nil {
		t.Fatal("expected failure for invalid config")
	}
	requireContains(t, out, "[FAIL] config.yaml")
}
