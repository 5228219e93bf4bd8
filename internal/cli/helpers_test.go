package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
)

// indexPost is one record served by the fake historical index.
type indexPost struct {
	ID         string `json:"id"`
	CreatedUTC int64  `json:"created_utc"`
	Title      string `json:"title"`
	Selftext   string `json:"selftext,omitempty"`
	Score      int    `json:"score"`
}

// fakeIndex answers /api/posts/search with the records of the requested
// forum where after < created_utc < before, newest first.
func fakeIndex(t *testing.T, byForum map[string][]indexPost) *httptest.Server {
	t.Helper()
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/posts/search" {
			http.NotFound(w, r)
			return
		}
		q := r.URL.Query()
		after, _ := strconv.ParseInt(q.Get("after"), 10, 64)
		before, _ := strconv.ParseInt(q.Get("before"), 10, 64)
		limit, _ := strconv.Atoi(q.Get("limit"))

		mu.Lock()
		records := slices.Clone(byForum[q.Get("subreddit")])
		mu.Unlock()
		slices.SortFunc(records, func(a, b indexPost) int {
			return int(b.CreatedUTC - a.CreatedUTC)
		})

		page := []indexPost{}
		for _, rec := range records {
			if rec.CreatedUTC > after && rec.CreatedUTC < before {
				page = append(page, rec)
			}
			if limit > 0 && len(page) == limit {
				break
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": page})
	}))
	t.Cleanup(srv.Close)
	return srv
}

// fakeQuotes prices the symbols in prices; others are unknown to the provider.
func fakeQuotes(t *testing.T, prices map[string]float64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v7/finance/quote" {
			http.NotFound(w, r)
			return
		}
		result := []map[string]any{}
		for _, s := range strings.Split(r.URL.Query().Get("symbols"), ",") {
			if p, ok := prices[s]; ok {
				result = append(result, map[string]any{"symbol": s, "regularMarketPrice": p})
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"quoteResponse": map[string]any{"result": result}})
	}))
	t.Cleanup(srv.Close)
	return srv
}

// useConfigDir points the commands at dir and freezes the retrieval clock at now.
func useConfigDir(t *testing.T, dir string, now time.Time) {
	t.Helper()
	oldDir, oldNow := configDir, nowFunc
	oldRun, oldPull := runFlags, pullFlags
	oldMin, oldMax, oldSort, oldFormat := runMin, runMaxPrice, runSort, runFormat
	oldOutput, oldLedger, oldNoQuotes, oldNoColor, oldEvery := runOutput, runLedger, runNoQuotes, runNoColor, runEvery
	t.Cleanup(func() {
		configDir, nowFunc = oldDir, oldNow
		runFlags, pullFlags = oldRun, oldPull
		runMin, runMaxPrice, runSort, runFormat = oldMin, oldMax, oldSort, oldFormat
		runOutput, runLedger, runNoQuotes, runNoColor, runEvery = oldOutput, oldLedger, oldNoQuotes, oldNoColor, oldEvery
	})

	configDir = dir
	nowFunc = func() time.Time { return now }
	runFlags, pullFlags = retrieveFlags{}, retrieveFlags{}
	runMin, runMaxPrice, runSort, runFormat = -1, -1, "", ""
	runOutput, runLedger, runNoQuotes, runNoColor, runEvery = "", "", false, true, ""
}

func writeTestConfig(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644); err != nil {
		t.Fatalf("write test config: %v", err)
	}
}

// testCommand returns a command whose output and error streams are captured.
func testCommand(t *testing.T) (*cobra.Command, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetContext(t.Context())
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	return cmd, &out, &errOut
}

func captureStdout(t *testing.T, fn func() error) (string, error) {
	t.Helper()

	oldStdout := os.Stdout
	reader, writer, err := os.Pipe()
	if err != nil {
		t.Fatalf("open stdout pipe: %v", err)
	}

	os.Stdout = writer
	runErr := fn()
	_ = writer.Close()
	os.Stdout = oldStdout

	out, readErr := io.ReadAll(reader)
	_ = reader.Close()
	if readErr != nil {
		t.Fatalf("read stdout pipe: %v", readErr)
	}
	return string(out), runErr
}

func requireContains(t *testing.T, got, want string) {
	t.Helper()

	if !strings.Contains(got, want) {
		t.Fatalf("expected output to contain %q, got:\n%s", want, got)
	}
}
