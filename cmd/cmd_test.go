package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"curseforge-mod-fetcher/config"
	"curseforge-mod-fetcher/db"
	"curseforge-mod-fetcher/ledger"
	"curseforge-mod-fetcher/logger"

	"go.uber.org/zap"
)

// runRoot executes the root command with args and returns its output.
func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
		logger.Log = zap.NewNop().Sugar()
		logger.ZapLogger = zap.NewNop()
	})
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

// isolateEnv points every file the CLI writes into a temp dir.
func isolateEnv(t *testing.T, apiURL string) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("CURSEFORGE_API_URL", apiURL)
	t.Setenv("MODS_DIR", filepath.Join(dir, "mods"))
	t.Setenv("LEDGER_PATH", filepath.Join(dir, "downloaded-mods.json"))
	t.Setenv("HISTORY_DB_PATH", filepath.Join(dir, "downloads.db"))
	t.Setenv("LOG_FILE", filepath.Join(dir, "fetcher.log"))
	t.Setenv("METRICS_FILE", filepath.Join(dir, "fetcher.prom"))
	return dir
}

func TestMissingAPIKeyMakesNoRequests(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	dir := isolateEnv(t, srv.URL)
	t.Setenv("CURSEFORGE_API_KEY", "")

	_, err := runRoot(t, "download", "42")

	var cfgErr *config.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %T: %v", err, err)
	}
	if exitCode(err) != 2 {
		t.Errorf("exitCode = %d, want 2", exitCode(err))
	}
	if hits.Load() != 0 {
		t.Errorf("server received %d requests, want 0", hits.Load())
	}
	if _, err := os.Stat(filepath.Join(dir, "mods")); !os.IsNotExist(err) {
		t.Error("mods directory should not exist")
	}
}

func TestDownloadRejectsInvalidIDs(t *testing.T) {
	_, err := runRoot(t, "download", "abc")
	if err == nil || !strings.Contains(err.Error(), `invalid mod id "abc"`) {
		t.Errorf("err = %v", err)
	}
}

func TestSearchAutoDownload(t *testing.T) {
	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/mods/search", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("searchFilter") != "jei" || q.Get("pageSize") != "2" || q.Get("gameId") != "432" {
			t.Errorf("unexpected search query %q", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"data": [
			{"id": 1, "name": "Alpha", "latestFiles": [{"id": 10, "fileName": "alpha.jar", "fileLength": 5}]},
			{"id": 2, "name": "Beta", "latestFiles": [{"id": 20, "fileName": "beta.jar", "fileLength": 4}]}
		], "pagination": {"index": 0, "pageSize": 2, "resultCount": 2, "totalCount": 9}}`))
	})
	files := map[int]string{1: `{"data": {"id": 1, "name": "Alpha", "latestFiles": [{"id": 10, "fileName": "alpha.jar", "fileLength": 5}]}}`,
		2: `{"data": {"id": 2, "name": "Beta", "latestFiles": [{"id": 20, "fileName": "beta.jar", "fileLength": 4}]}}`}
	for id, body := range files {
		mux.HandleFunc(fmt.Sprintf("/v1/mods/%d", id), func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(body))
		})
		mux.HandleFunc(fmt.Sprintf("/v1/mods/%d/files/%d/download-url", id, id*10), func(w http.ResponseWriter, r *http.Request) {
			_, _ = fmt.Fprintf(w, `{"data": %q}`, fmt.Sprintf("%s/files/%d", srv.URL, id))
		})
	}
	mux.HandleFunc("/files/1", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("alpha")) })
	mux.HandleFunc("/files/2", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("beta")) })
	srv = httptest.NewServer(mux)
	defer srv.Close()

	dir := isolateEnv(t, srv.URL)
	t.Setenv("CURSEFORGE_API_KEY", "test-key")

	out, err := runRoot(t, "search", "--search", "jei", "--page-size", "2", "--auto-download")
	if err != nil {
		t.Fatalf("search failed: %v\n%s", err, out)
	}
	for _, want := range []string{"Found 9 mods (showing 2)", "Alpha", "Beta", "Downloaded 2/2"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	data, err := os.ReadFile(filepath.Join(dir, "mods", "alpha.jar"))
	if err != nil || string(data) != "alpha" {
		t.Errorf("alpha.jar = %q, %v", data, err)
	}

	records, err := ledger.New(filepath.Join(dir, "downloaded-mods.json")).All()
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("ledger has %d records, want 2", len(records))
	}

	h, err := db.Open(filepath.Join(dir, "downloads.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("db.Open: %v", err)
	}
	defer h.Close()
	attempts, err := h.Recent(context.Background(), 0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(attempts) != 2 {
		t.Errorf("history has %d attempts, want 2", len(attempts))
	}

	prom, err := os.ReadFile(filepath.Join(dir, "fetcher.prom"))
	if err != nil {
		t.Fatalf("metrics file: %v", err)
	}
	if !strings.Contains(string(prom), `cf_batch_targets_total{outcome="succeeded"} 2`) {
		t.Errorf("metrics missing batch outcome:\n%s", prom)
	}
}
