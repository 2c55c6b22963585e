package batch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"curseforge-mod-fetcher/config"
	"curseforge-mod-fetcher/curseforge"
	"curseforge-mod-fetcher/download"
	"curseforge-mod-fetcher/ledger"
	"curseforge-mod-fetcher/metrics"
)

// catalogStub serves the three CurseForge endpoints plus a file host.
func catalogStub(t *testing.T, body []byte) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/mods/42", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data": {"id": 42, "name": "Empty", "latestFiles": []}}`))
	})
	mux.HandleFunc("/v1/mods/7", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprintf(w, `{"data": {"id": 7, "name": "Seven", "latestFiles": [
			{"id": 70, "fileName": "seven.jar", "fileLength": %d, "gameVersions": ["1.20.1"]}]}}`, len(body))
	})
	mux.HandleFunc("/v1/mods/7/files/70/download-url", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprintf(w, `{"data": %q}`, srv.URL+"/edge/seven.jar")
	})
	mux.HandleFunc("/edge/seven.jar", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/cdn/seven.jar", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/cdn/seven.jar", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		_, _ = w.Write(body)
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

type pipeline struct {
	manager *download.Manager
	ledger  *ledger.Ledger
	modsDir string
	metrics *metrics.Metrics
}

func newPipeline(t *testing.T, srv *httptest.Server) pipeline {
	t.Helper()
	cfg := config.Config{APIKey: "k", APIURL: srv.URL, GameID: 432}
	m := metrics.New()
	client, err := curseforge.NewClient(cfg, curseforge.WithMetrics(m))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	dir := t.TempDir()
	led := ledger.New(filepath.Join(dir, "downloaded-mods.json"))
	modsDir := filepath.Join(dir, "mods")
	mgr := download.NewManager(curseforge.NewCatalog(client, cfg.GameID), led, modsDir, download.WithMetrics(m))
	return pipeline{manager: mgr, ledger: led, modsDir: modsDir, metrics: m}
}

func TestPipeline_NoFilesAvailable(t *testing.T) {
	p := newPipeline(t, catalogStub(t, nil))

	_, err := p.manager.Download(context.Background(), 42)

	var noFiles *download.NoFilesAvailableError
	if !errors.As(err, &noFiles) {
		t.Fatalf("expected NoFilesAvailableError, got %T: %v", err, err)
	}
	records, err := p.ledger.All()
	if err != nil {
		t.Fatalf("ledger.All: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("ledger has %d records, want 0", len(records))
	}
	if _, err := os.Stat(p.ledger.Path()); !os.IsNotExist(err) {
		t.Error("ledger file should not have been created")
	}
	if _, err := os.Stat(p.modsDir); !os.IsNotExist(err) {
		t.Error("mods directory should not have been touched")
	}
}

func TestPipeline_RedirectedDownload(t *testing.T) {
	body := bytes.Repeat([]byte{0xAB}, 1024)
	p := newPipeline(t, catalogStub(t, body))

	rec, err := p.manager.Download(context.Background(), 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	finalPath := filepath.Join(p.modsDir, "seven.jar")
	data, err := os.ReadFile(finalPath)
	if err != nil {
		t.Fatalf("final file missing: %v", err)
	}
	if len(data) != 1024 {
		t.Errorf("wrote %d bytes, want 1024", len(data))
	}
	if rec.FileSize != 1024 || rec.FilePath != finalPath {
		t.Errorf("record = %+v", rec)
	}

	stored, ok, err := p.ledger.Lookup(7)
	if err != nil || !ok {
		t.Fatalf("ledger lookup: %v, %v", ok, err)
	}
	if stored.FileSize != 1024 || stored.FileID != 70 || stored.ModName != "Seven" {
		t.Errorf("stored record = %+v", stored)
	}

	textfile := filepath.Join(t.TempDir(), "fetcher.prom")
	if err := p.metrics.WriteTextfile(textfile); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	out, _ := os.ReadFile(textfile)
	if !bytes.Contains(out, []byte(`cf_downloads_total{result="success"} 1`)) {
		t.Errorf("metrics missing successful download:\n%s", out)
	}
}

func TestPipeline_BatchOverMixedTargets(t *testing.T) {
	body := bytes.Repeat([]byte{1}, 64)
	p := newPipeline(t, catalogStub(t, body))

	summary := NewRunner(p.manager).Run(context.Background(), targets(42, 7, 99))

	if summary.Attempted != 3 || summary.Succeeded != 1 || summary.Failed != 2 {
		t.Errorf("summary = %d/%d/%d, want 3/1/2", summary.Attempted, summary.Succeeded, summary.Failed)
	}
	records, _ := p.ledger.All()
	if len(records) != 1 || records[0].ModID != 7 {
		t.Errorf("ledger = %+v, want only mod 7", records)
	}
}
