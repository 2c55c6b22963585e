package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveAPIRequest("/v1/mods/search", 200)
	m.ObserveDownload("success", 10, 0.5)
	m.ObserveCache(true)
	m.ObserveBatchTarget(false)
	if err := m.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")); err != nil {
		t.Fatalf("nil WriteTextfile returned error: %v", err)
	}
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.ObserveAPIRequest("/v1/mods/{modId}", 200)
	m.ObserveDownload("success", 1024, 0.2)
	m.ObserveDownload("failed", 0, 0.1)
	m.ObserveCache(false)
	m.ObserveBatchTarget(true)

	path := filepath.Join(t.TempDir(), "fetcher.prom")
	if err := m.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read textfile: %v", err)
	}
	out := string(data)

	for _, want := range []string{
		`cf_api_requests_total{code="200",endpoint="/v1/mods/{modId}"} 1`,
		`cf_downloads_total{result="success"} 1`,
		`cf_downloads_total{result="failed"} 1`,
		`cf_download_bytes_total 1024`,
		`cf_mod_cache_lookups_total{result="miss"} 1`,
		`cf_batch_targets_total{outcome="succeeded"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("textfile missing %q\n%s", want, out)
		}
	}
}
