package system

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

const fetchedCatalog = "system remote\nstar s 1.9885e30 6.957e8\nplanet e 5.97e24 1.496e11 6.4e6\n"

// TestFetcherBodyLimit verifies that oversized responses return an error instead
// of consuming unbounded memory.
func TestFetcherBodyLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		chunk := strings.Repeat("#", 1024*1024)
		for i := 0; i < 6; i++ {
			if _, err := w.Write([]byte(chunk)); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	_, err := NewFetcher(server.URL, testLogger).Fetch(context.Background())
	if err == nil {
		t.Fatal("expected error for oversized response, got nil")
	}
	if !strings.Contains(err.Error(), "byte limit") {
		t.Errorf("expected body limit error, got: %v", err)
	}
}

func TestFetcherSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(fetchedCatalog))
	}))
	defer server.Close()

	data, err := NewFetcher(server.URL, testLogger).Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != fetchedCatalog {
		t.Errorf("body mismatch: got %d bytes, want %d", len(data), len(fetchedCatalog))
	}
}

func TestFetcherHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	if _, err := NewFetcher(server.URL, testLogger).Fetch(context.Background()); err == nil {
		t.Fatal("expected error for 500 response, got nil")
	}
}

func TestFetcherLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.txt")
	if err := os.WriteFile(path, []byte(fetchedCatalog), 0o644); err != nil {
		t.Fatal(err)
	}

	store := NewStore()
	c, err := NewFetcher(path, testLogger).Load(context.Background(), store)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(c.Systems) != 1 || store.Get() != c {
		t.Fatalf("catalog not stored: %+v", c)
	}
	if store.AgeSeconds() < 0 {
		t.Error("loaded store should report a non-negative age")
	}
	if _, err := store.Lookup("remote"); err != nil {
		t.Errorf("remote system not found: %v", err)
	}
}

func TestFetcherMissingFile(t *testing.T) {
	_, err := NewFetcher(filepath.Join(t.TempDir(), "absent"), testLogger).Fetch(context.Background())
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestSnapshotsPrune(t *testing.T) {
	dir := t.TempDir()
	snaps := NewSnapshots(dir, 2)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		if err := snaps.Save([]byte{byte('a' + i)}, base.Add(time.Duration(i)*time.Hour)); err != nil {
			t.Fatal(err)
		}
	}
	// Unrelated files are left alone.
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	files, err := snaps.list()
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Fatalf("kept %d snapshots, want 2", len(files))
	}

	data, taken, err := snaps.Latest()
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "d" || !taken.Equal(base.Add(3*time.Hour)) {
		t.Errorf("latest = %q at %v, want \"d\" at %v", data, taken, base.Add(3*time.Hour))
	}
}

func TestSnapshotsEmpty(t *testing.T) {
	_, _, err := NewSnapshots(filepath.Join(t.TempDir(), "absent"), 0).Latest()
	if !errors.Is(err, ErrNoSnapshot) {
		t.Errorf("err = %v, want ErrNoSnapshot", err)
	}
}

func TestFetcherFallsBackToSnapshot(t *testing.T) {
	var down atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if down.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(fetchedCatalog))
	}))
	defer server.Close()

	snaps := NewSnapshots(t.TempDir(), 3)
	fetcher := NewFetcher(server.URL, testLogger).WithSnapshots(snaps)

	if _, err := fetcher.Load(context.Background(), NewStore()); err != nil {
		t.Fatalf("first load: %v", err)
	}

	down.Store(true)
	store := NewStore()
	c, err := fetcher.Load(context.Background(), store)
	if err != nil {
		t.Fatalf("load with source down: %v", err)
	}
	if c.Source != "snapshot" || len(c.Systems) != 1 {
		t.Errorf("catalog = %+v, want one system from the snapshot", c)
	}

	// Without snapshots the fetch error surfaces.
	if _, err := NewFetcher(server.URL, testLogger).Load(context.Background(), NewStore()); err == nil {
		t.Error("expected error without snapshots")
	}
}

func TestFetcherRejectsEmptyCatalog(t *testing.T) {
	var broken atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if broken.Load() {
			w.Write([]byte("<html>maintenance</html>\n"))
			return
		}
		w.Write([]byte(fetchedCatalog))
	}))
	defer server.Close()

	snaps := NewSnapshots(t.TempDir(), 1)
	fetcher := NewFetcher(server.URL, testLogger).WithSnapshots(snaps)
	store := NewStore()

	good, err := fetcher.Load(context.Background(), store)
	if err != nil {
		t.Fatalf("first load: %v", err)
	}

	broken.Store(true)
	if _, err := fetcher.Load(context.Background(), store); !errors.Is(err, ErrEmptyCatalog) {
		t.Fatalf("err = %v, want ErrEmptyCatalog", err)
	}
	if store.Get() != good {
		t.Error("empty catalog replaced the stored one")
	}
	if _, err := store.Lookup("remote"); err != nil {
		t.Errorf("remote system lost after failed refresh: %v", err)
	}

	data, _, err := snaps.Latest()
	if err != nil {
		t.Fatalf("latest snapshot: %v", err)
	}
	if string(data) != fetchedCatalog {
		t.Errorf("snapshot = %q, want the last good catalog", data)
	}
}
