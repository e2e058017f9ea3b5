package system

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"
)

// maxCatalogBytes bounds a fetched or loaded catalog.
const maxCatalogBytes = 4 << 20

// Fetcher retrieves a catalog from an http(s) URL or a local file path.
type Fetcher struct {
	source     string
	httpClient *http.Client
	snapshots  *Snapshots
	logger     *slog.Logger
}

// NewFetcher creates a Fetcher for the given source.
func NewFetcher(source string, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		source: source,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// WithSnapshots makes Load save each fetched catalog to s and fall back to the
// newest snapshot when the source cannot be read.
func (f *Fetcher) WithSnapshots(s *Snapshots) *Fetcher {
	f.snapshots = s
	return f
}

// Source returns the configured source.
func (f *Fetcher) Source() string {
	return f.source
}

// Fetch returns the raw catalog bytes.
func (f *Fetcher) Fetch(ctx context.Context) ([]byte, error) {
	if !strings.HasPrefix(f.source, "http://") && !strings.HasPrefix(f.source, "https://") {
		return f.readFile()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.source, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d from %s", resp.StatusCode, f.source)
	}

	return readLimited(resp.Body)
}

// Load fetches and parses the catalog and stores it. A catalog without systems is
// rejected; the stored catalog and the snapshots are left as they were.
func (f *Fetcher) Load(ctx context.Context, store *Store) (*Catalog, error) {
	store.Lock()
	defer store.Unlock()

	source := f.source
	loadedAt := time.Now().UTC()
	data, err := f.Fetch(ctx)
	fromSnapshot := false
	if err != nil {
		if f.snapshots == nil {
			return nil, err
		}
		cached, taken, serr := f.snapshots.Latest()
		if serr != nil {
			return nil, err
		}
		f.logger.Warn("catalog source unavailable, using snapshot",
			"source", f.source, "snapshot_taken", taken.Format(time.RFC3339), "error", err)
		data, source, loadedAt, fromSnapshot = cached, "snapshot", taken, true
	}

	systems, err := Parse(bytes.NewReader(data), f.logger)
	if err != nil {
		return nil, err
	}
	if len(systems) == 0 {
		return nil, fmt.Errorf("%w: %s (%d bytes)", ErrEmptyCatalog, source, len(data))
	}

	if f.snapshots != nil && !fromSnapshot {
		if serr := f.snapshots.Save(data, loadedAt); serr != nil {
			f.logger.Warn("failed to save catalog snapshot", "error", serr)
		}
	}

	c := &Catalog{Source: source, LoadedAt: loadedAt, Systems: systems}
	store.Set(c)
	f.logger.Info("catalog loaded", "source", source, "systems", len(systems), "bytes", len(data))
	return c, nil
}

func (f *Fetcher) readFile() ([]byte, error) {
	file, err := os.Open(f.source)
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}
	defer file.Close()
	return readLimited(file)
}

func readLimited(r io.Reader) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, maxCatalogBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	if len(body) > maxCatalogBytes {
		return nil, fmt.Errorf("catalog exceeds %d byte limit", maxCatalogBytes)
	}
	return body, nil
}
