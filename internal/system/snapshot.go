package system

import (
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

// ErrNoSnapshot is returned when the snapshot directory holds no catalog.
var ErrNoSnapshot = errors.New("no catalog snapshot found")

const (
	snapshotPrefix = "catalog_"
	snapshotSuffix = ".txt"
)

// Snapshots keeps the last few fetched catalogs on disk so a restart can come
// up with the previous catalog when the source is unreachable.
type Snapshots struct {
	dir  string
	keep int
}

// NewSnapshots stores snapshots in dir and keeps at most keep of them (default: 5).
func NewSnapshots(dir string, keep int) *Snapshots {
	if keep <= 0 {
		keep = 5
	}
	return &Snapshots{dir: dir, keep: keep}
}

// Save writes data as the snapshot taken at ts and prunes the oldest ones.
func (s *Snapshots) Save(data []byte, ts time.Time) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating snapshot dir: %w", err)
	}
	name := snapshotPrefix + strconv.FormatInt(ts.Unix(), 10) + snapshotSuffix
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	return s.prune()
}

// Latest returns the newest snapshot and when it was taken.
func (s *Snapshots) Latest() ([]byte, time.Time, error) {
	files, err := s.list()
	if err != nil {
		return nil, time.Time{}, err
	}
	if len(files) == 0 {
		return nil, time.Time{}, ErrNoSnapshot
	}

	newest := files[len(files)-1]
	f, err := os.Open(filepath.Join(s.dir, newest.name))
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("opening snapshot: %w", err)
	}
	defer f.Close()
	data, err := readLimited(f)
	if err != nil {
		return nil, time.Time{}, err
	}
	return data, newest.taken, nil
}

type snapshotFile struct {
	name  string
	taken time.Time
}

// list returns the snapshots oldest first. Unrelated files are ignored.
func (s *Snapshots) list() ([]snapshotFile, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing snapshot dir: %w", err)
	}

	var files []snapshotFile
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, snapshotPrefix) || !strings.HasSuffix(name, snapshotSuffix) {
			continue
		}
		unix, err := strconv.ParseInt(strings.TrimSuffix(strings.TrimPrefix(name, snapshotPrefix), snapshotSuffix), 10, 64)
		if err != nil {
			continue
		}
		files = append(files, snapshotFile{name: name, taken: time.Unix(unix, 0).UTC()})
	}
	slices.SortFunc(files, func(a, b snapshotFile) int { return cmp.Compare(a.taken.Unix(), b.taken.Unix()) })
	return files, nil
}

func (s *Snapshots) prune() error {
	files, err := s.list()
	if err != nil {
		return err
	}
	for len(files) > s.keep {
		if err := os.Remove(filepath.Join(s.dir, files[0].name)); err != nil {
			return fmt.Errorf("pruning snapshot %s: %w", files[0].name, err)
		}
		files = files[1:]
	}
	return nil
}
