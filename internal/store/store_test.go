package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tchin/transit-timing-variation/internal/runner"
	"github.com/tchin/transit-timing-variation/internal/transit"
	"github.com/tchin/transit-timing-variation/internal/ttv"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "runs.db"), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleReport(id, sys string, created time.Time) *runner.Report {
	times := []float64{0, 100, 205, 295, 410}
	a, _ := ttv.Analyze(times, 1)
	return &runner.Report{
		ID:        id,
		System:    sys,
		CreatedAt: created,
		Status:    runner.StatusOK,
		Goal:      5,
		Interval:  1,
		Transits:  times,
		Events:    []transit.Event{{Index: 0, Time: 0, Step: 1, Iterations: 12}},
		Analysis:  a,
		Steps:     1234,
	}
}

func TestSaveAndGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	want := sampleReport("11111111-1111-1111-1111-111111111111", "solar", created)
	require.NoError(t, s.Save(ctx, want))

	got, err := s.Get(ctx, want.ID)
	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Transits, got.Transits)
	assert.Equal(t, want.Analysis.Variations, got.Analysis.Variations)
	assert.Equal(t, want.Events, got.Events)
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt))

	// Saving again replaces the record.
	want.Status = runner.StatusNonConvergence
	require.NoError(t, s.Save(ctx, want))
	got, err = s.Get(ctx, want.ID)
	require.NoError(t, err)
	assert.Equal(t, runner.StatusNonConvergence, got.Status)
}

func TestGetNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Get(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSaveRejectsMissingID(t *testing.T) {
	s := openTestStore(t)
	assert.Error(t, s.Save(context.Background(), &runner.Report{}))
	assert.Error(t, s.Save(context.Background(), nil))
}

func TestList(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.Save(ctx, sampleReport("a", "solar", base)))
	require.NoError(t, s.Save(ctx, sampleReport("b", "jupiter", base.Add(time.Hour))))
	require.NoError(t, s.Save(ctx, sampleReport("c", "solar", base.Add(2*time.Hour))))

	all, err := s.List(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].ID, "newest first")
	assert.Equal(t, 5, all[0].Transits)
	assert.InDelta(t, 102.5, all[0].MeanPeriod, 1e-9)

	solar, err := s.List(ctx, "solar", 10)
	require.NoError(t, err)
	require.Len(t, solar, 2)
	for _, sum := range solar {
		assert.Equal(t, "solar", sum.System)
	}

	one, err := s.List(ctx, "", 1)
	require.NoError(t, err)
	assert.Len(t, one, 1)
}

func TestOpenInMemory(t *testing.T) {
	s, err := Open("", testLogger())
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Ping(context.Background()))
	require.NoError(t, s.Save(context.Background(), sampleReport("m", "solar", time.Now().UTC())))
	_, err = s.Get(context.Background(), "m")
	assert.NoError(t, err)
}
