package sink

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tchin/transit-timing-variation/internal/epoch"
	"github.com/tchin/transit-timing-variation/internal/runner"
	"github.com/tchin/transit-timing-variation/internal/transit"
	"github.com/tchin/transit-timing-variation/internal/ttv"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func testReport(t *testing.T) *runner.Report {
	t.Helper()
	times := []float64{0, 100, 205, 295, 410}
	a, err := ttv.Analyze(times, 1)
	require.NoError(t, err)
	return &runner.Report{
		ID:        "run-1",
		System:    "solar",
		Status:    runner.StatusOK,
		CreatedAt: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		Transits:  times,
		Events:    []transit.Event{{Index: 0, Iterations: 12}, {Index: 1, Iterations: 11}},
		Flux:      []transit.FluxSample{{Step: 25, Time: 90000, Flux: 1}, {Step: 30, Time: 108000, Flux: 0.9999}},
		Analysis:  a,
	}
}

func field(p *write.Point, key string) interface{} {
	for _, f := range p.FieldList() {
		if f.Key == key {
			return f.Value
		}
	}
	return nil
}

func tag(p *write.Point, key string) string {
	for _, t := range p.TagList() {
		if t.Key == key {
			return t.Value
		}
	}
	return ""
}

func TestPoints(t *testing.T) {
	r := testReport(t)
	points := Points(r)

	counts := map[string]int{}
	for _, p := range points {
		counts[p.Name()]++
		assert.Equal(t, "run-1", tag(p, "run_id"))
		assert.Equal(t, "solar", tag(p, "system"))
	}
	assert.Equal(t, 5, counts[MeasurementTransit])
	assert.Equal(t, 3, counts[MeasurementTTV])
	assert.Equal(t, 2, counts[MeasurementFlux])
	assert.Equal(t, 1, counts[MeasurementRun])

	// Transit points are stamped from the J2000 default epoch.
	first := points[1]
	require.Equal(t, MeasurementTransit, first.Name())
	assert.True(t, first.Time().Equal(epoch.J2000Time.Add(100*time.Second)))
	assert.Equal(t, int64(11), field(first, "iterations"))
	assert.InDelta(t, epoch.J2000+100.0/86400, field(first, "julian_date").(float64), 1e-9)

	// The first TTV closes at the third transit.
	ttvPoint := points[5]
	require.Equal(t, MeasurementTTV, ttvPoint.Name())
	assert.Equal(t, 5.0, field(ttvPoint, "seconds"))
	assert.True(t, ttvPoint.Time().Equal(epoch.J2000Time.Add(205*time.Second)))

	last := points[len(points)-1]
	assert.Equal(t, MeasurementRun, last.Name())
	assert.Equal(t, runner.StatusOK, tag(last, "status"))
	assert.True(t, last.Time().Equal(r.CreatedAt))
}

func TestNewInfluxValidation(t *testing.T) {
	_, err := NewInflux(Config{URL: "http://localhost:8086"}, testLogger())
	assert.Error(t, err)
}

func TestWrite(t *testing.T) {
	var (
		mu   sync.Mutex
		body string
		path string
		org  string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		body, path, org = string(b), r.URL.Path, r.URL.Query().Get("org")
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	s, err := NewInflux(Config{URL: server.URL, Token: "t", Org: "astro", Bucket: "ttv"}, testLogger())
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Write(context.Background(), testReport(t)))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "/api/v2/write", path)
	assert.Equal(t, "astro", org)
	assert.Contains(t, body, "transit,run_id=run-1,system=solar")
	assert.Equal(t, 11, strings.Count(strings.TrimSpace(body), "\n")+1)
}

func TestWriteServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":"invalid","message":"bad line"}`))
	}))
	defer server.Close()

	s, err := NewInflux(Config{URL: server.URL, Org: "astro", Bucket: "ttv"}, testLogger())
	require.NoError(t, err)
	defer s.Close()

	assert.Error(t, s.Write(context.Background(), testReport(t)))
}
