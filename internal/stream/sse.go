// Package stream implements Server-Sent Events (SSE) streaming of a running
// simulation. Clients connect via GET /api/v1/stream/simulations and receive each
// transit as soon as it is refined, followed by a summary.
//
// Every message is a named event whose data is a JSON object with a matching
// "type" field:
//
//	event: metadata
//	data: {"type":"metadata","system":"jupiter","planets":["earth","jupiter"],"goal":3,...}
//
//	event: transit
//	id: 0
//	data: {"type":"transit","index":0,"time":31557600,"julian_date":2451910.25,...}
//
//	event: summary
//	data: {"type":"summary","run_id":"...","status":"ok","ttv":[...],...}
//
// Keep-alive comments (:\n\n) are sent every KeepaliveInterval while the run is
// between transits.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/tchin/transit-timing-variation/internal/epoch"
	"github.com/tchin/transit-timing-variation/internal/httputil"
	"github.com/tchin/transit-timing-variation/internal/metrics"
	"github.com/tchin/transit-timing-variation/internal/runner"
	"github.com/tchin/transit-timing-variation/internal/system"
	"github.com/tchin/transit-timing-variation/internal/transit"
)

// Config holds streaming configuration.
type Config struct {
	MaxConcurrentPerIP int           // Max concurrent streams per IP (default: 2).
	MaxConcurrent      int           // Max concurrent streams overall (default: 64).
	MaxTransits        int           // Upper bound on the transits query parameter.
	KeepaliveInterval  time.Duration // Keep-alive ping interval (default: 15s).
	TrustProxy         bool          // Use X-Forwarded-For for per-IP limits.
}

// Handler manages SSE streaming connections.
type Handler struct {
	store    *system.Store
	base     runner.Scenario
	config   Config
	limiter  *streamLimiter
	onReport func(*runner.Report)
	logger   *slog.Logger
}

// NewHandler creates a streaming handler. base supplies the scenario defaults;
// onReport, when set, receives every finished report.
func NewHandler(store *system.Store, base runner.Scenario, config Config, onReport func(*runner.Report), logger *slog.Logger) *Handler {
	if config.MaxConcurrentPerIP <= 0 {
		config.MaxConcurrentPerIP = 2
	}
	if config.KeepaliveInterval <= 0 {
		config.KeepaliveInterval = 15 * time.Second
	}
	return &Handler{
		store:    store,
		base:     base,
		config:   config,
		limiter:  newStreamLimiter(config.MaxConcurrentPerIP, config.MaxConcurrent),
		onReport: onReport,
		logger:   logger,
	}
}

// HandleSimulation serves the SSE simulation stream.
// GET /api/v1/stream/simulations?system=jupiter&transits=3&interval=1&step=3600
func (h *Handler) HandleSimulation(w http.ResponseWriter, r *http.Request) {
	req, err := h.parseRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sc, err := runner.Resolve(h.store, req, h.base)
	if errors.Is(err, system.ErrUnknownSystem) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ip := httputil.ClientIP(r, h.config.TrustProxy)
	release, ok := h.limiter.acquire(ip)
	if !ok {
		forIP, total := h.limiter.active(ip)
		h.logger.Warn("stream rate limit exceeded",
			"remote_ip", ip,
			"ip_streams", forIP,
			"total_streams", total,
		)
		w.Header().Set("Retry-After", "30")
		writeError(w, http.StatusTooManyRequests, "too many concurrent streams")
		return
	}

	metrics.StreamOpened()
	startTime := time.Now()
	h.logger.Info("stream connected",
		"remote_ip", ip,
		"user_agent", r.Header.Get("User-Agent"),
		"system", req.System,
		"transits", req.Transits,
	)

	var ew *eventWriter
	defer func() {
		release()
		metrics.StreamClosed()
		events, bytes := 0, 0
		if ew != nil {
			events, bytes = ew.events, ew.bytes
		}
		h.logger.Info("stream disconnected",
			"remote_ip", ip,
			"duration_seconds", int(time.Since(startTime).Seconds()),
			"events_sent", events,
			"bytes_sent", bytes,
		)
	}()

	// Verify flusher support (required for SSE).
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering.
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Clear the server's default WriteTimeout for this connection.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("could not clear write deadline", "error", err)
	}

	ew = &eventWriter{w: w, flusher: flusher, rc: rc, logger: h.logger}

	// Jittered retry interval (3-7s) avoids reconnection storms after a restart.
	if err := ew.retry(time.Duration(3000+rand.Intn(4000)) * time.Millisecond); err != nil {
		return
	}
	if err := ew.event("metadata", "", newMetadata(sc)); err != nil {
		h.logger.Warn("stream send error (metadata)", "remote_ip", ip, "error", err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// The goal bounds the number of events, so the run never blocks on send.
	events := make(chan transit.Event, sc.Transits)
	done := make(chan *runner.Report, 1)
	go func() {
		report, err := runner.Run(ctx, sc, runner.Options{
			OnTransit: func(ev transit.Event) { events <- ev },
		}, h.logger)
		if err != nil {
			h.logger.Debug("streamed run ended with error", "error", err)
		}
		done <- report
	}()

	ep := epoch.New(sc.Epoch)
	keepalive := time.NewTicker(h.config.KeepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-ctx.Done():
			<-done
			return

		case ev := <-events:
			if err := sendTransit(ew, ev, ep); err != nil {
				h.logger.Warn("stream send error", "remote_ip", ip, "error", err)
				cancel()
				<-done
				return
			}
			keepalive.Reset(h.config.KeepaliveInterval)

		case report := <-done:
			// Drain transits recorded just before the run finished.
			for len(events) > 0 {
				if err := sendTransit(ew, <-events, ep); err != nil {
					return
				}
			}
			if h.onReport != nil && report != nil {
				h.onReport(report)
			}
			if err := ew.event("summary", "", newSummary(report)); err != nil {
				h.logger.Warn("stream send error (summary)", "remote_ip", ip, "error", err)
			}
			return

		case <-keepalive.C:
			if err := ew.comment(); err != nil {
				h.logger.Warn("stream keepalive error", "remote_ip", ip, "error", err)
				cancel()
				<-done
				return
			}
		}
	}
}

func sendTransit(ew *eventWriter, ev transit.Event, ep epoch.Epoch) error {
	return ew.event("transit", strconv.Itoa(ev.Index), newTransitMessage(ev, ep))
}

func (h *Handler) parseRequest(r *http.Request) (runner.Request, error) {
	q := r.URL.Query()
	req := runner.Request{System: q.Get("system"), Transits: 1}
	if req.System == "" {
		return req, errors.New("missing system parameter")
	}

	if v := q.Get("transits"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || (h.config.MaxTransits > 0 && n > h.config.MaxTransits) {
			return req, fmt.Errorf("invalid transits parameter, must be 1-%d", h.config.MaxTransits)
		}
		req.Transits = n
	}
	if v := q.Get("interval"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return req, errors.New("invalid interval parameter, must be a positive integer")
		}
		req.Interval = n
	}
	if v := q.Get("step"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 60 || f > 86400 {
			return req, errors.New("invalid step parameter, must be 60-86400 seconds")
		}
		req.StepTime = f
	}
	return req, nil
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// SSE message payload types.

type metadataMessage struct {
	Type     string   `json:"type"`
	System   string   `json:"system"`
	Planets  []string `json:"planets"`
	Goal     int      `json:"goal"`
	Interval int      `json:"interval"`
	Epoch    string   `json:"epoch"`
}

type transitMessage struct {
	Type       string  `json:"type"`
	Index      int     `json:"index"`
	Time       float64 `json:"time"`
	JulianDate float64 `json:"julian_date"`
	Step       int     `json:"step"`
	Iterations int     `json:"iterations"`
}

type summaryMessage struct {
	Type       string    `json:"type"`
	RunID      string    `json:"run_id"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	Transits   int       `json:"transits"`
	Steps      int       `json:"steps"`
	MeanPeriod float64   `json:"mean_period"`
	TTV        []float64 `json:"ttv"`
	RMS        float64   `json:"ttv_rms"`
	Warnings   []string  `json:"warnings,omitempty"`
}

func newMetadata(sc runner.Scenario) metadataMessage {
	names := make([]string, len(sc.System.Planets))
	for i, p := range sc.System.Planets {
		names[i] = p.Name
	}
	interval := sc.Interval
	if interval == 0 {
		interval = 1
	}
	return metadataMessage{
		Type:     "metadata",
		System:   sc.System.Name,
		Planets:  names,
		Goal:     sc.Transits,
		Interval: interval,
		Epoch:    epoch.New(sc.Epoch).Origin.Format(time.RFC3339),
	}
}

func newTransitMessage(ev transit.Event, ep epoch.Epoch) transitMessage {
	return transitMessage{
		Type:       "transit",
		Index:      ev.Index,
		Time:       ev.Time,
		JulianDate: ep.Julian(ev.Time),
		Step:       ev.Step,
		Iterations: ev.Iterations,
	}
}

func newSummary(r *runner.Report) summaryMessage {
	if r == nil {
		return summaryMessage{Type: "summary", Status: runner.StatusError}
	}
	ttv := r.Analysis.Variations
	if ttv == nil {
		ttv = []float64{}
	}
	return summaryMessage{
		Type:       "summary",
		RunID:      r.ID,
		Status:     r.Status,
		Error:      r.Error,
		Transits:   len(r.Transits),
		Steps:      r.Steps,
		MeanPeriod: r.Analysis.MeanPeriod,
		TTV:        ttv,
		RMS:        r.Analysis.RMS,
		Warnings:   r.Warnings,
	}
}
