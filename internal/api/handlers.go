package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/tchin/transit-timing-variation/internal/cache"
	"github.com/tchin/transit-timing-variation/internal/plot"
	"github.com/tchin/transit-timing-variation/internal/propagation"
	"github.com/tchin/transit-timing-variation/internal/runner"
	"github.com/tchin/transit-timing-variation/internal/store"
	"github.com/tchin/transit-timing-variation/internal/system"
)

const maxRequestBytes = 64 << 10

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func indexHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"service": "ttvsim",
			"endpoints": []string{
				"GET /api/v1/systems",
				"POST /api/v1/simulations",
				"GET /api/v1/simulations",
				"GET /api/v1/simulations/{id}",
				"GET /api/v1/simulations/{id}/lightcurve.png",
				"GET /api/v1/simulations/{id}/ttv.png",
				"GET /api/v1/stream/simulations",
				"GET /api/v1/cache/stats",
			},
		})
	}
}

type planetView struct {
	Name          string  `json:"name"`
	Mass          float64 `json:"mass_kg"`
	SemiMajorAxis float64 `json:"semi_major_axis_m"`
	Radius        float64 `json:"radius_m"`
	PeriodDays    float64 `json:"period_days"`
	DurationHours float64 `json:"transit_duration_hours,omitempty"`
}

type systemView struct {
	Name    string       `json:"name"`
	Star    system.Star  `json:"star"`
	Planets []planetView `json:"planets"`
}

type systemsResponse struct {
	Source        string       `json:"source"`
	CatalogAgeSec float64      `json:"catalog_age_seconds"`
	Systems       []systemView `json:"systems"`
}

func systemsHandler(systems *system.Store) http.HandlerFunc {
	g := propagation.SI.G()
	return func(w http.ResponseWriter, r *http.Request) {
		resp := systemsResponse{Source: "presets", CatalogAgeSec: systems.AgeSeconds()}
		if c := systems.Get(); c != nil {
			resp.Source = c.Source
		}
		for _, sys := range systems.All() {
			v := systemView{Name: sys.Name, Star: sys.Star}
			for i, p := range sys.Planets {
				pv := planetView{
					Name:          p.Name,
					Mass:          p.Mass,
					SemiMajorAxis: p.SemiMajorAxis,
					Radius:        p.Radius,
					PeriodDays:    system.OrbitalPeriod(g, sys.Star, p) / 86400,
				}
				// Only the first planet is watched for transits.
				if i == 0 {
					pv.DurationHours = system.TransitDuration(g, sys.Star, p) / 3600
				}
				v.Planets = append(v.Planets, pv)
			}
			resp.Systems = append(resp.Systems, v)
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// simulateHandler runs a scenario synchronously and records the report.
// Requests over the transit budget are rejected before any work is done.
func simulateHandler(logger *slog.Logger, deps Deps, cfg Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req runner.Request
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}

		if req.Transits > cfg.MaxTransits {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":        "transits exceeds the per-request limit",
				"transits":     req.Transits,
				"max_transits": cfg.MaxTransits,
			})
			return
		}

		sc, err := runner.Resolve(deps.Systems, req, deps.Base)
		if errors.Is(err, system.ErrUnknownSystem) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		// The run may outlast the server's default write timeout.
		rc := http.NewResponseController(w)
		if err := rc.SetWriteDeadline(time.Now().Add(cfg.RunTimeout + 10*time.Second)); err != nil {
			logger.Debug("could not extend write deadline", "error", err)
		}

		ctx, cancel := context.WithTimeout(r.Context(), cfg.RunTimeout)
		defer cancel()

		report, err := runner.Run(ctx, sc, runner.Options{}, logger)
		if report == nil || (err != nil && report.Status == runner.StatusError) {
			msg := "simulation failed"
			if err != nil {
				msg = err.Error()
			}
			writeError(w, http.StatusUnprocessableEntity, msg)
			return
		}

		if err := deps.Recorder.Record(report); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to record run")
			return
		}
		w.Header().Set("Location", "/api/v1/simulations/"+report.ID)
		writeJSON(w, http.StatusCreated, report)
	}
}

func listHandler(logger *slog.Logger, runs *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 50
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 || n > 500 {
				writeError(w, http.StatusBadRequest, "invalid limit parameter, must be 1-500")
				return
			}
			limit = n
		}

		runsList, err := runs.List(r.Context(), r.URL.Query().Get("system"), limit)
		if err != nil {
			logger.Error("failed to list runs", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to list runs")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"runs": runsList})
	}
}

// lookupReport reads a report from the cache, then from the run history.
func lookupReport(w http.ResponseWriter, r *http.Request, logger *slog.Logger, deps Deps) (*runner.Report, bool) {
	id := r.PathValue("id")
	if rep := deps.Reports.Get(id); rep != nil {
		return rep, true
	}
	rep, err := deps.Runs.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return nil, false
	}
	if err != nil {
		logger.Error("failed to load run", "run_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load run")
		return nil, false
	}
	deps.Reports.Put(rep)
	return rep, true
}

func reportHandler(logger *slog.Logger, deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rep, ok := lookupReport(w, r, logger, deps)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, rep)
	}
}

type plotKind struct {
	name   string
	render func(*runner.Report) ([]byte, error)
}

var (
	plotLightCurve = plotKind{"lightcurve", func(r *runner.Report) ([]byte, error) {
		return plot.LightCurve(r.Flux, r.Transits, r.StepTime, plot.Options{})
	}}
	plotVariations = plotKind{"ttv", func(r *runner.Report) ([]byte, error) {
		return plot.Variations(r.Analysis.Variations, r.Interval, plot.Options{})
	}}
)

func plotHandler(logger *slog.Logger, deps Deps, kind plotKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rep, ok := lookupReport(w, r, logger, deps)
		if !ok {
			return
		}

		png, cached := deps.Reports.Plot(rep.ID, kind.name)
		if !cached {
			var err error
			png, err = kind.render(rep)
			if errors.Is(err, plot.ErrNoData) {
				writeError(w, http.StatusNotFound, "run has no data for a "+kind.name+" plot")
				return
			}
			if err != nil {
				logger.Error("failed to render plot", "run_id", rep.ID, "plot", kind.name, "error", err)
				writeError(w, http.StatusInternalServerError, "failed to render plot")
				return
			}
			deps.Reports.PutPlot(rep.ID, kind.name, png)
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "public, max-age=86400, immutable")
		w.WriteHeader(http.StatusOK)
		w.Write(png)
	}
}

func cacheStatsHandler(reports *cache.ReportCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, reports.Stats())
	}
}
