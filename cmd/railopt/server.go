package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/theoremus-urban-solutions/railopt/config"
	"github.com/theoremus-urban-solutions/railopt/engine"
	"github.com/theoremus-urban-solutions/railopt/model"
	"github.com/theoremus-urban-solutions/railopt/optimizer"
	"github.com/theoremus-urban-solutions/railopt/telemetry"
)

// serveHTTP runs the operational API until ctx is done. This surface is
// plumbing around the core: ingestion, status, and trigger endpoints.
func serveHTTP(ctx context.Context, cfg config.ServerConfig, eng *engine.Engine) error {
	r := chi.NewRouter()
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	r.Get("/api/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/api/status", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, eng.Status())
	})
	r.Get("/api/states", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, eng.Store().StatesSnapshot())
	})
	r.Get("/api/schedules", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, eng.Store().SchedulesSnapshot())
	})
	r.Get("/api/conflicts", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, eng.DetectConflicts())
	})
	r.Get("/api/stations/{code}/occupancy", func(w http.ResponseWriter, req *http.Request) {
		code := chi.URLParam(req, "code")
		if _, err := eng.Network().Station(code); err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeJSON(w, http.StatusOK, model.StationOccupancy(eng.Store().SchedulesSnapshot(), code))
	})

	r.Post("/api/telemetry/position", func(w http.ResponseWriter, req *http.Request) {
		var raw telemetry.RawPosition
		if err := json.NewDecoder(req.Body).Decode(&raw); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		eng.IngestPosition(raw)
		w.WriteHeader(http.StatusAccepted)
	})
	r.Post("/api/telemetry/occupancy", func(w http.ResponseWriter, req *http.Request) {
		var raw telemetry.RawOccupancy
		if err := json.NewDecoder(req.Body).Decode(&raw); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		eng.IngestOccupancy(raw)
		w.WriteHeader(http.StatusAccepted)
	})
	r.Post("/api/telemetry/station-event", func(w http.ResponseWriter, req *http.Request) {
		var raw telemetry.RawStationEvent
		if err := json.NewDecoder(req.Body).Decode(&raw); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		eng.IngestStationEvent(raw)
		w.WriteHeader(http.StatusAccepted)
	})

	r.Post("/api/optimize", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, eng.Optimize(req.Context()))
	})

	r.Post("/api/delay", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			TrainID      string   `json:"trainId"`
			DelayMinutes int      `json:"delayMinutes"`
			Affected     []string `json:"affected"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		upd, err := eng.ReportDelay(body.TrainID, time.Duration(body.DelayMinutes)*time.Minute, body.Affected)
		if err != nil {
			if errors.Is(err, model.ErrTrainNotFound) {
				writeError(w, http.StatusNotFound, err)
			} else {
				writeError(w, http.StatusConflict, err)
			}
			return
		}
		writeJSON(w, http.StatusOK, upd)
	})

	r.Post("/api/scenario", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			TrainID      string `json:"trainId"`
			DelayMinutes int    `json:"delayMinutes"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		res, err := eng.Scenario(req.Context(), body.TrainID, time.Duration(body.DelayMinutes)*time.Minute)
		if err != nil {
			if errors.Is(err, optimizer.ErrScenarioTimeout) {
				writeError(w, http.StatusGatewayTimeout, err)
			} else {
				writeError(w, http.StatusInternalServerError, err)
			}
			return
		}
		writeJSON(w, http.StatusOK, res)
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
