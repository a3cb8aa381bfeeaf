package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vjranagit/groundmotion/pkg/integrator"
	"github.com/vjranagit/groundmotion/pkg/motion"
	"github.com/vjranagit/groundmotion/pkg/series"
	"github.com/vjranagit/groundmotion/pkg/storage"
)

const (
	// maxQueryTimes caps the number of time points per motion request
	maxQueryTimes = 10000

	// defaultMaxUploadBytes caps the size of an upload request body
	defaultMaxUploadBytes = 32 << 20
)

// Server implements the HTTP API server
type Server struct {
	storage  storage.Store
	addr     string
	server   *http.Server
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *metrics

	maxUploadBytes int64

	// records mutate on read, so every query holds this
	queryMu sync.Mutex
}

// NewServer creates a new API server
func NewServer(addr string, store storage.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	registry := prometheus.NewRegistry()
	return &Server{
		storage:  store,
		addr:     addr,
		logger:   logger.With("component", "api"),
		registry: registry,
		metrics:  newMetrics(registry, store),

		maxUploadBytes: defaultMaxUploadBytes,
	}
}

// Handler returns the HTTP handler serving every route
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/records", s.instrument("list", s.handleList))
	mux.HandleFunc("POST /api/v1/records/{name}", s.instrument("upload", s.handleUpload))
	mux.HandleFunc("DELETE /api/v1/records/{name}", s.instrument("delete", s.handleDelete))
	mux.HandleFunc("GET /api/v1/records/{name}/motion", s.instrument("motion", s.handleMotion))
	mux.HandleFunc("GET /api/v1/records/{name}/peaks", s.instrument("peaks", s.handlePeaks))
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	return mux
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Stop stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// UploadRequest carries the series of a new record. At least one series is
// required; missing velocity and displacement are derived.
type UploadRequest struct {
	StepIncrement   float64           `json:"step_increment"`
	Acceleration    []float64         `json:"acceleration,omitempty"`
	Velocity        []float64         `json:"velocity,omitempty"`
	Displacement    []float64         `json:"displacement,omitempty"`
	PrependZero     bool              `json:"prepend_zero,omitempty"`
	ScaleFactor     float64           `json:"scale_factor,omitempty"`
	Integrator      string            `json:"integrator,omitempty"`
	IntegrationStep float64           `json:"integration_step,omitempty"`
	Labels          map[string]string `json:"labels,omitempty"`
}

// MotionSample is the ground state at one time
type MotionSample struct {
	Time         float64 `json:"time"`
	Displacement float64 `json:"displacement"`
	Velocity     float64 `json:"velocity"`
	Acceleration float64 `json:"acceleration"`
}

// PeaksResponse holds the peak values of a record
type PeaksResponse struct {
	Name             string  `json:"name"`
	PeakAcceleration float64 `json:"peak_acceleration"`
	PeakVelocity     float64 `json:"peak_velocity"`
	PeakDisplacement float64 `json:"peak_displacement"`
	Duration         float64 `json:"duration"`
}

// handleList lists stored records, filtered by label=key=value parameters
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	selectors, err := parseSelectors(r.URL.Query()["label"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	infos, err := s.storage.FindRecords(r.Context(), selectors)
	if err != nil {
		http.Error(w, fmt.Sprintf("List failed: %v", err), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, infos)
}

// handleUpload builds a record from the request body and stores it
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)

	var req UploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, fmt.Sprintf("Request body exceeds %d bytes", tooLarge.Limit), http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, fmt.Sprintf("Invalid request: %v", err), http.StatusBadRequest)
		return
	}

	rec, err := s.buildRecord(&req)
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid request: %v", err), http.StatusBadRequest)
		return
	}

	if err := s.storage.SaveRecord(r.Context(), name, req.Labels, rec); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, storage.ErrInvalidName) {
			status = http.StatusBadRequest
		}
		http.Error(w, fmt.Sprintf("Save failed: %v", err), status)
		return
	}

	s.logger.Info("record stored", "name", name)
	writeJSON(w, http.StatusCreated, map[string]string{
		"status": "success",
		"name":   name,
	})
}

func (s *Server) buildRecord(req *UploadRequest) (*motion.Record, error) {
	if len(req.Acceleration) == 0 && len(req.Velocity) == 0 && len(req.Displacement) == 0 {
		return nil, errors.New("at least one of acceleration, velocity or displacement is required")
	}

	step := req.StepIncrement
	if step <= 0 {
		return nil, errors.New("step_increment must be positive")
	}

	if req.IntegrationStep < 0 {
		return nil, errors.New("integration_step must not be negative")
	}

	in, err := integrator.New(req.Integrator)
	if err != nil {
		return nil, err
	}

	opts := []motion.Option{
		motion.WithIntegrator(in),
		motion.WithIntegrationStep(req.IntegrationStep),
		motion.WithLogger(s.logger),
	}
	if req.ScaleFactor != 0 {
		opts = append(opts, motion.WithScaleFactor(req.ScaleFactor))
	}

	seriesOpts := []series.Option{
		series.WithStepIncrement(step),
		series.WithPrependZero(req.PrependZero),
		series.WithLogger(s.logger),
	}
	if len(req.Acceleration) > 0 {
		opts = append(opts, motion.WithAcceleration(series.NewSampled(1, req.Acceleration, seriesOpts...)))
	}
	if len(req.Velocity) > 0 {
		opts = append(opts, motion.WithVelocity(series.NewSampled(2, req.Velocity, seriesOpts...)))
	}
	if len(req.Displacement) > 0 {
		opts = append(opts, motion.WithDisplacement(series.NewSampled(3, req.Displacement, seriesOpts...)))
	}

	return motion.New(opts...), nil
}

// handleDelete removes a stored record
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	if err := s.storage.DeleteRecord(r.Context(), name); err != nil {
		writeStoreError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleMotion returns displacement, velocity and acceleration at each
// requested t parameter
func (s *Server) handleMotion(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	times, err := parseTimes(r.URL.Query()["t"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rec, err := s.storage.LoadRecord(r.Context(), name, motion.WithLogger(s.logger))
	if err != nil {
		writeStoreError(w, err)
		return
	}

	samples := make([]MotionSample, len(times))

	s.queryMu.Lock()
	for i, tm := range times {
		dva := rec.DispVelAccelAt(tm)
		samples[i] = MotionSample{
			Time:         tm,
			Displacement: dva[0],
			Velocity:     dva[1],
			Acceleration: dva[2],
		}
	}
	s.queryMu.Unlock()

	writeJSON(w, http.StatusOK, samples)
}

// handlePeaks returns the peak values of a record
func (s *Server) handlePeaks(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	rec, err := s.storage.LoadRecord(r.Context(), name, motion.WithLogger(s.logger))
	if err != nil {
		writeStoreError(w, err)
		return
	}

	s.queryMu.Lock()
	resp := PeaksResponse{
		Name:             name,
		PeakAcceleration: rec.PeakAcceleration(),
		PeakVelocity:     rec.PeakVelocity(),
		PeakDisplacement: rec.PeakDisplacement(),
		Duration:         rec.Duration(),
	}
	s.queryMu.Unlock()

	writeJSON(w, http.StatusOK, resp)
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	http.Error(w, fmt.Sprintf("Storage error: %v", err), http.StatusInternalServerError)
}

// parseSelectors turns key=value strings into a selector map
func parseSelectors(values []string) (map[string]string, error) {
	if len(values) == 0 {
		return nil, nil
	}

	selectors := make(map[string]string, len(values))
	for _, v := range values {
		key, value, ok := strings.Cut(v, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid label selector %q, want key=value", v)
		}
		selectors[key] = value
	}
	return selectors, nil
}

func parseTimes(values []string) ([]float64, error) {
	if len(values) == 0 {
		return nil, errors.New("missing t parameter")
	}
	if len(values) > maxQueryTimes {
		return nil, fmt.Errorf("too many t parameters, max %d", maxQueryTimes)
	}

	times := make([]float64, len(values))
	for i, v := range values {
		tm, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid time %q", v)
		}
		times[i] = tm
	}
	return times, nil
}
