// Package demo serves the live demonstration endpoint: a generate request
// replays a recorded power trace point by point while clients poll its
// progress.
package demo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/daryltucker/forest-energy/internal/clock"
	"github.com/daryltucker/forest-energy/internal/config"
	"github.com/daryltucker/forest-energy/internal/logs"
	"github.com/daryltucker/forest-energy/internal/metrics"
	"github.com/daryltucker/forest-energy/internal/model"
	"github.com/daryltucker/forest-energy/internal/output"
	"github.com/daryltucker/forest-energy/internal/trace"
)

// Trace origins.
const (
	OriginReal = "real"
	OriginMock = "mock"
)

// replayPoints caps how many points a request replays.
const replayPoints = 100

// GenerateRequest is the body of POST /generate. Both fields are optional.
type GenerateRequest struct {
	Prompt  string `json:"prompt"`
	Backend string `json:"backend"`
}

// Server implements the demo HTTP API. It is safe to use concurrently;
// only one generate request runs at a time.
type Server struct {
	cfg     *config.Config
	norm    clock.Normalizer
	tracker *Tracker
	mux     *http.ServeMux

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewServer constructs a Server with all routes registered.
func NewServer(cfg *config.Config) *Server {
	s := &Server{
		cfg:     cfg,
		norm:    clock.New(cfg.LocalOffset),
		tracker: NewTracker(),
		mux:     http.NewServeMux(),
		rng:     rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
	}
	s.routes()
	return s
}

// Tracker exposes the progress state.
func (s *Server) Tracker() *Tracker {
	return s.tracker
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/generate", s.handleGenerate)
	s.mux.HandleFunc("/status", s.handleStatus)
	s.mux.Handle("/metrics", promhttp.Handler())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.tracker.Snapshot())
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	req := GenerateRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.Prompt == "" {
		req.Prompt = "Hello, world!"
	}
	if req.Backend == "" {
		req.Backend = string(model.BackendGPU)
	}
	backend, err := model.ParseBackend(req.Backend)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	gen, ok := s.tracker.Begin()
	if !ok {
		http.Error(w, "a generate request is already processing", http.StatusConflict)
		return
	}

	doc, err := s.generate(r.Context(), gen, req.Prompt, backend)
	if err != nil {
		s.tracker.Reset(gen)
		output.Logger.Warn("Generate request aborted", "backend", backend, "error", err)
		return
	}

	time.AfterFunc(s.cfg.Server.ResetDelay, func() { s.tracker.Reset(gen) })
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) generate(ctx context.Context, gen uint64, prompt string, backend model.Backend) (model.ExportDocument, error) {
	pause := s.cfg.Server.StepDelay

	s.tracker.Step(gen, 1, "Request Received", 0)
	output.Logger.Info("[STEP 1] Request Received", "prompt", prompt, "backend", backend)
	if err := sleep(ctx, pause); err != nil {
		return model.ExportDocument{}, err
	}

	s.tracker.Step(gen, 2, "Loading Model & Warming Up Sensors...", 0.25)
	output.Logger.Info("[STEP 2] Loading Model & Warming Up Sensors...")
	full, origin := s.loadTrace(backend)
	if err := sleep(ctx, pause); err != nil {
		return model.ExportDocument{}, err
	}

	s.tracker.Step(gen, 3, "Running Inference...", 0.3)
	output.Logger.Info("[STEP 3] Running Inference...", "origin", origin, "points", len(full))
	start := time.Now()
	replay := downsample(full, replayPoints)
	for i, watts := range replay {
		s.tracker.Append(gen, watts, 0.3+0.6*float64(i+1)/float64(len(replay)))
		if err := sleep(ctx, s.cfg.Server.PointDelay); err != nil {
			return model.ExportDocument{}, err
		}
	}
	latency := time.Since(start)

	s.tracker.Complete(gen, 4, "Inference Complete")
	output.Logger.Info("[STEP 4] Inference Complete", "latency_ms", round2(float64(latency.Microseconds())/1000))

	metrics.GenerateRequests.WithLabelValues(string(backend), origin).Inc()
	metrics.GenerateLatency.WithLabelValues(string(backend)).Observe(latency.Seconds())

	return model.ExportDocument{Runs: []model.ExportRun{{
		RunID:        "run_" + uuid.NewString(),
		Backend:      backend,
		LatencyMs:    round2(float64(latency.Microseconds()) / 1000),
		EnergyJoules: round2(trace.Integrate(full, s.cfg.SampleInterval)),
		PowerTrace:   trace.Resample(replay, s.cfg.TracePoints),
		Text:         fmt.Sprintf("Generated response for '%s' using %s...", prompt, backend),
	}}}, nil
}

// loadTrace picks a random recorded trace of backend, falling back to a
// mock trace in mock mode or when no usable recording exists.
func (s *Server) loadTrace(backend model.Backend) ([]float64, string) {
	if s.cfg.Server.Mock {
		return s.mockTrace(), OriginMock
	}

	files, err := logs.Discover(s.cfg.DataDir, backend, s.norm)
	if err != nil || len(files) == 0 {
		output.Logger.Warn("No real data found, falling back to mock", "backend", backend, "dir", s.cfg.DataDir)
		return s.mockTrace(), OriginMock
	}

	s.rngMu.Lock()
	f := files[s.rng.IntN(len(files))]
	s.rngMu.Unlock()

	samples, err := logs.ReadSensorFile(f, s.norm)
	if err != nil {
		output.Logger.Error("Error loading real trace", "file", f.Path, "error", err)
		return s.mockTrace(), OriginMock
	}
	var out []float64
	for _, smp := range samples {
		if smp.PowerW > 0 {
			out = append(out, smp.PowerW)
		}
	}
	if len(out) == 0 {
		return s.mockTrace(), OriginMock
	}
	output.Logger.Info("Loading real trace", "file", f.Path, "points", len(out))
	return out, OriginReal
}

// mockTrace is two seconds at 10 Hz: idle, ramp up, noisy load, ramp down.
func (s *Server) mockTrace() []float64 {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()

	out := []float64{15.0, 16.2, 80.5, 150.0}
	for range 16 {
		out = append(out, 140+20*s.rng.Float64())
	}
	return append(out, 40.0, 16.0)
}

// downsample keeps every k-th point so at most about n remain.
func downsample(in []float64, n int) []float64 {
	if len(in) <= n {
		return in
	}
	step := len(in) / n
	out := make([]float64, 0, len(in)/step+1)
	for i := 0; i < len(in); i += step {
		out = append(out, in[i])
	}
	return out
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ListenAndServe runs the demo server until ctx is cancelled.
func ListenAndServe(ctx context.Context, cfg *config.Config) error {
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           NewServer(cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		output.Logger.Info("Starting demo server", "addr", cfg.Server.Addr, "mock", cfg.Server.Mock)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("demo server failed: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		output.Logger.Info("Shutting down demo server")
		return srv.Shutdown(shutdownCtx)
	}
}
