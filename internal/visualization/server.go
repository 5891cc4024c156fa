package visualization

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/annebeks/prepsim/internal/logging"
	"github.com/annebeks/prepsim/internal/models"
	"github.com/annebeks/prepsim/internal/ratelimit"
	"github.com/annebeks/prepsim/internal/simulation"
	"github.com/annebeks/prepsim/internal/stats"
)

// Server exposes a session over HTTP: status, graph and statistics reads,
// and step/play/pause/reset controls.
type Server struct {
	session    *simulation.Session
	metrics    http.Handler
	limiter    *ratelimit.Limiter
	logger     *slog.Logger
	httpServer *http.Server
	mu         sync.Mutex
	addr       string
	playCtx    context.Context
}

// NewServer creates a server for sess. metrics, when non-nil, is mounted at
// /metrics.
func NewServer(sess *simulation.Session, metrics http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Server{session: sess, metrics: metrics, logger: logger}
}

// LimitControls throttles the step/play/pause/reset endpoints per client.
// Call before Handler or ListenAndServe.
func (s *Server) LimitControls(l *ratelimit.Limiter) {
	s.limiter = l
}

// Addr returns the address the server is listening on (e.g., "localhost:PORT").
// Returns empty string if the server hasn't started yet.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Handler returns the request router.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleStatus)
	mux.HandleFunc("GET /api/graph", s.handleGraph)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.Handle("POST /api/step", s.control(s.handleStep))
	mux.Handle("POST /api/play", s.control(s.handlePlay))
	mux.Handle("POST /api/pause", s.control(s.handlePause))
	mux.Handle("POST /api/reset", s.control(s.handleReset))
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}
	return mux
}

func (s *Server) control(h http.HandlerFunc) http.Handler {
	if s.limiter == nil {
		return h
	}
	return s.limiter.Middleware(h)
}

// ListenAndServe listens on addr ("localhost:0" picks a free port) and
// blocks until ctx is cancelled. Playback started over HTTP is stopped when
// ctx ends.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	s.mu.Lock()
	s.addr = ln.Addr().String()
	s.playCtx = ctx
	s.httpServer = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.session.Pause()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	err = s.httpServer.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Status is the body of GET /.
type Status struct {
	Week     int               `json:"week"`
	MaxWeeks int               `json:"max_weeks"`
	Playing  bool              `json:"playing"`
	Mode     string            `json:"mode"`
	PrEP     float64           `json:"prep"`
	Nodes    int               `json:"nodes"`
	Runs     []models.Snapshot `json:"runs"`
}

func (s *Server) status() Status {
	settings := s.session.Settings()
	var (
		runs    []models.Snapshot
		current int
	)
	s.session.Inspect(func(week int, ens *simulation.Ensemble) {
		runs = make([]models.Snapshot, ens.Len())
		for i, r := range ens.Runs() {
			runs[i] = r.Current()
		}
		current = week
	})
	return Status{
		Week:     current,
		MaxWeeks: settings.MaxWeeks,
		Playing:  s.session.Playing(),
		Mode:     settings.Ensemble.Run.Mode,
		PrEP:     settings.Ensemble.Run.Coverage,
		Nodes:    settings.Ensemble.Run.NumNodes,
		Runs:     runs,
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.status())
}

// handleGraph renders one run's network; ?run= selects it (default 0) and
// ?format= picks dot or json (default json).
func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	format := FormatJSON
	if f := r.URL.Query().Get("format"); f != "" {
		var err error
		if format, err = ParseFormat(f); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	ens := s.session.Ensemble()
	idx := 0
	if v := r.URL.Query().Get("run"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n >= ens.Len() {
			http.Error(w, fmt.Sprintf("run must be between 0 and %d", ens.Len()-1), http.StatusBadRequest)
			return
		}
		idx = n
	}

	// Snapshot people under the session lock so the graph is taken at a
	// step boundary.
	run := ens.Run(idx)
	people, week := s.peopleOf(run)
	g, err := BuildGraph(run.Network(), people, week)
	if err != nil {
		http.Error(w, "render error: "+err.Error(), http.StatusInternalServerError)
		return
	}

	if format == FormatDOT {
		w.Header().Set("Content-Type", "text/vnd.graphviz; charset=utf-8")
		w.Write([]byte(RenderDOT(g)))
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) peopleOf(run *simulation.Run) ([]models.Person, int) {
	var (
		people []models.Person
		week   int
	)
	s.session.Inspect(func(int, *simulation.Ensemble) {
		people = run.People()
		week = run.Time()
	})
	return people, week
}

// StatsResponse is the body of GET /api/stats.
type StatsResponse struct {
	Runs  int                     `json:"runs"`
	Weeks int                     `json:"weeks"`
	Bands map[string][]stats.Band `json:"bands"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	var series [][]models.Snapshot
	s.session.Inspect(func(_ int, ens *simulation.Ensemble) { series = ens.Series() })

	sum, err := stats.SummarizeSeries(series)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	every, _ := strconv.Atoi(r.URL.Query().Get("every"))
	bands := make(map[string][]stats.Band, len(sum.Bands))
	for key, all := range sum.ByKey() {
		weeks := stats.SampleWeeks(len(all), every)
		sampled := make([]stats.Band, len(weeks))
		for i, wk := range weeks {
			sampled[i] = all[wk]
		}
		bands[key] = sampled
	}
	writeJSON(w, http.StatusOK, StatsResponse{Runs: sum.Runs, Weeks: sum.Weeks, Bands: bands})
}

func (s *Server) handleStep(w http.ResponseWriter, r *http.Request) {
	if s.session.Playing() {
		http.Error(w, simulation.ErrSessionPlaying.Error(), http.StatusConflict)
		return
	}
	s.session.Step()
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	ctx := s.playCtx
	s.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	started := make(chan error, 1)
	go func() {
		err := s.session.Play(ctx, func(week int, _ *simulation.Ensemble) {
			select {
			case started <- nil:
			default:
			}
			s.logger.Debug("session update", "week", week)
		})
		select {
		case started <- err:
		default:
		}
		if err != nil && !errors.Is(err, simulation.ErrSessionPlaying) {
			s.logger.Warn("session play stopped", "error", err)
		}
	}()

	if err := <-started; errors.Is(err, simulation.ErrSessionPlaying) {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusAccepted, s.status())
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.session.Pause()
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Reset(r.Context()); err != nil {
		http.Error(w, "reset: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, s.status())
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
