package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"github.com/digitaljerry/mbus"
	"github.com/digitaljerry/mbus/config"
	"github.com/digitaljerry/mbus/metrics"
	"github.com/digitaljerry/mbus/model"
)

const maxBodySize = 1 << 20

// Resolver defines the operations the API serves.
type Resolver interface {
	Query(ctx context.Context, q mbus.Query) (model.ScheduleResolution, error)
	Refresh(ctx context.Context, groups []model.JourneyGroup, date string) model.Board
}

type Options struct {
	// Groups served by GET /v1/board.
	Groups []model.JourneyGroup

	// Exposed on /metrics when set.
	Metrics *metrics.Collector

	AllowedOrigins []string

	// Can be overridden to control time during tests.
	TimeNow func() time.Time
}

type Server struct {
	resolver Resolver
	opts     Options
}

func NewServer(resolver Resolver, opts Options) *Server {
	if opts.Groups == nil {
		opts.Groups = []model.JourneyGroup{}
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	if opts.TimeNow == nil {
		opts.TimeNow = time.Now
	}
	return &Server{resolver: resolver, opts: opts}
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type BoardRequest struct {
	Date   string               `json:"date"`
	Groups []model.JourneyGroup `json:"groups"`
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	r.Get("/health", s.health)
	if s.opts.Metrics != nil {
		r.Handle("/metrics", s.opts.Metrics.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/schedule", s.getSchedule)
		r.Get("/board", s.getBoard)
		r.Post("/board", s.postBoard)
	})

	return r
}

// GET /v1/schedule?stop=...&route=...&date=YYYY-MM-DD
func (s *Server) getSchedule(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := s.resolver.Query(r.Context(), mbus.Query{
		StopID: q.Get("stop"),
		Route:  q.Get("route"),
		Date:   q.Get("date"),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=30")
	writeJSON(w, http.StatusOK, res)
}

// GET /v1/board?date=YYYY-MM-DD
func (s *Server) getBoard(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	err := mbus.ValidateDate(date)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, s.resolver.Refresh(r.Context(), s.opts.Groups, date))
}

// POST /v1/board with a BoardRequest body, for ad hoc groups.
func (s *Server) postBoard(w http.ResponseWriter, r *http.Request) {
	req := BoardRequest{}
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req)
	if err != nil {
		writeError(w, fmt.Errorf("%w: decoding body: %w", mbus.ErrBadRequest, err))
		return
	}

	err = mbus.ValidateDate(req.Date)
	if err != nil {
		writeError(w, err)
		return
	}

	if req.Groups == nil {
		req.Groups = []model.JourneyGroup{}
	}
	err = config.NormalizeGroups(req.Groups)
	if err != nil {
		writeError(w, fmt.Errorf("%w: %w", mbus.ErrBadRequest, err))
		return
	}

	writeJSON(w, http.StatusOK, s.resolver.Refresh(r.Context(), req.Groups, req.Date))
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"groups":    len(s.opts.Groups),
		"timestamp": s.opts.TimeNow().UTC(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to write response")
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, mbus.ErrBadRequest) {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Msg("Handled request")
	})
}
