// internal/httpserver/server.go
//
// HTTP server wiring for the game session service.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs).
//   - Public endpoints: "/", "/health", "/metrics".
//   - Game endpoints (guests allowed): /game/start, /game/check, /game/state, /game/events.
//   - Auth + profile/stat endpoints: /auth/*, /stats/me, /games/mine.
//   - Debug endpoints: /debug/words (open), /debug/sessions (X-Debug-Token).
//
// Notes:
//   - CORS is origin-aware and credentials-enabled (so cookies work).
//   - /game/check holds the request open until the turn's outcome arrives, up
//     to Options.CheckWait; past that the check stays pending and its outcome
//     shows up in /game/events and /game/state.

package httpserver

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/wordle/apps/gamesession/internal/game"
	"github.com/robalobadob/wordle/apps/gamesession/internal/history"
	"github.com/robalobadob/wordle/apps/gamesession/internal/notify"
	"github.com/robalobadob/wordle/apps/gamesession/internal/users"
	"github.com/robalobadob/wordle/apps/gamesession/internal/words"
)

// Games is the orchestrator surface the HTTP layer drives.
type Games interface {
	StartGame(ctx context.Context, userID string) (game.Event, error)
	CheckWord(ctx context.Context, userID, word string) (game.Event, error)
	Session(ctx context.Context, userID string) (game.Session, error)
	Snapshot(ctx context.Context) map[string]game.Session
	EngineAddress() string
}

// Options carries the HTTP-level settings.
type Options struct {
	JWTSecret     string
	JWTTTL        time.Duration
	CookieName    string
	ClientOrigin  string
	SecureCookies bool
	GameTimeout   time.Duration
	CheckWait     time.Duration
	RatePerSec    float64
	RateBurst     int
	// DebugToken must be sent as X-Debug-Token to read /debug/sessions.
	// The session table is keyed by player id, which for guests is their
	// cookie value, so the route stays closed when this is empty.
	DebugToken    string
}

func (o *Options) defaults() {
	if o.JWTSecret == "" {
		o.JWTSecret = "dev-secret-change-me"
	}
	if o.JWTTTL <= 0 {
		o.JWTTTL = 7 * 24 * time.Hour
	}
	if o.CookieName == "" {
		o.CookieName = "token"
	}
	if o.ClientOrigin == "" {
		o.ClientOrigin = "http://localhost:5173"
	}
	if o.GameTimeout <= 0 {
		o.GameTimeout = game.DefaultTimeout
	}
	if o.CheckWait <= 0 {
		o.CheckWait = 15 * time.Second
	}
}

// Server bundles router, orchestrator and persistence handles.
type Server struct {
	r        *chi.Mux
	games    Games
	feed     *notify.Feed
	words    *words.Lists
	users    *users.Store
	history  *history.Store
	limiters *playerLimiters
	opts     Options
}

// New constructs a Server, installs middleware, and registers routes.
func New(g Games, feed *notify.Feed, wl *words.Lists, us *users.Store, hs *history.Store, opts Options) *Server {
	opts.defaults()
	s := &Server{
		r:        chi.NewRouter(),
		games:    g,
		feed:     feed,
		words:    wl,
		users:    us,
		history:  hs,
		limiters: newPlayerLimiters(opts.RatePerSec, opts.RateBurst),
		opts:     opts,
	}

	// --- middleware ---
	s.r.Use(chimw.RequestID)
	s.r.Use(chimw.RealIP)
	s.r.Use(chimw.Recoverer)
	// Bound handler time a little past the longest check wait.
	s.r.Use(chimw.Timeout(opts.CheckWait + 5*time.Second))
	s.r.Use(jsonContentType)
	s.r.Use(s.cors)

	// --- diagnostics ---
	s.r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"service":"gamesession","endpoints":["/health","/metrics","POST /game/start","POST /game/check","/game/state","/game/events","/auth/*"]}`))
	})
	s.r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "engine": s.games.EngineAddress()})
	})
	s.r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	s.r.Group(func(r chi.Router) {
		r.Use(s.withIdentity)
		s.mountGame(r)
	})

	s.mountAuthRoutes()
	s.mountDebug()

	// JSON 404 for easier debugging
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpError(w, http.StatusNotFound, "not_found", r.URL.Path)
	})

	return s
}

func (s *Server) mountDebug() {
	s.r.With(s.requireDebugToken).Get("/debug/sessions", func(w http.ResponseWriter, r *http.Request) {
		snap := s.games.Snapshot(r.Context())
		out := make(map[string]stateView, len(snap))
		for id, sess := range snap {
			out[id] = s.view(sess)
		}
		_ = json.NewEncoder(w).Encode(out)
	})
	s.r.Get("/debug/words", func(w http.ResponseWriter, r *http.Request) {
		a, g := s.words.Stats()
		out := map[string]any{"answers": a, "allowed": g}
		if q := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("word"))); q != "" {
			out["word"] = map[string]any{"word": q, "allowed": s.words.IsAllowed(q), "answer": s.words.IsAnswer(q)}
		}
		_ = json.NewEncoder(w).Encode(out)
	})
}

// requireDebugToken gates operator-only routes on Options.DebugToken.
func (s *Server) requireDebugToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.opts.DebugToken == "" {
			httpError(w, http.StatusForbidden, "debug_disabled", "")
			return
		}
		got := r.Header.Get("X-Debug-Token")
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.opts.DebugToken)) != 1 {
			httpError(w, http.StatusUnauthorized, "unauthorized", "")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Handler exposes the router as an http.Handler.
func (s *Server) Handler() http.Handler { return s.r }

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	hs := &http.Server{
		Addr:              addr,
		Handler:           s.r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- hs.ListenAndServe() }()
	log.Info().Str("addr", addr).Msg("http listening")

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := hs.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// cors enables credentialed CORS for the configured client origin.
func (s *Server) cors(next http.Handler) http.Handler {
	origin := s.opts.ClientOrigin
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
