// internal/httpserver/auth.go
//
// Identity for HTTP callers.
// Every request under withIdentity carries a player id: the account id when
// a valid JWT (bearer header or auth cookie) names an existing user,
// otherwise a stable anonymous id kept in its own cookie. The player id is
// the orchestrator's user id.

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/wordle/apps/gamesession/internal/users"
)

const anonCookieName = "gamesession_anon"

// authUser is placed into request context by the auth middleware.
type authUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type ctxUserKey struct{}
type ctxPlayerKey struct{}

// player returns the request's player id.
func player(r *http.Request) string {
	id, _ := r.Context().Value(ctxPlayerKey{}).(string)
	return id
}

// account returns the authenticated user, or nil for guests.
func account(r *http.Request) *authUser {
	u, _ := r.Context().Value(ctxUserKey{}).(*authUser)
	return u
}

// withIdentity decorates requests with the player id and, when a valid JWT
// is present, the account. It never 401s.
func (s *Server) withIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if u := s.userFromToken(r); u != nil {
			ctx = context.WithValue(ctx, ctxUserKey{}, u)
			ctx = context.WithValue(ctx, ctxPlayerKey{}, u.ID)
		} else {
			ctx = context.WithValue(ctx, ctxPlayerKey{}, s.ensureAnonID(w, r))
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireAuth enforces a valid JWT for an existing user.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if bearerOrCookie(r, s.opts.CookieName) == "" {
			httpError(w, http.StatusUnauthorized, "unauthorized", "")
			return
		}
		u := s.userFromToken(r)
		if u == nil {
			httpError(w, http.StatusUnauthorized, "invalid_token", "")
			return
		}
		ctx := context.WithValue(r.Context(), ctxUserKey{}, u)
		ctx = context.WithValue(ctx, ctxPlayerKey{}, u.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) userFromToken(r *http.Request) *authUser {
	tok := bearerOrCookie(r, s.opts.CookieName)
	if tok == "" {
		return nil
	}
	claims := jwt.MapClaims{}
	t, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(s.opts.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !t.Valid {
		return nil
	}
	id, _ := claims["id"].(string)
	if id == "" {
		return nil
	}
	// Ensure user still exists.
	u, err := s.users.ByID(r.Context(), id)
	if err != nil {
		return nil
	}
	return &authUser{ID: u.ID, Username: u.Username}
}

// ensureAnonID returns an existing anon cookie or sets a new one.
func (s *Server) ensureAnonID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(anonCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	id := "anon-" + uuid.NewString()
	http.SetCookie(w, s.cookie(anonCookieName, id, time.Now().Add(180*24*time.Hour)))
	return id
}

func (s *Server) cookie(name, value string, exp time.Time) *http.Cookie {
	sameSite := http.SameSiteLaxMode
	if s.opts.SecureCookies {
		sameSite = http.SameSiteNoneMode
	}
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.opts.SecureCookies,
		SameSite: sameSite,
		Expires:  exp,
	}
	if value == "" {
		c.MaxAge = -1
	}
	return c
}

// signJWT creates an HS256 JWT carrying id and username.
func (s *Server) signJWT(id, username string) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(s.opts.JWTTTL)
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":       id,
		"username": username,
		"exp":      exp.Unix(),
		"iat":      now.Unix(),
	})
	ss, err := t.SignedString([]byte(s.opts.JWTSecret))
	return ss, exp, err
}

// bearerOrCookie extracts a token from the Authorization header or auth cookie.
func bearerOrCookie(r *http.Request, cookieName string) string {
	if a := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(a), "bearer ") {
		return strings.TrimSpace(a[7:])
	}
	if c, err := r.Cookie(cookieName); err == nil {
		return c.Value
	}
	return ""
}

// ------------------------------- routes ------------------------------------

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) mountAuthRoutes() {
	s.r.Post("/auth/signup", s.handleSignup)
	s.r.Post("/auth/login", s.handleLogin)
	s.r.Post("/auth/logout", s.handleLogout)

	s.r.With(s.requireAuth).Get("/auth/me", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(account(r))
	})
	s.r.With(s.requireAuth).Get("/stats/me", s.handleStats)
	s.r.With(s.requireAuth).Get("/games/mine", s.handleMyGames)
}

// handleSignup creates a user, sets the auth cookie and claims guest history.
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var body credentials
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	u, err := s.users.Create(r.Context(), body.Username, body.Password)
	switch {
	case errors.Is(err, users.ErrUsernameTaken):
		httpError(w, http.StatusConflict, "username_taken", "")
		return
	case errors.Is(err, users.ErrInvalid):
		httpError(w, http.StatusBadRequest, "invalid_signup", err.Error())
		return
	case err != nil:
		log.Error().Err(err).Msg("create user")
		httpError(w, http.StatusInternalServerError, "internal", "")
		return
	}
	if !s.issueToken(w, u) {
		return
	}
	s.claimAnonGames(r, u.ID)
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(u)
}

// handleLogin authenticates, sets the auth cookie and claims guest history.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body credentials
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	u, err := s.users.Authenticate(r.Context(), body.Username, body.Password)
	if err != nil {
		httpError(w, http.StatusUnauthorized, "invalid_credentials", "invalid username or password")
		return
	}
	if !s.issueToken(w, u) {
		return
	}
	s.claimAnonGames(r, u.ID)
	_ = json.NewEncoder(w).Encode(authUser{ID: u.ID, Username: u.Username})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, s.cookie(s.opts.CookieName, "", time.Time{}))
	_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}

func (s *Server) issueToken(w http.ResponseWriter, u *users.User) bool {
	tok, exp, err := s.signJWT(u.ID, u.Username)
	if err != nil {
		log.Error().Err(err).Msg("sign jwt")
		httpError(w, http.StatusInternalServerError, "sign_failed", "")
		return false
	}
	http.SetCookie(w, s.cookie(s.opts.CookieName, tok, exp))
	w.Header().Set("Authorization", "Bearer "+tok)
	return true
}

// claimAnonGames moves the guest's archived games to the account.
func (s *Server) claimAnonGames(r *http.Request, userID string) {
	c, err := r.Cookie(anonCookieName)
	if err != nil || c.Value == "" {
		return
	}
	n, err := s.history.Claim(r.Context(), c.Value, userID)
	if err != nil {
		log.Warn().Err(err).Str("user", userID).Msg("claim anon games")
		return
	}
	if n > 0 {
		log.Info().Str("user", userID).Int64("games", n).Msg("claimed anon games")
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.history.Stats(r.Context(), account(r).ID)
	if err != nil {
		log.Error().Err(err).Msg("load stats")
		httpError(w, http.StatusInternalServerError, "db_error", "")
		return
	}
	_ = json.NewEncoder(w).Encode(st)
}

func (s *Server) handleMyGames(w http.ResponseWriter, r *http.Request) {
	games, err := s.history.ForUser(r.Context(), account(r).ID, 50)
	if err != nil {
		log.Error().Err(err).Msg("load games")
		httpError(w, http.StatusInternalServerError, "db_error", "")
		return
	}
	_ = json.NewEncoder(w).Encode(games)
}
