package fakeapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Khatrip009/adminsprada-sub000/jwt"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Collections served under bearer auth.
var Collections = []string{"products", "blogs", "leads", "users"}

const defaultSecret = "fakeapi-signing-secret-0123456789"

type account struct {
	id       int
	email    string
	fullName string
	roleID   int
	hash     []byte
}

func (a account) userJSON() map[string]any {
	return map[string]any{
		"id":        a.id,
		"email":     a.email,
		"full_name": a.fullName,
		"role_id":   a.roleID,
	}
}

// Server is the fake backend. It implements http.Handler.
type Server struct {
	mu       sync.Mutex
	accounts map[string]account
	refresh  map[string]string
	access   map[string]struct{}
	records  map[string]*collection
	nextID   int

	tokens       *jwt.Manager
	router       chi.Router
	logger       *slog.Logger
	accessTTL    time.Duration
	refreshDelay time.Duration
	omitUser     bool

	refreshCalls atomic.Int64
	loginCalls   atomic.Int64
	failRefresh  atomic.Bool
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger. Defaults to a discarding logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithAccessTTL sets the lifetime of issued access tokens. Defaults to 15 minutes.
func WithAccessTTL(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.accessTTL = d
		}
	}
}

// WithRefreshDelay makes every refresh call sleep for d before answering.
func WithRefreshDelay(d time.Duration) Option {
	return func(s *Server) {
		s.refreshDelay = d
	}
}

// WithoutUserOnRefresh omits the user object from refresh responses.
func WithoutUserOnRefresh() Option {
	return func(s *Server) {
		s.omitUser = true
	}
}

// New returns a Server with no accounts and empty collections.
func New(opts ...Option) *Server {
	s := &Server{
		accounts: make(map[string]account),
		refresh:  make(map[string]string),
		access:   make(map[string]struct{}),
		records:  make(map[string]*collection, len(Collections)),
		logger:   slog.New(slog.DiscardHandler),

		accessTTL: 15 * time.Minute,
	}
	for _, name := range Collections {
		s.records[name] = newCollection()
	}
	for _, opt := range opts {
		opt(s)
	}

	mgr, err := jwt.NewManager(jwt.Config{
		AccessTTL: s.accessTTL,
		Secret:    []byte(defaultSecret),
		Issuer:    "fakeapi",
	})
	if err != nil {
		panic("fakeapi: " + err.Error())
	}
	s.tokens = mgr
	s.router = s.routes()
	return s
}

// AddUser registers an account and returns its numeric id.
func (s *Server) AddUser(email, password, fullName string, roleID int) (int, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[email]; ok {
		return 0, errors.New("fakeapi: user exists")
	}
	s.nextID++
	s.accounts[email] = account{
		id:       s.nextID,
		email:    email,
		fullName: fullName,
		roleID:   roleID,
		hash:     hash,
	}
	return s.nextID, nil
}

// Expire invalidates every access token issued so far. Refresh tokens stay valid.
func (s *Server) Expire() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.access)
}

// RevokeRefreshTokens invalidates every refresh token, so the next refresh fails.
func (s *Server) RevokeRefreshTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.refresh)
}

// FailRefresh makes refresh calls answer 500 while on is true.
func (s *Server) FailRefresh(on bool) {
	s.failRefresh.Store(on)
}

// RefreshCalls reports how many refresh requests were received.
func (s *Server) RefreshCalls() int64 {
	return s.refreshCalls.Load()
}

// LoginCalls reports how many login requests were received.
func (s *Server) LoginCalls() int64 {
	return s.loginCalls.Load()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Post("/auth/login", s.handleLogin)
	r.Post("/auth/refresh", s.handleRefresh)

	r.Group(func(r chi.Router) {
		r.Use(s.requireBearer)
		r.Get("/auth/me", s.handleMe)
		for _, name := range Collections {
			r.Route("/"+name, func(r chi.Router) {
				r.Get("/", s.handleList(name))
				r.Post("/", s.handleCreate(name))
				r.Get("/{id}", s.handleGet(name))
				r.Put("/{id}", s.handleUpdate(name))
				r.Delete("/{id}", s.handleDelete(name))
			})
		}
	})
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.DebugContext(r.Context(), "fakeapi: request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"request_id", r.Header.Get("X-Request-ID"),
			"duration", time.Since(start),
		)
	})
}

/*
====================================
AUTH
====================================
*/

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	s.loginCalls.Add(1)

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.mu.Lock()
	acct, ok := s.accounts[req.Email]
	s.mu.Unlock()
	if !ok || bcrypt.CompareHashAndPassword(acct.hash, []byte(req.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	body, err := s.issue(acct, true)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.refreshCalls.Add(1)
	if s.refreshDelay > 0 {
		select {
		case <-time.After(s.refreshDelay):
		case <-r.Context().Done():
			return
		}
	}
	if s.failRefresh.Load() {
		writeError(w, http.StatusInternalServerError, "refresh unavailable")
		return
	}

	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "refreshToken is required")
		return
	}

	s.mu.Lock()
	email, ok := s.refresh[req.RefreshToken]
	if ok {
		delete(s.refresh, req.RefreshToken)
	}
	acct := s.accounts[email]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}

	body, err := s.issue(acct, !s.omitUser)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())
	s.mu.Lock()
	acct, ok := s.accounts[claims.Email]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, acct.userJSON())
}

// issue mints an access token and a fresh refresh token for acct.
func (s *Server) issue(acct account, withUser bool) (map[string]any, error) {
	access, err := s.tokens.CreateAccess(strconv.Itoa(acct.id), acct.email, strconv.Itoa(acct.roleID))
	if err != nil {
		return nil, err
	}
	refreshToken := uuid.NewString()

	s.mu.Lock()
	s.access[access] = struct{}{}
	s.refresh[refreshToken] = acct.email
	s.mu.Unlock()

	body := map[string]any{
		"accessToken":  access,
		"refreshToken": refreshToken,
	}
	if withUser {
		body["user"] = acct.userJSON()
	}
	return body, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}
