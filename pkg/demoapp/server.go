// Package demoapp is the downstream consumer of the synchronized secret: an
// HTTP service that reports which secret-derived variables it received
// without ever returning their values.
package demoapp

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/systemstart/secrets-bootstrap/pkg/redact"
)

// Version is reported by the root endpoint.
const Version = "1.0.0"

const (
	EnvHost     = "POSTGRES_HOST"
	EnvUsername = "POSTGRES_USERNAME"
	EnvDatabase = "POSTGRES_DATABASE"
	EnvPassword = "POSTGRES_PASSWORD"
	EnvNodeEnv  = "NODE_ENV"
	EnvPort     = "PORT"
)

// RequiredVariables must all be present for /ready to succeed.
var RequiredVariables = []string{EnvHost, EnvUsername, EnvDatabase, EnvPassword}

const (
	levelInfo  = "INFO"
	levelError = "ERROR"
)

// Server serves the demo endpoints. Environment access goes through Lookup
// and Environ so handlers can be tested without touching the process env.
type Server struct {
	Lookup  func(string) (string, bool)
	Environ func() []string
	Now     func() time.Time
	Logbook *Logbook
	Metrics *Metrics
}

// NewServer creates a Server over the given environment accessors.
func NewServer(lookup func(string) (string, bool), environ func() []string) *Server {
	return &Server{
		Lookup:  lookup,
		Environ: environ,
		Now:     time.Now,
		Logbook: &Logbook{},
		Metrics: NewMetrics(),
	}
}

// Handler returns the router with every endpoint registered.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.instrument)
	r.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/ready", s.handleReady).Methods(http.MethodGet)
	r.HandleFunc("/secrets", s.handleSecrets).Methods(http.MethodGet)
	r.HandleFunc("/env", s.handleEnv).Methods(http.MethodGet)
	r.HandleFunc("/logs", s.handleLogs).Methods(http.MethodGet)
	r.Handle("/metrics", s.Metrics.Handler()).Methods(http.MethodGet)
	return r
}

// Log records a startup event. The secrets status is sampled at call time.
func (s *Server) Log(level, message string) {
	status := "missing"
	if s.passwordLoaded() {
		status = "loaded"
	}
	s.Logbook.Append(LogEntry{
		Timestamp:     s.Now().UTC(),
		Level:         level,
		Message:       message,
		SecretsStatus: status,
	})
}

// Startup inspects the secret-derived variables once and records what it
// found. It returns the names of missing required variables.
func (s *Server) Startup() []string {
	s.Log(levelInfo, "Application starting up")

	var missing []string
	for _, name := range RequiredVariables {
		value, ok := s.Lookup(name)
		if !ok {
			missing = append(missing, name)
			s.Log(levelError, fmt.Sprintf("%s not found in environment", name))
			slog.Error("variable not found", "name", name)
			continue
		}
		if redact.IsSensitive(name) {
			s.Log(levelInfo, fmt.Sprintf("%s loaded (length: %d)", name, len(value)))
		} else {
			s.Log(levelInfo, fmt.Sprintf("%s loaded: %s", name, value))
		}
		slog.Info("variable loaded", "name", name, "value", redact.Value(name, value))
	}

	for _, kv := range s.filteredEnv() {
		slog.Info("environment", "name", kv[0], "value", kv[1])
	}

	if s.passwordLoaded() {
		s.Log(levelInfo, fmt.Sprintf("Database connection test successful (simulated): postgresql://%s@%s/%s",
			s.lookupOr(EnvUsername, "unknown"), s.lookupOr(EnvHost, "localhost"), s.lookupOr(EnvDatabase, "unknown")))
	} else {
		s.Log(levelError, "Database connection failed: missing password")
	}

	s.Metrics.setSecretsLoaded(len(missing) == 0)
	return missing
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Welcome to the example API",
		"version": Version,
		"endpoints": []string{
			"/health - Health check",
			"/ready - Readiness check",
			"/secrets - Secrets information",
			"/logs - Application logs",
			"/env - Environment variables",
			"/metrics - Prometheus metrics",
		},
	})
}

type healthResponse struct {
	Status        string `json:"status"`
	Timestamp     string `json:"timestamp"`
	SecretsLoaded bool   `json:"secrets_loaded"`
	Environment   string `json:"environment"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:        "healthy",
		Timestamp:     s.timestamp(),
		SecretsLoaded: s.passwordLoaded(),
		Environment:   s.lookupOr(EnvNodeEnv, "development"),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	missing := s.missingRequired()
	s.Metrics.setSecretsLoaded(len(missing) == 0)
	if len(missing) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":    "not ready",
			"timestamp": s.timestamp(),
			"missing":   missing,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ready",
		"timestamp": s.timestamp(),
		"message":   "All required secrets are loaded",
	})
}

type secretsResponse struct {
	PostgresHost           *string           `json:"postgres_host"`
	PostgresUsername       *string           `json:"postgres_username"`
	PostgresDatabase       *string           `json:"postgres_database"`
	PostgresPasswordLength *int              `json:"postgres_password_length"`
	AllEnvVars             map[string]string `json:"all_env_vars"`
}

func (s *Server) handleSecrets(w http.ResponseWriter, _ *http.Request) {
	resp := secretsResponse{
		PostgresHost:     s.optional(EnvHost),
		PostgresUsername: s.optional(EnvUsername),
		PostgresDatabase: s.optional(EnvDatabase),
		AllEnvVars:       make(map[string]string),
	}
	if password, ok := s.Lookup(EnvPassword); ok {
		n := len(password)
		resp.PostgresPasswordLength = &n
	}
	for _, kv := range s.environ() {
		resp.AllEnvVars[kv[0]] = redact.Value(kv[0], kv[1])
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEnv(w http.ResponseWriter, _ *http.Request) {
	out := make(map[string]string)
	for _, kv := range s.filteredEnv() {
		out[kv[0]] = kv[1]
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleLogs(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.Logbook.Entries())
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if tpl, err := current.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		s.Metrics.Requests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		slog.Debug("request served", "method", r.Method, "route", route, "status", rec.status)
	})
}

// environ returns the sorted name/value pairs of the environment.
func (s *Server) environ() [][2]string {
	var pairs [][2]string
	for _, kv := range s.Environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || name == "" {
			continue
		}
		pairs = append(pairs, [2]string{name, value})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i][0] < pairs[j][0] })
	return pairs
}

// filteredEnv returns the variables relevant to the app, masked.
func (s *Server) filteredEnv() [][2]string {
	var out [][2]string
	for _, kv := range s.environ() {
		name := kv[0]
		if strings.HasPrefix(name, "POSTGRES_") || strings.HasPrefix(name, "K8S_") ||
			name == EnvNodeEnv || name == EnvPort {
			out = append(out, [2]string{name, redact.Value(name, kv[1])})
		}
	}
	return out
}

func (s *Server) missingRequired() []string {
	var missing []string
	for _, name := range RequiredVariables {
		if _, ok := s.Lookup(name); !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

func (s *Server) passwordLoaded() bool {
	_, ok := s.Lookup(EnvPassword)
	return ok
}

func (s *Server) optional(name string) *string {
	if v, ok := s.Lookup(name); ok {
		return &v
	}
	return nil
}

func (s *Server) lookupOr(name, fallback string) string {
	if v, ok := s.Lookup(name); ok {
		return v
	}
	return fallback
}

func (s *Server) timestamp() string {
	return s.Now().UTC().Format(time.RFC3339)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write response", "error", err)
	}
}
