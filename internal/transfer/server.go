package transfer

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/busstats/internal/clock"
	"github.com/roach88/busstats/internal/ids"
	"github.com/roach88/busstats/internal/token"
)

//go:embed assets/favicon.png
var favicon []byte

const (
	explainDeleted = "File has just been deleted, please wait about 2 min"
	maxFormBytes   = 64 << 10
	shutdownGrace  = 10 * time.Second
)

// File is the staging file exposed by the server.
type File interface {
	Path() string
	Remove() (bool, error)
}

// Verifier checks capability tokens.
type Verifier interface {
	Verify(token string) error
}

// ServerConfig holds the listen addresses.
type ServerConfig struct {
	Addr string
	// MetricsAddr, when set, serves /metrics on a separate listener.
	MetricsAddr string
}

// Server serves the staging file to the storage node.
type Server struct {
	cfg      ServerConfig
	file     File
	verifier Verifier
	window   Window
	clock    clock.Clock
	ids      ids.Generator
	logger   *slog.Logger
	router   *mux.Router
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithServerClock sets the clock used for the deletion window.
func WithServerClock(c clock.Clock) ServerOption {
	return func(s *Server) { s.clock = c }
}

// WithWindow overrides DefaultWindow.
func WithWindow(w Window) ServerOption {
	return func(s *Server) { s.window = w }
}

// WithRequestIDs sets the request id generator.
func WithRequestIDs(g ids.Generator) ServerOption {
	return func(s *Server) { s.ids = g }
}

// WithServerLogger sets the logger. Defaults to slog.Default().
func WithServerLogger(l *slog.Logger) ServerOption {
	return func(s *Server) { s.logger = l }
}

// NewServer creates a transfer server for file.
func NewServer(cfg ServerConfig, file File, verifier Verifier, opts ...ServerOption) *Server {
	s := &Server{
		cfg:      cfg,
		file:     file,
		verifier: verifier,
		window:   DefaultWindow,
		clock:    clock.System,
		ids:      ids.UUIDv7Generator{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := mux.NewRouter()
	r.HandleFunc("/", s.handleFetch).Methods(http.MethodGet)
	r.HandleFunc("/", s.handleDelete).Methods(http.MethodDelete)
	r.HandleFunc("/favicon.ico", s.handleFavicon).Methods(http.MethodGet)
	r.NotFoundHandler = http.HandlerFunc(s.handleBadRequest)
	r.MethodNotAllowedHandler = http.HandlerFunc(s.handleBadRequest)
	s.router = r

	return s
}

// Handler returns the HTTP handler serving the transfer routes.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve listens on the configured address until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener serves on ln until ctx is cancelled, then shuts down
// gracefully. Requests waiting for the deletion window are aborted.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// A deletion may wait up to a minute for the window.
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	var metrics *http.Server
	if s.cfg.MetricsAddr != "" {
		m := http.NewServeMux()
		m.Handle("/metrics", promhttp.Handler())
		metrics = &http.Server{
			Addr:              s.cfg.MetricsAddr,
			Handler:           m,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.logger.Error("metrics listener failed", "addr", s.cfg.MetricsAddr, "error", err)
			}
		}()
		s.logger.Info("metrics listening", "addr", s.cfg.MetricsAddr)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.logger.Info("transfer server listening", "addr", ln.Addr().String(), "file", s.file.Path())

	select {
	case err := <-errCh:
		if metrics != nil {
			metrics.Close()
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("transfer server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if metrics != nil {
		if err := metrics.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("metrics shutdown", "error", err)
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

func (s *Server) requestLogger(r *http.Request) *slog.Logger {
	return s.logger.With("request", s.ids.Generate(), "method", r.Method, "remote", r.RemoteAddr)
}

func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	logger := s.requestLogger(r)

	data, err := os.ReadFile(s.file.Path())
	if errors.Is(err, fs.ErrNotExist) {
		logger.Info("fetch: staging file absent")
		observe(opFetch, http.StatusNotFound)
		writeError(w, http.StatusNotFound, explainDeleted)
		return
	}
	if err != nil {
		logger.Error("fetch: read staging file", "path", s.file.Path(), "error", err)
		observe(opFetch, http.StatusInternalServerError)
		writeError(w, http.StatusInternalServerError, "The staging file could not be read")
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(s.file.Path())))
	w.Header().Set("Content-Length", fmt.Sprint(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)

	observe(opFetch, http.StatusOK)
	logger.Info("fetch: served staging file", "bytes", len(data))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	logger := s.requestLogger(r)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxFormBytes))
	if err != nil {
		observe(opDelete, http.StatusBadRequest)
		writeError(w, http.StatusBadRequest, "Request body could not be read")
		return
	}
	// ParseForm ignores DELETE bodies.
	form, err := url.ParseQuery(string(body))
	if err != nil {
		form = url.Values{}
	}

	if err := s.verifier.Verify(form.Get("token")); err != nil {
		logger.Warn("delete: token rejected", "error", err)
		observe(opDelete, http.StatusForbidden)
		writeError(w, http.StatusForbidden, tokenExplanation(err))
		return
	}

	if err := s.waitForWindow(r.Context()); err != nil {
		logger.Warn("delete: aborted while waiting for deletion window", "error", err)
		observe(opDelete, http.StatusServiceUnavailable)
		writeError(w, http.StatusServiceUnavailable, "Server is shutting down, the file was not deleted")
		return
	}

	removed, err := s.file.Remove()
	if err != nil {
		logger.Error("delete: remove staging file", "path", s.file.Path(), "error", err)
		observe(opDelete, http.StatusInternalServerError)
		writeError(w, http.StatusInternalServerError, "The staging file could not be deleted")
		return
	}

	result := "False"
	if removed {
		result = "True"
	}
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "Result: %s", result)

	observe(opDelete, http.StatusOK)
	logger.Info("delete: staging file handled", "removed", removed)
}

// waitForWindow blocks until the deletion window opens or ctx is done.
func (s *Server) waitForWindow(ctx context.Context) error {
	for {
		d := s.window.Wait(s.clock.Now())
		if d == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.clock.After(d):
		}
	}
}

func (s *Server) handleFavicon(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", fmt.Sprint(len(favicon)))
	w.WriteHeader(http.StatusOK)
	w.Write(favicon)
	observe(opFavicon, http.StatusOK)
}

func (s *Server) handleBadRequest(w http.ResponseWriter, r *http.Request) {
	s.logger.Debug("unsupported request", "method", r.Method, "path", r.URL.Path)
	observe(opOther, http.StatusBadRequest)
	writeError(w, http.StatusBadRequest, "Only GET and DELETE on / are supported")
}

func tokenExplanation(err error) string {
	switch {
	case errors.Is(err, token.ErrMissing):
		return "A token is required to delete the file"
	case errors.Is(err, token.ErrExpired):
		return "The token is not valid today"
	default:
		return "The token could not be decrypted"
	}
}
