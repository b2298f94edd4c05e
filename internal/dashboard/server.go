// Package dashboard serves the local web UI for managing vault secrets.
//
// The UI lists, adds, edits and deletes secrets. Secret values are accepted
// on input but never rendered: no template receives a value.
package dashboard

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rendis/aivault/internal/secrets"
	"github.com/rendis/aivault/internal/streaming"
	"github.com/rendis/aivault/pkg/schema"
)

// DefaultAddr is the loopback address the dashboard listens on.
const DefaultAddr = "127.0.0.1:7470"

const shutdownTimeout = 5 * time.Second

//go:embed templates
var content embed.FS

// Deps holds the dependencies for the dashboard server.
type Deps struct {
	Vault secrets.Vault
	// Hub, when set, feeds the /events stream with vault file changes.
	Hub    streaming.EventHub
	Logger *slog.Logger
}

// Server renders the dashboard pages and applies form submissions to the vault.
type Server struct {
	deps Deps
	page *template.Template
}

// NewServer creates a Server with parsed templates.
func NewServer(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	funcMap := template.FuncMap{
		"live": func() bool { return deps.Hub != nil },
		"join": func(tags []string) string { return strings.Join(tags, ", ") },
		"date": dateOnly,
	}
	page := template.Must(
		template.New("").Funcs(funcMap).ParseFS(content,
			"templates/base.html",
			"templates/index.html",
		),
	)

	return &Server{deps: deps, page: page}
}

// Handler returns the HTTP handler for the dashboard routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.withLogging)

	r.Get("/", s.handleIndex)
	r.Get("/edit", s.handleEdit)
	r.Post("/add", s.handleAdd)
	r.Post("/update", s.handleUpdate)
	r.Post("/delete", s.handleDelete)
	if s.deps.Hub != nil {
		r.Get("/events", s.handleEvents)
	}

	return r
}

// ListenAndServe serves the dashboard on addr until ctx is cancelled.
// addr must resolve to a loopback interface.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	if err := CheckLoopback(addr); err != nil {
		return err
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// Request contexts end with ctx so open /events streams let Shutdown finish.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.deps.Logger.InfoContext(ctx, "dashboard listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.deps.Logger.Info("dashboard shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

// CheckLoopback rejects listen addresses that are reachable from other hosts.
func CheckLoopback(addr string) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeValidation, "invalid listen address %q", addr).WithCause(err)
	}
	if host == "localhost" {
		return nil
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		return nil
	}
	return schema.NewErrorf(schema.ErrCodeValidation,
		"dashboard only listens on loopback addresses, got %q", addr)
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		// Query strings are left out: filter expressions are user input.
		s.deps.Logger.InfoContext(r.Context(), "dashboard request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"size", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// dateOnly trims an ISO-8601 timestamp to its date part.
func dateOnly(ts string) string {
	date, _, _ := strings.Cut(ts, "T")
	return date
}
