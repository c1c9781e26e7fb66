package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"

	"github.com/nao1215/civicmap/internal/identity"
	"github.com/nao1215/civicmap/internal/imagestore"
	"github.com/nao1215/civicmap/internal/lifecycle"
	clog "github.com/nao1215/civicmap/internal/log"
	"github.com/nao1215/civicmap/internal/nearby"
)

// Default server settings.
const (
	DefaultMaxConnections  = 256
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultShutdownTimeout = 10 * time.Second

	// readHeaderTimeout bounds slow clients sending headers.
	readHeaderTimeout = 10 * time.Second

	// maxJSONBody caps JSON request bodies.
	maxJSONBody = 1 << 20

	// multipartOverhead is allowed on top of the image size limit for
	// form boundaries and headers.
	multipartOverhead = 1 << 20
)

// Services are the components the HTTP layer drives.
type Services struct {
	Lifecycle *lifecycle.Service
	Nearby    *nearby.Service
	Images    *imagestore.Store
	Identity  *identity.Authority
}

// Options configures a Server.
type Options struct {
	// Addr is the listen address used by ListenAndServe.
	Addr string

	// MaxConnections caps simultaneous connections.
	MaxConnections int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// CORSOrigins enables CORS for the listed origins.
	CORSOrigins []string

	// MaxImageSize is the upload limit, matching the image store's.
	MaxImageSize int64

	// Logger receives request and access logs.
	Logger *slog.Logger
}

// Server is the civicmap HTTP API.
type Server struct {
	svc     Services
	opts    Options
	logger  *slog.Logger
	handler http.Handler
}

// New creates a Server. Zero option values fall back to the defaults.
func New(svc Services, opts Options) (*Server, error) {
	if svc.Lifecycle == nil || svc.Nearby == nil || svc.Images == nil || svc.Identity == nil {
		return nil, errors.New("server: all services are required")
	}
	if opts.MaxConnections <= 0 {
		opts.MaxConnections = DefaultMaxConnections
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = DefaultReadTimeout
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = DefaultShutdownTimeout
	}
	if opts.MaxImageSize <= 0 {
		opts.MaxImageSize = imagestore.DefaultMaxSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Server{
		svc:    svc,
		opts:   opts,
		logger: opts.Logger,
	}
	s.handler = s.middleware(s.routes())
	return s, nil
}

// Handler returns the complete HTTP handler, middleware included.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// routes registers every endpoint. Literal paths under /api/reports are
// registered before /api/reports/{id} so they win the match.
func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	setErrorHandlers(r)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api/reports").Subrouter()
	setErrorHandlers(api)
	api.HandleFunc("/nearby", s.handleNearby).Methods(http.MethodGet)
	api.HandleFunc("/images/{filename}", s.handleImage).Methods(http.MethodGet, http.MethodHead)
	api.HandleFunc("", s.handleList).Methods(http.MethodGet)
	api.HandleFunc("", s.handleCreate).Methods(http.MethodPost)
	api.HandleFunc("/{id}", s.handleGet).Methods(http.MethodGet)
	api.HandleFunc("/{id}", s.handleDelete).Methods(http.MethodDelete)
	api.HandleFunc("/{id}/history", s.handleHistory).Methods(http.MethodGet)
	api.HandleFunc("/{id}/status", s.handleTransition).Methods(http.MethodPatch)
	api.HandleFunc("/{id}/assign", s.handleAssign).Methods(http.MethodPost)
	api.HandleFunc("/{id}/close", s.handleClose).Methods(http.MethodPost)
	api.HandleFunc("/{id}/upvote", s.handleUpvote).Methods(http.MethodPost)
	api.HandleFunc("/{id}/images", s.handleUpload).Methods(http.MethodPost)

	return r
}

// setErrorHandlers installs the JSON 404 and 405 responses. A subrouter
// answers its own mismatches, so each router needs them.
func setErrorHandlers(r *mux.Router) {
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "no such endpoint"})
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "method not allowed"})
	})
}

// middleware wraps h with CORS, compression, access logging and panic
// recovery, outermost last.
func (s *Server) middleware(h http.Handler) http.Handler {
	if len(s.opts.CORSOrigins) > 0 {
		h = handlers.CORS(
			handlers.AllowedOrigins(s.opts.CORSOrigins),
			handlers.AllowedMethods([]string{
				http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPatch, http.MethodDelete,
			}),
			handlers.AllowedHeaders([]string{"Authorization", "Content-Type"}),
		)(h)
	}
	h = handlers.CompressHandler(h)
	h = handlers.CombinedLoggingHandler(clog.NewLineWriter(s.logger, slog.LevelInfo, "access"), h)
	h = handlers.RecoveryHandler(
		handlers.RecoveryLogger(clog.NewPanicLogger(s.logger)),
		handlers.PrintRecoveryStack(false),
	)(h)
	return h
}

// ListenAndServe listens on the configured address and serves until ctx
// is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.opts.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully within the shutdown timeout. Connections beyond the
// configured maximum wait in the accept queue.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       s.opts.ReadTimeout,
		WriteTimeout:      s.opts.WriteTimeout,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}
	ln = netutil.LimitListener(ln, s.opts.MaxConnections)

	s.logger.Info("server listening",
		"addr", ln.Addr().String(),
		"max_connections", s.opts.MaxConnections,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.ShutdownTimeout)
		defer cancel()
		s.logger.Info("server shutting down")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down: %w", err)
		}
		return nil
	})
	return g.Wait()
}
