// Package http implements the proxy with an HTTP server routed by chi.
package http

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"go.dedis.ch/escrow"
)

type key int

const requestIDKey key = 0

// RequestIDHeader is the header that carries the identifier of a request.
const RequestIDHeader = "X-Request-Id"

const shutdownTimeout = 10 * time.Second

// HTTP defines a proxy http.
//
// - implements proxy.Proxy
type HTTP struct {
	sync.RWMutex

	router     chi.Router
	server     *http.Server
	listener   net.Listener
	logger     zerolog.Logger
	listenAddr string
	quit       chan struct{}
}

// NewHTTP creates a new proxy http listening on the address.
func NewHTTP(listenAddr string) *HTTP {
	logger := escrow.Logger.With().Str("role", "http proxy").Logger()

	h := &HTTP{
		router:     chi.NewRouter(),
		logger:     logger,
		listenAddr: listenAddr,
		quit:       make(chan struct{}, 1),
	}

	h.router.Use(tracing(func() string { return xid.New().String() }))
	h.router.Use(logging(logger))
	h.router.Use(middleware.Recoverer)

	h.server = &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return h
}

// ServeHTTP implements http.Handler.
func (h *HTTP) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.RLock()
	router := h.router
	h.RUnlock()

	router.ServeHTTP(w, r)
}

// Listen implements proxy.Proxy. It can be called multiple times provided the
// server is not running.
func (h *HTTP) Listen() {
	ln, err := net.Listen("tcp", h.listenAddr)
	if err != nil {
		h.logger.Error().Err(err).Msgf("could not listen on %s", h.listenAddr)
		return
	}

	h.Lock()
	h.listener = ln
	h.Unlock()

	done := make(chan struct{})

	go func() {
		<-h.quit
		h.logger.Info().Msg("server is shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		h.server.SetKeepAlivesEnabled(false)
		err := h.server.Shutdown(ctx)
		if err != nil {
			h.logger.Error().Err(err).Msg("could not gracefully shutdown the server")
		}

		close(done)
	}()

	h.logger.Info().Msgf("server is ready to handle requests at http://%s", ln.Addr())

	err = h.server.Serve(ln)
	if err != nil && err != http.ErrServerClosed {
		h.logger.Error().Err(err).Msg("server failed")
	}

	<-done

	h.Lock()
	h.listener = nil
	h.Unlock()

	h.logger.Info().Msg("server stopped")
}

// Stop implements proxy.Proxy.
func (h *HTTP) Stop() {
	select {
	case h.quit <- struct{}{}:
	default:
	}
}

// GetAddr implements proxy.Proxy.
func (h *HTTP) GetAddr() net.Addr {
	h.RLock()
	defer h.RUnlock()

	if h.listener == nil {
		return nil
	}

	return h.listener.Addr()
}

// RegisterHandler implements proxy.Proxy.
func (h *HTTP) RegisterHandler(method, path string, handler http.HandlerFunc) {
	h.Lock()
	h.router.Method(method, path, handler)
	h.Unlock()
}

// RequestID returns the identifier of the request, or an empty string.
func RequestID(r *http.Request) string {
	id, _ := r.Context().Value(requestIDKey).(string)
	return id
}

// logging logs the requests once served.
func logging(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				logger.Info().
					Str("requestID", RequestID(r)).
					Str("method", r.Method).
					Str("url", r.URL.Path).
					Int("status", ww.Status()).
					Dur("duration", time.Since(start)).
					Str("remoteAddr", r.RemoteAddr).
					Str("agent", r.UserAgent()).
					Msg("request served")
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// tracing sets the request identifier from the header, or a new one.
func tracing(nextRequestID func() string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(RequestIDHeader)
			if requestID == "" {
				requestID = nextRequestID()
			}

			ctx := context.WithValue(r.Context(), requestIDKey, requestID)
			w.Header().Set(RequestIDHeader, requestID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
