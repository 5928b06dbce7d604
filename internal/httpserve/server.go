// Package httpserve serves a StorageBackend over HTTP.
//
// GET and HEAD requests are answered by http.FileServer including directory
// listings and range requests. PUT, POST, DELETE, MKCOL and MOVE are passed
// to the modifying operations of the backend.
package httpserve

import (
	"context"
	"errors"
	"io/fs"
	"net"
	"net/http"
	"net/url"
	"syscall"
	"time"

	"github.com/aligator/fatvfs/backend"
	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

// remoteUser identifies a client by its address.
type remoteUser string

func (u remoteUser) String() string {
	return string(u)
}

type Server struct {
	backend backend.StorageBackend
	log     *zap.Logger
}

// New creates a Server for b. A nil logger disables logging.
func New(b backend.StorageBackend, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		backend: b,
		log:     logger,
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := uuid.NewString()
	w.Header().Set("X-Request-Id", requestID)

	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	s.handle(rec, r)

	s.log.Info("request",
		zap.String("request_id", requestID),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("remote", r.RemoteAddr),
		zap.Int("status", rec.status),
		zap.Duration("duration", time.Since(start)),
	)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := remoteUser(r.RemoteAddr)
	fsys := backend.NewReadOnlyFs(ctx, s.backend, user)
	name := r.URL.Path

	switch r.Method {
	case http.MethodGet, http.MethodHead:
		http.FileServer(afero.NewHttpFs(fsys).Dir("/")).ServeHTTP(w, r)
	case http.MethodPut, http.MethodPost:
		if _, err := s.backend.Put(ctx, user, r.Body, name, 0); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusCreated)
	case http.MethodDelete:
		if err := fsys.Remove(name); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case "MKCOL":
		if err := fsys.Mkdir(name, 0755); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusCreated)
	case "MOVE":
		destination, err := url.Parse(r.Header.Get("Destination"))
		if err != nil || destination.Path == "" {
			http.Error(w, "invalid Destination header", http.StatusBadRequest)
			return
		}
		if err := fsys.Rename(name, destination.Path); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusCreated)
	default:
		w.Header().Set("Allow", "GET, HEAD, PUT, POST, DELETE, MKCOL, MOVE")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	}
}

// statusOf maps errors of the backend or of a ReadOnlyFs to a status code.
func statusOf(err error) int {
	switch {
	case errors.Is(err, fs.ErrPermission):
		return http.StatusForbidden
	case errors.Is(err, fs.ErrNotExist):
		return http.StatusNotFound
	case errors.Is(err, backend.ErrNameNotAllowed), errors.Is(err, syscall.ENOTDIR), errors.Is(err, syscall.EISDIR):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	status := statusOf(err)
	http.Error(w, http.StatusText(status), status)
}

// Serve accepts connections on ln until ctx is canceled. Running requests get
// some time to finish before the server is closed.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	s.log.Info("serving", zap.String("address", ln.Addr().String()))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ListenAndServe listens on the TCP address addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}
