// Package adminhttp serves ambient observability endpoints (/metrics,
// /healthz) on a port separate from the produce/fetch wire protocol. It
// carries no topic metadata and is not part of the wire protocol spec — see
// SPEC_FULL.md §4.5.
package adminhttp

import (
	"errors"
	"net"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server is the admin HTTP listener.
type Server struct {
	httpServer *http.Server
	listener   net.Listener
}

// New binds addr and builds the admin router.
func New(addr string) (*Server, error) {
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/healthz", healthz).Methods(http.MethodGet)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	return &Server{
		httpServer: &http.Server{Handler: router},
		listener:   ln,
	}, nil
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Addr returns the address the admin server is listening on.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Serve blocks until Close is called.
func (s *Server) Serve() error {
	err := s.httpServer.Serve(s.listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Close shuts down the admin server.
func (s *Server) Close() error {
	return s.httpServer.Close()
}
