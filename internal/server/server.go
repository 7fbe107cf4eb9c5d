// Package server is the thin HTTP/JSON surface over the orchestration
// core: instance CRUD, process control, live status, game config file
// edits, deploy/update tasks, and a websocket event stream.
package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/squadops/squadops/internal/eventbus"
	"github.com/squadops/squadops/internal/registry"
	"github.com/squadops/squadops/internal/supervisor"
	"github.com/squadops/squadops/internal/tasks"
	"github.com/squadops/squadops/internal/version"
)

// Options wires the API server to the core components.
type Options struct {
	Registry   *registry.Store
	Supervisor *supervisor.Manager
	Tasks      *tasks.Manager
	Bus        *eventbus.Bus
}

// APIServer serves the JSON API and the websocket event stream.
type APIServer struct {
	registry   *registry.Store
	supervisor *supervisor.Manager
	tasks      *tasks.Manager
	bus        *eventbus.Bus

	mux        *http.ServeMux
	httpServer *http.Server
}

// New builds the API server and its route table.
func New(opts Options) *APIServer {
	s := &APIServer{
		registry:   opts.Registry,
		supervisor: opts.Supervisor,
		tasks:      opts.Tasks,
		bus:        opts.Bus,
		mux:        http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *APIServer) routes() {
	s.mux.HandleFunc("GET /api/health", s.handleHealth)

	s.mux.HandleFunc("GET /api/instances", s.handleListInstances)
	s.mux.HandleFunc("POST /api/instances", s.handleCreateInstance)
	s.mux.HandleFunc("GET /api/instances/{id}", s.handleGetInstance)
	s.mux.HandleFunc("PUT /api/instances/{id}", s.handleUpdateInstance)
	s.mux.HandleFunc("DELETE /api/instances/{id}", s.handleDeleteInstance)

	s.mux.HandleFunc("POST /api/instances/{id}/start", s.handleStart)
	s.mux.HandleFunc("POST /api/instances/{id}/stop", s.handleStop)
	s.mux.HandleFunc("POST /api/instances/{id}/restart", s.handleRestart)
	s.mux.HandleFunc("POST /api/instances/{id}/command", s.handleCommand)
	s.mux.HandleFunc("GET /api/instances/{id}/status", s.handleStatus)

	s.mux.HandleFunc("GET /api/instances/{id}/rcon-config", s.handleGetRconConfig)
	s.mux.HandleFunc("PUT /api/instances/{id}/rcon-config", s.handlePutRconConfig)

	s.mux.HandleFunc("GET /api/instances/{id}/admins", s.handleGetAdmins)
	s.mux.HandleFunc("POST /api/instances/{id}/admins/groups", s.handleAddGroup)
	s.mux.HandleFunc("DELETE /api/instances/{id}/admins/groups/{name}", s.handleDeleteGroup)
	s.mux.HandleFunc("POST /api/instances/{id}/admins/assignments", s.handleAddAssignment)
	s.mux.HandleFunc("DELETE /api/instances/{id}/admins/assignments/{identity}/{group}", s.handleDeleteAssignment)

	s.mux.HandleFunc("GET /api/instances/{id}/bans", s.handleListBans)
	s.mux.HandleFunc("POST /api/instances/{id}/bans", s.handleAddBan)
	s.mux.HandleFunc("PUT /api/instances/{id}/bans/{identity}", s.handleEditBan)
	s.mux.HandleFunc("DELETE /api/instances/{id}/bans/{identity}", s.handleRemoveBan)

	s.mux.HandleFunc("POST /api/deploy", s.handleDeploy)
	s.mux.HandleFunc("POST /api/instances/{id}/update", s.handleUpdateFiles)
	s.mux.HandleFunc("GET /api/tasks", s.handleListTasks)
	s.mux.HandleFunc("GET /api/tasks/{id}", s.handleGetTask)

	s.mux.HandleFunc("GET /api/stream", s.handleStream)
}

// Handler returns the route table, mainly for tests.
func (s *APIServer) Handler() http.Handler {
	return s.mux
}

func (s *APIServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.String(),
	})
}

// ListenAndServe blocks serving the API on addr until Shutdown.
func (s *APIServer) ListenAndServe(addr string) error {
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // the stream endpoint writes indefinitely
	}
	log.Printf("[APIServer] listening on %s", addr)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and stops the listener.
func (s *APIServer) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
