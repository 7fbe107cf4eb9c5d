// Package daemon wires the registry, supervisor, task manager and HTTP
// API together into the squadopsd process.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/squadops/squadops/internal/config"
	"github.com/squadops/squadops/internal/eventbus"
	"github.com/squadops/squadops/internal/procutil"
	"github.com/squadops/squadops/internal/registry"
	"github.com/squadops/squadops/internal/server"
	"github.com/squadops/squadops/internal/supervisor"
	"github.com/squadops/squadops/internal/tasks"
)

// shutdownTimeout bounds how long in-flight HTTP requests may delay exit.
const shutdownTimeout = 5 * time.Second

// Daemon owns every long-lived component of the squadopsd process.
type Daemon struct {
	opts  config.Options
	paths config.HomePaths

	store      *registry.Store
	bus        *eventbus.Bus
	supervisor *supervisor.Manager
	tasks      *tasks.Manager
	apiServer  *server.APIServer

	shutdownOnce sync.Once
	errMu        sync.Mutex
	runErr       error
}

// New builds the daemon from environment options. Game server processes
// that survived a previous daemon run are left alone; only their stale
// running flags are reconciled when Start runs.
func New(opts config.Options) (*Daemon, error) {
	paths, err := config.EnsureHomeDirs(config.ExpandPath(opts.Home))
	if err != nil {
		return nil, fmt.Errorf("daemon: prepare home: %w", err)
	}

	store, err := registry.Open(registry.Options{DBPath: paths.RegistryDB})
	if err != nil {
		return nil, fmt.Errorf("daemon: open registry: %w", err)
	}

	bus := eventbus.New()

	manager := supervisor.NewManager(supervisor.Options{
		Registry:      store,
		Bus:           bus,
		Paths:         paths,
		Launcher:      supervisor.ExecLauncher{},
		ConnectGrace:  opts.ConnectGrace,
		RestartSettle: opts.RestartSettle,
	})

	taskManager := tasks.NewManager(tasks.Options{
		Registry:  store,
		Bus:       bus,
		Runner:    &tasks.SteamCMD{Path: opts.SteamCMD, AppID: opts.SteamAppID},
		Retention: opts.TaskRetention,
	})

	apiServer := server.New(server.Options{
		Registry:   store,
		Supervisor: manager,
		Tasks:      taskManager,
		Bus:        bus,
	})

	return &Daemon{
		opts:       opts,
		paths:      paths,
		store:      store,
		bus:        bus,
		supervisor: manager,
		tasks:      taskManager,
		apiServer:  apiServer,
	}, nil
}

// Start reconciles stale state and serves the HTTP API. It blocks until
// Shutdown is called or the listener fails.
func (d *Daemon) Start() error {
	if err := writePIDFile(d.paths.PIDFile, os.Getpid()); err != nil {
		return fmt.Errorf("daemon: write pid file: %w", err)
	}
	defer os.Remove(d.paths.PIDFile)

	if err := d.supervisor.Reconcile(context.Background()); err != nil {
		log.Printf("[Daemon] reconcile running flags: %v", err)
	}

	log.Printf("[Daemon] listening on %s", d.opts.ListenAddr)
	if err := d.apiServer.ListenAndServe(d.opts.ListenAddr); err != nil {
		d.setRunError(err)
		d.Shutdown()
	}
	return d.runError()
}

// Shutdown stops the HTTP API and releases daemon-owned resources. Game
// server processes keep running; their handles are in-memory only and
// the next daemon start reconciles the registry flags.
func (d *Daemon) Shutdown() {
	d.shutdownOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := d.apiServer.Shutdown(ctx); err != nil {
			log.Printf("[Daemon] http shutdown: %v", err)
		}

		d.tasks.Close()
		d.supervisor.Shutdown()
		d.bus.Shutdown()

		if err := d.store.Close(); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("[Daemon] close registry: %v", err)
		}
	})
}

func (d *Daemon) setRunError(err error) {
	if err == nil {
		return
	}
	d.errMu.Lock()
	defer d.errMu.Unlock()
	if d.runErr == nil {
		d.runErr = err
	}
}

func (d *Daemon) runError() error {
	d.errMu.Lock()
	defer d.errMu.Unlock()
	return d.runErr
}

func writePIDFile(path string, pid int) error {
	return os.WriteFile(path, []byte(strconv.Itoa(pid)+"\n"), 0o644)
}

// IsRunning reports whether another daemon already owns the home
// directory, based on its pid file. A stale file is removed.
func IsRunning(home string) bool {
	paths := config.GetHomePaths(config.ExpandPath(home))

	data, err := os.ReadFile(paths.PIDFile)
	if err != nil {
		return false
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		os.Remove(paths.PIDFile)
		return false
	}

	if !procutil.IsProcessAlive(pid) {
		os.Remove(paths.PIDFile)
		return false
	}
	return true
}
