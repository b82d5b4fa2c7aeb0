package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/specialistvlad/droidbuild/internal/dag"
	"github.com/specialistvlad/droidbuild/internal/task"
)

// TaskStatus is one entry of the /status response.
type TaskStatus struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// StatusResponse is the body served at /status.
type StatusResponse struct {
	Current string       `json:"current,omitempty"`
	Tasks   []TaskStatus `json:"tasks"`
}

// statusBoard observes a run so that the status server can report it. Task
// statuses themselves are read from the graph, which the runner updates
// atomically.
type statusBoard struct {
	graph *dag.Graph

	mu      sync.Mutex
	current string
	errs    map[string]string
}

func newStatusBoard(g *dag.Graph) *statusBoard {
	return &statusBoard{graph: g, errs: make(map[string]string)}
}

func (b *statusBoard) TaskStarted(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = name
	delete(b.errs, name)
}

func (b *statusBoard) TaskFinished(name string, status task.Status, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == name {
		b.current = ""
	}
	if status == task.Failed && err != nil {
		b.errs[name] = err.Error()
	} else {
		delete(b.errs, name)
	}
}

func (b *statusBoard) snapshot() StatusResponse {
	b.mu.Lock()
	defer b.mu.Unlock()

	resp := StatusResponse{Current: b.current}
	for _, t := range b.graph.Tasks() {
		resp.Tasks = append(resp.Tasks, TaskStatus{
			Name:   t.Name,
			Status: t.Status().String(),
			Error:  b.errs[t.Name],
		})
	}
	return resp
}

// statusHandler serves /health and /status.
func (a *App) statusHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		a.logger.Debug("Health check endpoint hit.", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "OK")
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(a.board.snapshot()); err != nil {
			a.logger.Error("Writing status response failed.", "error", err)
		}
	})
	return mux
}

// startStatusServer serves the run's progress in the background.
func (a *App) startStatusServer(port int) {
	addr := fmt.Sprintf(":%d", port)
	a.httpServer = &http.Server{
		Addr:              addr,
		Handler:           a.statusHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	server := a.httpServer
	go func() {
		a.logger.Info("🩺 Status server starting", "address", fmt.Sprintf("http://localhost%s/status", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("Status server failed unexpectedly", "error", err)
		}
	}()
}

func (a *App) closeStatusServer() error {
	if a.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(a.ctx), 5*time.Second)
	defer cancel()

	a.logger.Debug("Shutting down status server.")
	err := a.httpServer.Shutdown(ctx)
	a.httpServer = nil
	if err != nil {
		a.logger.Error("Status server shutdown failed", "error", err)
	}
	return err
}
