// Copyright (c) 2026 Railhound Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package admin exposes the operational HTTP surface: health checks and the
// reprocessing trigger. It is meant for operators and orchestration, not for
// public traffic.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/railhound/consist/internal/reprocess"
	"github.com/railhound/consist/internal/runlock"
)

// Releaser frees an acquired run lease.
type Releaser interface {
	Release(ctx context.Context) error
}

// Locker hands out the reprocessing single-flight lease.
type Locker interface {
	Acquire(ctx context.Context) (Releaser, error)
}

// Reprocessor runs one archive replay.
type Reprocessor interface {
	Run(ctx context.Context, req reprocess.Request) (*reprocess.Result, error)
}

// Handler serves the admin endpoints.
type Handler struct {
	lock      Locker
	runner    Reprocessor
	dbPing    func(ctx context.Context) error
	redisPing func(ctx context.Context) error
}

// NewHandler creates the admin handler. The ping functions probe the
// backing services for the health endpoint.
func NewHandler(lock Locker, runner Reprocessor, dbPing, redisPing func(ctx context.Context) error) *Handler {
	return &Handler{
		lock:      lock,
		runner:    runner,
		dbPing:    dbPing,
		redisPing: redisPing,
	}
}

// ServeHealth reports the health of the service and its dependencies.
func (h *Handler) ServeHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := map[string]string{"status": "ok", "database": "ok", "redis": "ok"}
	healthy := true

	if h.dbPing != nil {
		if err := h.dbPing(ctx); err != nil {
			status["database"] = err.Error()
			healthy = false
		}
	}
	if h.redisPing != nil {
		if err := h.redisPing(ctx); err != nil {
			status["redis"] = err.Error()
			healthy = false
		}
	}
	if !healthy {
		status["status"] = "degraded"
		writeJSON(w, http.StatusServiceUnavailable, status)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// reprocessRequest is the POST body for a replay trigger. Both bounds are
// optional RFC3339 timestamps.
type reprocessRequest struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// ServeReprocess triggers a synchronous archive replay. The response is the
// run summary; callers replaying large windows should set generous client
// timeouts.
func (h *Handler) ServeReprocess(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "POST required"})
		return
	}

	// Bounds come from the query string or the JSON body; an empty request
	// means an unbounded replay.
	var body reprocessRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("invalid body: %v", err)})
		return
	}
	start := firstNonEmpty(r.URL.Query().Get("start"), body.Start)
	end := firstNonEmpty(r.URL.Query().Get("end"), body.End)

	req := reprocess.Request{}
	if start != "" {
		t, err := time.Parse(time.RFC3339, start)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("invalid start: %v", err)})
			return
		}
		req.Start = &t
	}
	if end != "" {
		t, err := time.Parse(time.RFC3339, end)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("invalid end: %v", err)})
			return
		}
		req.End = &t
	}

	lease, err := h.lock.Acquire(r.Context())
	if err != nil {
		if errors.Is(err, runlock.ErrHeld) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "a reprocess run is already in progress"})
			return
		}
		slog.Error("acquire reprocess lease failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "lease acquisition failed"})
		return
	}
	defer func() {
		if err := lease.Release(context.Background()); err != nil {
			slog.Warn("release reprocess lease failed", "error", err)
		}
	}()

	result, err := h.runner.Run(r.Context(), req)
	if err != nil {
		slog.Error("reprocess run failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":  err.Error(),
			"result": resultPayload(result),
		})
		return
	}
	writeJSON(w, http.StatusOK, resultPayload(result))
}

func resultPayload(result *reprocess.Result) map[string]any {
	if result == nil {
		return nil
	}
	payload := map[string]any{
		"run_id":    result.RunID,
		"total":     result.Total,
		"processed": result.Processed,
		"succeeded": result.Succeeded,
		"failed":    result.Failed,
		"elapsed":   result.Elapsed.String(),
	}
	if result.Start != nil {
		payload["start"] = result.Start.Format(time.RFC3339)
	}
	if result.End != nil {
		payload["end"] = result.End.Format(time.RFC3339)
	}
	return payload
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Warn("write admin response failed", "error", err)
	}
}

// Serve starts the admin HTTP server on the given port. It binds the port
// immediately and signals readiness via the returned channel before starting
// to accept connections.
func Serve(ctx context.Context, port int, handler *Handler) (<-chan struct{}, error) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", handler.ServeHealth)
	mux.HandleFunc("/admin/reprocess", handler.ServeReprocess)

	server := &http.Server{
		Handler: mux,
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("bind admin port %d: %w", port, err)
	}

	ready := make(chan struct{})

	go func() {
		<-ctx.Done()
		slog.Info("admin server shutting down")
		server.Close()
	}()

	go func() {
		slog.Info("admin server listening", "port", port)
		close(ready)
		if err := server.Serve(ln); err != http.ErrServerClosed {
			slog.Error("admin server error", "error", err)
		}
	}()

	return ready, nil
}
