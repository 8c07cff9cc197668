package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"

	"caseforge/internal/artifact"
	"caseforge/internal/casectx"
	"caseforge/internal/orchestrator"
)

// RunFunc starts a pipeline run for one request. The server invokes it on a
// background goroutine per accepted case.
type RunFunc func(ctx context.Context, req artifact.GenerationRequest) (artifact.CaseManifest, error)

// CaseHandler serves case submission, status, and the event stream.
type CaseHandler struct {
	Store *casectx.Store
	Hub   *Hub
	Run   RunFunc

	mu      sync.Mutex
	running map[string]bool
}

func NewCaseHandler(store *casectx.Store, hub *Hub, run RunFunc) *CaseHandler {
	return &CaseHandler{Store: store, Hub: hub, Run: run, running: make(map[string]bool)}
}

func (h *CaseHandler) HandleCreateCase(w http.ResponseWriter, r *http.Request) {
	var req artifact.GenerationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.CaseID == "" {
		req.CaseID = "case_" + uuid.NewString()
	}

	h.mu.Lock()
	if h.running[req.CaseID] {
		h.mu.Unlock()
		http.Error(w, "case is already running", http.StatusConflict)
		return
	}
	h.running[req.CaseID] = true
	h.mu.Unlock()

	go func() {
		// Detached from the request context: the run outlives the HTTP call.
		defer func() {
			h.mu.Lock()
			delete(h.running, req.CaseID)
			h.mu.Unlock()
		}()
		if _, err := h.Run(context.Background(), req); err != nil {
			log.Printf("case %s failed: %v", req.CaseID, err)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{
		"case_id": req.CaseID,
		"state":   "accepted",
	})
}

func (h *CaseHandler) HandleCaseStatus(w http.ResponseWriter, r *http.Request) {
	caseID := r.PathValue("id")
	var st orchestrator.Status
	if err := h.Store.Load(r.Context(), caseID, casectx.PathStatus, &st); err != nil {
		if errors.Is(err, casectx.ErrNotFound) {
			http.Error(w, "unknown case", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *CaseHandler) HandleCaseBundle(w http.ResponseWriter, r *http.Request) {
	caseID := r.PathValue("id")
	var bundle artifact.NormalizedCaseBundle
	if err := h.Store.Load(r.Context(), caseID, casectx.PathBundle, &bundle); err != nil {
		if errors.Is(err, casectx.ErrNotFound) {
			http.Error(w, "bundle not available", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, bundle)
}

func (h *CaseHandler) HandleListArtifacts(w http.ResponseWriter, r *http.Request) {
	caseID := r.PathValue("id")
	paths, err := h.Store.List(r.Context(), caseID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	root := strings.TrimSpace(r.URL.Query().Get("under"))
	if root != "" {
		var filtered []string
		for _, p := range paths {
			if p == root || strings.HasPrefix(p, root+"/") {
				filtered = append(filtered, p)
			}
		}
		paths = filtered
	}
	writeJSON(w, http.StatusOK, map[string]any{"case_id": caseID, "paths": paths})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response failed: %v", err)
	}
}
