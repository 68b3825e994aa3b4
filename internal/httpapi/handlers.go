package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rickgao/market-gateway/internal/dispatch"
	"github.com/rickgao/market-gateway/internal/registry"
	"github.com/rickgao/market-gateway/internal/version"
)

// assetResponse wraps dispatched data with its origin metadata.
type assetResponse struct {
	Data     any    `json:"data"`
	Provider string `json:"provider"`
	Cached   bool   `json:"cached"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := struct {
		Status     string         `json:"status"`
		Components map[string]any `json:"components"`
	}{
		Status:     "healthy",
		Components: make(map[string]any),
	}

	enabled := s.registry.ListEnabled()
	health.Components["providers"] = map[string]any{
		"enabled": len(enabled),
		"total":   len(s.registry.List()),
	}
	if len(enabled) == 0 {
		health.Status = "degraded"
	}

	health.Components["cache"] = map[string]any{
		"entries": s.cache.Len(),
	}

	if s.channel != nil {
		status := s.channel.Status()
		health.Components["live"] = string(status)
	}

	code := http.StatusOK
	if health.Status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, health)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := struct {
		Instance    string `json:"instance"`
		Version     string `json:"version"`
		Commit      string `json:"commit"`
		Uptime      int64  `json:"uptime_seconds"`
		Live        string `json:"live,omitempty"`
		SnapshotAge *int64 `json:"snapshot_age_seconds,omitempty"`
	}{
		Instance: s.cfg.InstanceID,
		Version:  version.Version,
		Commit:   version.Commit,
		Uptime:   int64(time.Since(s.startedAt).Seconds()),
	}
	if s.channel != nil {
		status.Live = string(s.channel.Status())
	}
	if s.snap != nil {
		if at := s.snap.UpdatedAt(); !at.IsZero() {
			age := int64(time.Since(at).Seconds())
			status.SnapshotAge = &age
		}
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleTopAssets(w http.ResponseWriter, r *http.Request) {
	limit := intParam(r, "limit", 100)
	res, err := s.dispatcher.TopAssets(r.Context(), limit, dispatchOptions(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, assetResponse{
		Data:     res.Data,
		Provider: res.SourceProviderID,
		Cached:   res.ServedFromCache,
	})
}

func (s *Server) handleAsset(w http.ResponseWriter, r *http.Request) {
	res, err := s.dispatcher.Asset(r.Context(), r.PathValue("id"), dispatchOptions(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, assetResponse{
		Data:     res.Data,
		Provider: res.SourceProviderID,
		Cached:   res.ServedFromCache,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	days := intParam(r, "days", 7)
	res, err := s.dispatcher.History(r.Context(), r.PathValue("id"), days, dispatchOptions(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, assetResponse{
		Data:     res.Data,
		Provider: res.SourceProviderID,
		Cached:   res.ServedFromCache,
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter q is required"))
		return
	}
	res, err := s.dispatcher.Search(r.Context(), query, dispatchOptions(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, assetResponse{
		Data:     res.Data,
		Provider: res.SourceProviderID,
		Cached:   res.ServedFromCache,
	})
}

func (s *Server) handleListProviders(w http.ResponseWriter, r *http.Request) {
	providers := s.registry.List()
	out := make([]registry.ProviderConfig, len(providers))
	for i, p := range providers {
		out[i] = redactCredential(p)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetProvider(w http.ResponseWriter, r *http.Request) {
	p, err := s.registry.Get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, redactCredential(p))
}

func (s *Server) handleAddProvider(w http.ResponseWriter, r *http.Request) {
	var cfg registry.ProviderConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid provider body: "+err.Error()))
		return
	}
	if cfg.ID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("provider id is required"))
		return
	}
	if err := s.registry.Add(r.Context(), cfg); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, redactCredential(cfg))
}

func (s *Server) handleUpdateProvider(w http.ResponseWriter, r *http.Request) {
	var cfg registry.ProviderConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid provider body: "+err.Error()))
		return
	}
	id := r.PathValue("id")
	if err := s.registry.Update(r.Context(), id, cfg); err != nil {
		s.writeError(w, err)
		return
	}
	updated, err := s.registry.Get(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, redactCredential(updated))
}

func (s *Server) handleDeleteProvider(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleToggleProvider(w http.ResponseWriter, r *http.Request) {
	enabled, err := s.registry.ToggleEnabled(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": enabled})
}

func (s *Server) handleSetCredential(w http.ResponseWriter, r *http.Request) {
	var body struct {
		APIKey string `json:"api_key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid credential body: "+err.Error()))
		return
	}
	if err := s.registry.SetCredential(r.Context(), r.PathValue("id"), body.APIKey); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleResetProviders(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.ResetToDefaults(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	providers := s.registry.List()
	out := make([]registry.ProviderConfig, len(providers))
	for i, p := range providers {
		out[i] = redactCredential(p)
	}
	writeJSON(w, http.StatusOK, out)
}

// writeError maps domain errors to HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var exhausted *dispatch.ExhaustedError

	switch {
	case errors.Is(err, registry.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody(err.Error()))
	case errors.Is(err, registry.ErrDuplicateID):
		writeJSON(w, http.StatusConflict, errorBody(err.Error()))
	case errors.Is(err, registry.ErrProtected):
		writeJSON(w, http.StatusForbidden, errorBody(err.Error()))
	case errors.Is(err, dispatch.ErrProviderDisabled):
		writeJSON(w, http.StatusConflict, errorBody(err.Error()))
	case errors.Is(err, dispatch.ErrNoProviders):
		writeJSON(w, http.StatusBadGateway, errorBody(err.Error()))
	case errors.As(err, &exhausted):
		writeJSON(w, http.StatusBadGateway, errorBody(err.Error()))
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeJSON(w, http.StatusGatewayTimeout, errorBody(err.Error()))
	default:
		s.logger.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// dispatchOptions reads the shared query parameters for asset reads.
func dispatchOptions(r *http.Request) dispatch.Options {
	q := r.URL.Query()
	return dispatch.Options{
		ForceFresh: q.Get("fresh") == "true",
		Provider:   q.Get("provider"),
	}
}

func intParam(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return def
	}
	return v
}

// redactCredential strips the stored API key from admin responses.
func redactCredential(p registry.ProviderConfig) registry.ProviderConfig {
	if p.APIKey != "" {
		p.APIKey = "********"
	}
	return p
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
