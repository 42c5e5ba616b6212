package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/processgpt/dmnrules/internal/logger"
	"github.com/processgpt/dmnrules/multitenantengine"
	"github.com/processgpt/dmnrules/rules"
)

// maxBodyBytes bounds request bodies, which carry whole DMN documents for model writes
const maxBodyBytes = 8 << 20

type Server struct {
	manager  *multitenantengine.Manager
	models   rules.ModelRepository
	db       *sql.DB
	registry *prometheus.Registry
	router   *chi.Mux
	timeout  time.Duration
}

// NewServer wires the HTTP API. models is nil when the store is read-only;
// db is only used for health checks and may be nil.
func NewServer(manager *multitenantengine.Manager, models rules.ModelRepository, db *sql.DB, registry *prometheus.Registry, timeout time.Duration) *Server {
	s := &Server{
		manager:  manager,
		models:   models,
		db:       db,
		registry: registry,
		timeout:  timeout,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if s.timeout > 0 {
		r.Use(middleware.Timeout(s.timeout))
	}

	r.Get("/api/v1/health", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	r.Get("/api/v1/scopes", s.handleListScopes)

	r.Route("/api/v1/tenants/{tenantId}/owners/{ownerId}", func(r chi.Router) {
		r.Use(validScope)

		r.Post("/query", s.handleQuery)
		r.Post("/reload", s.handleReload)
		r.Get("/tables", s.handleListTables)
		r.Delete("/", s.handleDropScope)

		r.Route("/models", func(r chi.Router) {
			r.Get("/", s.handleListModels)
			r.Post("/", s.handleCreateModel)
			r.Get("/{modelId}", s.handleGetModel)
			r.Put("/{modelId}", s.handleUpdateModel)
			r.Delete("/{modelId}", s.handleDeleteModel)
		})
	})

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// validScope rejects tenant and owner IDs that cannot be used as scope keys
func validScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := multitenantengine.ValidateScope(chi.URLParam(r, "ownerId"), chi.URLParam(r, "tenantId")); err != nil {
			respondError(w, http.StatusBadRequest, "invalid scope", err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func scopeParams(r *http.Request) (owner, tenant string) {
	return chi.URLParam(r, "ownerId"), chi.URLParam(r, "tenantId")
}

// Health check handler
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:   "healthy",
		Scopes:   len(s.manager.ListScopes()),
		Counters: logger.Counters(),
	}

	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.PingContext(ctx); err != nil {
			resp.Status = "unhealthy"
			resp.Error = err.Error()
			respondJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}

	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListScopes(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"scopes": s.manager.ListScopes(),
	})
}

// Query handler
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	owner, tenant := scopeParams(r)

	var req QueryRequest
	if !decodeBody(w, r, &req) {
		return
	}

	queryID := uuid.NewString()
	startTime := time.Now()

	result, err := s.manager.RunQuery(r.Context(), owner, tenant, rules.Query{Text: req.Query, Facts: req.Facts})
	if err != nil {
		respondStoreError(w, "query failed", err)
		return
	}

	respondJSON(w, http.StatusOK, newQueryResponse(queryID, result, time.Since(startTime)))
}

// Reload handler. A stale fallback is reported with status 200 and stale=true.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	owner, tenant := scopeParams(r)

	report, err := s.manager.Reload(r.Context(), owner, tenant)
	var stale *multitenantengine.StaleSnapshotError
	switch {
	case errors.As(err, &stale):
		respondJSON(w, http.StatusOK, map[string]any{
			"report": report,
			"error":  stale.Error(),
		})
	case err != nil:
		respondStoreError(w, "reload failed", err)
	default:
		respondJSON(w, http.StatusOK, map[string]any{
			"report": report,
		})
	}
}

// List tables handler. ?describe=true adds a rule summary per table.
func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	owner, tenant := scopeParams(r)
	describe, _ := strconv.ParseBool(r.URL.Query().Get("describe"))

	snap, err := s.manager.Snapshot(owner, tenant)
	if err != nil {
		respondStoreError(w, "scope not loaded", err)
		return
	}

	resp := TablesListResponse{
		Version:  snap.Version,
		LoadedAt: snap.LoadedAt,
		Tables:   []TableResponse{},
	}
	for _, t := range snap.Tables() {
		resp.Tables = append(resp.Tables, newTableResponse(t, describe))
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDropScope(w http.ResponseWriter, r *http.Request) {
	owner, tenant := scopeParams(r)
	if err := s.manager.DropScope(owner, tenant); err != nil {
		respondStoreError(w, "scope not loaded", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// List models handler
func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	if !s.writable(w) {
		return
	}
	owner, tenant := scopeParams(r)

	models, err := s.models.ListModels(r.Context(), owner, tenant)
	if err != nil {
		respondStoreError(w, "failed to list models", err)
		return
	}

	resp := ModelsListResponse{Models: []ModelResponse{}}
	for i := range models {
		resp.Models = append(resp.Models, newModelResponse(&models[i], false))
	}
	respondJSON(w, http.StatusOK, resp)
}

// Create model handler. The document is parsed before it is stored.
func (s *Server) handleCreateModel(w http.ResponseWriter, r *http.Request) {
	if !s.writable(w) {
		return
	}
	owner, tenant := scopeParams(r)

	var req ModelRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.XML) == "" {
		respondError(w, http.StatusBadRequest, "xml is required", nil)
		return
	}

	m := &rules.StoredModel{
		ID:     req.ID,
		Name:   req.Name,
		XML:    req.XML,
		Type:   rules.ModelTypeDMN,
		Owner:  owner,
		Tenant: tenant,
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Name == "" {
		m.Name = m.ID
	}

	if err := checkModel(m); err != nil {
		respondError(w, http.StatusBadRequest, "invalid DMN document", err)
		return
	}

	if err := s.models.Add(r.Context(), m); err != nil {
		respondStoreError(w, "failed to create model", err)
		return
	}
	s.invalidate(owner, tenant)

	respondJSON(w, http.StatusCreated, newModelResponse(m, false))
}

// Get model handler
func (s *Server) handleGetModel(w http.ResponseWriter, r *http.Request) {
	if !s.writable(w) {
		return
	}
	m, ok := s.ownedModel(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, newModelResponse(m, true))
}

// Update model handler
func (s *Server) handleUpdateModel(w http.ResponseWriter, r *http.Request) {
	if !s.writable(w) {
		return
	}
	owner, tenant := scopeParams(r)

	existing, ok := s.ownedModel(w, r)
	if !ok {
		return
	}

	var req ModelRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if req.Name != "" {
		existing.Name = req.Name
	}
	if req.XML != "" {
		existing.XML = req.XML
	}

	if err := checkModel(existing); err != nil {
		respondError(w, http.StatusBadRequest, "invalid DMN document", err)
		return
	}

	if err := s.models.Update(r.Context(), existing); err != nil {
		respondStoreError(w, "failed to update model", err)
		return
	}
	s.invalidate(owner, tenant)

	respondJSON(w, http.StatusOK, newModelResponse(existing, false))
}

// Delete model handler
func (s *Server) handleDeleteModel(w http.ResponseWriter, r *http.Request) {
	if !s.writable(w) {
		return
	}
	owner, tenant := scopeParams(r)

	m, ok := s.ownedModel(w, r)
	if !ok {
		return
	}

	if err := s.models.Delete(r.Context(), tenant, m.ID); err != nil {
		respondStoreError(w, "failed to delete model", err)
		return
	}
	s.invalidate(owner, tenant)

	w.WriteHeader(http.StatusNoContent)
}

// checkModel rejects documents the rule index would skip, so stored models are always served
func checkModel(m *rules.StoredModel) error {
	model, err := rules.ParseModel(*m)
	if err != nil {
		return err
	}
	for _, t := range model.Tables {
		if err := multitenantengine.ValidateTable(t); err != nil {
			return err
		}
	}
	return nil
}

// ownedModel loads the model named in the URL and hides models of other owners
func (s *Server) ownedModel(w http.ResponseWriter, r *http.Request) (*rules.StoredModel, bool) {
	owner, tenant := scopeParams(r)
	modelID := chi.URLParam(r, "modelId")

	m, err := s.models.Get(r.Context(), tenant, modelID)
	if err == nil && m.Owner != owner {
		err = rules.ErrModelNotFound
	}
	if err != nil {
		respondStoreError(w, "model not found", err)
		return nil, false
	}
	return m, true
}

func (s *Server) writable(w http.ResponseWriter) bool {
	if s.models == nil {
		respondError(w, http.StatusMethodNotAllowed, "model store is read-only", nil)
		return false
	}
	return true
}

// invalidate marks the scope for reload after a model write; unloaded scopes load lazily anyway
func (s *Server) invalidate(owner, tenant string) {
	if err := s.manager.Invalidate(owner, tenant); err != nil && !errors.Is(err, multitenantengine.ErrScopeNotFound) {
		logger.Warn("Failed to invalidate scope", "tenant", tenant, "owner", owner, "error", err)
	}
}

// Helper functions
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return false
	}
	return true
}

// respondStoreError maps domain errors to HTTP status codes
func respondStoreError(w http.ResponseWriter, message string, err error) {
	var parseErr *rules.ParseError
	switch {
	case errors.Is(err, multitenantengine.ErrScopeNotFound), errors.Is(err, rules.ErrModelNotFound):
		respondError(w, http.StatusNotFound, message, err)
	case errors.Is(err, rules.ErrModelExists):
		respondError(w, http.StatusConflict, message, err)
	case errors.As(err, &parseErr):
		respondError(w, http.StatusBadRequest, message, err)
	case errors.Is(err, rules.ErrStoreUnavailable):
		respondError(w, http.StatusServiceUnavailable, message, err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		respondError(w, http.StatusGatewayTimeout, message, err)
	default:
		respondError(w, http.StatusInternalServerError, message, err)
	}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	response := ErrorResponse{Error: message}
	if err != nil {
		response.Details = err.Error()
	}

	switch {
	case status >= 500:
		logger.ErrorHttp5xx()
		logger.Error("Request failed", "status", status, "error", message, "details", response.Details)
	case status >= 400:
		logger.WarnHttp4xx()
	}

	respondJSON(w, status, response)
}
