// Package httphandler is the JSON API driving adapter. Every response uses
// the same envelope: {"success": bool, "data"?: any, "message"?: string}.
package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ericfisherdev/cloudpanel/internal/application"
	"github.com/ericfisherdev/cloudpanel/internal/domain/model"
	"github.com/ericfisherdev/cloudpanel/internal/domain/port/driven"
)

// maxBodyBytes bounds request bodies; account payloads are tiny.
const maxBodyBytes = 64 << 10

// Pinger reports whether the local store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	registry     *application.AccountRegistry
	orchestrator *application.SyncOrchestrator
	tester       *application.ConnectionTester
	resources    driven.ResourceStore
	runs         driven.SyncRunStore
	store        Pinger
	logger       *slog.Logger
}

// NewHandler creates a Handler with all required dependencies. A nil store
// skips the database check in the health endpoint.
func NewHandler(
	registry *application.AccountRegistry,
	orchestrator *application.SyncOrchestrator,
	tester *application.ConnectionTester,
	resources driven.ResourceStore,
	runs driven.SyncRunStore,
	store Pinger,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		registry:     registry,
		orchestrator: orchestrator,
		tester:       tester,
		resources:    resources,
		runs:         runs,
		store:        store,
		logger:       logger,
	}
}

// accountResponse converts a with the live syncing flag.
func (h *Handler) accountResponse(a model.Account) AccountResponse {
	resp := toAccountResponse(a)
	resp.Syncing = h.orchestrator.InProgress(a.ID)
	return resp
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/health", h.Health)

	mux.HandleFunc("GET /api/v1/accounts", h.ListAccounts)
	mux.HandleFunc("POST /api/v1/accounts", h.CreateAccount)
	mux.HandleFunc("GET /api/v1/accounts/{id}", h.GetAccount)
	mux.HandleFunc("PATCH /api/v1/accounts/{id}", h.UpdateAccount)
	mux.HandleFunc("DELETE /api/v1/accounts/{id}", h.DeleteAccount)
	mux.HandleFunc("PUT /api/v1/accounts/{id}/credentials", h.SetCredential)

	mux.HandleFunc("POST /api/v1/accounts/{id}/sync", h.SyncAccount)
	mux.HandleFunc("POST /api/v1/accounts/{id}/test", h.TestConnection)
	mux.HandleFunc("GET /api/v1/accounts/{id}/resources", h.ListResources)
	mux.HandleFunc("GET /api/v1/accounts/{id}/runs", h.ListRuns)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// ListAccounts returns all accounts without secret material.
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.registry.List(r.Context())
	if err != nil {
		h.writeServiceError(w, err, "list accounts")
		return
	}

	resp := make([]AccountResponse, 0, len(accounts))
	for _, a := range accounts {
		resp = append(resp, h.accountResponse(a))
	}

	writeJSON(w, http.StatusOK, resp)
}

// CreateAccount registers an account. Omitting both key fields creates an
// account that syncs from mock data.
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if !decodeBody(w, r, &req) {
		return
	}

	account, err := h.registry.Create(r.Context(), model.AccountInput{
		ID:              req.ID,
		Name:            req.Name,
		AccessKeyID:     req.AccessKeyID,
		SecretAccessKey: req.SecretAccessKey,
		Region:          req.Region,
	})
	if err != nil {
		h.writeServiceError(w, err, "create account")
		return
	}

	writeJSON(w, http.StatusCreated, h.accountResponse(*account))
}

// GetAccount returns a single account.
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	account, err := h.registry.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, err, "get account")
		return
	}

	writeJSON(w, http.StatusOK, h.accountResponse(*account))
}

// UpdateAccount edits name, region or the active flag.
func (h *Handler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	var req UpdateAccountRequest
	if !decodeBody(w, r, &req) {
		return
	}

	account, err := h.registry.Update(r.Context(), r.PathValue("id"), model.AccountUpdate{
		Name:     req.Name,
		Region:   req.Region,
		IsActive: req.IsActive,
	})
	if err != nil {
		h.writeServiceError(w, err, "update account")
		return
	}

	writeJSON(w, http.StatusOK, h.accountResponse(*account))
}

// DeleteAccount removes the account and its cached inventory.
func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.Delete(r.Context(), r.PathValue("id")); err != nil {
		h.writeServiceError(w, err, "delete account")
		return
	}

	writeMessage(w, http.StatusOK, "account deleted")
}

// SetCredential rotates the account's key pair. An empty body clears it.
func (h *Handler) SetCredential(w http.ResponseWriter, r *http.Request) {
	var req SetCredentialRequest
	if !decodeBody(w, r, &req) {
		return
	}

	cred := model.Credential{AccessKeyID: req.AccessKeyID, SecretAccessKey: req.SecretAccessKey}
	if err := h.registry.SetCredential(r.Context(), r.PathValue("id"), cred); err != nil {
		h.writeServiceError(w, err, "set credential")
		return
	}

	msg := "credential updated"
	if cred.IsZero() {
		msg = "credential cleared"
	}
	writeMessage(w, http.StatusOK, msg)
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.store != nil {
		if err := h.store.Ping(r.Context()); err != nil {
			h.logger.Error("health check: database unreachable", "error", err)
			writeError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// decodeBody decodes a JSON request body into v, writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// writeServiceError maps domain errors onto status codes. Unclassified
// errors are logged and reported as a generic 500.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error, op string) {
	var credErr *model.CredentialError

	switch {
	case errors.Is(err, model.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, "account not found")
	case errors.Is(err, model.ErrConflict):
		writeError(w, http.StatusConflict, "account id already exists")
	case errors.Is(err, model.ErrAlreadyInProgress):
		writeError(w, http.StatusConflict, "sync already in progress")
	case errors.Is(err, model.ErrAccountInactive):
		writeError(w, http.StatusConflict, "account is inactive")
	case errors.Is(err, model.ErrShuttingDown):
		writeError(w, http.StatusServiceUnavailable, "server is shutting down")
	case errors.Is(err, model.ErrVaultDisabled):
		writeError(w, http.StatusServiceUnavailable, "credential storage is disabled: no secret key configured")
	case errors.As(err, &credErr):
		writeError(w, http.StatusUnprocessableEntity, credErr.Error())
	default:
		h.logger.Error("request failed", "op", op, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
