package httphandler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/ericfisherdev/cloudpanel/internal/domain/model"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 200
)

// SyncAccount runs a sync to completion and reports per-service results.
// A concurrent request for the same account gets 409.
func (h *Handler) SyncAccount(w http.ResponseWriter, r *http.Request) {
	run, err := h.orchestrator.Sync(r.Context(), r.PathValue("id"))
	if err != nil {
		var credErr *model.CredentialError
		if run != nil && errors.As(err, &credErr) {
			writeEnvelope(w, http.StatusUnprocessableEntity, envelope{
				Success: false,
				Data:    toSyncResponse(*run),
				Message: credErr.Error(),
			})
			return
		}
		h.writeServiceError(w, err, "sync account")
		return
	}

	writeEnvelope(w, http.StatusOK, envelope{
		Success: run.Status != model.SyncFailed,
		Data:    toSyncResponse(*run),
		Message: run.Message,
	})
}

// TestConnection probes the account's credential. Credential and network
// problems are reported in the body with ok=false, not as HTTP errors.
func (h *Handler) TestConnection(w http.ResponseWriter, r *http.Request) {
	id, err := h.tester.Test(r.Context(), r.PathValue("id"))
	if err != nil {
		var (
			credErr    *model.CredentialError
			adapterErr *model.AdapterError
		)
		if errors.As(err, &credErr) || errors.As(err, &adapterErr) {
			writeJSON(w, http.StatusOK, TestResponse{OK: false, Message: err.Error()})
			return
		}
		h.writeServiceError(w, err, "test connection")
		return
	}

	writeJSON(w, http.StatusOK, TestResponse{
		OK:       true,
		Message:  "credentials are valid",
		Identity: id,
	})
}

// ListResources reads the cached inventory of an account. It never calls
// the remote provider.
func (h *Handler) ListResources(w http.ResponseWriter, r *http.Request) {
	accountID := r.PathValue("id")
	filter := model.ResourceFilter{AccountID: accountID}

	q := r.URL.Query()
	if s := q.Get("service"); s != "" {
		kind, ok := model.ParseServiceKind(s)
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown service: "+s)
			return
		}
		filter.Kind = kind
	}
	if s := q.Get("include_removed"); s != "" {
		v, err := strconv.ParseBool(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "include_removed must be a boolean")
			return
		}
		filter.IncludeRemoved = v
	}

	if _, err := h.registry.Get(r.Context(), accountID); err != nil {
		h.writeServiceError(w, err, "list resources")
		return
	}

	resources, err := h.resources.List(r.Context(), filter)
	if err != nil {
		h.writeServiceError(w, err, "list resources")
		return
	}

	resp := make([]ResourceResponse, 0, len(resources))
	for _, res := range resources {
		resp = append(resp, toResourceResponse(res))
	}

	writeJSON(w, http.StatusOK, resp)
}

// ListRuns returns an account's sync history, newest first.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	accountID := r.PathValue("id")

	limit := defaultRunsLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxRunsLimit)
	}

	if _, err := h.registry.Get(r.Context(), accountID); err != nil {
		h.writeServiceError(w, err, "list runs")
		return
	}

	runs, err := h.runs.ListByAccount(r.Context(), accountID, limit)
	if err != nil {
		h.writeServiceError(w, err, "list runs")
		return
	}

	resp := make([]RunResponse, 0, len(runs))
	for _, run := range runs {
		resp = append(resp, toRunResponse(run))
	}

	writeJSON(w, http.StatusOK, resp)
}
