package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ericfisherdev/cloudpanel/internal/domain/model"
)

// envelope wraps every response body.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// writeEnvelope marshals env to JSON and writes it with the given status
// code. If marshaling fails, a 500 error is written instead.
func writeEnvelope(w http.ResponseWriter, status int, env envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"success":false,"message":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeJSON writes a successful response carrying v.
func writeJSON(w http.ResponseWriter, status int, v any) {
	writeEnvelope(w, status, envelope{Success: true, Data: v})
}

// writeMessage writes a successful response with only a message.
func writeMessage(w http.ResponseWriter, status int, message string) {
	writeEnvelope(w, status, envelope{Success: true, Message: message})
}

// writeError writes a failed response with the given message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeEnvelope(w, status, envelope{Success: false, Message: message})
}

// CreateAccountRequest is the JSON body for the create account endpoint.
type CreateAccountRequest struct {
	ID              string `json:"id,omitempty"`
	Name            string `json:"name"`
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
	Region          string `json:"region"`
}

// UpdateAccountRequest is the JSON body for the update account endpoint.
// Absent fields are left unchanged.
type UpdateAccountRequest struct {
	Name     *string `json:"name,omitempty"`
	Region   *string `json:"region,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
}

// SetCredentialRequest is the JSON body for credential rotation.
type SetCredentialRequest struct {
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
}

// AccountResponse is the JSON representation of an account. It never
// carries secret material.
type AccountResponse struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Region         string  `json:"region"`
	IsActive       bool    `json:"is_active"`
	HasCredentials bool    `json:"has_credentials"`
	Syncing        bool    `json:"syncing"`
	LastSync       *string `json:"last_sync"`
	CreatedAt      string  `json:"created_at"`
	UpdatedAt      string  `json:"updated_at"`
}

// SyncResponse is the result of a sync request.
type SyncResponse struct {
	RunID             string                `json:"run_id"`
	Status            string                `json:"status"`
	Synced            int                   `json:"synced"`
	PerServiceResults []model.ServiceResult `json:"per_service_results"`
}

// TestResponse is the result of a connection test.
type TestResponse struct {
	OK       bool            `json:"ok"`
	Message  string          `json:"message"`
	Identity *model.Identity `json:"identity,omitempty"`
}

// ResourceResponse is the JSON representation of a cached resource.
type ResourceResponse struct {
	Service    string           `json:"service"`
	ExternalID string           `json:"external_id"`
	Name       string           `json:"name"`
	Region     string           `json:"region"`
	Status     string           `json:"status"`
	Attributes model.Attributes `json:"attributes"`
	FirstSeen  string           `json:"first_seen"`
	LastSeenAt string           `json:"last_seen_at"`
}

// RunResponse is the JSON representation of a sync run.
type RunResponse struct {
	ID        string                `json:"id"`
	Status    string                `json:"status"`
	Message   string                `json:"message"`
	StartedAt string                `json:"started_at"`
	EndedAt   *string               `json:"ended_at"`
	Results   []model.ServiceResult `json:"results"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatOptional(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func toAccountResponse(a model.Account) AccountResponse {
	return AccountResponse{
		ID:             a.ID,
		Name:           a.Name,
		Region:         a.Region,
		IsActive:       a.IsActive,
		HasCredentials: a.HasCredentials,
		LastSync:       formatOptional(a.LastSync),
		CreatedAt:      formatTime(a.CreatedAt),
		UpdatedAt:      formatTime(a.UpdatedAt),
	}
}

func nonNilResults(results []model.ServiceResult) []model.ServiceResult {
	if results == nil {
		return []model.ServiceResult{}
	}
	return results
}

func toSyncResponse(run model.SyncRun) SyncResponse {
	return SyncResponse{
		RunID:             run.ID,
		Status:            string(run.Status),
		Synced:            run.Synced(),
		PerServiceResults: nonNilResults(run.Results),
	}
}

func toResourceResponse(r model.Resource) ResourceResponse {
	attrs := r.Attributes
	if attrs == nil {
		attrs = model.Attributes{}
	}
	return ResourceResponse{
		Service:    string(r.Kind),
		ExternalID: r.ExternalID,
		Name:       r.Name,
		Region:     r.Region,
		Status:     string(r.Status),
		Attributes: attrs,
		FirstSeen:  formatTime(r.FirstSeen),
		LastSeenAt: formatTime(r.LastSeenAt),
	}
}

func toRunResponse(run model.SyncRun) RunResponse {
	return RunResponse{
		ID:        run.ID,
		Status:    string(run.Status),
		Message:   run.Message,
		StartedAt: formatTime(run.StartedAt),
		EndedAt:   formatOptional(run.EndedAt),
		Results:   nonNilResults(run.Results),
	}
}
