package httphandler

import (
	"encoding/json"
	"net/http"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the JSON representation of the health endpoints.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// WebhookResponse acknowledges a webhook delivery.
type WebhookResponse struct {
	Status   string `json:"status"`
	Event    string `json:"event"`
	Delivery string `json:"delivery,omitempty"`
}

// RefreshTokenResponse is returned by the manual token refresh.
type RefreshTokenResponse struct {
	Message      string `json:"message"`
	TokenPreview string `json:"token_preview"`
}

// UpdateCNAMERequest is the JSON body of the manual CNAME update.
type UpdateCNAMERequest struct {
	Domain         string `json:"domain" validate:"required,max=2048"`
	Target         string `json:"target" validate:"max=2048"`
	InstallationID int64  `json:"installation_id" validate:"gte=0"`
}

// UpdateCNAMEResponse reports what the manual CNAME update did.
type UpdateCNAMEResponse struct {
	Message  string `json:"message"`
	Action   string `json:"action"`
	RecordID string `json:"record_id"`
}

// TestStoreRequest writes a mapping without DNS side effects.
type TestStoreRequest struct {
	RepoName     string `json:"repo_name" validate:"required,max=2048"`
	PagesURL     string `json:"pages_url" validate:"max=2048"`
	CustomDomain string `json:"custom_domain" validate:"max=2048"`
}

// TestRemoveRequest deletes a mapping without DNS side effects.
type TestRemoveRequest struct {
	RepoName string `json:"repo_name" validate:"required,max=2048"`
}

// TestRemoveResponse reports whether a mapping existed.
type TestRemoveResponse struct {
	RepoName string `json:"repo_name"`
	Deleted  bool   `json:"deleted"`
}

// MappingResponse is the JSON representation of a stored mapping.
type MappingResponse struct {
	RepoName     string          `json:"repo_name"`
	PagesURL     string          `json:"pages_url"`
	CustomDomain string          `json:"custom_domain"`
	RecordID     string          `json:"record_id"`
	UpdatedAt    string          `json:"updated_at,omitempty"`
	Live         *LiveResolution `json:"live,omitempty"`
}

// LiveResolution is what public DNS currently answers for a mapping.
type LiveResolution struct {
	CNAME string `json:"cname"`
	Error string `json:"error,omitempty"`
}

// PutInstallationRequest stores an installation's DNS credentials.
type PutInstallationRequest struct {
	ZoneID   string `json:"zone_id" validate:"required,max=2048"`
	APIToken string `json:"api_token" validate:"required,max=2048"`
	Email    string `json:"email" validate:"omitempty,email"`
}

// PatchInstallationRequest updates some installation credentials.
type PatchInstallationRequest struct {
	ZoneID   *string `json:"zone_id" validate:"omitempty,min=1,max=2048"`
	APIToken *string `json:"api_token" validate:"omitempty,min=1,max=2048"`
	Email    *string `json:"email" validate:"omitempty,email"`
}

// InstallationResponse is an installation's config without the secret.
type InstallationResponse struct {
	InstallationID int64  `json:"installation_id"`
	ZoneID         string `json:"zone_id"`
	APITokenSet    bool   `json:"api_token_set"`
	APITokenHint   string `json:"api_token_hint"`
	Email          string `json:"email"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}
