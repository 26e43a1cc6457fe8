package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/mwhitley/approvalgate/internal/domain/model"
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

// deliveryResponse acknowledges a webhook delivery. Accepted is false when
// the delivery was valid but does not trigger any check processing.
type deliveryResponse struct {
	Accepted bool `json:"accepted"`
}

// Config source markers for ConfigResponse.
const (
	sourceDefault  = "default"
	sourceOverride = "override"
)

// MembershipRulePayload is the JSON representation of a membership restriction.
type MembershipRulePayload struct {
	Users         []string `json:"users,omitempty"`
	Collaborators bool     `json:"collaborators,omitempty"`
	Orgs          []string `json:"orgs,omitempty"`
}

// CheckConfigPayload is the JSON representation of a check config, used for
// both request and response bodies.
type CheckConfigPayload struct {
	Pattern string                 `json:"pattern"`
	Ignore  []string               `json:"ignore"`
	Minimum int                    `json:"minimum"`
	From    *MembershipRulePayload `json:"from,omitempty"`
}

// toModel converts the payload to a domain CheckConfig. An empty membership
// rule collapses to no restriction.
func (p CheckConfigPayload) toModel() model.CheckConfig {
	cfg := model.CheckConfig{
		Pattern: p.Pattern,
		Ignore:  p.Ignore,
		Minimum: p.Minimum,
	}

	if p.From != nil {
		rule := &model.MembershipRule{
			Users:         p.From.Users,
			Collaborators: p.From.Collaborators,
			Orgs:          p.From.Orgs,
		}
		if rule.Active() {
			cfg.From = rule
		}
	}

	return cfg
}

// ConfigResponse is the JSON representation of a repository's effective
// check config.
type ConfigResponse struct {
	Repository string             `json:"repository"`
	Source     string             `json:"source"`
	Config     CheckConfigPayload `json:"config"`
}

// RecordResponse is the JSON representation of a PR tracking record.
type RecordResponse struct {
	Repository string `json:"repository"`
	Number     int    `json:"number"`
	LastPush   string `json:"last_push"`
	CreatedAt  string `json:"created_at"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// toConfigResponse converts a domain CheckConfig to its JSON response
// representation.
func toConfigResponse(repoFullName, source string, cfg model.CheckConfig) ConfigResponse {
	ignore := cfg.Ignore
	if ignore == nil {
		ignore = []string{}
	}

	payload := CheckConfigPayload{
		Pattern: cfg.Pattern,
		Ignore:  ignore,
		Minimum: cfg.Minimum,
	}

	if cfg.From != nil {
		payload.From = &MembershipRulePayload{
			Users:         cfg.From.Users,
			Collaborators: cfg.From.Collaborators,
			Orgs:          cfg.From.Orgs,
		}
	}

	return ConfigResponse{
		Repository: repoFullName,
		Source:     source,
		Config:     payload,
	}
}

// toRecordResponse converts a domain PullRequestRecord to its JSON response
// representation.
func toRecordResponse(record model.PullRequestRecord) RecordResponse {
	return RecordResponse{
		Repository: record.RepoFullName,
		Number:     record.Number,
		LastPush:   record.LastPush.UTC().Format(time.RFC3339),
		CreatedAt:  record.CreatedAt.UTC().Format(time.RFC3339),
	}
}
