// Package httphandler is the HTTP driving adapter: it receives GitHub webhook
// deliveries and serves the REST API for per-repository check configuration.
package httphandler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	gh "github.com/google/go-github/v82/github"

	"github.com/mwhitley/approvalgate/internal/application"
	"github.com/mwhitley/approvalgate/internal/domain/model"
	"github.com/mwhitley/approvalgate/internal/domain/port/driven"
)

// Handler serves the webhook endpoint and the REST API.
type Handler struct {
	checks        *application.CheckService
	configs       driven.CheckConfigStore
	records       driven.RecordStore
	defaults      model.CheckConfig
	webhookSecret []byte
	logger        *slog.Logger

	// dispatch runs one event handler as an independent unit of work. The
	// default spawns a goroutine; tests replace it with a synchronous call.
	dispatch func(fn func())
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	checks *application.CheckService,
	configs driven.CheckConfigStore,
	records driven.RecordStore,
	defaults model.CheckConfig,
	webhookSecret []byte,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		checks:        checks,
		configs:       configs,
		records:       records,
		defaults:      defaults,
		webhookSecret: webhookSecret,
		logger:        logger,
		dispatch:      func(fn func()) { go fn() },
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /webhook", h.Webhook)
	mux.HandleFunc("GET /api/v1/repos/{owner}/{repo}/config", h.GetConfig)
	mux.HandleFunc("PUT /api/v1/repos/{owner}/{repo}/config", h.PutConfig)
	mux.HandleFunc("DELETE /api/v1/repos/{owner}/{repo}/config", h.DeleteConfig)
	mux.HandleFunc("GET /api/v1/repos/{owner}/{repo}/records", h.ListRecords)
	mux.HandleFunc("GET /api/v1/health", h.Health)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// Webhook validates and parses one GitHub webhook delivery and dispatches it
// to the check service. Event handling runs detached from the HTTP exchange;
// the response acknowledges receipt, not completion.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := gh.ValidatePayload(r, h.webhookSecret)
	if err != nil {
		h.logger.Warn("webhook signature validation failed", "error", err)
		writeError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	event, err := gh.ParseWebHook(gh.WebHookType(r), payload)
	if err != nil {
		h.logger.Warn("webhook parse failed", "type", gh.WebHookType(r), "error", err)
		writeError(w, http.StatusBadRequest, "unparseable payload")
		return
	}

	switch e := event.(type) {
	case *gh.PullRequestEvent:
		ev := mapPullRequestEvent(e)
		h.logger.Info("pull request event received",
			"repo", ev.RepoFullName(), "pr", ev.Number, "action", string(ev.Action))
		h.dispatch(func() {
			h.checks.HandlePullRequest(eventContext(), ev)
		})
		writeJSON(w, http.StatusAccepted, deliveryResponse{Accepted: true})

	case *gh.IssueCommentEvent:
		if !e.GetIssue().IsPullRequest() {
			// Plain issue comments can never affect a PR check.
			writeJSON(w, http.StatusAccepted, deliveryResponse{Accepted: false})
			return
		}
		ev := mapIssueCommentEvent(e)
		h.logger.Info("issue comment event received",
			"repo", ev.RepoFullName(), "issue", ev.IssueNumber)
		h.dispatch(func() {
			h.checks.HandleIssueComment(eventContext(), ev)
		})
		writeJSON(w, http.StatusAccepted, deliveryResponse{Accepted: true})

	case *gh.PingEvent:
		writeJSON(w, http.StatusOK, deliveryResponse{Accepted: true})

	default:
		writeJSON(w, http.StatusAccepted, deliveryResponse{Accepted: false})
	}
}

// GetConfig returns the effective check config for a repository: the stored
// override when present, the service default otherwise.
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	repoFullName := r.PathValue("owner") + "/" + r.PathValue("repo")

	cfg, err := h.configs.Get(r.Context(), repoFullName)
	if err != nil {
		h.logger.Error("failed to get check config", "repo", repoFullName, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	source := sourceOverride
	if cfg == nil {
		source = sourceDefault
		cfg = &h.defaults
	}

	writeJSON(w, http.StatusOK, toConfigResponse(repoFullName, source, *cfg))
}

// PutConfig stores a repository's check config override after validating it.
func (h *Handler) PutConfig(w http.ResponseWriter, r *http.Request) {
	repoFullName := r.PathValue("owner") + "/" + r.PathValue("repo")

	var payload CheckConfigPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	cfg := payload.toModel()
	if err := cfg.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if err := h.configs.Put(r.Context(), repoFullName, cfg); err != nil {
		h.logger.Error("failed to store check config", "repo", repoFullName, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("check config updated", "repo", repoFullName, "minimum", cfg.Minimum)
	writeJSON(w, http.StatusOK, toConfigResponse(repoFullName, sourceOverride, cfg))
}

// DeleteConfig removes a repository's override, reverting it to the default.
func (h *Handler) DeleteConfig(w http.ResponseWriter, r *http.Request) {
	repoFullName := r.PathValue("owner") + "/" + r.PathValue("repo")

	if err := h.configs.Delete(r.Context(), repoFullName); err != nil {
		writeError(w, http.StatusNotFound, "no config override for "+repoFullName)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListRecords returns the tracked PR records for a repository.
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	repoFullName := r.PathValue("owner") + "/" + r.PathValue("repo")

	records, err := h.records.ListByRepository(r.Context(), repoFullName)
	if err != nil {
		h.logger.Error("failed to list records", "repo", repoFullName, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]RecordResponse, 0, len(records))
	for _, record := range records {
		resp = append(resp, toRecordResponse(record))
	}

	writeJSON(w, http.StatusOK, resp)
}

// Health reports service liveness.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// eventContext returns the context one event's handling runs under. Handling
// is detached from the HTTP request lifecycle; external collaborators apply
// their own timeout policy.
func eventContext() context.Context {
	return context.Background()
}

// mapPullRequestEvent reduces a go-github PullRequestEvent to the engine's
// event shape.
func mapPullRequestEvent(e *gh.PullRequestEvent) model.PullRequestEvent {
	return model.PullRequestEvent{
		Action:    model.PullRequestAction(e.GetAction()),
		RepoOwner: e.GetRepo().GetOwner().GetLogin(),
		RepoName:  e.GetRepo().GetName(),
		Number:    e.GetNumber(),
		State:     e.GetPullRequest().GetState(),
		HeadSHA:   e.GetPullRequest().GetHead().GetSHA(),
		Author:    e.GetPullRequest().GetUser().GetLogin(),
	}
}

// mapIssueCommentEvent reduces a go-github IssueCommentEvent to the engine's
// event shape.
func mapIssueCommentEvent(e *gh.IssueCommentEvent) model.IssueCommentEvent {
	return model.IssueCommentEvent{
		RepoOwner:   e.GetRepo().GetOwner().GetLogin(),
		RepoName:    e.GetRepo().GetName(),
		IssueNumber: e.GetIssue().GetNumber(),
	}
}
