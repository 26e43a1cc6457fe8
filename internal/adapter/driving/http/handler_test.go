package httphandler

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwhitley/approvalgate/internal/application"
	"github.com/mwhitley/approvalgate/internal/domain/model"
)

const testSecret = "webhook-secret"

// --- Mock ports ---

type statusCall struct {
	SHA    string
	Report model.StatusReport
}

type mockStatusReporter struct {
	calls []statusCall
}

func (m *mockStatusReporter) ReportStatus(_ context.Context, _, _, sha string, report model.StatusReport) error {
	m.calls = append(m.calls, statusCall{SHA: sha, Report: report})
	return nil
}

type mockCommentSource struct {
	comments []model.Comment
	pr       *model.PullRequest
}

func (m *mockCommentSource) ListComments(_ context.Context, _, _ string, _ int, _ *time.Time) ([]model.Comment, error) {
	return m.comments, nil
}

func (m *mockCommentSource) GetOpenPullRequest(_ context.Context, _, _ string, _ int) (*model.PullRequest, error) {
	return m.pr, nil
}

type mockOracle struct{}

func (m *mockOracle) IsCollaborator(_ context.Context, _, _, _ string) (bool, error) {
	return false, nil
}

func (m *mockOracle) IsOrgMember(_ context.Context, _, _ string) (bool, error) {
	return false, nil
}

type mockRecordStore struct {
	records map[string]model.PullRequestRecord
}

func newMockRecordStore() *mockRecordStore {
	return &mockRecordStore{records: make(map[string]model.PullRequestRecord)}
}

func (m *mockRecordStore) Get(_ context.Context, repoFullName string, number int) (*model.PullRequestRecord, error) {
	record, ok := m.records[recordID(repoFullName, number)]
	if !ok {
		return nil, nil
	}
	return &record, nil
}

func (m *mockRecordStore) Create(_ context.Context, repoFullName string, number int) (*model.PullRequestRecord, error) {
	record := model.PullRequestRecord{
		RepoFullName: repoFullName,
		Number:       number,
		LastPush:     time.Now().UTC(),
		CreatedAt:    time.Now().UTC(),
	}
	m.records[recordID(repoFullName, number)] = record
	return &record, nil
}

func (m *mockRecordStore) RecordNewCommit(_ context.Context, repoFullName string, number int) error {
	record, _ := m.records[recordID(repoFullName, number)]
	record.RepoFullName = repoFullName
	record.Number = number
	record.LastPush = time.Now().UTC()
	m.records[recordID(repoFullName, number)] = record
	return nil
}

func (m *mockRecordStore) ListByRepository(_ context.Context, repoFullName string) ([]model.PullRequestRecord, error) {
	var records []model.PullRequestRecord
	for _, record := range m.records {
		if record.RepoFullName == repoFullName {
			records = append(records, record)
		}
	}
	return records, nil
}

func recordID(repoFullName string, number int) string {
	return fmt.Sprintf("%s#%d", repoFullName, number)
}

type mockConfigStore struct {
	stored map[string]model.CheckConfig
}

func newMockConfigStore() *mockConfigStore {
	return &mockConfigStore{stored: make(map[string]model.CheckConfig)}
}

func (m *mockConfigStore) Get(_ context.Context, repoFullName string) (*model.CheckConfig, error) {
	cfg, ok := m.stored[repoFullName]
	if !ok {
		return nil, nil
	}
	return &cfg, nil
}

func (m *mockConfigStore) Put(_ context.Context, repoFullName string, cfg model.CheckConfig) error {
	m.stored[repoFullName] = cfg
	return nil
}

func (m *mockConfigStore) Delete(_ context.Context, repoFullName string) error {
	if _, ok := m.stored[repoFullName]; !ok {
		return assert.AnError
	}
	delete(m.stored, repoFullName)
	return nil
}

// --- Fixture ---

type fixture struct {
	statuses *mockStatusReporter
	comments *mockCommentSource
	records  *mockRecordStore
	configs  *mockConfigStore
	server   http.Handler
}

func newFixture(t *testing.T, defaults model.CheckConfig) *fixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	f := &fixture{
		statuses: &mockStatusReporter{},
		comments: &mockCommentSource{},
		records:  newMockRecordStore(),
		configs:  newMockConfigStore(),
	}

	checks := application.NewCheckService(
		f.statuses, f.comments, &mockOracle{}, f.records, f.configs, defaults, logger,
	)

	handler := NewHandler(checks, f.configs, f.records, defaults, []byte(testSecret), logger)
	// Run event handling synchronously so assertions see its effects.
	handler.dispatch = func(fn func()) { fn() }

	f.server = NewServeMux(handler, logger)
	return f
}

// signedRequest builds a webhook POST with a valid HMAC-SHA256 signature.
func signedRequest(t *testing.T, eventType string, payload []byte) *http.Request {
	t.Helper()

	mac := hmac.New(sha256.New, []byte(testSecret))
	_, _ = mac.Write(payload)
	signature := "sha256=" + hex.EncodeToString(mac.Sum(nil))

	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Event", eventType)
	req.Header.Set("X-Hub-Signature-256", signature)
	return req
}

// --- Webhook tests ---

func TestWebhook_RejectsInvalidSignature(t *testing.T) {
	f := newFixture(t, model.CheckConfig{Pattern: `\+1`, Minimum: 1})

	payload := []byte(`{"action":"opened"}`)
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Event", "pull_request")
	req.Header.Set("X-Hub-Signature-256", "sha256=deadbeef")

	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, f.statuses.calls)
}

func TestWebhook_PullRequestOpened(t *testing.T) {
	f := newFixture(t, model.CheckConfig{Pattern: `\+1`, Minimum: 2})

	payload := []byte(`{
		"action": "opened",
		"number": 7,
		"repository": {"name": "repo", "owner": {"login": "org"}},
		"pull_request": {
			"state": "open",
			"user": {"login": "prauthor"},
			"head": {"sha": "abc123"}
		}
	}`)

	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, signedRequest(t, "pull_request", payload))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, f.statuses.calls, 2)
	assert.Equal(t, "abc123", f.statuses.calls[0].SHA)
	assert.Equal(t, "needs 2 more approvals (0/2 given)", f.statuses.calls[1].Report.Description)
}

func TestWebhook_IssueCommentOnPullRequest(t *testing.T) {
	f := newFixture(t, model.CheckConfig{Pattern: `\+1`, Minimum: 1})
	f.comments.pr = &model.PullRequest{
		Number: 7, RepoFullName: "org/repo", Author: "prauthor", State: "open", HeadSHA: "abc123",
	}
	f.comments.comments = []model.Comment{
		{Author: "alice", Body: "+1", CreatedAt: time.Now()},
	}

	payload := []byte(`{
		"action": "created",
		"repository": {"name": "repo", "owner": {"login": "org"}},
		"issue": {"number": 7, "pull_request": {"url": "https://example.com/pulls/7"}},
		"comment": {"body": "+1", "user": {"login": "alice"}}
	}`)

	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, signedRequest(t, "issue_comment", payload))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, f.statuses.calls, 2)
	final := f.statuses.calls[1]
	assert.Equal(t, model.StatusSuccess, final.Report.State)
	assert.Equal(t, "has 1/1 approvals since the last commit", final.Report.Description)
}

func TestWebhook_IssueCommentOnPlainIssueIsIgnored(t *testing.T) {
	f := newFixture(t, model.CheckConfig{Pattern: `\+1`, Minimum: 1})

	payload := []byte(`{
		"action": "created",
		"repository": {"name": "repo", "owner": {"login": "org"}},
		"issue": {"number": 7},
		"comment": {"body": "+1", "user": {"login": "alice"}}
	}`)

	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, signedRequest(t, "issue_comment", payload))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Empty(t, f.statuses.calls)

	var resp map[string]bool
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp["accepted"])
}

func TestWebhook_UnhandledEventTypeIsAccepted(t *testing.T) {
	f := newFixture(t, model.CheckConfig{Pattern: `\+1`, Minimum: 1})

	payload := []byte(`{"ref": "refs/heads/main"}`)
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, signedRequest(t, "push", payload))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Empty(t, f.statuses.calls)
}

// --- Config API tests ---

func TestGetConfig_DefaultWhenNoOverride(t *testing.T) {
	f := newFixture(t, model.CheckConfig{Pattern: `\+1`, Minimum: 2})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/repos/org/repo/config", nil)
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp ConfigResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "org/repo", resp.Repository)
	assert.Equal(t, sourceDefault, resp.Source)
	assert.Equal(t, 2, resp.Config.Minimum)
}

func TestPutConfig_RoundTrip(t *testing.T) {
	f := newFixture(t, model.CheckConfig{Pattern: `\+1`, Minimum: 1})

	body := `{"pattern": "^LGTM$", "minimum": 3, "from": {"collaborators": true}}`
	req := httptest.NewRequest(http.MethodPut, "/api/v1/repos/org/repo/config", strings.NewReader(body))
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/repos/org/repo/config", nil)
	rec = httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)

	var resp ConfigResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, sourceOverride, resp.Source)
	assert.Equal(t, "^LGTM$", resp.Config.Pattern)
	assert.Equal(t, 3, resp.Config.Minimum)
	require.NotNil(t, resp.Config.From)
	assert.True(t, resp.Config.From.Collaborators)
}

func TestPutConfig_RejectsInvalidPattern(t *testing.T) {
	f := newFixture(t, model.CheckConfig{Pattern: `\+1`, Minimum: 1})

	body := `{"pattern": "([", "minimum": 1}`
	req := httptest.NewRequest(http.MethodPut, "/api/v1/repos/org/repo/config", strings.NewReader(body))
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Empty(t, f.configs.stored)
}

func TestDeleteConfig_MissingReturnsNotFound(t *testing.T) {
	f := newFixture(t, model.CheckConfig{Pattern: `\+1`, Minimum: 1})

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/repos/org/repo/config", nil)
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListRecords(t *testing.T) {
	f := newFixture(t, model.CheckConfig{Pattern: `\+1`, Minimum: 1})
	_, err := f.records.Create(context.Background(), "org/repo", 7)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/repos/org/repo/records", nil)
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp []RecordResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, 7, resp[0].Number)
}

func TestHealth(t *testing.T) {
	f := newFixture(t, model.CheckConfig{Pattern: `\+1`, Minimum: 1})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}
