// Package github implements the StatusReporter, CommentSource, and
// MembershipOracle ports using the go-github library.
package github

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"

	"github.com/mwhitley/approvalgate/internal/domain/model"
	"github.com/mwhitley/approvalgate/internal/domain/port/driven"
)

// Compile-time interface satisfaction checks.
var (
	_ driven.StatusReporter   = (*Client)(nil)
	_ driven.CommentSource    = (*Client)(nil)
	_ driven.MembershipOracle = (*Client)(nil)
)

// Client implements the GitHub-facing driven ports using the go-github library.
type Client struct {
	gh *gh.Client
}

// NewClient creates a new GitHub API client with the following transport stack:
//  1. httpcache (ETag-based conditional request caching)
//  2. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  3. go-github (GitHub REST API client with PAT auth)
func NewClient(token string) *Client {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	rateLimitClient := github_ratelimit.NewClient(cacheTransport)
	client := gh.NewClient(rateLimitClient).WithAuthToken(token)

	return &Client{gh: client}
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base URL.
// This constructor is intended for testing, allowing injection of an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string) (*Client, error) {
	client := gh.NewClient(httpClient)

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	client.BaseURL = u

	return &Client{gh: client}, nil
}

// ReportStatus posts a commit status for the given SHA.
func (c *Client) ReportStatus(ctx context.Context, owner, repo, sha string, report model.StatusReport) error {
	status := gh.RepoStatus{
		State:       gh.Ptr(string(report.State)),
		Description: gh.Ptr(report.Description),
		Context:     gh.Ptr(report.Context),
	}

	_, resp, err := c.gh.Repositories.CreateStatus(ctx, owner, repo, sha, status)
	if err != nil {
		return fmt.Errorf("creating status %s on %s/%s@%s: %w", report.State, owner, repo, sha, err)
	}

	logRateLimit(resp, owner+"/"+repo+"/status", 0, 1)
	return nil
}

// ListComments retrieves PR-level comments (from the Issues API) ordered
// oldest-first. A non-nil since limits results to comments created after it.
// It handles pagination automatically and maps go-github types to domain
// model types.
func (c *Client) ListComments(ctx context.Context, owner, repo string, number int, since *time.Time) ([]model.Comment, error) {
	opts := &gh.IssueListCommentsOptions{
		Sort:        gh.Ptr("created"),
		Direction:   gh.Ptr("asc"),
		ListOptions: gh.ListOptions{PerPage: 100},
	}
	if since != nil {
		opts.Since = since
	}

	var allComments []model.Comment

	for {
		comments, resp, err := c.gh.Issues.ListComments(ctx, owner, repo, number, opts)
		if err != nil {
			return nil, fmt.Errorf("listing comments for %s/%s#%d (page %d): %w", owner, repo, number, opts.Page, err)
		}

		logRateLimit(resp, owner+"/"+repo+"/comments", opts.Page, len(comments))

		for _, comment := range comments {
			// The API's since parameter filters on update time, so an old
			// comment edited recently still comes back. Enforce the
			// created-after contract here.
			if since != nil && !comment.GetCreatedAt().Time.After(*since) {
				continue
			}
			allComments = append(allComments, mapComment(comment))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	if allComments == nil {
		allComments = []model.Comment{}
	}

	return allComments, nil
}

// GetOpenPullRequest resolves an issue number to its pull request.
// Returns nil, nil when the issue is not a pull request (404) or the pull
// request is not open.
func (c *Client) GetOpenPullRequest(ctx context.Context, owner, repo string, issueNumber int) (*model.PullRequest, error) {
	pr, resp, err := c.gh.PullRequests.Get(ctx, owner, repo, issueNumber)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("fetching pull request %s/%s#%d: %w", owner, repo, issueNumber, err)
	}

	logRateLimit(resp, owner+"/"+repo+"/pr", 0, 1)

	if pr.GetState() != "open" {
		return nil, nil
	}

	mapped := mapPullRequest(pr, owner+"/"+repo)
	return &mapped, nil
}

// IsCollaborator reports whether the user is a collaborator of the repository.
func (c *Client) IsCollaborator(ctx context.Context, owner, repo, username string) (bool, error) {
	ok, resp, err := c.gh.Repositories.IsCollaborator(ctx, owner, repo, username)
	if err != nil {
		return false, fmt.Errorf("checking collaborator %s on %s/%s: %w", username, owner, repo, err)
	}

	logRateLimit(resp, owner+"/"+repo+"/collaborators", 0, 1)
	return ok, nil
}

// IsOrgMember reports whether the user is a member of the organization.
func (c *Client) IsOrgMember(ctx context.Context, org, username string) (bool, error) {
	ok, resp, err := c.gh.Organizations.IsMember(ctx, org, username)
	if err != nil {
		return false, fmt.Errorf("checking org membership of %s in %s: %w", username, org, err)
	}

	logRateLimit(resp, org+"/members", 0, 1)
	return ok, nil
}

// mapComment converts a go-github IssueComment to a domain model Comment.
// The body is trimmed here so the engine only ever sees trimmed text.
func mapComment(c *gh.IssueComment) model.Comment {
	return model.Comment{
		Author:    c.GetUser().GetLogin(),
		Body:      strings.TrimSpace(c.GetBody()),
		CreatedAt: c.GetCreatedAt().Time,
	}
}

// mapPullRequest converts a go-github PullRequest to a domain model
// PullRequest. It uses GetXxx() helper methods exclusively to avoid nil
// pointer panics.
func mapPullRequest(pr *gh.PullRequest, repoFullName string) model.PullRequest {
	return model.PullRequest{
		Number:       pr.GetNumber(),
		RepoFullName: repoFullName,
		Author:       pr.GetUser().GetLogin(),
		State:        pr.GetState(),
		HeadSHA:      pr.GetHead().GetSHA(),
		Title:        pr.GetTitle(),
		URL:          pr.GetHTMLURL(),
	}
}

// logRateLimit logs the GitHub API rate limit status after each call.
func logRateLimit(resp *gh.Response, endpoint string, page, count int) {
	if resp == nil {
		return
	}

	slog.Debug("github api call",
		"endpoint", endpoint,
		"page", page,
		"count", count,
		"rate_remaining", resp.Rate.Remaining,
		"rate_limit", resp.Rate.Limit,
	)

	if resp.Rate.Remaining < 100 {
		slog.Warn("github rate limit low",
			"remaining", resp.Rate.Remaining,
			"reset_in", time.Until(resp.Rate.Reset.Time).Round(time.Second),
		)
	}
}
