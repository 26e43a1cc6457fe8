package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mwhitley/approvalgate/internal/domain/model"
	"github.com/mwhitley/approvalgate/internal/domain/port/driven"
)

// CheckService is the approval state machine. It holds no per-PR state of its
// own: every event recomputes the approval state from scratch, using the
// record store's LastPush timestamp as the only persisted input.
type CheckService struct {
	statuses driven.StatusReporter
	comments driven.CommentSource
	members  driven.MembershipOracle
	records  driven.RecordStore
	configs  driven.CheckConfigStore
	defaults model.CheckConfig
	logger   *slog.Logger
}

// NewCheckService creates a CheckService with all required dependencies.
// defaults is the service-wide check config used for repositories without a
// stored override; it must validate.
func NewCheckService(
	statuses driven.StatusReporter,
	comments driven.CommentSource,
	members driven.MembershipOracle,
	records driven.RecordStore,
	configs driven.CheckConfigStore,
	defaults model.CheckConfig,
	logger *slog.Logger,
) *CheckService {
	return &CheckService{
		statuses: statuses,
		comments: comments,
		members:  members,
		records:  records,
		configs:  configs,
		defaults: defaults,
		logger:   logger,
	}
}

// HandlePullRequest processes one pull_request webhook delivery. Any failure
// is converted into a single error status report targeting the last commit
// SHA resolved before the failure; nothing is raised back to the caller.
func (s *CheckService) HandlePullRequest(ctx context.Context, ev model.PullRequestEvent) {
	sha, err := s.processPullRequest(ctx, ev)
	s.finish(ctx, ev.RepoOwner, ev.RepoName, ev.Number, sha, err)
}

// HandleIssueComment processes one issue_comment webhook delivery. Comments
// on issues that are not open pull requests are a silent no-op.
func (s *CheckService) HandleIssueComment(ctx context.Context, ev model.IssueCommentEvent) {
	sha, err := s.processIssueComment(ctx, ev)
	s.finish(ctx, ev.RepoOwner, ev.RepoName, ev.IssueNumber, sha, err)
}

func (s *CheckService) processPullRequest(ctx context.Context, ev model.PullRequestEvent) (string, error) {
	switch ev.Action {
	case model.ActionOpened, model.ActionReopened:
		if ev.State != "open" {
			s.logger.Debug("pull request not open, skipping",
				"repo", ev.RepoFullName(), "pr", ev.Number, "action", string(ev.Action))
			return "", nil
		}
		return s.processOpen(ctx, ev)
	case model.ActionSynchronize:
		return s.processSynchronize(ctx, ev)
	default:
		s.logger.Debug("ignoring pull request action",
			"repo", ev.RepoFullName(), "pr", ev.Number, "action", string(ev.Action))
		return "", nil
	}
}

// processOpen handles the opened and reopened actions.
func (s *CheckService) processOpen(ctx context.Context, ev model.PullRequestEvent) (string, error) {
	sha := ev.HeadSHA

	if err := s.report(ctx, ev.RepoOwner, ev.RepoName, sha,
		model.NewReport(model.StatusPending, model.InProgressDescription)); err != nil {
		return sha, err
	}

	check, err := s.checkFor(ctx, ev.RepoFullName())
	if err != nil {
		return sha, err
	}

	record, err := s.ensureRecord(ctx, ev.RepoFullName(), ev.Number)
	if err != nil {
		return sha, err
	}

	// A freshly opened PR cannot yet have qualifying comments, so skip the
	// comment fetch entirely and report the full quorum as outstanding.
	if ev.Action == model.ActionOpened && check.Config.Minimum > 0 {
		return sha, s.report(ctx, ev.RepoOwner, ev.RepoName, sha,
			model.NewReport(model.StatusPending, model.ApprovalMessage(0, check.Config.Minimum)))
	}

	return sha, s.evaluate(ctx, ev.RepoOwner, ev.RepoName, ev.Number, ev.Author, sha, record.LastPush, check)
}

// processSynchronize handles a new commit push: it advances the record's
// LastPush, which invalidates all prior approvals, and resets the status.
func (s *CheckService) processSynchronize(ctx context.Context, ev model.PullRequestEvent) (string, error) {
	sha := ev.HeadSHA

	check, err := s.checkFor(ctx, ev.RepoFullName())
	if err != nil {
		return sha, err
	}

	if err := s.records.RecordNewCommit(ctx, ev.RepoFullName(), ev.Number); err != nil {
		return sha, err
	}

	s.logger.Info("new commit resets approvals",
		"repo", ev.RepoFullName(), "pr", ev.Number, "sha", sha)

	return sha, s.report(ctx, ev.RepoOwner, ev.RepoName, sha,
		model.NewReport(model.StatusPending, model.ApprovalMessage(0, check.Config.Minimum)))
}

func (s *CheckService) processIssueComment(ctx context.Context, ev model.IssueCommentEvent) (string, error) {
	pr, err := s.comments.GetOpenPullRequest(ctx, ev.RepoOwner, ev.RepoName, ev.IssueNumber)
	if err != nil {
		return "", err
	}
	if pr == nil {
		s.logger.Debug("comment does not reference an open pull request",
			"repo", ev.RepoFullName(), "issue", ev.IssueNumber)
		return "", nil
	}

	sha := pr.HeadSHA

	if err := s.report(ctx, ev.RepoOwner, ev.RepoName, sha,
		model.NewReport(model.StatusPending, model.InProgressDescription)); err != nil {
		return sha, err
	}

	check, err := s.checkFor(ctx, ev.RepoFullName())
	if err != nil {
		return sha, err
	}

	record, err := s.ensureRecord(ctx, ev.RepoFullName(), pr.Number)
	if err != nil {
		return sha, err
	}

	return sha, s.evaluate(ctx, ev.RepoOwner, ev.RepoName, pr.Number, pr.Author, sha, record.LastPush, check)
}

// evaluate fetches comments created after the eligibility window opened,
// counts approvals, and reports the resulting state.
func (s *CheckService) evaluate(ctx context.Context, owner, repo string, number int, prAuthor, sha string, since time.Time, check *model.CompiledCheck) error {
	comments, err := s.comments.ListComments(ctx, owner, repo, number, &since)
	if err != nil {
		return err
	}

	// The PR author never approves their own pull request.
	effective := check.WithIgnored(prAuthor)

	actual, err := CountApprovals(ctx, comments, owner, repo, effective, s.members)
	if err != nil {
		return err
	}

	state := model.StatusPending
	if actual >= check.Config.Minimum {
		state = model.StatusSuccess
	}

	s.logger.Info("approval check evaluated",
		"repo", owner+"/"+repo,
		"pr", number,
		"approvals", actual,
		"minimum", check.Config.Minimum,
		"state", string(state),
	)

	return s.report(ctx, owner, repo, sha, model.NewReport(state, model.ApprovalMessage(actual, check.Config.Minimum)))
}

// checkFor resolves the effective check config for a repository: the stored
// override when present, the service default otherwise. The pattern is
// compiled here, once per config load.
func (s *CheckService) checkFor(ctx context.Context, repoFullName string) (*model.CompiledCheck, error) {
	cfg := s.defaults

	stored, err := s.configs.Get(ctx, repoFullName)
	if err != nil {
		return nil, err
	}
	if stored != nil {
		cfg = *stored
	}

	check, err := cfg.Compile()
	if err != nil {
		return nil, fmt.Errorf("check config for %s: %w", repoFullName, err)
	}

	return check, nil
}

// ensureRecord fetches the tracking record for a PR, creating it lazily on
// the first relevant event.
func (s *CheckService) ensureRecord(ctx context.Context, repoFullName string, number int) (*model.PullRequestRecord, error) {
	record, err := s.records.Get(ctx, repoFullName, number)
	if err != nil {
		return nil, err
	}
	if record != nil {
		return record, nil
	}

	record, err = s.records.Create(ctx, repoFullName, number)
	if err != nil {
		return nil, err
	}

	s.logger.Info("tracking record created", "repo", repoFullName, "pr", number)
	return record, nil
}

func (s *CheckService) report(ctx context.Context, owner, repo, sha string, report model.StatusReport) error {
	s.logger.Debug("reporting status",
		"repo", owner+"/"+repo,
		"sha", sha,
		"state", string(report.State),
		"description", report.Description,
	)
	return s.statuses.ReportStatus(ctx, owner, repo, sha, report)
}

// finish is the single failure boundary for one event's handling. Any error
// becomes one terminal error status carrying the error message, targeting the
// last commit SHA resolved before the failure. When no SHA was resolved the
// report is suppressed: a status without a valid target would be meaningless.
func (s *CheckService) finish(ctx context.Context, owner, repo string, number int, sha string, err error) {
	if err == nil {
		return
	}

	s.logger.Error("approval check failed",
		"repo", owner+"/"+repo, "pr", number, "error", err)

	if sha == "" {
		s.logger.Warn("no commit resolved before failure, suppressing error status",
			"repo", owner+"/"+repo, "pr", number)
		return
	}

	if repErr := s.statuses.ReportStatus(ctx, owner, repo, sha,
		model.NewReport(model.StatusError, err.Error())); repErr != nil {
		s.logger.Error("error status report failed",
			"repo", owner+"/"+repo, "pr", number, "error", repErr)
	}
}
