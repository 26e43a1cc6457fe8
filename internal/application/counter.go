// Package application contains the approval check engine: the approval
// counter and the event-driven state machine that turns webhook events into
// commit status reports.
package application

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/mwhitley/approvalgate/internal/domain/model"
	"github.com/mwhitley/approvalgate/internal/domain/port/driven"
)

// membershipConcurrency bounds concurrent membership lookups across candidate
// approvers so a burst of matching comments cannot overwhelm the oracle.
const membershipConcurrency = 4

// CountApprovals counts qualifying approvals in an oldest-first comment list.
//
// A comment qualifies when its author is not ignored, its trimmed body
// matches the configured pattern, and the author has not already contributed
// an earlier qualifying comment. When a membership restriction is configured,
// each remaining author additionally has to pass at least one of the
// configured checks: a literal user-list entry, collaborator status on the
// repository, or membership in one of the listed organizations. Checks are
// evaluated first-success-wins per author to minimize oracle calls.
func CountApprovals(ctx context.Context, comments []model.Comment, owner, repo string, check *model.CompiledCheck, oracle driven.MembershipOracle) (int, error) {
	seen := make(map[string]struct{})
	var candidates []model.Comment

	for _, c := range comments {
		if check.Ignored(c.Author) {
			continue
		}
		if !check.Matches(c.Body) {
			continue
		}
		// Input is oldest-first, so the first qualifying comment per author
		// wins; later ones from the same author are dropped.
		if _, dup := seen[c.Author]; dup {
			continue
		}
		seen[c.Author] = struct{}{}
		candidates = append(candidates, c)
	}

	// No qualifying comments means no membership calls at all.
	if len(candidates) == 0 {
		return 0, nil
	}

	rule := check.Config.From
	if !rule.Active() {
		return len(candidates), nil
	}

	users := make(map[string]struct{}, len(rule.Users))
	for _, u := range rule.Users {
		users[u] = struct{}{}
	}

	passed := make([]bool, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(membershipConcurrency)

	for i, c := range candidates {
		if _, ok := users[c.Author]; ok {
			// Literal user-list entries need no oracle call.
			passed[i] = true
			continue
		}

		g.Go(func() error {
			ok, err := authorQualifies(gctx, owner, repo, c.Author, rule, oracle)
			if err != nil {
				return err
			}
			passed[i] = ok
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return 0, err
	}

	count := 0
	for _, ok := range passed {
		if ok {
			count++
		}
	}

	return count, nil
}

// authorQualifies evaluates the oracle-backed restriction kinds for one
// author, stopping at the first confirmation. Authors who pass none of the
// configured checks are excluded without error.
func authorQualifies(ctx context.Context, owner, repo, username string, rule *model.MembershipRule, oracle driven.MembershipOracle) (bool, error) {
	if rule.Collaborators {
		ok, err := oracle.IsCollaborator(ctx, owner, repo, username)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}

	for _, org := range rule.Orgs {
		ok, err := oracle.IsOrgMember(ctx, org, username)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}

	return false, nil
}
