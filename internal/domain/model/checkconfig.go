package model

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	// maxPatternLength caps user-supplied pattern text. Go's RE2 engine is
	// linear-time, so this is a sanity bound on untrusted configuration
	// rather than a backtracking guard.
	maxPatternLength = 256

	// maxMatchLength caps how much of a comment body is matched against the
	// pattern. Approval phrases are short; giant bodies are truncated.
	maxMatchLength = 4096
)

// MembershipRule restricts which comment authors may contribute approvals.
// Empty collections mean that restriction kind is inactive. A nil rule (or
// one with nothing configured) means any author counts.
type MembershipRule struct {
	Users         []string `json:"users,omitempty"`
	Collaborators bool     `json:"collaborators,omitempty"`
	Orgs          []string `json:"orgs,omitempty"`
}

// Active reports whether the rule restricts authorship at all.
func (r *MembershipRule) Active() bool {
	if r == nil {
		return false
	}
	return len(r.Users) > 0 || r.Collaborators || len(r.Orgs) > 0
}

// CheckConfig is the approval check configuration for one repository.
type CheckConfig struct {
	// Pattern is a regular expression matched case-sensitively against
	// trimmed comment bodies.
	Pattern string `json:"pattern"`
	// Ignore lists usernames whose comments never count.
	Ignore []string `json:"ignore,omitempty"`
	// Minimum is the approval quorum. Zero means the check passes with no
	// approvals.
	Minimum int `json:"minimum"`
	// From optionally restricts which authors may approve.
	From *MembershipRule `json:"from,omitempty"`
}

// Validate checks the configuration without compiling it.
func (c CheckConfig) Validate() error {
	if c.Minimum < 0 {
		return fmt.Errorf("minimum must be non-negative, got %d", c.Minimum)
	}
	if c.Pattern == "" {
		return fmt.Errorf("pattern must not be empty")
	}
	if len(c.Pattern) > maxPatternLength {
		return fmt.Errorf("pattern exceeds %d characters", maxPatternLength)
	}
	if _, err := regexp.Compile(c.Pattern); err != nil {
		return fmt.Errorf("invalid pattern %q: %w", c.Pattern, err)
	}
	return nil
}

// Compile validates the configuration and resolves it into a CompiledCheck
// ready for matching. Compilation happens once per config load, not per
// comment.
func (c CheckConfig) Compile() (*CompiledCheck, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	re, err := regexp.Compile(c.Pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", c.Pattern, err)
	}

	ignore := make(map[string]struct{}, len(c.Ignore))
	for _, login := range c.Ignore {
		ignore[login] = struct{}{}
	}

	return &CompiledCheck{
		Config:  c,
		pattern: re,
		ignore:  ignore,
	}, nil
}

// CompiledCheck is a CheckConfig with its pattern compiled and its ignore
// list resolved into a set.
type CompiledCheck struct {
	Config  CheckConfig
	pattern *regexp.Regexp
	ignore  map[string]struct{}
}

// Matches reports whether the trimmed comment body matches the approval
// pattern. Bodies longer than the match bound are truncated first.
func (cc *CompiledCheck) Matches(body string) bool {
	body = strings.TrimSpace(body)
	if len(body) > maxMatchLength {
		body = body[:maxMatchLength]
	}
	return cc.pattern.MatchString(body)
}

// Ignored reports whether the author is excluded from counting.
func (cc *CompiledCheck) Ignored(login string) bool {
	_, ok := cc.ignore[login]
	return ok
}

// WithIgnored returns a copy of the check that additionally ignores the
// given logins. Used to exclude the PR author per event without mutating
// the shared configuration.
func (cc *CompiledCheck) WithIgnored(logins ...string) *CompiledCheck {
	ignore := make(map[string]struct{}, len(cc.ignore)+len(logins))
	for login := range cc.ignore {
		ignore[login] = struct{}{}
	}
	for _, login := range logins {
		if login != "" {
			ignore[login] = struct{}{}
		}
	}

	return &CompiledCheck{
		Config:  cc.Config,
		pattern: cc.pattern,
		ignore:  ignore,
	}
}
