// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/mwhitley/approvalgate/internal/domain/model"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	GitHubToken   string
	WebhookSecret string
	ListenAddr    string
	DBPath        string

	// DefaultCheck applies to repositories without a stored config override.
	DefaultCheck model.CheckConfig
}

// Load reads configuration from environment variables and returns a validated
// Config. Required: APPROVALGATE_GITHUB_TOKEN, APPROVALGATE_WEBHOOK_SECRET.
// Optional with defaults: APPROVALGATE_LISTEN_ADDR (127.0.0.1:8080),
// APPROVALGATE_DB_PATH (approvalgate.db), APPROVALGATE_PATTERN (\+1|LGTM),
// APPROVALGATE_MINIMUM (1), APPROVALGATE_IGNORE, APPROVALGATE_FROM_USERS,
// APPROVALGATE_FROM_COLLABORATORS, APPROVALGATE_FROM_ORGS.
func Load() (*Config, error) {
	token := os.Getenv("APPROVALGATE_GITHUB_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("APPROVALGATE_GITHUB_TOKEN is required")
	}

	secret := os.Getenv("APPROVALGATE_WEBHOOK_SECRET")
	if secret == "" {
		return nil, fmt.Errorf("APPROVALGATE_WEBHOOK_SECRET is required")
	}

	listenAddr := "127.0.0.1:8080"
	if v, ok := os.LookupEnv("APPROVALGATE_LISTEN_ADDR"); ok {
		listenAddr = v
	}

	dbPath := "approvalgate.db"
	if v, ok := os.LookupEnv("APPROVALGATE_DB_PATH"); ok {
		dbPath = v
	}

	pattern := `\+1|LGTM`
	if v, ok := os.LookupEnv("APPROVALGATE_PATTERN"); ok {
		pattern = v
	}

	minimum := 1
	if v, ok := os.LookupEnv("APPROVALGATE_MINIMUM"); ok {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("APPROVALGATE_MINIMUM has invalid integer %q: %w", v, err)
		}
		minimum = parsed
	}

	check := model.CheckConfig{
		Pattern: pattern,
		Ignore:  splitList(os.Getenv("APPROVALGATE_IGNORE")),
		Minimum: minimum,
	}

	rule := &model.MembershipRule{
		Users: splitList(os.Getenv("APPROVALGATE_FROM_USERS")),
		Orgs:  splitList(os.Getenv("APPROVALGATE_FROM_ORGS")),
	}
	if v, ok := os.LookupEnv("APPROVALGATE_FROM_COLLABORATORS"); ok {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("APPROVALGATE_FROM_COLLABORATORS has invalid bool %q: %w", v, err)
		}
		rule.Collaborators = parsed
	}
	if rule.Active() {
		check.From = rule
	}

	if err := check.Validate(); err != nil {
		return nil, fmt.Errorf("default check config: %w", err)
	}

	return &Config{
		GitHubToken:   token,
		WebhookSecret: secret,
		ListenAddr:    listenAddr,
		DBPath:        dbPath,
		DefaultCheck:  check,
	}, nil
}

// splitList parses a comma-separated list, trimming whitespace and dropping
// empty entries. Returns an empty slice for empty input.
func splitList(raw string) []string {
	values := []string{}
	for _, v := range strings.Split(raw, ",") {
		v = strings.TrimSpace(v)
		if v != "" {
			values = append(values, v)
		}
	}
	return values
}
