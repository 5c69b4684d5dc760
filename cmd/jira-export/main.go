// Command jira-export runs a JQL statement against Jira and streams the
// matching issues to stdout as JSON lines.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"

	"github.com/vacuumn/jira-client/pkg/align"
	"github.com/vacuumn/jira-client/pkg/client"
	"github.com/vacuumn/jira-client/pkg/environment"
	"github.com/vacuumn/jira-client/pkg/issues"
	"github.com/vacuumn/jira-client/pkg/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "jira-export:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		limit    = flag.Int("limit", 0, "maximum number of issues to export (0 = unbounded)")
		pageSize = flag.Int("page-size", 0, "search page size (0 = default)")
		overscan = flag.Bool("overscan", false, "re-validate when the result total changes mid-scan (read-only queries only)")
		local    = flag.Bool("local", false, "local execution (no egress proxy)")
	)
	flag.Parse()

	jql := flag.Arg(0)
	if jql == "" {
		return fmt.Errorf("usage: jira-export [flags] <jql>")
	}

	// Configuration from environment
	env := environment.Environment(getEnv("JIRA_ENVIRONMENT", environment.Dev.BaseURL()))
	logLevel := logging.LogLevel(getEnv("LOG_LEVEL", string(logging.LevelInfo)))
	pretty, _ := strconv.ParseBool(getEnv("LOG_PRETTY", "false"))

	logger := logging.Setup(logging.Config{
		Level:  logLevel,
		Pretty: pretty,
		Output: os.Stderr,
	})

	cfg := client.DefaultConfig(env)
	cfg.LocalExecution = *local

	jiraClient, err := client.New(cfg)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	defer jiraClient.Close()

	api := issues.NewAPI(jiraClient, align.NewAligner(nil))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger.Info().
		Str("environment", env.BaseURL()).
		Str("jql", jql).
		Int("limit", *limit).
		Bool("overscan", *overscan).
		Msg("Starting export")

	encoder := json.NewEncoder(os.Stdout)
	exported := 0
	for issue, err := range api.FetchAll(ctx, jql, issues.FetchOptions{
		Limit:    *limit,
		PageSize: *pageSize,
		Overscan: *overscan,
	}) {
		if err != nil {
			return fmt.Errorf("fetch issues: %w", err)
		}
		if err := encoder.Encode(issue); err != nil {
			return fmt.Errorf("write issue: %w", err)
		}
		exported++
	}

	logger.Info().Int("exported", exported).Msg("Export complete")
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
