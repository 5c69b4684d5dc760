// Package environment defines the Jira environments the client can target.
package environment

import "strings"

// Environment identifies a Jira deployment. The value is the base URL of the
// REST gateway for that deployment.
type Environment string

const (
	// Dev is the development Jira instance.
	Dev Environment = "https://jirarest-dev.example.com"

	// Staging is the staging Jira instance.
	Staging Environment = "https://jirarest-stage.example.com"

	// Prod is the production Jira instance.
	Prod Environment = "https://jirarest.example.com"
)

// BaseURL returns the REST gateway base URL for the environment.
func (e Environment) BaseURL() string {
	return string(e)
}

// Host returns the hostname of the environment without protocol or path.
func (e Environment) Host() string {
	return strings.TrimPrefix(string(e), "https://")
}

// IsProduction reports whether the environment is the production instance.
// Production changes how credentials are resolved (fixed service-account
// paths instead of the developer fallback chain).
func (e Environment) IsProduction() bool {
	return e == Prod
}
