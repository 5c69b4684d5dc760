// Package credentials implements layered Jira credential resolution.
//
// Resolution order for non-production environments:
//
//  1. Files named by the LOCAL_JIRA_USER / LOCAL_JIRA_PASS environment
//     variables (paths to credential files on the local filesystem)
//  2. Raw credentials in the ENV_JIRA_USER / ENV_JIRA_PASS environment
//     variables
//  3. Per-user files in the user's home directory
//     (/home/<user>/jira_user and /home/<user>/jira_passwd)
//
// Production skips the chain entirely and reads the fixed service-account
// paths provisioned on production hosts.
package credentials

import (
	"fmt"
	"os"
	"os/user"
	"strings"

	"github.com/rs/zerolog"

	"github.com/vacuumn/jira-client/pkg/environment"
	"github.com/vacuumn/jira-client/pkg/logging"
)

// Credentials holds a resolved identity/secret pair. The fields are
// unexported and the String form is redacted so a value dumped into a log
// line or stack trace does not leak the secret. This is for safety, not
// security.
type Credentials struct {
	username string
	password string
	alias    string
}

// NewCredentials builds a Credentials value. The alias names the resolution
// layer that produced it and is safe to log.
func NewCredentials(username, password, alias string) *Credentials {
	return &Credentials{username: username, password: password, alias: alias}
}

// Auth returns the username and password for use in an auth header.
func (c *Credentials) Auth() (string, string) {
	return c.username, c.password
}

// Alias returns the name of the resolution layer that produced the
// credentials (e.g. "Production", "Local Env Vars").
func (c *Credentials) Alias() string {
	return c.alias
}

// String implements fmt.Stringer with a redacted representation.
func (c *Credentials) String() string {
	return fmt.Sprintf("[[[ Jira Credentials, (%s) ]]]", c.alias)
}

// Environment variable names recognized by the provider.
const (
	// EnvLocalUserFile names a file containing the username.
	EnvLocalUserFile = "LOCAL_JIRA_USER"

	// EnvLocalPasswordFile names a file containing the password.
	EnvLocalPasswordFile = "LOCAL_JIRA_PASS"

	// EnvRawUser carries the username directly.
	EnvRawUser = "ENV_JIRA_USER"

	// EnvRawPassword carries the password directly.
	EnvRawPassword = "ENV_JIRA_PASS"
)

// Provider resolves credentials for a Jira environment.
type Provider struct {
	env    environment.Environment
	user   string
	logger zerolog.Logger

	// Path templates, overridable for tests. The user file patterns are
	// fmt format strings taking the OS username.
	ProdUserPath     string
	ProdPasswordPath string
	UserFilePattern  string
	PassFilePattern  string
}

// NewProvider creates a credentials provider for the given environment.
func NewProvider(env environment.Environment) *Provider {
	return &Provider{
		env:              env,
		user:             currentUser(),
		logger:           logging.NewLogger("credentials"),
		ProdUserPath:     "/srv/airflow/jira_vm_username",
		ProdPasswordPath: "/srv/airflow/jira_vm_password",
		UserFilePattern:  "/home/%s/jira_user",
		PassFilePattern:  "/home/%s/jira_passwd",
	}
}

// Load resolves credentials following the layered fallback chain.
// It returns nil (and no error) when no layer yields both a non-empty
// identity and secret.
func (p *Provider) Load() (*Credentials, error) {
	if p.env.IsProduction() {
		return p.loadProduction()
	}

	// Env-var-named files first so unit tests and local overrides win.
	if creds, err := p.loadLocalFiles(); err != nil {
		return nil, err
	} else if creds != nil {
		return creds, nil
	}

	if creds := p.loadRawEnv(); creds != nil {
		return creds, nil
	}

	if creds, err := p.loadHomeFiles(); err != nil {
		return nil, err
	} else if creds != nil {
		return creds, nil
	}

	p.logger.Debug().
		Str("environment", p.env.BaseURL()).
		Msg("No credentials found in any resolution layer")

	return nil, nil
}

// loadProduction reads the fixed service-account paths. These files are
// provisioned by configuration management on production hosts.
func (p *Provider) loadProduction() (*Credentials, error) {
	return p.loadFromFiles(p.ProdUserPath, p.ProdPasswordPath, "Production")
}

// loadLocalFiles reads credential files whose paths are given in
// environment variables.
func (p *Provider) loadLocalFiles() (*Credentials, error) {
	userPath := os.Getenv(EnvLocalUserFile)
	passPath := os.Getenv(EnvLocalPasswordFile)
	if userPath == "" || passPath == "" {
		return nil, nil
	}

	return p.loadFromFiles(userPath, passPath, "Local Cred Files")
}

// loadRawEnv reads credentials directly from environment variables.
func (p *Provider) loadRawEnv() *Credentials {
	username := os.Getenv(EnvRawUser)
	password := os.Getenv(EnvRawPassword)
	if username == "" || password == "" {
		return nil
	}

	return NewCredentials(username, password, "Local Env Vars")
}

// loadHomeFiles reads credential files from the user's home directory.
// Missing files are not an error; the layer simply does not apply.
func (p *Provider) loadHomeFiles() (*Credentials, error) {
	userFile := fmt.Sprintf(p.UserFilePattern, p.user)
	if _, err := os.Stat(userFile); err != nil {
		return nil, nil
	}
	passFile := fmt.Sprintf(p.PassFilePattern, p.user)
	if _, err := os.Stat(passFile); err != nil {
		return nil, nil
	}

	return p.loadFromFiles(userFile, passFile, fmt.Sprintf("OneFlow, %s", p.user))
}

// loadFromFiles builds credentials from a username file and a password file.
func (p *Provider) loadFromFiles(userPath, passPath, alias string) (*Credentials, error) {
	username, err := readTrimmed(userPath)
	if err != nil {
		return nil, fmt.Errorf("read credential file: %w", err)
	}

	password, err := readTrimmed(passPath)
	if err != nil {
		return nil, fmt.Errorf("read credential file: %w", err)
	}

	if username == "" || password == "" {
		p.logger.Warn().
			Str("alias", alias).
			Msg("Credential files exist but are empty")
		return nil, nil
	}

	return NewCredentials(username, password, alias), nil
}

func readTrimmed(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func currentUser() string {
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return os.Getenv("USER")
}
