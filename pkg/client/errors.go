package client

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")
)

// JiraError represents an error response from the Jira REST API.
type JiraError struct {
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *JiraError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("jira error (status %d): %s: %v",
			e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("jira error (status %d): %s", e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *JiraError) Unwrap() error {
	return e.Err
}

// ErrorKind classifies a Jira error by its message text.
//
// Jira is inconsistent in its status codes (a search for a nonexistent
// issue key comes back as a 400, not a 404), so not-found conditions are
// discriminated by matching the error message against known server
// wordings. The matching rules are fragile by nature and centralized here
// so they can be tested independently.
type ErrorKind string

const (
	// KindIssueNotFound matches the wording a key-scoped search returns
	// for a nonexistent issue.
	KindIssueNotFound ErrorKind = "issue_not_found"

	// KindIssueDoesNotExist matches the wording a direct fetch-by-id
	// returns for a nonexistent issue.
	KindIssueDoesNotExist ErrorKind = "issue_does_not_exist"

	// KindComponentInvalid matches the wording for an invalid component
	// name on issue creation.
	KindComponentInvalid ErrorKind = "component_invalid"

	// KindUserNotFound matches the wording for a nonexistent user.
	KindUserNotFound ErrorKind = "user_not_found"

	// KindOther is any error message that matches no known pattern.
	KindOther ErrorKind = "other"
)

var (
	componentInvalidPattern = regexp.MustCompile(`^Component name '(.*)' is not valid`)
	userNotFoundPattern     = regexp.MustCompile(`^User '(.*)' does not exist`)
)

// Classify matches a Jira error message against the known server wordings
// and returns its kind. Unrecognized messages classify as KindOther.
func Classify(message string) ErrorKind {
	switch {
	case strings.Contains(message, "An issue with key") &&
		strings.Contains(message, "does not exist"):
		return KindIssueNotFound
	case strings.Contains(message, "Issue Does Not Exist"):
		return KindIssueDoesNotExist
	case componentInvalidPattern.MatchString(message):
		return KindComponentInvalid
	case userNotFoundPattern.MatchString(message):
		return KindUserNotFound
	default:
		return KindOther
	}
}

// KindOf classifies an error. Errors that are not JiraError values (network
// failures, decode failures) classify as KindOther.
func KindOf(err error) ErrorKind {
	var jiraErr *JiraError
	if !errors.As(err, &jiraErr) {
		return KindOther
	}
	return Classify(jiraErr.Message)
}

// ErrorClass represents a transport-level classification of HTTP errors,
// used for retry decisions and observability.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"
)

// shouldRetry determines if an error should be retried based on its
// transport classification.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassClient:
		// 4xx errors carry Jira error semantics (including the not-found
		// wordings); retrying them cannot succeed.
		return false
	case ErrorClassServer:
		return true
	case ErrorClassNetwork:
		return true
	default:
		return false
	}
}
