// Package issues provides Jira issue search and lookup over the REST
// client, including the paginated FetchAll walk.
package issues

import (
	"context"
	"fmt"
	"iter"
	"net/url"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/vacuumn/jira-client/pkg/align"
	"github.com/vacuumn/jira-client/pkg/client"
	"github.com/vacuumn/jira-client/pkg/logging"
	"github.com/vacuumn/jira-client/pkg/pagination"
)

// REST endpoints used by the issues API.
const (
	searchEndpoint = "/rest/api/2/search"
	issueEndpoint  = "/rest/api/2/issue/"
)

// Issue is a Jira issue. ID is the numeric identifier (stable, unique);
// Key is the human-facing project key (e.g. "PRODUCT-12345"). Self is the
// issue's self-referential API URL, which behind a proxy gateway points at
// the wrong host until realigned.
type Issue struct {
	ID     string `json:"id"`
	Key    string `json:"key"`
	Self   string `json:"self"`
	Fields Fields `json:"fields"`
}

// Fields holds the subset of issue fields this client reads.
type Fields struct {
	Summary     string   `json:"summary"`
	Description string   `json:"description"`
	Labels      []string `json:"labels"`
	Status      Status   `json:"status"`
}

// Status is an issue workflow status.
type Status struct {
	Name string `json:"name"`
}

// RecordID implements pagination.Record. Dedup is by the numeric id, not
// the key.
func (i *Issue) RecordID() string {
	return i.ID
}

// API wraps the issue operations of the Jira REST API.
type API struct {
	client  *client.Client
	aligner *align.Aligner
	logger  zerolog.Logger
}

// NewAPI creates an issues API over the given client. The aligner is
// optional; when present every returned issue has its self URL realigned.
func NewAPI(c *client.Client, aligner *align.Aligner) *API {
	return &API{
		client:  c,
		aligner: aligner,
		logger:  logging.NewLogger("issues-api"),
	}
}

// searchResponse is the wire shape of a Jira search result page.
type searchResponse struct {
	StartAt    int      `json:"startAt"`
	MaxResults int      `json:"maxResults"`
	Total      int      `json:"total"`
	Issues     []*Issue `json:"issues"`
}

// SearchPage fetches a single page of search results. It implements
// pagination.Searcher for Issue records. Extra query options are forwarded
// verbatim on every call.
func (a *API) SearchPage(ctx context.Context, jql string, startAt, maxResults int, extra url.Values) (pagination.Page[*Issue], error) {
	query := url.Values{}
	for key, values := range extra {
		query[key] = values
	}
	query.Set("jql", jql)
	query.Set("startAt", strconv.Itoa(startAt))
	query.Set("maxResults", strconv.Itoa(maxResults))

	var resp searchResponse
	if err := a.client.GetJSON(ctx, searchEndpoint, query, &resp); err != nil {
		return pagination.Page[*Issue]{}, err
	}

	return pagination.Page[*Issue]{
		Records: resp.Issues,
		Total:   resp.Total,
	}, nil
}

// FetchOptions configures one FetchAll invocation.
type FetchOptions struct {
	// Limit caps the number of yielded issues. 0 means unbounded.
	Limit int

	// PageSize is the search page size. Defaults to
	// pagination.DefaultPageSize.
	PageSize int

	// Overscan re-validates the walk when the result total changes
	// mid-iteration. Read-only iteration only; see pkg/pagination.
	Overscan bool

	// Extra query options forwarded to the search endpoint on every page
	// call (e.g. fields, expand).
	Extra url.Values
}

// FetchAll executes a JQL statement expected to match many issues and
// yields them one at a time. Each issue id is yielded at most once, and
// with Limit set at most Limit issues are yielded, stopping all further
// search calls as soon as the limit is reached.
func (a *API) FetchAll(ctx context.Context, jql string, opts FetchOptions) iter.Seq2[*Issue, error] {
	return pagination.FetchAll(ctx, a, jql, pagination.Options[*Issue]{
		Limit:    opts.Limit,
		PageSize: opts.PageSize,
		Overscan: opts.Overscan,
		Align:    a.alignIssue,
		Extra:    opts.Extra,
	})
}

// GetIssuesByLabel yields the issues carrying the given label.
func (a *API) GetIssuesByLabel(ctx context.Context, label string) iter.Seq2[*Issue, error] {
	return a.FetchAll(ctx, fmt.Sprintf("labels = %q ORDER BY labels", label), FetchOptions{})
}

// GetIssueByKey looks up a single issue by its key. Returns nil without an
// error when no such issue exists.
//
// Jira answers a key-scoped search for a nonexistent key with an HTTP 400
// rather than an empty result set, so the not-found wording has to be
// recognized in the error message and converted to an absence.
func (a *API) GetIssueByKey(ctx context.Context, issueKey string) (*Issue, error) {
	page, err := a.SearchPage(ctx, fmt.Sprintf("issueKey = %q", issueKey), 0, 1, nil)
	if err != nil {
		if client.KindOf(err) == client.KindIssueNotFound {
			a.logger.Debug().Str("issue_key", issueKey).Msg("Issue not found")
			return nil, nil
		}
		return nil, err
	}

	if len(page.Records) == 0 {
		return nil, nil
	}

	return a.alignIssue(page.Records[0]), nil
}

// GetIssueByID looks up a single issue by its numeric id (not to be
// confused with the issue key). Returns nil without an error when no such
// issue exists.
func (a *API) GetIssueByID(ctx context.Context, issueID string) (*Issue, error) {
	var issue Issue
	if err := a.client.GetJSON(ctx, issueEndpoint+issueID, nil, &issue); err != nil {
		if client.KindOf(err) == client.KindIssueDoesNotExist {
			a.logger.Debug().Str("issue_id", issueID).Msg("Issue does not exist")
			return nil, nil
		}
		return nil, err
	}

	return a.alignIssue(&issue), nil
}

// alignIssue realigns the issue's self URL when an aligner is configured.
func (a *API) alignIssue(issue *Issue) *Issue {
	if a.aligner != nil && issue != nil {
		issue.Self = a.aligner.Align(issue.Self)
	}
	return issue
}
