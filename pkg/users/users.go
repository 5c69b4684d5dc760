// Package users provides Jira user lookups and an explicit, scoped lookup
// cache.
package users

import (
	"context"
	"net/url"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/vacuumn/jira-client/pkg/client"
	"github.com/vacuumn/jira-client/pkg/logging"
)

// REST endpoints used by the users API.
const (
	userEndpoint       = "/rest/api/2/user"
	userSearchEndpoint = "/rest/api/2/user/search"
)

// User is a Jira user.
type User struct {
	Key          string `json:"key"`
	Name         string `json:"name"`
	EmailAddress string `json:"emailAddress"`
	DisplayName  string `json:"displayName"`
	Self         string `json:"self"`
	Active       bool   `json:"active"`
}

// API wraps the user operations of the Jira REST API.
type API struct {
	client *client.Client
	logger zerolog.Logger
}

// NewAPI creates a users API over the given client.
func NewAPI(c *client.Client) *API {
	return &API{
		client: c,
		logger: logging.NewLogger("users-api"),
	}
}

// GetUserByKey looks up a user by key. Returns nil without an error when
// the user does not exist.
func (a *API) GetUserByKey(ctx context.Context, key string) (*User, error) {
	query := url.Values{}
	query.Set("key", key)

	var user User
	if err := a.client.GetJSON(ctx, userEndpoint, query, &user); err != nil {
		if client.KindOf(err) == client.KindUserNotFound {
			a.logger.Debug().Str("key", key).Msg("User does not exist")
			return nil, nil
		}
		return nil, err
	}

	return &user, nil
}

// GetUserByEmail queries for a user matching the given email address.
// Returns nil without an error when no matching user is found.
func (a *API) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	query := url.Values{}
	query.Set("username", email)
	query.Set("maxResults", strconv.Itoa(1))

	var results []*User
	if err := a.client.GetJSON(ctx, userSearchEndpoint, query, &results); err != nil {
		return nil, err
	}

	if len(results) == 0 {
		return nil, nil
	}

	return results[0], nil
}
