// Package align rewrites self-referential Jira resource URLs to the
// canonical REST gateway hosts.
//
// Jira rewrites a resource's API endpoint from the server's own idea of its
// hostname rather than the host the client was configured with. Behind a
// proxy gateway the returned "self" URLs therefore point at hosts the
// client cannot reach. The aligner maps those hostnames back to the
// canonical gateway hosts with direct string replacement.
package align

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/vacuumn/jira-client/pkg/environment"
	"github.com/vacuumn/jira-client/pkg/logging"
)

var alignmentFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "jira_alignment_failures_total",
	Help: "Resource URLs with no matching domain mapping",
})

// Aligner rewrites resource URLs using a fixed hostname mapping table.
// The zero value is not usable; use NewAligner.
type Aligner struct {
	mappings map[string]string
	logger   zerolog.Logger
}

// DefaultMappings maps the hostnames of "incorrect" domains to the correct
// gateway hosts. Values must not carry protocols or paths; they are applied
// as direct string replacements.
func DefaultMappings() map[string]string {
	return map[string]string{
		"jira-dev.example.com":   environment.Dev.Host(),
		"jira-stage.example.com": environment.Staging.Host(),
		"jira.example.com":       environment.Prod.Host(),
	}
}

// NewAligner creates an aligner with the given mapping table. Passing nil
// uses DefaultMappings.
func NewAligner(mappings map[string]string) *Aligner {
	if mappings == nil {
		mappings = DefaultMappings()
	}
	return &Aligner{
		mappings: mappings,
		logger:   logging.NewLogger("align"),
	}
}

// Align returns the URL rewritten to a canonical host. Already-aligned URLs
// are returned unchanged. When no mapping applies the original URL is kept
// and a warning is emitted; alignment is best-effort and never fails a
// fetch.
func (a *Aligner) Align(url string) string {
	if url == "" {
		return url
	}

	if a.IsAligned(url) {
		a.logger.Debug().Str("url", url).Msg("Resource URL already aligned")
		return url
	}

	for badHost, goodHost := range a.mappings {
		if strings.Contains(url, badHost) {
			return strings.Replace(url, badHost, goodHost, 1)
		}
	}

	alignmentFailuresTotal.Inc()
	a.logger.Warn().
		Str("url", url).
		Msg("Resource alignment failed: no matching domain mapping")

	return url
}

// IsAligned reports whether the URL already points at one of the canonical
// hosts.
func (a *Aligner) IsAligned(url string) bool {
	for _, goodHost := range a.mappings {
		if strings.Contains(url, goodHost) {
			return true
		}
	}
	return false
}
