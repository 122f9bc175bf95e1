// Package updater checks GitHub for a newer formpilot release.
//
// The check is best-effort: network failures and unexpected responses are
// reported as "no update" so they never disturb the MCP transport.
package updater

import (
	"context"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
)

const (
	// githubRepo is the repository path for API calls.
	githubRepo = "HendryAvila/formpilot"

	// ReleaseURL is the GitHub API endpoint for the latest release.
	ReleaseURL = "https://api.github.com/repos/" + githubRepo + "/releases/latest"

	// checkTimeout is how long we wait for the GitHub API.
	checkTimeout = 10 * time.Second
)

// Result is returned by Check to communicate the outcome.
type Result struct {
	// CurrentVersion is the running version (e.g. "0.2.0").
	CurrentVersion string
	// LatestVersion is the newest release (e.g. "0.3.0"); empty when the
	// check failed.
	LatestVersion string
	// UpdateAvailable is true when latest > current.
	UpdateAvailable bool
	// ReleaseURL is the GitHub page for the release.
	ReleaseURL string
}

// Checker queries the releases endpoint.
type Checker struct {
	http     *resty.Client
	endpoint string
}

// New creates a Checker for endpoint. An empty endpoint means ReleaseURL.
func New(endpoint string) *Checker {
	if endpoint == "" {
		endpoint = ReleaseURL
	}
	return &Checker{
		http: resty.New().
			SetTimeout(checkTimeout).
			SetHeader("Accept", "application/vnd.github.v3+json"),
		endpoint: endpoint,
	}
}

// Check compares currentVersion with the latest published release.
func (c *Checker) Check(ctx context.Context, currentVersion string) *Result {
	result := &Result{
		CurrentVersion: normalizeVersion(currentVersion),
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("User-Agent", "formpilot/"+currentVersion).
		Get(c.endpoint)
	if err != nil || resp.IsError() || !gjson.ValidBytes(resp.Body()) {
		return result
	}

	release := gjson.ParseBytes(resp.Body())
	result.LatestVersion = normalizeVersion(release.Get("tag_name").String())
	result.ReleaseURL = release.Get("html_url").String()
	result.UpdateAvailable = isNewer(result.CurrentVersion, result.LatestVersion)

	return result
}

// normalizeVersion strips the leading "v" from version strings.
func normalizeVersion(v string) string {
	return strings.TrimPrefix(v, "v")
}

// isNewer returns true if latest is a higher version than current.
func isNewer(current, latest string) bool {
	if current == "" || latest == "" || current == "dev" {
		return false
	}

	currentParts := strings.Split(current, ".")
	latestParts := strings.Split(latest, ".")

	// Pad to 3 parts
	for len(currentParts) < 3 {
		currentParts = append(currentParts, "0")
	}
	for len(latestParts) < 3 {
		latestParts = append(latestParts, "0")
	}

	for i := 0; i < 3; i++ {
		c := leadingInt(currentParts[i])
		l := leadingInt(latestParts[i])
		if l > c {
			return true
		}
		if l < c {
			return false
		}
	}

	return false
}

// leadingInt parses the leading digits of s ("3-rc1" -> 3).
func leadingInt(s string) int {
	n := 0
	for _, ch := range s {
		if ch < '0' || ch > '9' {
			break
		}
		n = n*10 + int(ch-'0')
	}
	return n
}
