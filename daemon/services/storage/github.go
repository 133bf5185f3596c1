package storage

import (
	"fmt"
	"io"
	"net/http"
	"time"
)

// GitHubBaseURL is the fixed base URL profiles beginning with "github:"
// resolve against.
const GitHubBaseURL = "https://raw.githubusercontent.com/smokehouse-controller/profiles/main/"

// GitHubFetcher implements ProfileFetcher over plain HTTPS GET requests
// against GitHubBaseURL. The byte-level HTTP client internals beyond this
// are out of scope; this is intentionally a thin wrapper.
type GitHubFetcher struct {
	client  *http.Client
	baseURL string
}

// NewGitHubFetcher creates a fetcher with a bounded request timeout.
func NewGitHubFetcher() *GitHubFetcher {
	return &GitHubFetcher{
		client:  &http.Client{Timeout: 10 * time.Second},
		baseURL: GitHubBaseURL,
	}
}

// Fetch retrieves subPath relative to the base URL.
func (g *GitHubFetcher) Fetch(subPath string) ([]byte, error) {
	resp, err := g.client.Get(g.baseURL + subPath)
	if err != nil {
		return nil, fmt.Errorf("storage: github fetch %q: %w", subPath, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("storage: github fetch %q: status %d", subPath, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
