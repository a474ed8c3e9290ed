package updater

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const githubAPIURL = "https://api.github.com"

// Release is a GitHub release as returned by the releases API.
type Release struct {
	TagName     string    `json:"tag_name"`
	Name        string    `json:"name"`
	Body        string    `json:"body"`
	Prerelease  bool      `json:"prerelease"`
	Draft       bool      `json:"draft"`
	HTMLURL     string    `json:"html_url"`
	PublishedAt time.Time `json:"published_at"`
}

// RegistryClient lists releases of one GitHub repository.
type RegistryClient struct {
	BaseURL    string
	Repo       string // owner/repo
	UserAgent  string
	HTTPClient *http.Client
}

func NewRegistryClient(repo, userAgent string, httpClient *http.Client) *RegistryClient {
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: 30 * time.Second,
		}
	}
	return &RegistryClient{
		BaseURL:    githubAPIURL,
		Repo:       repo,
		UserAgent:  userAgent,
		HTTPClient: httpClient,
	}
}

// ListReleases returns published releases, newest first. Drafts are skipped.
func (c *RegistryClient) ListReleases(ctx context.Context) ([]Release, error) {
	url := fmt.Sprintf("%s/repos/%s/releases?per_page=20", c.BaseURL, c.Repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", c.UserAgent)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch releases: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch releases: HTTP %d", resp.StatusCode)
	}

	var releases []Release
	if err := json.NewDecoder(resp.Body).Decode(&releases); err != nil {
		return nil, fmt.Errorf("failed to parse releases: %w", err)
	}

	published := releases[:0]
	for _, r := range releases {
		if !r.Draft {
			published = append(published, r)
		}
	}
	return published, nil
}
