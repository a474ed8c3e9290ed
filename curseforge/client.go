package curseforge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"luminakraft-launcher/config"
)

const (
	curseforgeAPIURL = "https://api.curseforge.com"
	defaultTimeout   = 15 * time.Second

	// MaxBatchSize is the largest id list the metadata service accepts per call.
	MaxBatchSize = 50
)

// Client handles communication with the CurseForge metadata API.
type Client struct {
	BaseURL    string
	APIKey     string
	UserAgent  string
	HTTPClient *http.Client
}

// NewClient creates a new CurseForge API client using the provided configuration.
func NewClient(cfg config.Config) (*Client, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("USERAGENT is not configured")
	}

	baseURL := cfg.CurseForgeAPIURL
	if baseURL == "" {
		baseURL = curseforgeAPIURL
	}

	return &Client{
		BaseURL:   baseURL,
		APIKey:    cfg.CurseForgeAPIKey,
		UserAgent: cfg.UserAgent,
		HTTPClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}, nil
}

func (c *Client) makeRequest(ctx context.Context, method, path string, body interface{}, target interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.APIKey != "" {
		req.Header.Set("x-api-key", c.APIKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("api request failed: status %d, body: %s", resp.StatusCode, string(bodyBytes))
	}

	if target != nil {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return fmt.Errorf("failed to decode json response: %w", err)
		}
	}

	return nil
}

// ResolveFiles fetches file records for at most MaxBatchSize file ids.
func (c *Client) ResolveFiles(ctx context.Context, fileIDs []int) ([]File, error) {
	if len(fileIDs) > MaxBatchSize {
		return nil, fmt.Errorf("too many file ids: %d (max %d)", len(fileIDs), MaxBatchSize)
	}
	if len(fileIDs) == 0 {
		return nil, nil
	}

	var resp struct {
		Data []File `json:"data"`
	}
	if err := c.makeRequest(ctx, http.MethodPost, "/v1/mods/files", map[string][]int{"fileIds": fileIDs}, &resp); err != nil {
		return nil, fmt.Errorf("failed to resolve %d files: %w", len(fileIDs), err)
	}
	return resp.Data, nil
}

// ResolveMods fetches project records for at most MaxBatchSize mod ids.
func (c *Client) ResolveMods(ctx context.Context, modIDs []int) ([]Mod, error) {
	if len(modIDs) > MaxBatchSize {
		return nil, fmt.Errorf("too many mod ids: %d (max %d)", len(modIDs), MaxBatchSize)
	}
	if len(modIDs) == 0 {
		return nil, nil
	}

	var resp struct {
		Data []Mod `json:"data"`
	}
	if err := c.makeRequest(ctx, http.MethodPost, "/v1/mods", map[string][]int{"modIds": modIDs}, &resp); err != nil {
		return nil, fmt.Errorf("failed to resolve %d mods: %w", len(modIDs), err)
	}
	return resp.Data, nil
}

// Batches splits ids into consecutive groups of at most size elements.
func Batches(ids []int, size int) [][]int {
	if size <= 0 {
		size = MaxBatchSize
	}
	var out [][]int
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		out = append(out, ids[start:end])
	}
	return out
}

// --- Structs for API Responses ---

// File is a single downloadable file of a project.
type File struct {
	ID          int    `json:"id"`
	ModID       int    `json:"modId"`
	DisplayName string `json:"displayName"`
	FileName    string `json:"fileName"`
	FileLength  int64  `json:"fileLength"`
	// DownloadURL is null when the author disabled third-party distribution.
	DownloadURL *string `json:"downloadUrl"`
	FileStatus  int     `json:"fileStatus"`
	IsAvailable bool    `json:"isAvailable"`
	Hashes      []Hash  `json:"hashes"`
}

// URL returns the download url or an empty string when there is none.
func (f File) URL() string {
	if f.DownloadURL == nil {
		return ""
	}
	return *f.DownloadURL
}

// Hash is a file checksum, Algo 1 is sha1 and 2 is md5.
type Hash struct {
	Value string `json:"value"`
	Algo  int    `json:"algo"`
}

// Mod is a CurseForge project (simplified).
type Mod struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Slug  string `json:"slug"`
	Links struct {
		WebsiteURL string `json:"websiteUrl"`
	} `json:"links"`
}
