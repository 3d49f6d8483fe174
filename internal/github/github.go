package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
)

const DefaultAPIURL = "https://api.github.com"

var ErrInvalidRepositoryURL = errors.New("invalid GitHub URL format")

var repoURLPattern = regexp.MustCompile(`github\.com/([^/]+)/([^/?#]+)`)

// HostError is returned when the README host answers with an unexpected status.
type HostError struct {
	StatusCode int
}

func (e *HostError) Error() string {
	return fmt.Sprintf("GitHub API error: %d", e.StatusCode)
}

// Repository identifies a GitHub repository.
type Repository struct {
	Owner string
	Name  string
}

// ParseRepositoryURL extracts the owner and repository name from a GitHub URL.
// A trailing ".git" is removed from the name.
func ParseRepositoryURL(raw string) (Repository, error) {
	m := repoURLPattern.FindStringSubmatch(raw)
	if m == nil {
		return Repository{}, fmt.Errorf("%q: %w", raw, ErrInvalidRepositoryURL)
	}
	return Repository{Owner: m[1], Name: strings.TrimSuffix(m[2], ".git")}, nil
}

// Readme is a decoded README file.
type Readme struct {
	Content string
	Path    string
	Size    int
}

// Client is a thin wrapper around the GitHub REST API.
type Client struct {
	baseURL    string
	userAgent  string
	token      string
	httpClient *http.Client
}

// NewClient creates a client for the API at baseURL. An empty token sends
// unauthenticated requests.
func NewClient(baseURL, userAgent, token string) *Client {
	if baseURL == "" {
		baseURL = DefaultAPIURL
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		userAgent:  userAgent,
		token:      token,
		httpClient: http.DefaultClient,
	}
}

type readmeResponse struct {
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
	Path     string `json:"path"`
	Size     int    `json:"size"`
}

// FetchReadme returns the repository README, or nil when the repository has none.
func (c *Client) FetchReadme(ctx context.Context, repo Repository) (*Readme, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/readme", c.baseURL, repo.Owner, repo.Name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", c.userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HostError{StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	var data readmeResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}

	// The API wraps base64 content at 60 columns.
	content, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(data.Content, "\n", ""))
	if err != nil {
		return nil, fmt.Errorf("decoding readme: %w", err)
	}
	return &Readme{Content: string(content), Path: data.Path, Size: data.Size}, nil
}
