// Package github is the release-host collaborator: it creates release
// entries, uploads bundle artifacts, and deletes releases during rollback.
// Only the three operations the engine needs are exposed; everything else
// about the hosting API stays out of the core.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/freighter-dev/freighter/internal/errors"
)

// Token environment variables, first non-empty wins.
const (
	EnvToken    = "GITHUB_TOKEN"
	EnvTokenAlt = "GH_TOKEN"
)

// Token returns the configured release-host token, or empty.
func Token() string {
	if t := os.Getenv(EnvToken); t != "" {
		return t
	}
	return os.Getenv(EnvTokenAlt)
}

// Host is the release-host capability consumed by the orchestrator and
// the rollback engine.
type Host interface {
	CreateRelease(ctx context.Context, tag, name, notes string) (int64, error)
	UploadArtifact(ctx context.Context, releaseID int64, path string) error
	DeleteRelease(ctx context.Context, releaseID int64) error
}

// Client talks to the GitHub releases REST API.
type Client struct {
	apiBase    string
	uploadBase string
	owner      string
	repo       string
	token      string
	httpClient *http.Client
}

// NewClient creates a Client for the given repository using the token from
// the environment.
func NewClient(owner, repo string) *Client {
	return &Client{
		apiBase:    "https://api.github.com",
		uploadBase: "https://uploads.github.com",
		owner:      owner,
		repo:       repo,
		token:      Token(),
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
}

// NewClientWithBase creates a Client pointed at explicit API endpoints.
// This is primarily useful for testing against httptest servers.
func NewClientWithBase(apiBase, uploadBase, owner, repo, token string) *Client {
	return &Client{
		apiBase:    apiBase,
		uploadBase: uploadBase,
		owner:      owner,
		repo:       repo,
		token:      token,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
}

type releaseResponse struct {
	ID int64 `json:"id"`
}

// CreateRelease creates a release for the given tag and returns its ID.
func (c *Client) CreateRelease(ctx context.Context, tag, name, notes string) (int64, error) {
	body, err := json.Marshal(map[string]any{
		"tag_name": tag,
		"name":     name,
		"body":     notes,
		"draft":    false,
	})
	if err != nil {
		return 0, errors.NewReleaseHostError("failed to encode release request", err)
	}

	url := fmt.Sprintf("%s/repos/%s/%s/releases", c.apiBase, c.owner, c.repo)
	respBody, status, err := c.do(ctx, http.MethodPost, url, "application/json", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	if status != http.StatusCreated {
		return 0, classifyStatus("failed to create release", status, url)
	}

	var rel releaseResponse
	if err := json.Unmarshal(respBody, &rel); err != nil {
		return 0, errors.NewReleaseHostError("failed to decode release response", err).WithURL(url)
	}
	return rel.ID, nil
}

// UploadArtifact uploads the file at path as a release asset.
func (c *Client) UploadArtifact(ctx context.Context, releaseID int64, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.NewReleaseHostError("failed to open artifact", err)
	}
	defer f.Close()

	url := fmt.Sprintf("%s/repos/%s/%s/releases/%d/assets?name=%s",
		c.uploadBase, c.owner, c.repo, releaseID, filepath.Base(path))
	_, status, err := c.do(ctx, http.MethodPost, url, "application/octet-stream", f)
	if err != nil {
		return err
	}
	if status != http.StatusCreated {
		return classifyStatus("failed to upload artifact", status, url)
	}
	return nil
}

// DeleteRelease deletes a release by ID. A 404 is treated as success:
// rollback must be idempotent.
func (c *Client) DeleteRelease(ctx context.Context, releaseID int64) error {
	url := fmt.Sprintf("%s/repos/%s/%s/releases/%d", c.apiBase, c.owner, c.repo, releaseID)
	_, status, err := c.do(ctx, http.MethodDelete, url, "", nil)
	if err != nil {
		return err
	}
	if status != http.StatusNoContent && status != http.StatusNotFound {
		return classifyStatus("failed to delete release", status, url)
	}
	return nil
}

// do performs a request with auth headers and maps transport failures to
// the transient error taxonomy.
func (c *Client) do(ctx context.Context, method, url, contentType string, body io.Reader) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, 0, errors.NewReleaseHostError("failed to build request", err).WithURL(url)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		cause := errors.ErrTransientNetwork
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			cause = errors.ErrTimeout
		}
		return nil, 0, errors.NewReleaseHostError("request failed",
			errors.Join(cause, err)).WithURL(url).WithRetryable(true)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, errors.NewReleaseHostError("failed to read response",
			errors.Join(errors.ErrTransientNetwork, err)).WithURL(url).WithRetryable(true)
	}
	return respBody, resp.StatusCode, nil
}

// classifyStatus maps an unexpected HTTP status into the error taxonomy:
// 429 is rate limiting, 5xx is transient, anything else is fatal.
func classifyStatus(message string, status int, url string) error {
	switch {
	case status == http.StatusTooManyRequests:
		return errors.NewReleaseHostError(message, errors.ErrRateLimited).
			WithStatusCode(status).WithURL(url).WithRetryable(true)
	case status >= 500:
		return errors.NewReleaseHostError(message, errors.ErrTransientNetwork).
			WithStatusCode(status).WithURL(url).WithRetryable(true)
	default:
		return errors.NewReleaseHostError(message, nil).
			WithStatusCode(status).WithURL(url)
	}
}
