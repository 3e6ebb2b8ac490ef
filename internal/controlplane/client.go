package controlplane

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/getjack-org/jack-sub003/internal/manifest"
)

const defaultTimeout = 60 * time.Second

// Client is the HTTP implementation of the control-plane API.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Token      string
	UserAgent  string
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithTimeout sets the HTTP timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) { c.HTTPClient.Timeout = timeout }
}

// WithToken sets the bearer token sent with every request.
func WithToken(token string) ClientOption {
	return func(c *Client) { c.Token = token }
}

// NewClient creates a control-plane client.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: defaultTimeout},
		UserAgent:  "jack-deploy/1.0",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError represents a control-plane error response.
type APIError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"message"`
	Code       string `json:"code"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("control plane returned status %d", e.StatusCode)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.UserAgent)
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	return req, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body interface{}, target interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := c.newRequest(ctx, method, path, bodyReader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	return decodeBody(resp, target)
}

func decodeBody(resp *http.Response, target interface{}) error {
	if resp.StatusCode >= 400 {
		return parseErrorBody(resp)
	}
	if target == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(target)
}

func parseErrorBody(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("failed to read error response: %v", err),
		}
	}

	var apiErr APIError
	if err := json.Unmarshal(body, &apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	apiErr.StatusCode = resp.StatusCode
	return &apiErr
}

// FetchSourceTree lists the stored source files of a project.
func (c *Client) FetchSourceTree(ctx context.Context, projectID string) ([]TreeEntry, error) {
	var result struct {
		Files []TreeEntry `json:"files"`
	}
	path := "/v1/projects/" + url.PathEscape(projectID) + "/source"
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return result.Files, nil
}

// FetchSourceFile returns the stored content of one project file.
func (c *Client) FetchSourceFile(ctx context.Context, projectID, filePath string) (string, error) {
	var result struct {
		Content string `json:"content"`
	}
	path := "/v1/projects/" + url.PathEscape(projectID) + "/source/file?path=" + url.QueryEscape(filePath)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &result); err != nil {
		return "", err
	}
	return result.Content, nil
}

// FetchBindings lists the resources provisioned for a project.
func (c *Client) FetchBindings(ctx context.Context, projectID string) ([]manifest.Resource, error) {
	var result struct {
		Resources []manifest.Resource `json:"resources"`
	}
	path := "/v1/projects/" + url.PathEscape(projectID) + "/resources"
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return result.Resources, nil
}

// CreateProject provisions a new project.
func (c *Client) CreateProject(ctx context.Context, name string) (*Project, error) {
	var project Project
	body := map[string]string{"name": name}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/projects", body, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

// ApplyTemplate provisions a project from a named starter template.
func (c *Client) ApplyTemplate(ctx context.Context, templateName, projectName string) (*TemplateResult, error) {
	var result TemplateResult
	body := map[string]string{"project_name": projectName}
	path := "/v1/templates/" + url.PathEscape(templateName) + "/apply"
	if err := c.doJSON(ctx, http.MethodPost, path, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UploadDeployment uploads the manifest and archives as one multipart
// request.
func (c *Client) UploadDeployment(ctx context.Context, projectID string, up Upload) (*Deployment, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	manifestJSON, err := json.Marshal(up.Manifest)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := w.WriteField("manifest", string(manifestJSON)); err != nil {
		return nil, fmt.Errorf("failed to write manifest field: %w", err)
	}
	if up.Message != "" {
		if err := w.WriteField("message", up.Message); err != nil {
			return nil, fmt.Errorf("failed to write message field: %w", err)
		}
	}

	part, err := w.CreateFormFile("bundle", "bundle.zip")
	if err != nil {
		return nil, fmt.Errorf("failed to create bundle part: %w", err)
	}
	if _, err := part.Write(up.BundleArchive); err != nil {
		return nil, fmt.Errorf("failed to write bundle archive: %w", err)
	}

	if len(up.SourceArchive) > 0 {
		part, err = w.CreateFormFile("source", "source.zip")
		if err != nil {
			return nil, fmt.Errorf("failed to create source part: %w", err)
		}
		if _, err := part.Write(up.SourceArchive); err != nil {
			return nil, fmt.Errorf("failed to write source archive: %w", err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize upload body: %w", err)
	}

	path := "/v1/projects/" + url.PathEscape(projectID) + "/deployments"
	req, err := c.newRequest(ctx, http.MethodPost, path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var deployment Deployment
	if err := decodeBody(resp, &deployment); err != nil {
		return nil, err
	}
	return &deployment, nil
}
