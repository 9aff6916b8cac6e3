// Package client talks to the generation backend's REST API.
package client

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

	"golang.org/x/sync/errgroup"

	"media-studio/internal/models"
)

// maxErrorBody bounds how much of a failed response is kept for diagnostics.
const maxErrorBody = 4 << 10

// Client is a thin JSON client for the backend endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tenant     string
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTenant sets the X-Tenant-ID header sent with every request.
func WithTenant(tenant string) Option {
	return func(c *Client) { c.tenant = tenant }
}

// New builds a client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// GenerateRequest is the wire body of POST /video/generate.
type GenerateRequest struct {
	AssetImagePath   string `json:"asset_image_path"`
	UserTemplateText string `json:"user_template_text"`
	IncludeMusic     bool   `json:"include_music"`
}

// GenerateVideo creates a generation job.
func (c *Client) GenerateVideo(ctx context.Context, req GenerateRequest) (models.Job, error) {
	var job models.Job
	err := c.doJSON(ctx, http.MethodPost, "/video/generate", req, &job)
	return job, err
}

// ListJobs returns every job in server order.
func (c *Client) ListJobs(ctx context.Context) ([]models.Job, error) {
	var jobs []models.Job
	if err := c.doJSON(ctx, http.MethodGet, "/video/jobs", nil, &jobs); err != nil {
		return nil, err
	}
	if jobs == nil {
		jobs = []models.Job{}
	}
	return jobs, nil
}

// GetJob returns a single job.
func (c *Client) GetJob(ctx context.Context, id string) (models.Job, error) {
	var job models.Job
	err := c.doJSON(ctx, http.MethodGet, "/video/jobs/"+url.PathEscape(id), nil, &job)
	return job, err
}

// ListTemplates returns the prompt templates.
func (c *Client) ListTemplates(ctx context.Context) ([]models.Template, error) {
	var out []models.Template
	err := c.doJSON(ctx, http.MethodGet, "/templates/", nil, &out)
	return out, err
}

// CreateTemplate stores a new template.
func (c *Client) CreateTemplate(ctx context.Context, t models.Template) (models.Template, error) {
	var out models.Template
	err := c.doJSON(ctx, http.MethodPost, "/templates/", t, &out)
	return out, err
}

// DeleteTemplate removes a template by id.
func (c *Client) DeleteTemplate(ctx context.Context, id int64) error {
	return c.doJSON(ctx, http.MethodDelete, fmt.Sprintf("/templates/%d", id), nil, nil)
}

// ListAssets returns the uploaded source assets.
func (c *Client) ListAssets(ctx context.Context) ([]models.Asset, error) {
	var out []models.Asset
	err := c.doJSON(ctx, http.MethodGet, "/assets/", nil, &out)
	return out, err
}

// UploadAsset sends a file as multipart form field "file".
func (c *Client) UploadAsset(ctx context.Context, filename string, body io.Reader) (models.Asset, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return models.Asset{}, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, body); err != nil {
		return models.Asset{}, fmt.Errorf("copy upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return models.Asset{}, fmt.Errorf("close multipart: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/assets/upload", &buf)
	if err != nil {
		return models.Asset{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	var out models.Asset
	err = c.do(req, &out)
	return out, err
}

// TrainingFile is one image sent to StartTraining.
type TrainingFile struct {
	Name string
	Body io.Reader
}

// TrainingRun acknowledges a training upload.
type TrainingRun struct {
	Status    string   `json:"status"`
	Message   string   `json:"message"`
	FileCount int      `json:"file_count"`
	JobID     string   `json:"job_id"`
	Files     []string `json:"files"`
}

// StartTraining uploads images for a custom style model as multipart fields
// "model_name" and "files".
func (c *Client) StartTraining(ctx context.Context, model string, files []TrainingFile) (TrainingRun, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("model_name", model); err != nil {
		return TrainingRun{}, fmt.Errorf("write model name: %w", err)
	}
	for _, f := range files {
		part, err := mw.CreateFormFile("files", f.Name)
		if err != nil {
			return TrainingRun{}, fmt.Errorf("create form file: %w", err)
		}
		if _, err := io.Copy(part, f.Body); err != nil {
			return TrainingRun{}, fmt.Errorf("copy %s: %w", f.Name, err)
		}
	}
	if err := mw.Close(); err != nil {
		return TrainingRun{}, fmt.Errorf("close multipart: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/training/start", &buf)
	if err != nil {
		return TrainingRun{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	var out TrainingRun
	err = c.do(req, &out)
	return out, err
}

// Catalog is the selectable input for a submission.
type Catalog struct {
	Templates []models.Template
	Assets    []models.Asset
}

// LoadCatalog fetches templates and assets concurrently.
func (c *Client) LoadCatalog(ctx context.Context) (Catalog, error) {
	var cat Catalog
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t, err := c.ListTemplates(gctx)
		cat.Templates = t
		return err
	})
	g.Go(func() error {
		a, err := c.ListAssets(gctx)
		cat.Assets = a
		return err
	})
	if err := g.Wait(); err != nil {
		return Catalog{}, fmt.Errorf("load catalog: %w", err)
	}
	return cat, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.tenant != "" {
		req.Header.Set("X-Tenant-ID", c.tenant)
	}
	return req, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{
			Method:     req.Method,
			Path:       req.URL.Path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(raw)),
		}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", req.Method, req.URL.Path, err)
	}
	return nil
}
