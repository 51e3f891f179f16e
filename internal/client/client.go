package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/MOYARU/smarttest/internal/engine"
	"github.com/MOYARU/smarttest/internal/fileset"
	"github.com/MOYARU/smarttest/internal/logging"
	"github.com/MOYARU/smarttest/internal/report"
	"github.com/MOYARU/smarttest/internal/version"
)

const (
	opUpload   = "upload"
	opScan     = "scan"
	opProjects = "projects"

	uploadField = "files"
)

// ProjectHandle names an uploaded project on the backend.
type ProjectHandle string

type Options struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	Registerer        prometheus.Registerer
	Logger            *slog.Logger
}

type Client struct {
	base    *url.URL
	http    *http.Client
	metrics *engine.MetricsTransport
	logger  *slog.Logger
}

func New(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid server url %q: %w", opts.BaseURL, err)
	}
	if (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, fmt.Errorf("invalid server url %q: want http(s)://host[:port]", opts.BaseURL)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	httpClient, metrics := engine.NewBackendClient(engine.Options{
		Timeout:           opts.Timeout,
		RequestsPerSecond: opts.RequestsPerSecond,
		Origin:            base,
		Registerer:        opts.Registerer,
	})
	return &Client{base: base, http: httpClient, metrics: metrics, logger: logger}, nil
}

func (c *Client) BaseURL() string {
	return c.base.String()
}

// RequestStats reports how many backend requests were made and their
// cumulative latency.
func (c *Client) RequestStats() (int64, time.Duration) {
	return c.metrics.Snapshot()
}

// ScanPayload is the decoded 2xx body of a scan endpoint.
type ScanPayload struct {
	Success         *bool                   `json:"success,omitempty"`
	Message         string                  `json:"message,omitempty"`
	Error           string                  `json:"error,omitempty"`
	Project         string                  `json:"project,omitempty"`
	FilePath        string                  `json:"file_path,omitempty"`
	Metrics         *report.Metrics         `json:"metrics,omitempty"`
	AdvancedMetrics *report.AdvancedMetrics `json:"advanced_metrics,omitempty"`
	Raw             json.RawMessage         `json:"-"`
}

// Outcome converts an accepted payload into a successful ScanOutcome.
func (p *ScanPayload) Outcome(tool report.Tool) report.ScanOutcome {
	if p == nil {
		return report.Succeeded(tool, nil, nil, nil)
	}
	return report.Succeeded(tool, p.Metrics, p.AdvancedMetrics, p.Raw)
}

type ProjectInfo struct {
	Name   string `json:"name"`
	Exists bool   `json:"exists"`
	Path   string `json:"path"`
}

type ProjectList struct {
	Available []string      `json:"available_projects"`
	Projects  []ProjectInfo `json:"projects"`
}

// Upload posts every file of set under the repeated "files" field and
// returns the project name assigned by the backend.
func (c *Client) Upload(ctx context.Context, set fileset.FileSet) (ProjectHandle, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeMultipart(mw, set.Files()))
	}()

	// Closing the read side unblocks the writer if the request ends early.
	defer pr.Close()

	req, err := c.newRequest(ctx, http.MethodPost, "/upload", pr)
	if err != nil {
		return "", networkFailure(opUpload, "", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	c.logger.Debug("uploading files", "count", set.Len(), "bytes", set.TotalSize())
	var body struct {
		Success     *bool  `json:"success"`
		ProjectName string `json:"project_name"`
		Error       string `json:"error"`
	}
	status, err := c.do(req, opUpload, "", &body, nil)
	if err != nil {
		return "", err
	}
	if body.Success != nil && !*body.Success {
		return "", applicationFailure(opUpload, "", status, body.Error)
	}
	name := strings.TrimSpace(body.ProjectName)
	if name == "" {
		return "", &Failure{Op: opUpload, Kind: KindApplication, Status: status, Message: "upload response missing project_name"}
	}
	c.logger.Info("upload complete", "project", name)
	return ProjectHandle(name), nil
}

func writeMultipart(mw *multipart.Writer, files []fileset.File) error {
	for _, f := range files {
		part, err := mw.CreateFormFile(uploadField, f.Name)
		if err != nil {
			return err
		}
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", f.Name, err)
		}
		_, err = io.Copy(part, rc)
		rc.Close()
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", f.Name, err)
		}
	}
	return mw.Close()
}

func (c *Client) ScanCode(ctx context.Context, project ProjectHandle) (*ScanPayload, error) {
	return c.scan(ctx, report.ToolSnykCode, "/scan/code", project)
}

func (c *Client) ScanDeepSource(ctx context.Context, project ProjectHandle) (*ScanPayload, error) {
	return c.scan(ctx, report.ToolDeepSource, "/scan/deepsource", project)
}

// Scan dispatches to the endpoint of tool.
func (c *Client) Scan(ctx context.Context, tool report.Tool, project ProjectHandle) (*ScanPayload, error) {
	switch tool {
	case report.ToolSnykCode:
		return c.ScanCode(ctx, project)
	case report.ToolDeepSource:
		return c.ScanDeepSource(ctx, project)
	}
	return nil, &Failure{Op: opScan, Tool: tool, Kind: KindApplication, Message: fmt.Sprintf("unsupported tool %q", tool)}
}

func (c *Client) scan(ctx context.Context, tool report.Tool, path string, project ProjectHandle) (*ScanPayload, error) {
	reqBody, err := json.Marshal(map[string]string{"project": string(project)})
	if err != nil {
		return nil, networkFailure(opScan, tool, err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(reqBody))
	if err != nil {
		return nil, networkFailure(opScan, tool, err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	var payload ScanPayload
	status, err := c.do(req, opScan, tool, &payload, &payload.Raw)
	if err != nil {
		c.logger.Warn("scan failed", "tool", tool, "project", project, "error", err)
		return nil, err
	}
	if payload.Success != nil && !*payload.Success {
		return nil, applicationFailure(opScan, tool, status, payload.Error)
	}
	c.logger.Info("scan complete", "tool", tool, "project", project, "elapsed", time.Since(start))
	return &payload, nil
}

func (c *Client) ListProjects(ctx context.Context) (*ProjectList, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/projects", nil)
	if err != nil {
		return nil, networkFailure(opProjects, "", err)
	}
	var list ProjectList
	if _, err := c.do(req, opProjects, "", &list, nil); err != nil {
		return nil, err
	}
	return &list, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	u := c.base.JoinPath(path)
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", version.ClientUserAgent())
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// do sends req and decodes a 2xx JSON body into out. raw, when non-nil,
// receives the undecoded body.
func (c *Client) do(req *http.Request, op string, tool report.Tool, out any, raw *json.RawMessage) (int, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, networkFailure(op, tool, err)
	}
	defer resp.Body.Close()

	body, err := engine.DecodeResponseBody(resp)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// An unreadable error body still yields the status line.
		if err != nil {
			c.logger.Debug("unreadable error body", "op", op, "status", resp.StatusCode, "error", err)
			body = nil
		}
		return resp.StatusCode, httpFailure(op, tool, resp, body)
	}
	if err != nil {
		return resp.StatusCode, networkFailure(op, tool, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return resp.StatusCode, decodeFailure(op, tool, resp.StatusCode, err)
	}
	if raw != nil {
		*raw = append(json.RawMessage(nil), body...)
	}
	return resp.StatusCode, nil
}
