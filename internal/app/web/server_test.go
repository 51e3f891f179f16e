package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/MOYARU/smarttest/internal/client"
	"github.com/MOYARU/smarttest/internal/config"
	"github.com/MOYARU/smarttest/internal/fileset"
	"github.com/MOYARU/smarttest/internal/report"
)

type stubTransport struct {
	mu        sync.Mutex
	calls     []string
	uploaded  []string
	uploadErr error
	block     chan struct{}
}

func (s *stubTransport) record(call string) {
	s.mu.Lock()
	s.calls = append(s.calls, call)
	s.mu.Unlock()
}

func (s *stubTransport) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *stubTransport) Upload(ctx context.Context, files fileset.FileSet) (client.ProjectHandle, error) {
	s.record("upload")
	s.mu.Lock()
	for _, e := range files.Entries() {
		s.uploaded = append(s.uploaded, e.Name)
	}
	s.mu.Unlock()
	if s.block != nil {
		<-s.block
	}
	if s.uploadErr != nil {
		return "", s.uploadErr
	}
	return "proj1", nil
}

func (s *stubTransport) ScanCode(ctx context.Context, project client.ProjectHandle) (*client.ScanPayload, error) {
	s.record("snyk")
	return &client.ScanPayload{Metrics: &report.Metrics{Critical: 1, TotalIssues: 4, ScanDuration: 2}}, nil
}

func (s *stubTransport) ScanDeepSource(ctx context.Context, project client.ProjectHandle) (*client.ScanPayload, error) {
	s.record("deepsource")
	return nil, &client.Failure{Op: "scan", Tool: report.ToolDeepSource, Kind: client.KindApplication, Message: "tool unavailable"}
}

type stubProjects struct {
	list *client.ProjectList
	err  error
}

func (s stubProjects) ListProjects(ctx context.Context) (*client.ProjectList, error) {
	return s.list, s.err
}

func newTestServer(t *testing.T, tr *stubTransport, projects ProjectLister) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := config.Default()
	cfg.MaxFiles = 3
	return NewServerWithDeps(cfg, Deps{Transport: tr, Projects: projects})
}

func multipartBody(t *testing.T, names ...string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, name := range names {
		part, err := mw.CreateFormFile(uploadField, name)
		require.NoError(t, err)
		_, err = part.Write([]byte("print('" + name + "')"))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func do(s *Server, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func scanRequest(t *testing.T, accept string, names ...string) *http.Request {
	t.Helper()
	body, contentType := multipartBody(t, names...)
	req := httptest.NewRequest(http.MethodPost, "/scan", body)
	req.Header.Set("Content-Type", contentType)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	return req
}

func postScan(t *testing.T, s *Server, accept string, names ...string) *httptest.ResponseRecorder {
	t.Helper()
	return do(s, scanRequest(t, accept, names...))
}

func elementIDs(t *testing.T, body string) map[string]string {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(body))
	require.NoError(t, err)
	ids := map[string]string{}
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			for _, a := range n.Attr {
				if a.Key == "id" {
					var text strings.Builder
					for c := n.FirstChild; c != nil; c = c.NextSibling {
						if c.Type == html.TextNode {
							text.WriteString(c.Data)
						}
					}
					ids[a.Val] = strings.TrimSpace(text.String())
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return ids
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, &stubTransport{}, nil)
	w := do(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
	assert.True(t, strings.HasPrefix(w.Header().Get("Server"), "smarttest-dashboard/"))
}

func TestIndexIdle(t *testing.T) {
	s := newTestServer(t, &stubTransport{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := do(s, req)
	require.Equal(t, http.StatusOK, w.Code)

	ids := elementIDs(t, w.Body.String())
	assert.Contains(t, ids, "idle")
	assert.Contains(t, ids, "upload")
	assert.Equal(t, "idle", ids["state"])
	assert.NotContains(t, ids, "tool-snyk")
}

func TestScanRunsFullFlow(t *testing.T) {
	tr := &stubTransport{}
	s := newTestServer(t, tr, nil)

	w := postScan(t, s, "application/json", "app.py", "util.py")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []string{"upload", "snyk", "deepsource"}, tr.Calls())
	assert.Equal(t, []string{"app.py", "util.py"}, tr.uploaded)

	var session struct {
		State   string   `json:"state"`
		Project string   `json:"project"`
		Steps   []string `json:"steps"`
		View    struct {
			Degraded bool `json:"degraded"`
			Tools    []struct {
				Total int    `json:"total_issues"`
				Error string `json:"error"`
			} `json:"tools"`
		} `json:"view"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &session))
	assert.Equal(t, "done", session.State)
	assert.Equal(t, "proj1", session.Project)
	assert.Equal(t, []string{"completed", "completed", "completed", "completed"}, session.Steps)
	assert.True(t, session.View.Degraded)
	require.Len(t, session.View.Tools, 2)
	assert.Equal(t, 4, session.View.Tools[0].Total)
	assert.Equal(t, "tool unavailable", session.View.Tools[1].Error)

	current := do(s, httptest.NewRequest(http.MethodGet, "/runs/current", nil))
	assert.Equal(t, http.StatusOK, current.Code)
	assert.Contains(t, current.Body.String(), `"state":"done"`)

	page := do(s, httptest.NewRequest(http.MethodGet, "/", nil))
	ids := elementIDs(t, page.Body.String())
	assert.Contains(t, ids, "tool-snyk")
	assert.Contains(t, ids, "tool-deepsource")
	assert.Equal(t, "done", ids["state"])
	assert.NotContains(t, ids, "idle")
}

func TestDetailEndpoint(t *testing.T) {
	s := newTestServer(t, &stubTransport{}, nil)

	w := do(s, httptest.NewRequest(http.MethodGet, "/runs/current/details/snyk", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	require.Equal(t, http.StatusOK, postScan(t, s, "", "app.py").Code)

	w = do(s, httptest.NewRequest(http.MethodGet, "/runs/current/details/snyk", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var tv report.ToolView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tv))
	assert.Equal(t, report.ToolSnykCode, tv.Tool)
	assert.Equal(t, "2.00s", tv.Duration)
	assert.Equal(t, "n/a", tv.Detail.CodeQualityScore)

	req := httptest.NewRequest(http.MethodGet, "/runs/current/details/deepsource", nil)
	req.Header.Set("Accept", "text/html")
	w = do(s, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, elementIDs(t, w.Body.String()), "detail-deepsource")

	w = do(s, httptest.NewRequest(http.MethodGet, "/runs/current/details/sonar", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "UNKNOWN_TOOL")
}

func TestScanRejectsEmptyAndOversizedInput(t *testing.T) {
	tr := &stubTransport{}
	s := newTestServer(t, tr, nil)

	w := postScan(t, s, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "EMPTY_INPUT")

	w = postScan(t, s, "", "a.py", "b.py", "c.py", "d.py")
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/scan", strings.NewReader("not a form"))
	assert.Equal(t, http.StatusBadRequest, do(s, req).Code)

	assert.Empty(t, tr.Calls())
}

func TestScanAppliesFileRules(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tr := &stubTransport{}
	cfg := config.Default()
	cfg.MaxFileBytes = 16
	s := NewServerWithDeps(cfg, Deps{Transport: tr})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, content := range map[string]string{
		"app.py":   "print(1)",
		"big.py":   strings.Repeat("x", 64),
		"logo.png": "png",
	} {
		part, err := mw.CreateFormFile(uploadField, name)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/scan", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	w := do(s, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []string{"app.py"}, tr.uploaded)

	tr.uploaded = nil
	w = postScan(t, s, "", "logo.png")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "EMPTY_INPUT")
	assert.Empty(t, tr.uploaded)
}

func TestUploadFailureReturnsBadGateway(t *testing.T) {
	tr := &stubTransport{uploadErr: &client.Failure{Op: "upload", Kind: client.KindHTTP, Status: 500, Message: "HTTP 500: Internal Server Error"}}
	s := newTestServer(t, tr, nil)

	w := postScan(t, s, "application/json", "app.py")
	require.Equal(t, http.StatusBadGateway, w.Code)
	var resp struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Run     struct {
			State string `json:"state"`
			Error string `json:"error"`
		} `json:"run"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "UPLOAD_FAILED", resp.Code)
	assert.Equal(t, "HTTP 500: Internal Server Error", resp.Message)
	assert.Equal(t, "errored", resp.Run.State)
	assert.Equal(t, []string{"upload"}, tr.Calls())

	page := do(s, httptest.NewRequest(http.MethodGet, "/", nil))
	ids := elementIDs(t, page.Body.String())
	assert.Equal(t, "HTTP 500: Internal Server Error", ids["run-error"])
}

func TestBrowserFormPostRedirects(t *testing.T) {
	s := newTestServer(t, &stubTransport{}, nil)
	w := postScan(t, s, "text/html,application/xhtml+xml,*/*;q=0.8", "app.py")
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
}

func TestOverlappingScanConflicts(t *testing.T) {
	tr := &stubTransport{block: make(chan struct{})}
	s := newTestServer(t, tr, nil)

	req := scanRequest(t, "", "app.py")
	first := make(chan int, 1)
	go func() {
		first <- do(s, req).Code
	}()
	require.Eventually(t, s.orch.Running, time.Second, 5*time.Millisecond)

	w := postScan(t, s, "", "other.py")
	assert.Equal(t, http.StatusConflict, w.Code)
	w = do(s, httptest.NewRequest(http.MethodPost, "/runs/reset", nil))
	assert.Equal(t, http.StatusConflict, w.Code)

	page := do(s, httptest.NewRequest(http.MethodGet, "/", nil))
	ids := elementIDs(t, page.Body.String())
	assert.Equal(t, "uploading", ids["state"])

	close(tr.block)
	assert.Equal(t, http.StatusOK, <-first)
	assert.Equal(t, []string{"upload", "snyk", "deepsource"}, tr.Calls())
}

func TestResetClearsSession(t *testing.T) {
	s := newTestServer(t, &stubTransport{}, nil)
	require.Equal(t, http.StatusOK, postScan(t, s, "", "app.py").Code)

	w := do(s, httptest.NewRequest(http.MethodPost, "/runs/reset", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	current := do(s, httptest.NewRequest(http.MethodGet, "/runs/current", nil))
	assert.Contains(t, current.Body.String(), `"state":"idle"`)
	assert.NotContains(t, current.Body.String(), `"view"`)
}

func TestProjectsEndpoint(t *testing.T) {
	list := &client.ProjectList{Available: []string{"proj1"}, Projects: []client.ProjectInfo{{Name: "proj1", Exists: true, Path: "/data/proj1"}}}
	s := newTestServer(t, &stubTransport{}, stubProjects{list: list})
	w := do(s, httptest.NewRequest(http.MethodGet, "/projects", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"available_projects":["proj1"]`)

	s = newTestServer(t, &stubTransport{}, stubProjects{err: errors.New("dial tcp: connection refused")})
	w = do(s, httptest.NewRequest(http.MethodGet, "/projects", nil))
	assert.Equal(t, http.StatusBadGateway, w.Code)

	s = newTestServer(t, &stubTransport{}, nil)
	assert.Equal(t, http.StatusNotImplemented, do(s, httptest.NewRequest(http.MethodGet, "/projects", nil)).Code)
}

func TestMetricsEndpointCountsRuns(t *testing.T) {
	s := newTestServer(t, &stubTransport{}, nil)
	require.Equal(t, http.StatusOK, postScan(t, s, "", "app.py").Code)

	w := do(s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `smarttest_runs_total{result="degraded"} 1`)
	assert.Contains(t, w.Body.String(), `smarttest_step_transitions_total{status="completed",step="Uploading files"} 1`)
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t, &stubTransport{}, nil)
	w := do(s, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "NOT_FOUND")
}
