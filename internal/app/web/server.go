package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MOYARU/smarttest/internal/app/scan"
	"github.com/MOYARU/smarttest/internal/client"
	"github.com/MOYARU/smarttest/internal/config"
	"github.com/MOYARU/smarttest/internal/fileset"
	"github.com/MOYARU/smarttest/internal/logging"
	msges "github.com/MOYARU/smarttest/internal/messages"
	"github.com/MOYARU/smarttest/internal/report"
	"github.com/MOYARU/smarttest/internal/version"
)

const uploadField = "files"

// ProjectLister is the part of the backend client behind GET /projects.
type ProjectLister interface {
	ListProjects(ctx context.Context) (*client.ProjectList, error)
}

// Server is the local dashboard: one orchestrator shared by every
// request, so at most one run is in flight across all browser tabs.
type Server struct {
	cfg      config.Config
	r        *gin.Engine
	orch     *scan.Orchestrator
	projects ProjectLister
	gatherer prometheus.Gatherer
	logger   *slog.Logger
	server   string
	fileOpts fileset.Options
}

type Deps struct {
	Transport scan.Transport
	Projects  ProjectLister
	Registry  *prometheus.Registry
	Logger    *slog.Logger
}

type errorResponse struct {
	Code    string        `json:"code"`
	Message string        `json:"message"`
	Run     *scan.Session `json:"run,omitempty"`
}

// New builds a dashboard talking to the backend in cfg.
func New(cfg config.Config, logger *slog.Logger) (*Server, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	cl, err := client.New(client.Options{
		BaseURL:           cfg.ServerURL,
		Timeout:           cfg.Timeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Registerer:        reg,
		Logger:            logger,
	})
	if err != nil {
		return nil, err
	}
	return NewServerWithDeps(cfg, Deps{Transport: cl, Projects: cl, Registry: reg, Logger: logger}), nil
}

func NewServerWithDeps(cfg config.Config, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = logging.Nop()
	}
	if deps.Registry == nil {
		deps.Registry = prometheus.NewRegistry()
	}
	logger := deps.Logger.With("component", "dashboard")
	sink := NewRunSink(deps.Registry, logger)

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger), serverHeader())
	r.MaxMultipartMemory = 32 << 20
	r.SetHTMLTemplate(pageTemplates())

	s := &Server{
		cfg:      cfg,
		r:        r,
		orch:     scan.NewOrchestrator(deps.Transport, sink, logger),
		projects: deps.Projects,
		gatherer: deps.Registry,
		logger:   logger,
		server:   report.SanitizeURL(cfg.ServerURL),
		fileOpts: fileset.Options{
			AllowedExtensions: cfg.AllowedExtensions,
			BlockedDirs:       cfg.BlockedDirs,
			MaxFiles:          cfg.MaxFiles,
			MaxFileBytes:      cfg.MaxFileBytes,
		},
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": version.Value, "running": s.orch.Running()})
	})
	s.r.GET("/", s.handleIndex)
	s.r.POST("/scan", s.handleScan)
	s.r.GET("/runs/current", s.handleCurrent)
	s.r.GET("/runs/current/details/:tool", s.handleDetail)
	s.r.POST("/runs/reset", s.handleReset)
	s.r.GET("/projects", s.handleProjects)
	s.r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	s.r.NoRoute(func(c *gin.Context) {
		writeErrorCode(c, http.StatusNotFound, "NOT_FOUND", "route not found")
	})
}

func (s *Server) Handler() http.Handler {
	return s.r
}

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("dashboard listening", "addr", addr, "backend", s.server)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleIndex(c *gin.Context) {
	c.HTML(http.StatusOK, "dashboard", newDashboardData(s.server, s.orch.Session(), s.orch.Running()))
}

// handleScan runs one full orchestration inside the request. Other tabs
// follow progress through the index page or /runs/current.
func (s *Server) handleScan(c *gin.Context) {
	if s.orch.Running() {
		writeErrorCode(c, http.StatusConflict, "RUN_IN_PROGRESS", msges.GetUIMessage("RunInProgress"))
		return
	}
	form, err := c.MultipartForm()
	if err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_FORM", "expected a multipart form with one or more files")
		return
	}
	set, err := fileset.FromMultipart(form, uploadField, s.fileOpts)
	if err != nil {
		writeErrorCode(c, http.StatusRequestEntityTooLarge, "TOO_MANY_FILES", err.Error())
		return
	}
	for _, sk := range set.Skipped() {
		s.logger.Info("upload file skipped", "file", sk.Name, "reason", sk.Reason)
	}

	// A closed browser tab must not abort the backend scans.
	ctx := context.WithoutCancel(c.Request.Context())
	session, err := s.orch.Start(ctx, set)

	var uploadErr *scan.UploadError
	switch {
	case errors.Is(err, scan.ErrEmptyInput):
		writeErrorCode(c, http.StatusBadRequest, "EMPTY_INPUT", msges.GetUIMessage("NoFiles"))
		return
	case errors.Is(err, scan.ErrRunAlreadyInProgress):
		writeErrorCode(c, http.StatusConflict, "RUN_IN_PROGRESS", msges.GetUIMessage("RunInProgress"))
		return
	case errors.As(err, &uploadErr):
		if wantsHTML(c) {
			c.Redirect(http.StatusSeeOther, "/")
			return
		}
		c.JSON(http.StatusBadGateway, errorResponse{Code: "UPLOAD_FAILED", Message: uploadErr.Message, Run: &session})
		return
	case err != nil:
		writeErrorCode(c, http.StatusInternalServerError, "INTERNAL", err.Error())
		return
	}

	if wantsHTML(c) {
		c.Redirect(http.StatusSeeOther, "/")
		return
	}
	c.JSON(http.StatusOK, session)
}

func (s *Server) handleCurrent(c *gin.Context) {
	c.JSON(http.StatusOK, s.orch.Session())
}

func (s *Server) handleDetail(c *gin.Context) {
	tool, ok := report.ParseTool(c.Param("tool"))
	if !ok {
		writeErrorCode(c, http.StatusNotFound, "UNKNOWN_TOOL", "unknown tool: "+c.Param("tool"))
		return
	}
	session := s.orch.Session()
	if session.View == nil {
		writeErrorCode(c, http.StatusNotFound, "NO_RESULTS", "no results yet")
		return
	}
	for _, tv := range session.View.Tools {
		if tv.Tool != tool {
			continue
		}
		if wantsHTML(c) {
			c.HTML(http.StatusOK, "detail", detailData{Title: msges.GetUIMessage("DashboardTitle"), Tool: tv})
			return
		}
		c.JSON(http.StatusOK, tv)
		return
	}
	writeErrorCode(c, http.StatusNotFound, "NO_RESULTS", "no results for "+tool.Label())
}

func (s *Server) handleReset(c *gin.Context) {
	if err := s.orch.Reset(); err != nil {
		writeErrorCode(c, http.StatusConflict, "RUN_IN_PROGRESS", msges.GetUIMessage("RunInProgress"))
		return
	}
	if wantsHTML(c) {
		c.Redirect(http.StatusSeeOther, "/")
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleProjects(c *gin.Context) {
	if s.projects == nil {
		writeErrorCode(c, http.StatusNotImplemented, "UNAVAILABLE", "project listing is not configured")
		return
	}
	list, err := s.projects.ListProjects(c.Request.Context())
	if err != nil {
		writeErrorCode(c, http.StatusBadGateway, "BACKEND_ERROR", report.SanitizeText(err.Error()))
		return
	}
	c.JSON(http.StatusOK, list)
}

func wantsHTML(c *gin.Context) bool {
	return c.NegotiateFormat(gin.MIMEJSON, gin.MIMEHTML) == gin.MIMEHTML
}

func writeErrorCode(c *gin.Context, status int, code, message string) {
	c.JSON(status, errorResponse{Code: code, Message: message})
}

func serverHeader() gin.HandlerFunc {
	ua := version.DashboardUserAgent()
	return func(c *gin.Context) {
		c.Header("Server", ua)
		c.Next()
	}
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}
