// Package server exposes the download pipeline over HTTP: catalog probing,
// job submission, progress polling, artifact serving, live updates over
// websocket, and Prometheus metrics.
package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/grabtube/grabtube/internal/catalog"
	"github.com/grabtube/grabtube/internal/download"
	"github.com/grabtube/grabtube/internal/extract"
	"github.com/grabtube/grabtube/internal/metrics"
	"github.com/grabtube/grabtube/internal/model"
	"github.com/grabtube/grabtube/internal/store"
)

// extractTimeout bounds a metadata probe triggered by an HTTP request.
const extractTimeout = 2 * time.Minute

// MetadataSource is the slice of extract.Chain the server needs.
type MetadataSource interface {
	Extract(ctx context.Context, url string) (*extract.VideoMetadata, error)
}

// Submitter accepts download jobs.
type Submitter interface {
	Submit(req download.Request) (model.Snapshot, error)
}

// Server wires HTTP handlers to the pipeline components.
type Server struct {
	source    MetadataSource
	engine    Submitter
	tracker   *store.Tracker
	hub       *Hub
	outputDir string
	origins   string

	// captionFetch is swappable for tests.
	captionFetch func(ctx context.Context, track extract.CaptionTrack) (string, error)
}

func New(source MetadataSource, engine Submitter, tracker *store.Tracker, hub *Hub, outputDir, allowedOrigins string) *Server {
	return &Server{
		source:       source,
		engine:       engine,
		tracker:      tracker,
		hub:          hub,
		outputDir:    outputDir,
		origins:      allowedOrigins,
		captionFetch: extract.FetchCaptionText,
	}
}

// Router builds the gin engine with all routes and middleware attached.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.metricsMiddleware())
	r.Use(cors.New(s.corsConfig()))

	api := r.Group("/api")
	{
		api.POST("/video/info", s.handleVideoInfo)
		api.POST("/download", s.handleDownload)
		api.GET("/download/:id/progress", s.handleProgress)
		api.GET("/download_file/:filename", s.handleDownloadFile)
	}

	r.GET("/ws", s.hub.HandleUpgrade)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return r
}

func (s *Server) corsConfig() cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type"},
		ExposeHeaders: []string{"Content-Length", "Content-Disposition"},
		MaxAge:        12 * time.Hour,
	}
	if s.origins == "" || s.origins == "*" {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = strings.Split(s.origins, ",")
		cfg.AllowCredentials = true
	}
	return cfg
}

func (s *Server) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(started).Seconds())
	}
}

type infoRequest struct {
	URL string `json:"url"`
}

// handleVideoInfo probes a URL and returns the classified format catalog. An
// empty catalog is still a successful response; only a failed probe is an
// error.
func (s *Server) handleVideoInfo(c *gin.Context) {
	var req infoRequest
	if err := c.BindJSON(&req); err != nil || req.URL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "URL is required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), extractTimeout)
	defer cancel()

	meta, err := s.source.Extract(ctx, req.URL)
	if err != nil {
		// A video that resolves but exposes nothing downloadable is a
		// different condition from a failed probe.
		if errors.Is(err, extract.ErrNoFormats) {
			c.JSON(http.StatusOK, gin.H{"error": "no downloadable formats"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not retrieve video information"})
		return
	}
	metrics.CatalogRequestsTotal.Inc()

	cat := catalog.Classify(meta.Streams)

	c.JSON(http.StatusOK, gin.H{
		"title":          meta.Title,
		"thumbnail":      meta.Thumbnail,
		"uploader":       meta.Uploader,
		"duration":       meta.Duration,
		"view_count":     meta.ViewCount,
		"video_formats":  catalog.InteractiveVideoFormats(cat),
		"audio_formats":  cat.AudioOptions,
		"preset_formats": cat.Presets,
		"has_captions":   len(meta.Captions) > 0,
		"transcript":     download.TranscriptText(ctx, meta.Captions, s.captionFetch),
	})
}

type downloadRequest struct {
	URL           string `json:"url"`
	DownloadType  string `json:"download_type"`
	VideoFormatID string `json:"video_format_id"`
	AudioFormatID string `json:"audio_format_id"`
	Preset        string `json:"preset"`
	OutputExt     string `json:"output_ext"`
}

func (s *Server) handleDownload(c *gin.Context) {
	var req downloadRequest
	if err := c.BindJSON(&req); err != nil || req.URL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "URL is required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), extractTimeout)
	defer cancel()

	meta, err := s.source.Extract(ctx, req.URL)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not retrieve video information"})
		return
	}

	engineReq, err := resolveRequest(meta, req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	snapshot, err := s.engine.Submit(engineReq)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// handleProgress returns the polling view of a job. Unknown IDs are reported
// as not started rather than as an error, so clients can poll before the job
// registration round-trip completes.
func (s *Server) handleProgress(c *gin.Context) {
	snapshot, ok := s.tracker.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusOK, gin.H{"status": "not_started", "progress": 0})
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// handleDownloadFile serves a finished artifact. The filename is flattened to
// its base name so the handler can never read outside the output directory.
func (s *Server) handleDownloadFile(c *gin.Context) {
	filename := filepath.Base(c.Param("filename"))
	if filename == "." || filename == "/" || filename == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid filename"})
		return
	}

	path := filepath.Join(s.outputDir, filename)
	if _, err := os.Stat(path); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
		return
	}

	c.FileAttachment(path, filename)
}
