package handler

import (
	"bytes"
	"errors"
	"html/template"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Dmitryqr/defect-detection-website/internal/config"
	"github.com/Dmitryqr/defect-detection-website/internal/domain"
	"github.com/Dmitryqr/defect-detection-website/internal/results"
	"github.com/Dmitryqr/defect-detection-website/internal/service"
	"github.com/Dmitryqr/defect-detection-website/internal/simulation"
	"github.com/Dmitryqr/defect-detection-website/internal/upload"
)

type Handler struct {
	service   service.AnalysisService
	cfg       *config.Config
	validator *upload.Validator
	upgrader  websocket.Upgrader
	log       *zap.Logger
}

func NewHandler(service service.AnalysisService, cfg *config.Config, log *zap.Logger) *Handler {
	return &Handler{
		service:   service,
		cfg:       cfg,
		validator: upload.NewValidator(cfg.App.AllowedFormats, cfg.App.MaxUploadSize),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		log: log,
	}
}

func (h *Handler) GetUI(c *gin.Context) {
	result, err := results.DemoResult()
	if err != nil {
		h.log.Error("Failed to load demo result", zap.Error(err))
		c.String(http.StatusInternalServerError, "Failed to load page")
		return
	}

	c.HTML(http.StatusOK, "index.html", gin.H{
		"Result":  result,
		"Formats": h.validator.Formats(),
		"MaxSize": upload.FormatFileSize(h.validator.MaxSize()),
	})
}

// GetUpload opens a fresh upload page; a reload discards the selection.
func (h *Handler) GetUpload(c *gin.Context) {
	h.service.OpenPage(sessionID(c))

	c.HTML(http.StatusOK, "upload.html", gin.H{
		"DemoMode": h.cfg.App.DemoMode,
		"Formats":  h.validator.Formats(),
		"MaxSize":  upload.FormatFileSize(h.validator.MaxSize()),
		"Accept":   strings.Join(h.cfg.App.AllowedFormats, ","),
	})
}

func (h *Handler) GetResults(c *gin.Context) {
	view, err := h.service.Results(c.Request.Context(), sessionID(c))
	if err != nil {
		h.log.Error("Failed to render results", zap.Error(err))
		c.String(http.StatusInternalServerError, "Failed to load results")
		return
	}

	c.HTML(http.StatusOK, "results.html", gin.H{
		"View": view,
		// data: URIs written by the analysis and the configured fallback URL
		"ImageSrc": template.URL(view.ImageSrc),
	})
}

func (h *Handler) GetChart(c *gin.Context) {
	slices, err := results.ChartSlices()
	if err != nil {
		h.log.Error("Failed to load chart data", zap.Error(err))
		c.Status(http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := results.RenderChart(&buf, slices, results.ChartWidth, results.ChartHeight); err != nil {
		h.log.Error("Failed to render chart", zap.Error(err))
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Header("Cache-Control", "public, max-age=3600")
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

func (h *Handler) GetReport(c *gin.Context) {
	view, err := h.service.Results(c.Request.Context(), sessionID(c))
	if err != nil {
		h.log.Error("Failed to render results", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build report"})
		return
	}

	var buf bytes.Buffer
	if err := results.WriteReport(&buf, view); err != nil {
		h.log.Error("Failed to write report", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build report"})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="defect-report.md"`)
	c.Data(http.StatusOK, "text/markdown; charset=utf-8", buf.Bytes())
}

func (h *Handler) SelectImage(c *gin.Context) {
	file, err := c.FormFile("image")
	if err != nil {
		h.log.Warn("Failed to get file from form", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "No image file provided"})
		return
	}

	selected := &domain.SelectedFile{
		Name:     filepath.Base(file.Filename),
		Size:     file.Size,
		MIMEType: contentType(file.Header.Get("Content-Type"), file.Filename),
	}

	// Oversized files are rejected without reading them.
	if file.Size <= h.validator.MaxSize() {
		f, err := file.Open()
		if err != nil {
			h.log.Error("Failed to open file", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process file"})
			return
		}
		defer f.Close()

		selected.Data, err = io.ReadAll(io.LimitReader(f, h.validator.MaxSize()+1))
		if err != nil {
			h.log.Error("Failed to read file", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read file"})
			return
		}
	}

	preview, err := h.service.SelectFile(c.Request.Context(), sessionID(c), selected)
	if err != nil {
		if uerr, ok := domain.AsUserError(err); ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": uerr.Message, "kind": uerr.Kind})
			return
		}
		if errors.Is(err, upload.ErrStalePreview) {
			c.JSON(http.StatusConflict, gin.H{"error": "A newer image was selected"})
			return
		}
		h.log.Error("Failed to select image", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process file"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"file": gin.H{
			"name":      selected.Name,
			"size":      selected.Size,
			"size_text": upload.FormatFileSize(selected.Size),
			"type":      selected.MIMEType,
			"type_text": upload.FileType(selected.MIMEType),
		},
		"preview": preview,
	})
}

func (h *Handler) StartAnalysis(c *gin.Context) {
	err := h.service.StartAnalysis(sessionID(c))
	switch {
	case err == nil:
		c.JSON(http.StatusAccepted, gin.H{"state": simulation.Running})
	case errors.Is(err, simulation.ErrAlreadyStarted):
		c.JSON(http.StatusConflict, gin.H{"error": "Analysis already started"})
	default:
		if uerr, ok := domain.AsUserError(err); ok {
			c.JSON(http.StatusConflict, gin.H{"error": uerr.Message, "kind": uerr.Kind})
			return
		}
		h.log.Error("Failed to start analysis", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start analysis"})
	}
}

func (h *Handler) GetState(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.State(sessionID(c)))
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "OK"})
}

// contentType prefers the type the browser declared for the part and
// falls back to the file extension.
func contentType(declared, filename string) string {
	if declared != "" && declared != "application/octet-stream" {
		if mediaType, _, err := mime.ParseMediaType(declared); err == nil {
			return mediaType
		}
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); byExt != "" {
		mediaType, _, _ := mime.ParseMediaType(byExt)
		return mediaType
	}
	return declared
}
