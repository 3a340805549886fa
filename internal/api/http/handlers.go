package http

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/nodegraph/internal/domain/catalog"
	"github.com/GriffinCanCode/nodegraph/internal/infrastructure/logging"
	"github.com/GriffinCanCode/nodegraph/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/nodegraph/internal/shared/types"
)

// DefaultMaxUpload is the request body ceiling for archive uploads
const DefaultMaxUpload = 50 << 20

const javascriptType = "application/javascript"

// Handlers serves one catalog under its kind's prefix
type Handlers struct {
	catalog   *catalog.Service
	metrics   *monitoring.Metrics
	log       *zap.Logger
	maxUpload int64
}

// NewHandlers creates a handler set for svc
func NewHandlers(svc *catalog.Service, metrics *monitoring.Metrics, log *zap.Logger, maxUpload int64) *Handlers {
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUpload
	}
	return &Handlers{
		catalog:   svc,
		metrics:   metrics,
		log:       logging.OrNop(log).With(zap.String("kind", string(svc.Kind()))),
		maxUpload: maxUpload,
	}
}

// Register mounts every catalog route on r under the kind's prefix
func (h *Handlers) Register(r gin.IRouter) {
	g := r.Group("/" + h.catalog.Kind().Prefix())
	g.GET("", h.List)
	g.GET("/path", h.Path)
	g.GET("/events", h.Events)
	g.POST("/upload", h.Upload)
	g.POST("/rescan", h.Rescan)
	g.GET("/:id", h.Module)
	g.GET("/:id/metadata", h.Metadata)
	g.GET("/:id/:file", h.Asset)
	g.PUT("/:id/status", h.SetStatus)
	g.DELETE("/:id", h.Delete)
}

// field is both the multipart field name and the singular JSON key
func (h *Handlers) field() string {
	return string(h.catalog.Kind())
}

// List returns every catalog entry
func (h *Handlers) List(c *gin.Context) {
	entries := h.catalog.List()
	c.JSON(http.StatusOK, gin.H{
		"success":                  true,
		h.catalog.Kind().Prefix(): entries,
		"count":                    len(entries),
	})
}

// Path reports the install root
func (h *Handlers) Path(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"path":    h.catalog.Path(),
		"exists":  h.catalog.Exists(),
	})
}

// Upload installs an archive posted as multipart form data
func (h *Handlers) Upload(c *gin.Context) {
	if c.Request.ContentLength > h.maxUpload {
		h.respondError(c, &http.MaxBytesError{Limit: h.maxUpload})
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)

	fh, err := c.FormFile(h.field())
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "No file uploaded in field " + h.field(),
		})
		return
	}

	f, err := fh.Open()
	if err != nil {
		h.respondError(c, err)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		h.respondError(c, err)
		return
	}

	res, err := h.catalog.Install(c.Request.Context(), data, fh.Filename)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"extensionId": res.ExtensionID,
		"digest":      res.Digest,
		"format":      res.Format,
	})
}

// Module returns the main module source of an entry
func (h *Handlers) Module(c *gin.Context) {
	data, err := h.catalog.ReadFile(c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Header("Cache-Control", "no-cache")
	c.Data(http.StatusOK, javascriptType, data)
}

// Metadata returns the catalog entry for id
func (h *Handlers) Metadata(c *gin.Context) {
	e, err := h.catalog.Get(c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		h.field(): e,
	})
}

// Asset serves any file inside an installed component. file may carry
// escaped slashes to address nested paths.
func (h *Handlers) Asset(c *gin.Context) {
	rel := strings.TrimPrefix(c.Param("file"), "/")
	data, _, err := h.catalog.ReadAsset(c.Param("id"), rel)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Header("Cache-Control", "no-cache")
	c.Data(http.StatusOK, contentType(rel, data), data)
}

// contentType sniffs data, trusting the extension for scripts and for
// text formats that sniff as plain text.
func contentType(name string, data []byte) string {
	ext := strings.ToLower(path.Ext(name))
	if ext == ".js" || ext == ".mjs" {
		return javascriptType
	}
	detected := mimetype.Detect(data)
	if detected.Is("text/plain") {
		if byExt := mime.TypeByExtension(ext); byExt != "" {
			return byExt
		}
	}
	return detected.String()
}

// SetStatus enables or disables an entry
func (h *Handlers) SetStatus(c *gin.Context) {
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid request: " + err.Error(),
		})
		return
	}

	if err := h.catalog.SetStatus(c.Param("id"), types.Status(req.Status)); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Delete uninstalls an entry
func (h *Handlers) Delete(c *gin.Context) {
	if err := h.catalog.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Rescan rebuilds the catalog from disk
func (h *Handlers) Rescan(c *gin.Context) {
	snap, err := h.catalog.Rescan(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"count":   snap.Len(),
		"version": snap.Version,
	})
}
