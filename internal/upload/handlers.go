package upload

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/hashdrop-io/hashdrop/internal/descriptions"
	"github.com/hashdrop-io/hashdrop/internal/session"
)

// Handler exposes the upload HTTP surface. The route paths and response
// bodies match the wire contract of the polling browser client exactly.
type Handler struct {
	service      *Service
	sessions     *session.Store
	descriptions *descriptions.Service
	maxBytes     int64 // 0 means unlimited
}

// NewHandler creates the HTTP handler set for uploads and queries.
func NewHandler(service *Service, sessions *session.Store, descriptions *descriptions.Service, maxBytes int64) *Handler {
	return &Handler{
		service:      service,
		sessions:     sessions,
		descriptions: descriptions,
		maxBytes:     maxBytes,
	}
}

// Register mounts the upload routes on the router.
func (h *Handler) Register(router gin.IRouter) {
	router.POST("/upload", h.handleUpload)
	router.GET("/progress", h.handleProgress)
	router.GET("/filepath", h.handleFilePath)
	router.POST("/description", h.handleDescription)
}

// handleUpload accepts a streamed multipart upload for the uid given in the
// query string and answers with a plain-text acknowledgement.
func (h *Handler) handleUpload(c *gin.Context) {
	uid := c.Query("uid")
	if uid == "" {
		c.String(http.StatusBadRequest, "missing uid")
		return
	}

	if h.maxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes)
	}

	_, err := h.service.Ingest(
		c.Request.Context(),
		uid,
		c.Request.Body,
		c.GetHeader("Content-Type"),
		c.Request.ContentLength,
	)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotMultipart), errors.Is(err, ErrMissingFile), errors.Is(err, ErrMalformedBody):
			c.String(http.StatusBadRequest, err.Error())
		default:
			log.Error().Err(err).Str("uid", uid).Msg("upload failed")
			c.String(http.StatusInternalServerError, "upload failed")
		}
		return
	}

	c.String(http.StatusOK, "upload complete")
}

// handleProgress reports the current percentage for a session. Unknown uids
// report 0 so a client that starts polling before the upload request lands
// degrades gracefully instead of erroring.
func (h *Handler) handleProgress(c *gin.Context) {
	uid := c.Query("uid")
	if uid == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing uid"})
		return
	}

	// The percentage travels as a JSON string; the polling client expects
	// that shape.
	pct, _ := h.sessions.Progress(uid)
	c.JSON(http.StatusOK, gin.H{"progress": strconv.Itoa(pct)})
}

// handleFilePath returns the stored path for a completed session. Before
// completion this is a 400; the client polls progress to 100 first.
func (h *Handler) handleFilePath(c *gin.Context) {
	uid := c.Query("uid")
	if uid == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing uid"})
		return
	}

	path, ok := h.sessions.Path(uid)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "path not available"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"path": path})
}

// handleDescription records the free-text description posted after an
// upload and acknowledges with an empty JSON object.
func (h *Handler) handleDescription(c *gin.Context) {
	uid := c.Query("uid")
	if uid == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing uid"})
		return
	}

	if err := h.descriptions.Record(c.Request.Context(), uid, c.Query("description")); err != nil {
		log.Error().Err(err).Str("uid", uid).Msg("failed to record description")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record description"})
		return
	}

	c.JSON(http.StatusOK, gin.H{})
}
