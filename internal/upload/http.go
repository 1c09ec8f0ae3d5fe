package upload

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/adilet/vaultdrive/internal/content"
	"github.com/adilet/vaultdrive/internal/identity"
	"github.com/adilet/vaultdrive/internal/item"
	"github.com/adilet/vaultdrive/internal/quota"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// maxChunkBytes bounds a single part body. Clients splitting at 4-8MB stay
// far under this.
const maxChunkBytes = 64 << 20

// RegisterRoutes mounts the chunked upload lifecycle under the group.
func RegisterRoutes(group *gin.RouterGroup, service *Service) {
	handler := &httpHandler{service: service}
	group.POST("/uploads", handler.initUpload)
	group.PUT("/uploads/:uploadID/parts/:partIndex", handler.uploadPart)
	group.POST("/uploads/:uploadID/complete", handler.completeUpload)
	group.DELETE("/uploads/:uploadID", handler.abortUpload)
	group.GET("/uploads/:uploadID", handler.uploadStatus)
}

type httpHandler struct {
	service *Service
}

type initUploadRequest struct {
	FileName     string     `json:"file_name"`
	RelativePath string     `json:"relative_path"`
	DeclaredSize int64      `json:"declared_size"`
	ParentID     *uuid.UUID `json:"parent_id"`
}

func (h *httpHandler) initUpload(c *gin.Context) {
	ownerID, ok := identity.RequireOwner(c)
	if !ok {
		return
	}

	var req initUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	result, err := h.service.Init(c.Request.Context(), ownerID, req.FileName, req.RelativePath, req.DeclaredSize, req.ParentID)
	if err != nil {
		respondUploadError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *httpHandler) uploadPart(c *gin.Context) {
	ownerID, ok := identity.RequireOwner(c)
	if !ok {
		return
	}

	uploadID := c.Param("uploadID")
	partIndex, err := strconv.Atoi(c.Param("partIndex"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid part index"})
		return
	}
	totalParts, err := strconv.Atoi(c.Query("total_parts"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid total parts"})
		return
	}
	storageKey := c.Query("storage_key")

	chunk, err := io.ReadAll(io.LimitReader(c.Request.Body, maxChunkBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read chunk"})
		return
	}
	if len(chunk) > maxChunkBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "chunk too large"})
		return
	}

	percent, err := h.service.UploadPart(c.Request.Context(), ownerID, uploadID, storageKey, partIndex, totalParts, chunk)
	if err != nil {
		respondUploadError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"part_index": partIndex, "progress": percent})
}

type completeUploadRequest struct {
	StorageKey   string `json:"storage_key"`
	FileName     string `json:"file_name"`
	DeclaredSize int64  `json:"declared_size"`
	TotalParts   int    `json:"total_parts"`
	MIMEType     string `json:"mime_type"`
}

func (h *httpHandler) completeUpload(c *gin.Context) {
	ownerID, ok := identity.RequireOwner(c)
	if !ok {
		return
	}

	var req completeUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	created, err := h.service.Complete(c.Request.Context(), ownerID, c.Param("uploadID"),
		req.StorageKey, req.FileName, req.DeclaredSize, req.TotalParts, req.MIMEType)
	if err != nil {
		respondUploadError(c, err)
		return
	}
	c.JSON(http.StatusOK, created)
}

func (h *httpHandler) abortUpload(c *gin.Context) {
	ownerID, ok := identity.RequireOwner(c)
	if !ok {
		return
	}

	if err := h.service.Abort(c.Request.Context(), ownerID, c.Param("uploadID")); err != nil {
		respondUploadError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) uploadStatus(c *gin.Context) {
	ownerID, ok := identity.RequireOwner(c)
	if !ok {
		return
	}

	status, received, total, percent, err := h.service.SessionProgress(ownerID, c.Param("uploadID"))
	if err != nil {
		respondUploadError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":         status,
		"received_parts": received,
		"total_parts":    total,
		"progress":       percent,
	})
}

func respondUploadError(c *gin.Context, err error) {
	var admission *quota.AdmissionError
	var partErr *PartError
	var incomplete *IncompleteError

	switch {
	case errors.As(err, &admission):
		c.JSON(http.StatusInsufficientStorage, gin.H{
			"error":           "storage quota exceeded",
			"required_bytes":  admission.RequiredBytes,
			"available_bytes": admission.AvailableBytes,
		})
	case errors.As(err, &partErr):
		c.JSON(http.StatusBadGateway, gin.H{
			"error":      "part upload failed",
			"part_index": partErr.PartIndex,
		})
	case errors.As(err, &incomplete):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":          "upload incomplete",
			"received_parts": incomplete.ReceivedParts,
			"total_parts":    incomplete.TotalParts,
		})
	case errors.Is(err, content.ErrContentRejected):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "upload session not found"})
	case errors.Is(err, ErrUploadNotActive):
		c.JSON(http.StatusConflict, gin.H{"error": "upload session is not active"})
	case errors.Is(err, ErrInvalidPart), errors.Is(err, ErrInvalidUpload):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, item.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "destination folder not found"})
	case errors.Is(err, item.ErrNotAFolder):
		c.JSON(http.StatusBadRequest, gin.H{"error": "destination is not a folder"})
	case errors.Is(err, item.ErrNameTaken):
		c.JSON(http.StatusConflict, gin.H{"error": "name already taken"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upload operation failed"})
	}
}
