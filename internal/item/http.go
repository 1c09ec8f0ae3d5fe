package item

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/adilet/vaultdrive/internal/identity"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RegisterRoutes mounts item operations under the provided router group.
func RegisterRoutes(group *gin.RouterGroup, service *Service) {
	handler := &httpHandler{service: service}
	group.POST("/folders", handler.createFolder)
	group.GET("/items", handler.listItems)
	group.GET("/items/search", handler.searchItems)
	group.GET("/items/:itemID/download", handler.downloadItem)
	group.GET("/items/:itemID/link", handler.downloadLink)
	group.PATCH("/items/:itemID", handler.updateItem)
	group.POST("/items/:itemID/restore", handler.restoreItem)
	group.DELETE("/items/:itemID", handler.deleteItem)
}

type httpHandler struct {
	service *Service
}

type createFolderRequest struct {
	ParentID *uuid.UUID `json:"parent_id"`
	Name     string     `json:"name"`
	Path     string     `json:"path"`
}

func (h *httpHandler) createFolder(c *gin.Context) {
	ownerID, ok := identity.RequireOwner(c)
	if !ok {
		return
	}

	var req createFolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	// Either a single name or a slash-separated path to resolve.
	if req.Path != "" {
		segments := splitPath(req.Path)
		folderID, err := h.service.ResolveHierarchy(c.Request.Context(), ownerID, req.ParentID, segments)
		if err != nil {
			respondItemError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"folder_id": folderID})
		return
	}

	created, err := h.service.CreateFolder(c.Request.Context(), ownerID, req.ParentID, req.Name)
	if err != nil {
		respondItemError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *httpHandler) listItems(c *gin.Context) {
	ownerID, ok := identity.RequireOwner(c)
	if !ok {
		return
	}

	var parentID *uuid.UUID
	if raw := c.Query("parent_id"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid parent id"})
			return
		}
		parentID = &parsed
	}
	includeDeleted := c.Query("include_deleted") == "true"

	items, err := h.service.List(c.Request.Context(), ownerID, parentID, includeDeleted)
	if err != nil {
		respondItemError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *httpHandler) searchItems(c *gin.Context) {
	ownerID, ok := identity.RequireOwner(c)
	if !ok {
		return
	}

	items, err := h.service.Search(c.Request.Context(), ownerID, c.Query("q"))
	if err != nil {
		respondItemError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *httpHandler) downloadItem(c *gin.Context) {
	ownerID, ok := identity.RequireOwner(c)
	if !ok {
		return
	}

	itemID, err := uuid.Parse(c.Param("itemID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item id"})
		return
	}

	it, reader, err := h.service.Download(c.Request.Context(), ownerID, itemID)
	if err != nil {
		respondItemError(c, err)
		return
	}
	defer reader.Close()

	contentType := "application/octet-stream"
	if it.MIMEType != nil {
		contentType = *it.MIMEType
	}
	c.Header("Content-Type", contentType)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", it.Name))
	c.Header("Content-Length", fmt.Sprintf("%d", it.SizeBytes))

	if _, err := io.Copy(c.Writer, reader); err != nil {
		c.Status(http.StatusInternalServerError)
		return
	}
}

func (h *httpHandler) downloadLink(c *gin.Context) {
	ownerID, ok := identity.RequireOwner(c)
	if !ok {
		return
	}

	itemID, err := uuid.Parse(c.Param("itemID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item id"})
		return
	}

	url, ttl, err := h.service.DownloadLink(c.Request.Context(), ownerID, itemID)
	if err != nil {
		respondItemError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url, "expires_in_seconds": int(ttl.Seconds())})
}

type updateItemRequest struct {
	Name     *string    `json:"name"`
	ParentID *uuid.UUID `json:"parent_id"`
	Move     bool       `json:"move"`
}

func (h *httpHandler) updateItem(c *gin.Context) {
	ownerID, ok := identity.RequireOwner(c)
	if !ok {
		return
	}

	itemID, err := uuid.Parse(c.Param("itemID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item id"})
		return
	}

	var req updateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	var updated Item
	switch {
	case req.Name != nil:
		updated, err = h.service.Rename(c.Request.Context(), ownerID, itemID, *req.Name)
	case req.Move:
		updated, err = h.service.Move(c.Request.Context(), ownerID, itemID, req.ParentID)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "nothing to update"})
		return
	}
	if err != nil {
		respondItemError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *httpHandler) restoreItem(c *gin.Context) {
	ownerID, ok := identity.RequireOwner(c)
	if !ok {
		return
	}

	itemID, err := uuid.Parse(c.Param("itemID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item id"})
		return
	}

	restored, err := h.service.Restore(c.Request.Context(), ownerID, itemID)
	if err != nil {
		respondItemError(c, err)
		return
	}
	c.JSON(http.StatusOK, restored)
}

func (h *httpHandler) deleteItem(c *gin.Context) {
	ownerID, ok := identity.RequireOwner(c)
	if !ok {
		return
	}

	itemID, err := uuid.Parse(c.Param("itemID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item id"})
		return
	}
	permanent := c.Query("permanent") == "true"

	freed, err := h.service.Delete(c.Request.Context(), ownerID, itemID, permanent)
	if err != nil {
		respondItemError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bytes_freed": freed})
}

func splitPath(path string) []string {
	var segments []string
	for _, segment := range strings.Split(path, "/") {
		if segment != "" {
			segments = append(segments, segment)
		}
	}
	return segments
}

func respondItemError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "item not found"})
	case errors.Is(err, ErrNameTaken):
		c.JSON(http.StatusConflict, gin.H{"error": "name already taken"})
	case errors.Is(err, ErrNotAFolder):
		c.JSON(http.StatusBadRequest, gin.H{"error": "parent is not a folder"})
	case errors.Is(err, ErrInvalidName):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid name"})
	case errors.Is(err, ErrCycle):
		c.JSON(http.StatusConflict, gin.H{"error": "move would create a cycle"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "operation failed"})
	}
}
