package quota

import (
	"errors"
	"net/http"

	"github.com/adilet/vaultdrive/internal/identity"
	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the quota usage endpoint under the group.
func RegisterRoutes(group *gin.RouterGroup, ledger *Ledger) {
	handler := &httpHandler{ledger: ledger}
	group.GET("/quota", handler.usage)
}

type httpHandler struct {
	ledger *Ledger
}

func (h *httpHandler) usage(c *gin.Context) {
	ownerID, ok := identity.RequireOwner(c)
	if !ok {
		return
	}

	usage, err := h.ledger.Usage(c.Request.Context(), ownerID)
	if err != nil {
		if errors.Is(err, ErrOwnerNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "owner not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load usage"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"used_bytes":      usage.UsedBytes,
		"limit_bytes":     usage.LimitBytes,
		"available_bytes": usage.Available(),
	})
}
