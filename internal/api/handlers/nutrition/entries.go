package nutrition

import (
	"net/http"
	"strconv"

	"macro-snap/internal/api/handlers"
	"macro-snap/internal/pkg/common"
	"macro-snap/internal/storage"

	"github.com/gin-gonic/gin"
)

// ListEntriesResponse 紀錄列表
type ListEntriesResponse struct {
	Entries []*storage.Entry `json:"entries"`
}

// HandleListEntries GET /entries?user_id=&limit=
func (h *Handler) HandleListEntries(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			handlers.RespondError(c, common.NewError(common.ErrCodeInvalidRequest, "limit must be a non-negative integer", http.StatusBadRequest, err))
			return
		}
		limit = n
	}

	entries, err := h.svc.ListEntries(c.Request.Context(), c.Query("user_id"), limit)
	if err != nil {
		handlers.RespondError(c, err)
		return
	}
	if entries == nil {
		entries = []*storage.Entry{}
	}
	c.JSON(http.StatusOK, ListEntriesResponse{Entries: entries})
}

// HandleGetEntry GET /entries/:id
func (h *Handler) HandleGetEntry(c *gin.Context) {
	entry, err := h.svc.GetEntry(c.Request.Context(), c.Param("id"))
	if err != nil {
		handlers.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// HandleDeleteEntry DELETE /entries/:id
func (h *Handler) HandleDeleteEntry(c *gin.Context) {
	if err := h.svc.DeleteEntry(c.Request.Context(), c.Param("id")); err != nil {
		handlers.RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
