package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// GetLogs godoc
// @Summary      Get activity log
// @Description  Returns recent activity log entries, newest first
// @Tags         logs
// @Produce      json
// @Param        limit  query  int  false  "Max entries (default 100, max 500)"
// @Success      200  {object}  map[string]interface{}
// @Router       /api/logs [get]
func (h *Handler) GetLogs(c *gin.Context) {
	_, span := h.tracer.Start(c.Request.Context(), "handler.get-logs")
	defer span.End()

	limit := 100
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		if parsed > 500 {
			parsed = 500
		}
		limit = parsed
	}

	c.JSON(http.StatusOK, gin.H{"logs": h.logs.Recent(limit)})
}
