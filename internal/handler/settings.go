package handler

import (
	"net/http"

	"nexus-crypto-desk/internal/domain"

	"github.com/gin-gonic/gin"
)

// GetSettings godoc
// @Summary      Get desk settings
// @Description  Returns the current target/stop percentages, risk profile, and data source
// @Tags         settings
// @Produce      json
// @Success      200  {object}  domain.Settings
// @Router       /api/settings [get]
func (h *Handler) GetSettings(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-settings")
	defer span.End()

	settings, err := h.settings.Get(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, settings)
}

// UpdateSettings godoc
// @Summary      Update desk settings
// @Description  Replaces the desk settings. Running analyses keep the settings they started with.
// @Tags         settings
// @Accept       json
// @Produce      json
// @Param        settings  body  domain.Settings  true  "New settings"
// @Success      200  {object}  domain.Settings
// @Failure      400  {object}  map[string]string
// @Router       /api/settings [put]
func (h *Handler) UpdateSettings(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.update-settings")
	defer span.End()

	var settings domain.Settings
	if err := c.ShouldBindJSON(&settings); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.settings.Update(ctx, settings); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, settings)
}
