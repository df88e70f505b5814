package handler

import (
	"net/http"
	"strconv"
	"strings"

	"nexus-crypto-desk/internal/domain"

	"github.com/gin-gonic/gin"
)

type createPlanRequest struct {
	Symbol      string  `json:"symbol" binding:"required"`
	Side        string  `json:"side" binding:"required"`
	EntryPrice  float64 `json:"entry_price" binding:"required"`
	TargetPrice float64 `json:"target_price" binding:"required"`
	StopPrice   float64 `json:"stop_price" binding:"required"`
	Note        string  `json:"note"`
}

// CreatePlan godoc
// @Summary      Create a trade plan
// @Description  Registers a plan tracked against live quotes. The desk never places orders.
// @Tags         plans
// @Accept       json
// @Produce      json
// @Param        plan  body  createPlanRequest  true  "Plan definition"
// @Success      201  {object}  domain.TradePlan
// @Failure      400  {object}  map[string]string
// @Router       /api/plans [post]
func (h *Handler) CreatePlan(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.create-plan")
	defer span.End()

	if h.plans == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "trade plans require Postgres"})
		return
	}

	var req createPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	plan := &domain.TradePlan{
		Symbol:      strings.ToUpper(req.Symbol),
		Side:        strings.ToLower(req.Side),
		EntryPrice:  req.EntryPrice,
		TargetPrice: req.TargetPrice,
		StopPrice:   req.StopPrice,
		Note:        req.Note,
	}
	if err := h.plans.Create(ctx, plan); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, plan)
}

// ListPlans godoc
// @Summary      List trade plans
// @Description  Returns plans newest first, optionally filtered by status
// @Tags         plans
// @Produce      json
// @Param        status  query  string  false  "Status filter (ACTIVE, TRIGGERED, TARGET_HIT, STOPPED, CANCELLED)"
// @Success      200  {object}  map[string]interface{}
// @Router       /api/plans [get]
func (h *Handler) ListPlans(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.list-plans")
	defer span.End()

	if h.plans == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "trade plans require Postgres"})
		return
	}

	var statuses []string
	if status := strings.ToUpper(c.Query("status")); status != "" {
		statuses = append(statuses, status)
	}

	plans, err := h.plans.List(ctx, statuses)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"plans": plans})
}

// CancelPlan godoc
// @Summary      Cancel a trade plan
// @Description  Cancels an open (ACTIVE or TRIGGERED) plan
// @Tags         plans
// @Produce      json
// @Param        id  path  int  true  "Plan ID"
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  map[string]string
// @Router       /api/plans/{id} [delete]
func (h *Handler) CancelPlan(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.cancel-plan")
	defer span.End()

	if h.plans == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "trade plans require Postgres"})
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid plan id"})
		return
	}
	if err := h.plans.Cancel(ctx, id); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}
