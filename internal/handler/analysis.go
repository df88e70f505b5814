package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"nexus-crypto-desk/internal/agent"
	"nexus-crypto-desk/internal/domain"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// StartAnalysis godoc
// @Summary      Start an analysis run for an asset
// @Description  Kicks off a scan or deep analysis pipeline. One run at a time, desk-wide.
// @Tags         analysis
// @Produce      json
// @Param        symbol  path   string  true   "Asset symbol (e.g., BTC, ETH)"
// @Param        mode    query  string  false  "Run mode (scan or deep)"  default(scan)
// @Success      202  {object}  map[string]string
// @Failure      400  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /api/analysis/{symbol} [post]
func (h *Handler) StartAnalysis(c *gin.Context) {
	_, span := h.tracer.Start(c.Request.Context(), "handler.start-analysis")
	defer span.End()

	symbol := strings.ToUpper(c.Param("symbol"))
	mode := c.DefaultQuery("mode", domain.ModeScan)
	span.SetAttributes(
		attribute.String("symbol", symbol),
		attribute.String("mode", mode),
	)

	if !domain.IsSupportedSymbol(symbol) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "unsupported symbol: " + symbol,
			"supported_symbols": domain.SupportedSymbols,
		})
		return
	}
	if mode != domain.ModeScan && mode != domain.ModeDeep {
		c.JSON(http.StatusBadRequest, gin.H{"error": "mode must be scan or deep"})
		return
	}
	if h.runner == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "analysis pipeline requires OPENAI_API_KEY"})
		return
	}
	if h.runner.Busy() {
		c.JSON(http.StatusConflict, gin.H{"error": "an analysis run is already active"})
		return
	}

	// The run outlives the request; progress is visible via GET.
	go func() {
		if err := h.runner.Run(context.Background(), symbol, mode); err != nil {
			if errors.Is(err, agent.ErrRunActive) {
				return
			}
			log.Printf("analysis run %s/%s: %v", symbol, mode, err)
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{
		"status": "started",
		"symbol": symbol,
		"mode":   mode,
	})
}

// GetAnalysisState godoc
// @Summary      Get the latest analysis state for an asset
// @Description  Returns the in-flight or last completed run: outputs so far, plan, validation
// @Tags         analysis
// @Produce      json
// @Param        symbol  path  string  true  "Asset symbol (e.g., BTC, ETH)"
// @Success      200  {object}  agent.RunState
// @Failure      404  {object}  map[string]string
// @Router       /api/analysis/{symbol} [get]
func (h *Handler) GetAnalysisState(c *gin.Context) {
	_, span := h.tracer.Start(c.Request.Context(), "handler.get-analysis-state")
	defer span.End()

	symbol := strings.ToUpper(c.Param("symbol"))
	span.SetAttributes(attribute.String("symbol", symbol))

	state := h.state.State(symbol)
	if state == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no analysis has run for " + symbol})
		return
	}
	c.JSON(http.StatusOK, state)
}

// GetRuns godoc
// @Summary      List persisted analysis runs
// @Description  Returns recent run records, newest first, optionally filtered by symbol
// @Tags         analysis
// @Produce      json
// @Param        symbol  query  string  false  "Asset symbol filter"
// @Param        limit   query  int     false  "Max records (default 20, max 100)"  default(20)
// @Success      200  {object}  map[string]interface{}
// @Router       /api/runs [get]
func (h *Handler) GetRuns(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-runs")
	defer span.End()

	symbol := strings.ToUpper(c.Query("symbol"))
	if symbol != "" && !domain.IsSupportedSymbol(symbol) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported symbol: " + symbol})
		return
	}

	limit := 20
	if l := c.Query("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	if h.runs == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "run history requires Postgres"})
		return
	}

	runs, err := h.runs.RecentRuns(ctx, symbol, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}
