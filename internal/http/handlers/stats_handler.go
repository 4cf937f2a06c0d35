package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-support-backend/internal/utils"
)

// GetStats godoc
// @ID          getStats
// @Summary     Classification statistics
// @Description Aggregates ticket and classification statistics over a recent window.
// @Description Includes per-category counts and percentages, daily ticket counts, and the average confidence score.
// @Tags        Stats
// @Produce     json
//
// @Param       days  query  int  false  "Window size in days"  minimum(1) maximum(90) default(7)
//
// @Success     200  {object}  services.StatsResult
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /stats [get]
func (h *Handlers) GetStats(c *gin.Context) {
	days := utils.AtoiDefault(c.Query("days"), 7)

	res, err := h.statsSvc.Stats(c.Request.Context(), days)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeStatsFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, res)
}
