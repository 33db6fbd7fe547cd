package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jstittsworth/bracket-optimizer/internal/bracket"
	"github.com/jstittsworth/bracket-optimizer/internal/models"
	"github.com/jstittsworth/bracket-optimizer/internal/services"
	"github.com/jstittsworth/bracket-optimizer/pkg/utils"
	"github.com/sirupsen/logrus"
)

type SelectionHandler struct {
	selections *services.SelectionService
}

func NewSelectionHandler(selections *services.SelectionService) *SelectionHandler {
	return &SelectionHandler{selections: selections}
}

// RunSelection searches the requested snapshot, or answers from the cache.
// An infeasible snapshot answers 422 with the recorded run attached.
func (h *SelectionHandler) RunSelection(c *gin.Context) {
	var req services.SelectionRequest
	// An empty body selects the latest snapshot with default parameters.
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		utils.SendValidationError(c, "Invalid request body", err.Error())
		return
	}

	resp, err := h.selections.Run(c.Request.Context(), req, models.SourceAPI)
	if err != nil {
		sendSelectionError(c, err)
		return
	}

	if !resp.Feasible {
		status, appErr := http.StatusUnprocessableEntity, utils.NewAppError(utils.ErrCodeInfeasible,
			"No complete selection exists for this snapshot", "too few eligible teams for the pick days")
		if !resp.Complete {
			status, appErr = http.StatusGatewayTimeout, utils.NewAppError(utils.ErrCodeTimeout,
				"Search budget ran out before any complete selection was found")
		}
		c.JSON(status, utils.Response{Success: false, Data: resp, Error: appErr})
		return
	}

	utils.SendSuccessWithMeta(c, resp, &utils.Meta{Total: 1, Cached: resp.Cached})
}

func (h *SelectionHandler) GetSelection(c *gin.Context) {
	resp, err := h.selections.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		sendSelectionError(c, err)
		return
	}
	utils.SendSuccess(c, resp)
}

func (h *SelectionHandler) ListSelections(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	runs, total, err := h.selections.List(c.Request.Context(), c.Query("forecast_date"), limit)
	if err != nil {
		sendSelectionError(c, err)
		return
	}
	utils.SendSuccessWithMeta(c, runs, &utils.Meta{Total: total, Limit: limit})
}

func sendSelectionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidParameter):
		utils.SendValidationError(c, "Invalid selection parameters", err.Error())
	case errors.Is(err, services.ErrRunNotFound):
		utils.SendNotFound(c, "Selection run not found")
	case errors.Is(err, services.ErrNoForecastDate), errors.Is(err, bracket.ErrNoForecasts):
		utils.SendError(c, http.StatusNotFound, utils.NewAppError(utils.ErrCodeNotFound, "No forecast snapshot matches", err.Error()))
	default:
		logrus.WithError(err).Error("Selection failed")
		utils.SendError(c, http.StatusInternalServerError, utils.NewAppError(utils.ErrCodeOptimization, "Selection failed", err.Error()))
	}
}
