package handlers

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/jstittsworth/bracket-optimizer/internal/models"
	"github.com/jstittsworth/bracket-optimizer/internal/services"
	"github.com/jstittsworth/bracket-optimizer/pkg/utils"
	"github.com/sirupsen/logrus"
)

type ForecastHandler struct {
	store         *services.ForecastStore
	selections    *services.SelectionService
	defaultGender string
}

func NewForecastHandler(store *services.ForecastStore, selections *services.SelectionService, defaultGender string) *ForecastHandler {
	return &ForecastHandler{
		store:         store,
		selections:    selections,
		defaultGender: defaultGender,
	}
}

type importRequest struct {
	Forecasts []models.TeamForecast `json:"forecasts" binding:"required,min=1"`
}

// ImportForecasts upserts forecast rows and drops cached selections of every
// date it touched.
func (h *ForecastHandler) ImportForecasts(c *gin.Context) {
	var req importRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, "Invalid request body", err.Error())
		return
	}
	if err := validateRows(req.Forecasts); err != nil {
		utils.SendValidationError(c, "Invalid forecast row", err.Error())
		return
	}

	dates, err := h.store.Upsert(c.Request.Context(), req.Forecasts)
	if err != nil {
		logrus.WithError(err).Error("Forecast import failed")
		utils.SendInternalError(c, "Failed to import forecasts")
		return
	}

	for _, date := range dates {
		h.selections.InvalidateDate(c.Request.Context(), date)
	}

	logrus.WithFields(logrus.Fields{
		"rows":    len(req.Forecasts),
		"dates":   dates,
		"subject": c.GetString("subject"),
	}).Info("Forecasts imported")

	utils.SendCreated(c, gin.H{
		"imported": len(req.Forecasts),
		"dates":    dates,
	})
}

func (h *ForecastHandler) ListDates(c *gin.Context) {
	gender := c.DefaultQuery("gender", h.defaultGender)
	dates, err := h.store.Dates(c.Request.Context(), gender)
	if err != nil {
		utils.SendInternalError(c, "Failed to list forecast dates")
		return
	}
	utils.SendSuccessWithMeta(c, dates, &utils.Meta{Total: int64(len(dates))})
}

func validateRows(rows []models.TeamForecast) error {
	for i, row := range rows {
		if row.ForecastDate == "" || row.Gender == "" || row.TeamName == "" || row.TeamRegion == "" || row.TeamSeed == "" {
			return fmt.Errorf("row %d: forecast_date, gender, team_name, team_region and team_seed are required", i)
		}
		for round, p := range []float64{row.Rd1Win, row.Rd2Win, row.Rd3Win, row.Rd4Win, row.Rd5Win, row.Rd6Win, row.Rd7Win} {
			if p < 0 || p > 1 {
				return fmt.Errorf("row %d (%s): rd%d_win %v outside [0, 1]", i, row.TeamName, round+1, p)
			}
		}
	}
	return nil
}
