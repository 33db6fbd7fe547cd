package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// All lists the persisted models in migration order.
func All() []interface{} {
	return []interface{}{
		&TeamForecast{},
		&SelectionRun{},
	}
}

// ReadForecasts decodes forecast rows from either a bare JSON array or an
// object with a "forecasts" array.
func ReadForecasts(r io.Reader) ([]TeamForecast, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read forecasts: %w", err)
	}
	raw = bytes.TrimSpace(raw)

	var rows []TeamForecast
	if len(raw) > 0 && raw[0] == '[' {
		err = json.Unmarshal(raw, &rows)
	} else {
		var wrapped struct {
			Forecasts []TeamForecast `json:"forecasts"`
		}
		err = json.Unmarshal(raw, &wrapped)
		rows = wrapped.Forecasts
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode forecasts: %w", err)
	}
	return rows, nil
}

// ReadForecastFile reads rows from a JSON file.
func ReadForecastFile(path string) ([]TeamForecast, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadForecasts(f)
}
