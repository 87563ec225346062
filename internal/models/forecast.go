package models

import "time"

// ForecastPoint is the projected demand for one future hour.
type ForecastPoint struct {
	Timestamp        time.Time `json:"timestamp"`
	ICUDemand        float64   `json:"icu_demand_forecast"`
	VentilatorDemand float64   `json:"ventilator_demand_forecast"`
	OxygenDemand     float64   `json:"oxygen_demand_forecast"`
}

// Forecast is one complete projection as returned by the forecast oracle.
// It is replaced wholesale on every successful refresh.
type Forecast struct {
	Points    []ForecastPoint `json:"points"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// ShortageSummary compares mean projected demand over a look-ahead window
// against facility capacity.
type ShortageSummary struct {
	WindowHours          int       `json:"window_hours"`
	MeanICUDemand        float64   `json:"mean_icu_demand"`
	MeanVentilatorDemand float64   `json:"mean_ventilator_demand"`
	MeanOxygenDemand     float64   `json:"mean_oxygen_demand"`
	ICUShortage          bool      `json:"icu_shortage"`
	VentilatorShortage   bool      `json:"ventilator_shortage"`
	OxygenShortage       bool      `json:"oxygen_shortage"`
	ForecastFetchedAt    time.Time `json:"forecast_fetched_at"`
}

// Shortage reports whether any demand series exceeds capacity.
func (s ShortageSummary) Shortage() bool {
	return s.ICUShortage || s.VentilatorShortage || s.OxygenShortage
}
