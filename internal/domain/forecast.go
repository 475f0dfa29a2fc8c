package domain

// LookbackWindow is the number of consecutive daily values the model consumes.
const LookbackWindow = 7

// MinForecastHistory is the number of non-missing daily values a city needs
// before it is forecastable: a full window plus the current-day context.
const MinForecastHistory = LookbackWindow + 1

// Forecast is a next-day PM2.5 prediction for one city, valid for one cache epoch.
// Value is nil when the city is not forecastable (insufficient history or no scaler).
type Forecast struct {
	City  string   `json:"city"`
	Value *float64 `json:"value"`
	Epoch uint64   `json:"epoch"`
}

// CityForecast is the answer to a forecast query.
type CityForecast struct {
	City      string   `json:"city"`
	Latest    *float64 `json:"latest"`
	Predicted *float64 `json:"predicted"`
}
