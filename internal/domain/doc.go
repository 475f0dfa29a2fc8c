// Package domain models city air-quality data: cities and their monitoring
// stations, pollutant readings, forecasts and severity tiers.
//
// # Data Source
//
// Hourly readings originate from CPCB continuous ambient air-quality monitoring
// (CAAQMS) exports. An upstream acquisition service fetches them, rejects rows
// with malformed timestamps or non-numeric pollutant fields, and hands the rest
// to this service either as CSV files (see cmd/importcsv) or as JSON rows on the
// Kafka source topic.
//
// # Reading Conventions
//
// Row format:
//
//	{"City": "Delhi", "Datetime": "2019-11-03 14:00:00", "PM2.5": 412.6, "PM10": null, ...}
//
// Pollutant columns are optional. A null or absent column is a missing value and
// stays missing: it is never replaced by zero. Zero-filling would drag the means
// of sparsely measured cities down and push them into a lower severity tier.
//
// Daily values are the mean of the present hourly values for a city and UTC
// calendar day. Days inside a city's observed range that have no hourly rows at
// all appear in daily series as missing points, so gaps are visible downstream.
//
// # Forecasting
//
// The forecast for a city is a single next-day PM2.5 value produced by a frozen
// sequence model from the last [LookbackWindow] non-missing daily values,
// normalized with that city's own min-max scaler. Results are rounded to one
// decimal for presentation only.
//
// # Severity Tiers
//
// Tiers (Low, Medium, High) come from an offline k-means run over per-city
// pollutant means. Cluster indices are arbitrary; the tier is the rank of the
// cluster's mean overall pollution, so reruns over the same input always give
// the same labels.
package domain
