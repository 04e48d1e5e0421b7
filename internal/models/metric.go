package models

// MetricPoint is one resampled chart point. Values is keyed by series field
// ("usage" for CPU, "read"/"write" for disk, "in"/"out" for network).
type MetricPoint struct {
	Timestamp int64              `json:"timestamp"`
	Time      string             `json:"time"`
	Values    map[string]float64 `json:"values"`
}
