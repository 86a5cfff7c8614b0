package opt

import (
	"fmt"
	"math"
	"strings"
)

// Location is a point on the plane. Lat/Lon are read as y/x by the
// Euclidean metric and as degrees by the haversine metric.
type Location struct {
	Lat float64
	Lon float64
}

func (l Location) finite() bool {
	return !math.IsNaN(l.Lat) && !math.IsNaN(l.Lon) && !math.IsInf(l.Lat, 0) && !math.IsInf(l.Lon, 0)
}

// Metric selects the pairwise travel cost function.
type Metric int

const (
	MetricEuclidean Metric = iota
	MetricHaversine
)

func (m Metric) String() string {
	switch m {
	case MetricHaversine:
		return "haversine"
	default:
		return "euclidean"
	}
}

// ParseMetric accepts "euclidean" (or empty) and "haversine".
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "euclidean":
		return MetricEuclidean, nil
	case "haversine":
		return MetricHaversine, nil
	}
	return MetricEuclidean, &ValidationError{Field: "metric", Reason: fmt.Sprintf("unknown metric %q", s)}
}

func (m Metric) distance(a, b Location) float64 {
	if m == MetricHaversine {
		return haversine(a.Lat, a.Lon, b.Lat, b.Lon)
	}
	return math.Hypot(a.Lat-b.Lat, a.Lon-b.Lon)
}

// haversine returns great-circle distance in meters.
func haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const R = 6371000.0
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return R * c
}
