package models

import "time"

// TrendDirection is a closed three-valued trend classification. Consumers
// switch on it exhaustively instead of substring-matching display labels.
type TrendDirection string

const (
	TrendUp   TrendDirection = "UP"
	TrendDown TrendDirection = "DOWN"
	TrendFlat TrendDirection = "FLAT"
)

// IndicatorSummary is the shared percentile/trend view of one indicator
// series, used by the macro dashboard and mirrored by model feature
// engineering. Percentiles are already flipped for inverted series.
type IndicatorSummary struct {
	Series        string         `json:"series"`
	AsOf          time.Time      `json:"as_of"`
	Latest        float64        `json:"latest"`
	PercentileAll float64        `json:"percentile_all"`
	Percentile5Y  float64        `json:"percentile_5y"`
	TrendZ        float64        `json:"trend_z"`
	Trend         TrendDirection `json:"trend"`
}
