package models

import "time"

// PositioningState classifies speculative crowding. It is a fragility
// signal, not a directional forecast.
type PositioningState string

const (
	CrowdedLong     PositioningState = "CROWDED_LONG"
	CrowdedShort    PositioningState = "CROWDED_SHORT"
	CrowdingNeutral PositioningState = "NEUTRAL"
)

// PositioningSnapshot summarizes net speculative futures positioning for one
// report week. AsOf is the trade date of the report; PublishedAt trails it by
// the source's publication lag and is what staleness checks must use when the
// snapshot first becomes available.
type PositioningSnapshot struct {
	AsOf        time.Time        `json:"as_of" db:"as_of"`
	PublishedAt time.Time        `json:"published_at" db:"published_at"`
	NetPosition int64            `json:"net_position" db:"net_position"`
	Z6M         float64          `json:"z_6m" db:"z_6m"`
	Z1Y         float64          `json:"z_1y" db:"z_1y"`
	Percentile  float64          `json:"percentile" db:"percentile"`
	State       PositioningState `json:"state" db:"state"`
	Commentary  string           `json:"commentary" db:"commentary"`
}
