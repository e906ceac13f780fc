package drag

import (
	"strings"

	"github.com/sonroyaalmerol/calendar-engine/internal/config"
	"github.com/sonroyaalmerol/calendar-engine/internal/occurrence"
)

type Direction string

const (
	Vertical   Direction = "vertical"
	Horizontal Direction = "horizontal"
)

const day int64 = 86400

// Config tunes one view. Distances are pixels, durations are seconds.
type Config struct {
	DragThreshold float64
	SnapInterval  int64
	EdgeZoneSize  float64
	MinDuration   int64
	Direction     Direction
}

func DefaultWeekConfig() Config {
	return FromPreset(config.DefaultDragConfig().Week)
}

func DefaultMonthConfig() Config {
	return FromPreset(config.DefaultDragConfig().Month)
}

func FromPreset(p config.DragPreset) Config {
	dir := Vertical
	if strings.EqualFold(p.Direction, string(Horizontal)) {
		dir = Horizontal
	}
	return Config{
		DragThreshold: p.DragThreshold,
		SnapInterval:  p.SnapInterval,
		EdgeZoneSize:  p.EdgeZoneSize,
		MinDuration:   p.MinDuration,
		Direction:     dir,
	}
}

// forAllDay snaps to whole days. The minimum length is the all-day
// threshold, so an occurrence ending at 23:59:59 clamps to its own midnight
// and the preview stays all-day.
func (c Config) forAllDay() Config {
	c.SnapInterval = day
	c.MinDuration = occurrence.AllDayThreshold
	return c
}
