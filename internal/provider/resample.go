package provider

import (
	"github.com/fxviews/fx-views-go/internal/models"
	"github.com/fxviews/fx-views-go/internal/technical"
)

// MonthlyCloses resamples daily bars to a month-end close series.
func MonthlyCloses(name string, bars []technical.Bar) models.Series {
	series := models.Series{Name: name, Frequency: models.FrequencyMonthly}
	for i, bar := range bars {
		last := i == len(bars)-1
		if !last {
			next := bars[i+1].Date
			if next.Year() == bar.Date.Year() && next.Month() == bar.Date.Month() {
				continue
			}
		}
		series.Points = append(series.Points, models.TimeSeriesPoint{Timestamp: bar.Date, Value: bar.Close})
	}
	return series
}

// WeeklyCloses resamples daily bars to a week-end close series, keyed by
// ISO week.
func WeeklyCloses(name string, bars []technical.Bar) models.Series {
	series := models.Series{Name: name, Frequency: models.FrequencyWeekly}
	for i, bar := range bars {
		last := i == len(bars)-1
		if !last {
			year, week := bar.Date.ISOWeek()
			nextYear, nextWeek := bars[i+1].Date.ISOWeek()
			if year == nextYear && week == nextWeek {
				continue
			}
		}
		series.Points = append(series.Points, models.TimeSeriesPoint{Timestamp: bar.Date, Value: bar.Close})
	}
	return series
}
