// Package provider loads input time series from CSV files. It is the data
// collaborator boundary: fetch, retry and vendor quirks live upstream of
// these files.
package provider

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fxviews/fx-views-go/internal/models"
	"github.com/fxviews/fx-views-go/internal/positioning"
	"github.com/fxviews/fx-views-go/internal/technical"
)

const dateLayout = "2006-01-02"

// Loader reads series files from a base directory.
type Loader struct {
	dir    string
	logger *logrus.Logger
}

func NewLoader(dir string, logger *logrus.Logger) *Loader {
	return &Loader{dir: dir, logger: logger}
}

// LoadSeries reads a two-column (date, value) CSV into a Series. The first
// row is treated as a header. Rows must be in ascending date order with
// unique dates; gaps stay gaps.
func (l *Loader) LoadSeries(file, name string, frequency models.Frequency, inverted bool) (models.Series, error) {
	rows, err := l.readAll(file, 2)
	if err != nil {
		return models.Series{}, err
	}

	series := models.Series{Name: name, Frequency: frequency, Inverted: inverted}
	var prev time.Time
	for i, row := range rows {
		date, err := time.Parse(dateLayout, strings.TrimSpace(row[0]))
		if err != nil {
			return models.Series{}, fmt.Errorf("%s row %d: bad date %q: %w", file, i+2, row[0], err)
		}
		if !prev.IsZero() && !date.After(prev) {
			return models.Series{}, fmt.Errorf("%s row %d: dates must be strictly ascending", file, i+2)
		}
		prev = date

		value, err := parseFloat(row[1])
		if err != nil {
			return models.Series{}, fmt.Errorf("%s row %d: bad value %q: %w", file, i+2, row[1], err)
		}
		series.Points = append(series.Points, models.TimeSeriesPoint{Timestamp: date, Value: value})
	}

	if l.logger != nil {
		l.logger.WithFields(logrus.Fields{
			"series": name,
			"points": len(series.Points),
		}).Debug("Loaded series")
	}
	return series, nil
}

// LoadBars reads a daily OHLC CSV (date, open, high, low, close).
func (l *Loader) LoadBars(file string) ([]technical.Bar, error) {
	rows, err := l.readAll(file, 5)
	if err != nil {
		return nil, err
	}

	bars := make([]technical.Bar, 0, len(rows))
	for i, row := range rows {
		date, err := time.Parse(dateLayout, strings.TrimSpace(row[0]))
		if err != nil {
			return nil, fmt.Errorf("%s row %d: bad date %q: %w", file, i+2, row[0], err)
		}
		high, err := parseFloat(row[2])
		if err != nil {
			return nil, fmt.Errorf("%s row %d: bad high: %w", file, i+2, err)
		}
		low, err := parseFloat(row[3])
		if err != nil {
			return nil, fmt.Errorf("%s row %d: bad low: %w", file, i+2, err)
		}
		closePrice, err := parseFloat(row[4])
		if err != nil {
			return nil, fmt.Errorf("%s row %d: bad close: %w", file, i+2, err)
		}
		bars = append(bars, technical.Bar{Date: date, High: high, Low: low, Close: closePrice})
	}
	return bars, nil
}

// LoadPositioning reads the weekly net-position CSV (as_of, published_at,
// net_position). The publication date trails the as-of date by the
// source's reporting lag.
func (l *Loader) LoadPositioning(file string) ([]positioning.Observation, error) {
	rows, err := l.readAll(file, 3)
	if err != nil {
		return nil, err
	}

	observations := make([]positioning.Observation, 0, len(rows))
	for i, row := range rows {
		asOf, err := time.Parse(dateLayout, strings.TrimSpace(row[0]))
		if err != nil {
			return nil, fmt.Errorf("%s row %d: bad as-of date: %w", file, i+2, err)
		}
		publishedAt, err := time.Parse(dateLayout, strings.TrimSpace(row[1]))
		if err != nil {
			return nil, fmt.Errorf("%s row %d: bad publication date: %w", file, i+2, err)
		}
		net, err := strconv.ParseInt(strings.TrimSpace(row[2]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: bad net position: %w", file, i+2, err)
		}
		observations = append(observations, positioning.Observation{
			AsOf:        asOf,
			PublishedAt: publishedAt,
			NetPosition: net,
		})
	}
	return observations, nil
}

// readAll reads a CSV file, skipping the header and validating the
// minimum column count.
func (l *Loader) readAll(file string, minColumns int) ([][]string, error) {
	path := filepath.Join(l.dir, file)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	if _, err := reader.Read(); err != nil {
		return nil, fmt.Errorf("failed to read header of %s: %w", path, err)
	}

	var rows [][]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		if len(row) < minColumns {
			return nil, fmt.Errorf("%s: expected at least %d columns, got %d", path, minColumns, len(row))
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}
