package provider

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/marketsim/backtester/internal/types"
)

// CSVProvider reads bars from one CSV file per symbol.
// Row format: timestamp,open,high,low,close,volume[,adj_close]
type CSVProvider struct {
	paths map[string]string // symbol -> file path
}

// NewCSVProvider creates a provider over a symbol-to-path mapping.
func NewCSVProvider(paths map[string]string) *CSVProvider {
	return &CSVProvider{paths: paths}
}

// LoadHistoricalData implements HistoricalDataProvider.
func (p *CSVProvider) LoadHistoricalData(ctx context.Context, symbol string, r DateRange) ([]types.Bar, error) {
	if !r.Valid() {
		return nil, types.ErrInvalidRange
	}

	path, ok := p.paths[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: no data file configured for %s", types.ErrDataUnavailable, symbol)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open data file for %s: %w", symbol, err)
	}
	defer file.Close()

	bars, err := ParseCSV(file, symbol)
	if err != nil {
		return nil, fmt.Errorf("parse data file for %s: %w", symbol, err)
	}

	filtered := bars[:0]
	for _, bar := range bars {
		if r.Contains(bar.Timestamp) {
			filtered = append(filtered, bar)
		}
	}

	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].Timestamp.Before(filtered[j].Timestamp)
	})

	return filtered, nil
}

// ParseCSV parses bars from a CSV reader. A header row is skipped, short
// or malformed rows are dropped rather than failing the whole file.
func ParseCSV(r io.Reader, symbol string) ([]types.Bar, error) {
	reader := csv.NewReader(bufio.NewReader(r))
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	var bars []types.Bar
	lineNum := 0

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		lineNum++

		if lineNum == 1 && isHeader(record) {
			continue
		}
		if len(record) < 5 {
			continue
		}

		bar, err := parseRecord(record, symbol)
		if err != nil {
			continue
		}

		bars = append(bars, bar)
	}

	return bars, nil
}

func parseRecord(record []string, symbol string) (types.Bar, error) {
	var bar types.Bar
	bar.Symbol = symbol

	ts, err := parseTimestamp(record[0])
	if err != nil {
		return bar, fmt.Errorf("parse timestamp: %w", err)
	}
	bar.Timestamp = ts

	if bar.Open, err = decimal.NewFromString(record[1]); err != nil {
		return bar, fmt.Errorf("parse open: %w", err)
	}
	if bar.High, err = decimal.NewFromString(record[2]); err != nil {
		return bar, fmt.Errorf("parse high: %w", err)
	}
	if bar.Low, err = decimal.NewFromString(record[3]); err != nil {
		return bar, fmt.Errorf("parse low: %w", err)
	}
	if bar.Close, err = decimal.NewFromString(record[4]); err != nil {
		return bar, fmt.Errorf("parse close: %w", err)
	}
	bar.AdjClose = bar.Close

	if len(record) > 5 {
		if vol, err := strconv.ParseInt(record[5], 10, 64); err == nil {
			bar.Volume = vol
		}
	}
	if len(record) > 6 {
		if adj, err := decimal.NewFromString(record[6]); err == nil {
			bar.AdjClose = adj
		}
	}

	return bar, nil
}

// parseTimestamp tries unix seconds, then common date layouts.
func parseTimestamp(s string) (time.Time, error) {
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}

	formats := []string{
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05Z",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04",
		"2006-01-02",
	}
	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unknown timestamp format: %s", s)
}

func isHeader(record []string) bool {
	if len(record) == 0 {
		return false
	}
	for _, h := range []string{"timestamp", "time", "date", "datetime"} {
		if record[0] == h {
			return true
		}
	}
	return false
}
