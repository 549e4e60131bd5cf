// Package series reshapes dashboard records into date-keyed time series and
// persists them as canned JSON datasets, so a dashboard can start from saved
// data when the API is unreachable.
package series

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/fsmeraldi/diy-covid19dash/pkg/client"
)

// DefaultDateField is the record field holding the observation date.
const DefaultDateField = "date"

// TimeSeries is a date-sorted table with one numeric column per requested
// record field. Missing and non-numeric values are kept as nil, not dropped,
// so gaps in the data stay visible.
type TimeSeries struct {
	DateField string   `json:"date_field"`
	Columns   []string `json:"columns"`
	Rows      []Row    `json:"rows"`
}

// Row is the values observed on one date. A nil value marks a gap.
type Row struct {
	Date   string              `json:"date"`
	Values map[string]*float64 `json:"values"`
}

// Len returns the number of dates in the series.
func (ts *TimeSeries) Len() int {
	return len(ts.Rows)
}

// Column returns the values of one column in date order, nil for gaps.
func (ts *TimeSeries) Column(name string) []*float64 {
	values := make([]*float64, len(ts.Rows))
	for i, row := range ts.Rows {
		values[i] = row.Values[name]
	}
	return values
}

// FromRecords reshapes records into a time series keyed by dateField
// (DefaultDateField when empty), with one column per entry of valueFields.
// Records without a string date are skipped; when several records share a
// date, the last one delivered wins.
func FromRecords(records []client.Record, dateField string, valueFields []string) (*TimeSeries, error) {
	if dateField == "" {
		dateField = DefaultDateField
	}
	if len(valueFields) == 0 {
		return nil, fmt.Errorf("at least one value field is required")
	}

	byDate := make(map[string]map[string]*float64)
	for _, record := range records {
		date, ok := record[dateField].(string)
		if !ok || date == "" {
			continue
		}

		values := make(map[string]*float64, len(valueFields))
		for _, field := range valueFields {
			values[field] = numericValue(record[field])
		}
		byDate[date] = values
	}

	dates := make([]string, 0, len(byDate))
	for date := range byDate {
		dates = append(dates, date)
	}
	// ISO-8601 dates sort correctly as strings.
	sort.Strings(dates)

	rows := make([]Row, 0, len(dates))
	for _, date := range dates {
		rows = append(rows, Row{Date: date, Values: byDate[date]})
	}

	return &TimeSeries{
		DateField: dateField,
		Columns:   append([]string(nil), valueFields...),
		Rows:      rows,
	}, nil
}

// numericValue coerces a record value to a float, nil when it is null,
// absent or not numeric.
func numericValue(v any) *float64 {
	switch value := v.(type) {
	case float64:
		return &value
	case int:
		f := float64(value)
		return &f
	case string:
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return &f
		}
		return nil
	default:
		return nil
	}
}

// SaveJSON writes the series to path as indented JSON.
func (ts *TimeSeries) SaveJSON(path string) error {
	data, err := json.MarshalIndent(ts, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal time series: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write time series: %w", err)
	}

	return nil
}

// LoadJSON reads a series previously written by SaveJSON.
func LoadJSON(path string) (*TimeSeries, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read time series: %w", err)
	}

	var ts TimeSeries
	if err := json.Unmarshal(data, &ts); err != nil {
		return nil, fmt.Errorf("parse time series: %w", err)
	}

	return &ts, nil
}
