// Package geostream flattens the sensor streams of a daily environment logger netCDF file into the
// geostreams CSV: one row per observation, tagged with a fixed field location.
package geostream

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	DefaultSite      = "Full Field - Environmental Logger"
	DefaultLatitude  = 33.075576
	DefaultLongitude = -111.974304
	StreamPrefix     = "sensor"
	ExcludedStream   = "sensor_spectrum"
	TraitPrefix      = "(EL) "
	ValueKey         = "value"
)

// Header is the fixed first row of every geostreams CSV.
var Header = []string{"site", "trait", "lat", "lon", "dp_time", "source", "value", "timestamp"}

// Observation is one CSV row.
type Observation struct {
	Site      string
	Trait     string
	Latitude  float64
	Longitude float64
	Time      string // dp_time
	Source    string
	Payload   map[string]string
	Timestamp string
}

// Stream returns the stream name encoded in the trait.
func (o Observation) Stream() string {
	return strings.TrimPrefix(o.Trait, TraitPrefix)
}

// Record renders the observation in Header column order. The payload is JSON; csv.Writer quotes it
// and doubles the embedded quotes.
func (o Observation) Record() ([]string, error) {
	payload, err := json.Marshal(o.Payload)
	if err != nil {
		return nil, err
	}
	return []string{
		o.Site,
		o.Trait,
		formatCoordinate(o.Latitude),
		formatCoordinate(o.Longitude),
		o.Time,
		o.Source,
		string(payload),
		o.Timestamp,
	}, nil
}

func parseRecord(rec []string) (Observation, error) {
	if len(rec) != len(Header) {
		return Observation{}, fmt.Errorf("expected %d fields, got %d", len(Header), len(rec))
	}
	lat, err := strconv.ParseFloat(rec[2], 64)
	if err != nil {
		return Observation{}, fmt.Errorf("lat: %w", err)
	}
	lon, err := strconv.ParseFloat(rec[3], 64)
	if err != nil {
		return Observation{}, fmt.Errorf("lon: %w", err)
	}
	var payload map[string]string
	if err := json.Unmarshal([]byte(rec[6]), &payload); err != nil {
		return Observation{}, fmt.Errorf("value: %w", err)
	}
	return Observation{
		Site:      rec[0],
		Trait:     rec[1],
		Latitude:  lat,
		Longitude: lon,
		Time:      rec[4],
		Source:    rec[5],
		Payload:   payload,
		Timestamp: rec[7],
	}, nil
}

// StreamAttributeError reports a sensor stream that could not be flattened and was left out of the CSV.
type StreamAttributeError struct {
	Stream string
	Err    error
}

func (e *StreamAttributeError) Error() string {
	return fmt.Sprintf("stream %s: %v", e.Stream, e.Err)
}

func (e *StreamAttributeError) Unwrap() error { return e.Err }

// FormatValue renders a data point the way the payload has always carried it: "434.0", "0.25", "nan".
func FormatValue(v float64) string {
	switch {
	case math.IsNaN(v):
		return "nan"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if v == math.Trunc(v) {
		s += ".0"
	}
	return s
}

// formatRecord renders one record of a variable. Records of rank 2 or more are written as
// a bracketed, space separated list.
func formatRecord(record []float64, array bool) string {
	if !array && len(record) == 1 {
		return FormatValue(record[0])
	}
	parts := make([]string, len(record))
	for i, v := range record {
		parts[i] = FormatValue(v)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func formatCoordinate(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
