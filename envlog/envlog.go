// Package envlog models the JSON documents written by the field environment logger.
//
// A document holds a list of readings; each reading carries a timestamp plus one entry per sensor
// group. A group is one of three shapes:
//
//	"sensor par":      {"unit": "umol/(m^2*s)", "rawValue": "0", "value": "0"}
//	"weather_station": {"airPressure": {"unit": "hPa", "value": "1000.6"}, ...}
//	"spectrometer":    {"maxFixedIntensity": "16383", "wavelength": [...], "spectrum": [...]}
package envlog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"envlog2netcdf/datetime"
)

const (
	readingsKey     = "environment_sensor_readings"
	timestampKey    = "timestamp"
	SpectrometerKey = "spectrometer"
	wavelengthKey   = "wavelength"
	spectrumKey     = "spectrum"
)

// Value is a reading that the logger writes either as a JSON number or as a numeric string.
// Blank or null values decode to NaN.
type Value float64

func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*v = Value(math.NaN())
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*v = Value(math.NaN())
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("envlog value %q: %w", s, err)
		}
		*v = Value(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*v = Value(f)
	return nil
}

// Measurement is a single value with its unit.
type Measurement struct {
	Value    Value  `json:"value"`
	RawValue Value  `json:"rawValue"`
	Unit     string `json:"unit"`
}

// Spectrometer holds the spectrum of one reading plus its scalar settings.
type Spectrometer struct {
	Wavelength []float64
	Spectrum   []float64
	Settings   map[string]float64
}

// Reading is one logger sample.
type Reading struct {
	Timestamp    time.Time
	Measurements map[string]Measurement            // single-value groups, e.g. "sensor par"
	Groups       map[string]map[string]Measurement // nested groups, e.g. "weather_station"
	Spectrometer *Spectrometer
}

type Document struct {
	Readings []Reading
}

func (d *Document) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	readings, ok := raw[readingsKey]
	if !ok {
		return fmt.Errorf("envlog: missing %q", readingsKey)
	}
	return json.Unmarshal(readings, &d.Readings)
}

func (r *Reading) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var ts string
	if err := json.Unmarshal(raw[timestampKey], &ts); err != nil {
		return fmt.Errorf("envlog reading timestamp: %w", err)
	}
	t, err := datetime.ParseLoggerTimestamp(ts)
	if err != nil {
		return fmt.Errorf("envlog reading timestamp: %w", err)
	}
	r.Timestamp = t
	r.Measurements = make(map[string]Measurement)
	r.Groups = make(map[string]map[string]Measurement)

	for key, body := range raw {
		switch key {
		case timestampKey:
			continue
		case SpectrometerKey:
			spectro, err := parseSpectrometer(body)
			if err != nil {
				return err
			}
			r.Spectrometer = spectro
			continue
		}

		var members map[string]json.RawMessage
		if err := json.Unmarshal(body, &members); err != nil {
			// scalar top-level entries carry no sensor data
			continue
		}
		if isMeasurement(members) {
			m, err := decodeMeasurement(body)
			if err != nil {
				return fmt.Errorf("envlog %s: %w", key, err)
			}
			r.Measurements[key] = m
			continue
		}
		group := make(map[string]Measurement)
		for name, memberBody := range members {
			var inner map[string]json.RawMessage
			if json.Unmarshal(memberBody, &inner) != nil || !isMeasurement(inner) {
				continue
			}
			m, err := decodeMeasurement(memberBody)
			if err != nil {
				return fmt.Errorf("envlog %s.%s: %w", key, name, err)
			}
			group[name] = m
		}
		if len(group) > 0 {
			r.Groups[key] = group
		}
	}
	return nil
}

func isMeasurement(members map[string]json.RawMessage) bool {
	_, hasValue := members["value"]
	_, hasUnit := members["unit"]
	return hasValue || hasUnit
}

// absent values stay NaN
func decodeMeasurement(body json.RawMessage) (Measurement, error) {
	m := Measurement{Value: Value(math.NaN()), RawValue: Value(math.NaN())}
	err := json.Unmarshal(body, &m)
	return m, err
}

func parseSpectrometer(body json.RawMessage) (*Spectrometer, error) {
	var members map[string]json.RawMessage
	if err := json.Unmarshal(body, &members); err != nil {
		return nil, fmt.Errorf("envlog spectrometer: %w", err)
	}
	spectro := &Spectrometer{Settings: make(map[string]float64)}
	for name, memberBody := range members {
		switch name {
		case wavelengthKey, spectrumKey:
			var values []Value
			if err := json.Unmarshal(memberBody, &values); err != nil {
				return nil, fmt.Errorf("envlog spectrometer %s: %w", name, err)
			}
			floats := make([]float64, len(values))
			for i, v := range values {
				floats[i] = float64(v)
			}
			if name == wavelengthKey {
				spectro.Wavelength = floats
			} else {
				spectro.Spectrum = floats
			}
		default:
			var v Value
			if err := json.Unmarshal(memberBody, &v); err != nil {
				continue
			}
			spectro.Settings[name] = float64(v)
		}
	}
	return spectro, nil
}

// ReadFile decodes one logger file.
func ReadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	sort.SliceStable(doc.Readings, func(i, j int) bool {
		return doc.Readings[i].Timestamp.Before(doc.Readings[j].Timestamp)
	})
	return &doc, nil
}
