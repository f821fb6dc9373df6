package geostream

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"envlog2netcdf/cdf"
	"envlog2netcdf/datetime"
	"envlog2netcdf/logging"
)

// Dataset is the read side of a daily netCDF file needed to flatten it.
type Dataset interface {
	VariableNames() ([]string, error)
	VariablesByAttribute(attr, value string) ([]cdf.Variable, error)
	Float64s(name string) ([]float64, error)
	Close() error
}

// Stats summarizes one flattening run.
type Stats struct {
	Rows           int
	Streams        int
	SkippedStreams []string
}

// Flattener writes geostreams CSV files. The zero value is not usable; see NewFlattener.
// ExcludedStream is never written; Exclude names further streams to leave out.
type Flattener struct {
	Site      string
	Latitude  float64
	Longitude float64
	Prefix    string
	Exclude   []string
	Logger    *zap.SugaredLogger

	open func(path string) (Dataset, error)
}

// NewFlattener returns a Flattener with the field location and stream rules of the environment logger.
func NewFlattener(logger *zap.SugaredLogger) *Flattener {
	return &Flattener{
		Site:      DefaultSite,
		Latitude:  DefaultLatitude,
		Longitude: DefaultLongitude,
		Prefix:    StreamPrefix,
		Logger:    logging.OrNop(logger),
		open:      openNetCDF,
	}
}

func openNetCDF(path string) (Dataset, error) {
	ds, err := cdf.Open(path)
	if err != nil {
		return nil, err
	}
	return ds, nil
}

// WriteCSV flattens the daily file ncPath into csvPath. Streams that fail are logged and skipped;
// only I/O errors on the two files are returned.
func (f *Flattener) WriteCSV(ctx context.Context, ncPath, csvPath string, run datetime.RunDate) (stats Stats, err error) {
	open := f.open
	if open == nil {
		open = openNetCDF
	}
	ds, err := open(ncPath)
	if err != nil {
		return stats, err
	}
	defer func() { err = multierr.Append(err, ds.Close()) }()

	out, err := os.Create(csvPath)
	if err != nil {
		return stats, err
	}
	defer func() { err = multierr.Append(err, out.Close()) }()

	w := csv.NewWriter(out)
	stats, err = f.Flatten(ctx, ds, ncPath, run, w)
	if err != nil {
		return stats, err
	}
	w.Flush()
	return stats, w.Error()
}

// Flatten writes the header and one row per observation of ds to w. source is recorded in every row.
func (f *Flattener) Flatten(ctx context.Context, ds Dataset, source string, run datetime.RunDate, w *csv.Writer) (Stats, error) {
	var stats Stats
	logger := logging.OrNop(f.Logger)
	if err := w.Write(Header); err != nil {
		return stats, err
	}

	streams, err := f.streams(ds)
	if err != nil {
		return stats, fmt.Errorf("list streams of %s: %w", source, err)
	}
	times, timesErr := ds.Float64s(cdf.TimeVariable)

	for _, stream := range streams {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		rows, err := f.streamObservations(ds, stream, times, timesErr, source, run)
		if err != nil {
			var attrErr *StreamAttributeError
			if !errors.As(err, &attrErr) {
				attrErr = &StreamAttributeError{Stream: stream, Err: err}
			}
			logger.Warnf("NetCDF attribute not found and is being skipped: '%s': %v", stream, attrErr.Err)
			stats.SkippedStreams = append(stats.SkippedStreams, stream)
			continue
		}
		for _, obs := range rows {
			rec, err := obs.Record()
			if err != nil {
				return stats, fmt.Errorf("stream %s: %w", stream, err)
			}
			if err := w.Write(rec); err != nil {
				return stats, err
			}
		}
		stats.Rows += len(rows)
		stats.Streams++
		logger.Debugf("Stream %s: %d rows", stream, len(rows))
	}
	return stats, nil
}

// streams lists the distinct stream names in sorted order.
func (f *Flattener) streams(ds Dataset) ([]string, error) {
	names, err := ds.VariableNames()
	if err != nil {
		return nil, err
	}
	prefix := f.Prefix
	if prefix == "" {
		prefix = StreamPrefix
	}
	seen := make(map[string]struct{})
	for _, name := range names {
		if !strings.HasPrefix(name, prefix) || f.excluded(name) {
			continue
		}
		seen[name] = struct{}{}
	}
	streams := make([]string, 0, len(seen))
	for name := range seen {
		streams = append(streams, name)
	}
	sort.Strings(streams)
	return streams, nil
}

func (f *Flattener) excluded(name string) bool {
	if name == ExcludedStream {
		return true
	}
	for _, ex := range f.Exclude {
		if name == ex {
			return true
		}
	}
	return false
}

// streamObservations builds every row of one stream. Nothing is returned for a stream that fails part way.
func (f *Flattener) streamObservations(ds Dataset, stream string, times []float64, timesErr error, source string, run datetime.RunDate) ([]Observation, error) {
	members, err := ds.VariablesByAttribute(cdf.SensorAttribute, stream)
	if err != nil {
		return nil, &StreamAttributeError{Stream: stream, Err: err}
	}
	var rows []Observation
	for _, member := range members {
		attrs := member.Attributes.Map(member.Name)
		if attrs[cdf.SensorAttribute] != stream {
			continue
		}
		records := member.Records()
		if len(records) > 0 && timesErr != nil {
			return nil, &StreamAttributeError{Stream: stream, Err: fmt.Errorf("variable %s: %w", cdf.TimeVariable, timesErr)}
		}
		for i, record := range records {
			if i >= len(times) {
				return nil, &StreamAttributeError{Stream: stream, Err: fmt.Errorf("variable %s: index %d beyond %d time steps", member.Name, i, len(times))}
			}
			dpTime, err := datetime.FormatGeostreamTime(times[i])
			if err != nil {
				return nil, &StreamAttributeError{Stream: stream, Err: fmt.Errorf("variable %s index %d: %w", cdf.TimeVariable, i, err)}
			}
			payload := make(map[string]string, len(attrs)+1)
			for k, v := range attrs {
				payload[k] = v
			}
			payload[ValueKey] = formatRecord(record, len(member.Shape) > 1)
			rows = append(rows, Observation{
				Site:      f.Site,
				Trait:     TraitPrefix + stream,
				Latitude:  f.Latitude,
				Longitude: f.Longitude,
				Time:      dpTime,
				Source:    source,
				Payload:   payload,
				Timestamp: run.Timestamp,
			})
		}
	}
	return rows, nil
}
