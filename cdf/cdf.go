// Package cdf reads and writes the netCDF files of the environment logger pipeline.
//
// Two capabilities are abstracted so that the external NCO/converter tools and the in-process
// implementations are interchangeable: converting one logger file into a netCDF file (Converter) and
// appending the records of one netCDF file onto another along the record dimension (Appender).
package cdf

import (
	"context"
	"errors"
)

const (
	RecordDimension = "time" // unlimited dimension shared by every per-reading variable
	TimeVariable    = "time"
	SensorAttribute = "sensor"
	unlimited       = 0 // NC_UNLIMITED
)

var ErrSchemaMismatch = errors.New("netcdf schema mismatch")

// Converter turns one environment logger JSON file into one netCDF file at outPath.
type Converter interface {
	Convert(ctx context.Context, logPath, outPath string) error
}

// Appender appends every record of srcPath onto the record dimension of dstPath.
// A missing dstPath is created from srcPath.
type Appender interface {
	Append(ctx context.Context, srcPath, dstPath string) error
}
