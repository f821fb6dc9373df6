// Package transformer runs one day of environment logger files through conversion, appending,
// finalization and flattening, and reports the outcome as a Result.
package transformer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"envlog2netcdf/cdf"
	"envlog2netcdf/datetime"
	"envlog2netcdf/filesystem"
	"envlog2netcdf/geostream"
	"envlog2netcdf/logging"
	"envlog2netcdf/metrics"
)

const (
	DailySuffix     = "_environment_logger.nc"
	GeostreamSuffix = "_geo.csv"
)

var ErrNoInputFiles = errors.New("did not find environment logging files in list of files and folders specified")

// CSVWriter flattens the daily file into the geostreams CSV.
type CSVWriter interface {
	WriteCSV(ctx context.Context, ncPath, csvPath string, run datetime.RunDate) (geostream.Stats, error)
}

// Exporter ships a finished geostreams CSV somewhere else. Its failures never fail the run.
type Exporter interface {
	ExportCSV(ctx context.Context, csvPath string, batchSize int) (int, error)
}

type Transformer struct {
	Converter cdf.Converter
	Appender  cdf.Appender
	Flattener CSVWriter
	Exporter  Exporter            // optional
	Metrics   *metrics.RunMetrics // optional
	Logger    *zap.SugaredLogger

	newRunID func() string
	now      func() time.Time
}

// New returns a Transformer flattening with the default field location.
func New(converter cdf.Converter, appender cdf.Appender, logger *zap.SugaredLogger) *Transformer {
	logger = logging.OrNop(logger)
	return &Transformer{
		Converter: converter,
		Appender:  appender,
		Flattener: geostream.NewFlattener(logger),
		Logger:    logger,
		newRunID:  uuid.NewString,
		now:       time.Now,
	}
}

// PerformProcess runs req. Missing input files and an unresolvable date are reported in the Result;
// a conversion, append or output failure is returned as an error and no daily file is left behind.
func (t *Transformer) PerformProcess(ctx context.Context, req Request) (result Result, err error) {
	start := t.clock()
	logger := logging.OrNop(t.Logger)
	if t.Metrics != nil {
		defer func() { t.Metrics.Finish(t.clock().Sub(start), err == nil && result.Succeeded()) }()
	}

	files := filesystem.FindEnvironmentLoggingFiles(req.Files)
	if len(files) == 0 {
		logger.Error(ErrNoInputFiles.Error())
		return newErrorResult(CodeNoInputFiles, ErrNoInputFiles), nil
	}

	run, err := datetime.ResolveRunDate(files, req.Timestamp, req.OverrideDate)
	if err != nil {
		logger.Error(err.Error())
		return newErrorResult(CodeDateResolution, err), nil
	}

	workDir := req.WorkingFolder
	if workDir == "" {
		workDir = "."
	}
	ncPath := filepath.Join(workDir, run.Date+DailySuffix)
	csvPath := strings.TrimSuffix(ncPath, ".nc") + GeostreamSuffix
	runID := t.runID()
	fullPath := filepath.Join(workDir, "temp_"+runID+"_full.nc")
	singlePath := filepath.Join(workDir, "temp_"+runID+"_single.nc")
	logger.Debugf("Run %s: %d files for %s", runID, len(files), run.Date)

	if err := t.convertAndAppend(ctx, files, singlePath, fullPath); err != nil {
		return Result{}, multierr.Combine(err,
			filesystem.RemoveIfExists(singlePath),
			filesystem.RemoveIfExists(fullPath))
	}
	if err := filesystem.MoveFile(fullPath, ncPath); err != nil {
		return Result{}, multierr.Append(fmt.Errorf("finalize %s: %w", ncPath, err), filesystem.RemoveIfExists(fullPath))
	}

	logger.Infof("Creating geostreams CSV: '%s'", csvPath)
	stats, err := t.Flattener.WriteCSV(ctx, ncPath, csvPath, run)
	if err != nil {
		return Result{}, fmt.Errorf("write %s: %w", csvPath, err)
	}
	if len(stats.SkippedStreams) > 0 {
		logger.Warnf("Skipped %d streams: %v", len(stats.SkippedStreams), stats.SkippedStreams)
	}
	if t.Metrics != nil {
		t.Metrics.CSVRows.Add(float64(stats.Rows))
		t.Metrics.StreamsSkipped.Add(float64(len(stats.SkippedStreams)))
	}

	if t.Exporter != nil {
		written, err := t.Exporter.ExportCSV(ctx, csvPath, req.BatchSize)
		if err != nil {
			logger.Warnf("Export of %s stopped after %d records: %v", csvPath, written, err)
		} else {
			logger.Infof("Exported %d records", written)
		}
		if t.Metrics != nil {
			t.Metrics.IoTDBRecords.Add(float64(written))
		}
	}

	finished := t.clock()
	return newSuccessResult(runSummary{
		ncPath:   ncPath,
		csvPath:  csvPath,
		files:    files,
		rows:     stats.Rows,
		skipped:  len(stats.SkippedStreams),
		finished: finished,
		elapsed:  finished.Sub(start),
	}), nil
}

// convertAndAppend converts every file to singlePath and appends it onto fullPath, in order.
func (t *Transformer) convertAndAppend(ctx context.Context, files []string, singlePath, fullPath string) error {
	logger := logging.OrNop(t.Logger)
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		started := t.clock()
		logger.Infof("Converting %s to netCDF & appending", filepath.Base(file))
		if err := t.Converter.Convert(ctx, file, singlePath); err != nil {
			return fmt.Errorf("convert %s: %w", file, err)
		}
		if err := t.Appender.Append(ctx, singlePath, fullPath); err != nil {
			return fmt.Errorf("append %s: %w", file, err)
		}
		if err := os.Remove(singlePath); err != nil {
			return err
		}
		if t.Metrics != nil {
			t.Metrics.ObserveConvert(t.clock().Sub(started))
		}
	}
	return nil
}

func (t *Transformer) clock() time.Time {
	if t.now == nil {
		return time.Now()
	}
	return t.now()
}

func (t *Transformer) runID() string {
	if t.newRunID == nil {
		return uuid.NewString()
	}
	return t.newRunID()
}
