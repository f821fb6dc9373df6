package transformer

import (
	"fmt"

	"go.uber.org/zap"

	"envlog2netcdf/cdf"
	"envlog2netcdf/config"
	"envlog2netcdf/geostream"
	"envlog2netcdf/iotdb"
	"envlog2netcdf/logging"
	"envlog2netcdf/metrics"
)

// FromConfig builds a Transformer with the converter, appender, flattener and exporter cfg selects.
func FromConfig(cfg config.Config, logger *zap.SugaredLogger) (*Transformer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger = logging.OrNop(logger)

	var converter cdf.Converter
	switch cfg.Converter.Mode {
	case config.ModeCommand:
		converter = cdf.CommandConverter{Args: cfg.Converter.Command, Logger: logger}
	case config.ModeInternal:
		converter = cdf.JSONConverter{Title: cfg.Converter.Title}
	default:
		return nil, fmt.Errorf("%w: converter mode %q", config.ErrInvalidConfig, cfg.Converter.Mode)
	}

	var appender cdf.Appender
	switch cfg.Appender.Mode {
	case config.ModeNcrcat:
		appender = cdf.NcrcatAppender{Path: cfg.Appender.Ncrcat, Logger: logger}
	case config.ModeInternal:
		appender = cdf.RecordAppender{}
	default:
		return nil, fmt.Errorf("%w: appender mode %q", config.ErrInvalidConfig, cfg.Appender.Mode)
	}

	t := New(converter, appender, logger)
	flattener := geostream.NewFlattener(logger)
	flattener.Site = cfg.Geostream.Site
	flattener.Latitude = cfg.Geostream.Latitude
	flattener.Longitude = cfg.Geostream.Longitude
	flattener.Exclude = cfg.Geostream.Exclude
	t.Flattener = flattener
	t.Metrics = metrics.New()

	if cfg.IoTDB.Enabled {
		t.Exporter = iotdb.NewExporter(iotdb.Config{
			Host:         cfg.IoTDB.Host,
			Port:         cfg.IoTDB.Port,
			User:         cfg.IoTDB.User,
			Password:     cfg.IoTDB.Password,
			DevicePrefix: cfg.IoTDB.DevicePrefix,
		}, logger)
	}
	return t, nil
}
