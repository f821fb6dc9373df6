package transformer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"envlog2netcdf/cdf"
	"envlog2netcdf/config"
	"envlog2netcdf/geostream"
	"envlog2netcdf/logging"
)

func writeLoggerFile(t *testing.T, dir, name string, hour, readings int) {
	t.Helper()
	body := `{"environment_sensor_readings": [`
	for i := 0; i < readings; i++ {
		if i > 0 {
			body += ","
		}
		body += fmt.Sprintf(`{"timestamp": "2023.05.01-%02d:00:%02d",
  "sensor par": {"unit": "umol/(m^2*s)", "value": "%d"},
  "weather_station": {"temperature": {"unit": "Celsius", "value": "20"}},
  "spectrometer": {"wavelength": [400, 500], "spectrum": [1, 2]}}`, hour, i, i)
	}
	body += `]}`
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestPerformProcessEndToEnd(t *testing.T) {
	in, work := t.TempDir(), t.TempDir()
	writeLoggerFile(t, in, "2023-05-01_00-00-00_environmentlogger.json", 0, 2)
	writeLoggerFile(t, in, "2023-05-01_01-00-00_environmentlogger.json", 1, 3)

	cfg := config.Config{
		Converter: config.ConverterConfig{Mode: config.ModeInternal},
		Appender:  config.AppenderConfig{Mode: config.ModeInternal},
		Geostream: config.GeostreamConfig{
			Site:      geostream.DefaultSite,
			Latitude:  geostream.DefaultLatitude,
			Longitude: geostream.DefaultLongitude,
			Exclude:   []string{"sensor_other"},
		},
	}
	tr, err := FromConfig(cfg, logging.Nop())
	if err != nil {
		t.Fatalf("wire: %v", err)
	}

	result, err := tr.PerformProcess(context.Background(), Request{Files: []string{in}, WorkingFolder: work})
	if err != nil {
		t.Fatalf("perform: %v", err)
	}
	if result.Code != CodeSuccess {
		t.Fatalf("unexpected result %+v", result)
	}

	ds, err := cdf.Open(result.Files[0].Path)
	if err != nil {
		t.Fatal(err)
	}
	times, err := ds.Float64s(cdf.TimeVariable)
	ds.Close()
	if err != nil || len(times) != 5 {
		t.Fatalf("expected 5 records in the daily file, got %d %v", len(times), err)
	}

	counts, err := geostream.Summarize(result.Files[1].Path)
	if err != nil {
		t.Fatal(err)
	}
	// sensor_spectrum stays out even though the configured list does not name it
	if len(counts) != 1 || counts["(EL) sensor_par"].Rows != 5 {
		t.Fatalf("unexpected csv summary %v", counts)
	}
	if result.Metadata.NumCSVRows != "5" {
		t.Fatalf("unexpected row count %s", result.Metadata.NumCSVRows)
	}
}

func TestFromConfigRejectsUnknownModes(t *testing.T) {
	cfg := config.Config{
		Converter: config.ConverterConfig{Mode: "python"},
		Appender:  config.AppenderConfig{Mode: config.ModeInternal},
	}
	if _, err := FromConfig(cfg, nil); err == nil {
		t.Fatalf("expected error for unknown converter mode")
	}
}

func TestFromConfigExternalTools(t *testing.T) {
	cfg := config.Config{
		Converter: config.ConverterConfig{Mode: config.ModeCommand, Command: []string{"conv", "{input}", "{output}"}},
		Appender:  config.AppenderConfig{Mode: config.ModeNcrcat, Ncrcat: "/usr/bin/ncrcat"},
		IoTDB:     config.IoTDBConfig{Enabled: true, Host: "127.0.0.1", Port: "6667"},
	}
	tr, err := FromConfig(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := tr.Converter.(cdf.CommandConverter); !ok {
		t.Fatalf("expected command converter, got %T", tr.Converter)
	}
	if app, ok := tr.Appender.(cdf.NcrcatAppender); !ok || app.Path != "/usr/bin/ncrcat" {
		t.Fatalf("expected ncrcat appender, got %#v", tr.Appender)
	}
	if tr.Exporter == nil || tr.Metrics == nil {
		t.Fatalf("expected exporter and metrics to be wired")
	}
}
