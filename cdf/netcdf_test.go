package cdf

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fhs/go-netcdf/netcdf"

	"envlog2netcdf/datetime"
)

// writeLoggerFile writes a logger document with one reading per second starting at hh:00:00.
func writeLoggerFile(t *testing.T, dir string, hour, readings int) string {
	t.Helper()
	parts := make([]string, readings)
	for i := 0; i < readings; i++ {
		parts[i] = fmt.Sprintf(`{
  "timestamp": "2023.05.01-%02d:00:%02d",
  "weather_station": {
    "airPressure": {"unit": "hPa", "value": "%d"},
    "temperature": {"unit": "Celsius", "value": "21.5"}
  },
  "sensor par": {"unit": "umol/(m^2*s)", "value": "%d"},
  "spectrometer": {"integration time in µs": "5000", "wavelength": [400, 500, 600], "spectrum": [1, 2, 3]}
}`, hour, i, 1000+i, i)
	}
	doc := `{"environment_sensor_readings": [` + strings.Join(parts, ",") + `]}`
	path := filepath.Join(dir, fmt.Sprintf("2023-05-01_%02d-00-00_environmentlogger.json", hour))
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write logger file: %v", err)
	}
	return path
}

func TestJSONConverterLayout(t *testing.T) {
	dir := t.TempDir()
	in := writeLoggerFile(t, dir, 6, 3)
	out := filepath.Join(dir, "single.nc")

	if err := (JSONConverter{}).Convert(context.Background(), in, out); err != nil {
		t.Fatalf("convert: %v", err)
	}

	ds, err := Open(out)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer ds.Close()

	records, err := ds.Float64s(TimeVariable)
	if err != nil || len(records) != 3 {
		t.Fatalf("expected 3 records, got %d %v", len(records), err)
	}

	names, err := ds.VariableNames()
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]bool{
		TimeVariable:                         false,
		"sensor_par":                         false,
		"weather_station_airPressure":        false,
		"weather_station_temperature":        false,
		"spectrometer_integration_time_in_s": false,
		SpectrumVariable:                     false,
		"wvl_lgr":                            false,
	}
	for _, name := range names {
		if _, ok := want[name]; ok {
			want[name] = true
		}
	}
	for name, seen := range want {
		if !seen {
			t.Errorf("expected variable %s in %v", name, names)
		}
	}

	par, err := ds.VariablesByAttribute(SensorAttribute, "sensor_par")
	if err != nil {
		t.Fatal(err)
	}
	if len(par) != 1 || par[0].Name != "sensor_par" {
		t.Fatalf("expected sensor_par only, got %+v", par)
	}
	if par[0].Attributes.Units != "umol/(m^2*s)" || par[0].Attributes.Name != "sensor par" {
		t.Fatalf("unexpected attributes %+v", par[0].Attributes)
	}
	if par[0].Attributes.FillValue != "NaN" {
		t.Fatalf("expected NaN fill value, got %q", par[0].Attributes.FillValue)
	}
	if got := par[0].Data; len(got) != 3 || got[0] != 0 || got[2] != 2 {
		t.Fatalf("unexpected sensor_par data %v", got)
	}

	weather, err := ds.VariablesByAttribute(SensorAttribute, "weather_station")
	if err != nil {
		t.Fatal(err)
	}
	if len(weather) != 2 {
		t.Fatalf("expected two weather_station variables, got %d", len(weather))
	}

	times, err := ds.Float64s(TimeVariable)
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := datetime.FormatGeostreamTime(times[1]); got != "2023-05-01T06:00:01-07:00" {
		t.Fatalf("unexpected second timestamp %s", got)
	}

	spectrum, err := ds.VariablesByAttribute(SensorAttribute, "spectrometer")
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range spectrum {
		if v.Name != SpectrumVariable {
			continue
		}
		if len(v.Shape) != 2 || v.Shape[0] != 3 || v.Shape[1] != 3 {
			t.Fatalf("unexpected spectrum shape %v", v.Shape)
		}
		records := v.Records()
		if len(records) != 3 || len(records[2]) != 3 || records[2][0] != 1 || records[2][2] != 3 {
			t.Fatalf("expected one spectrum per record, got %v", records)
		}
	}
}

func TestDatasetReadsByteAndUnsignedTypes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "types.nc")
	nc, err := netcdf.CreateFile(path, netcdf.CLOBBER|netcdf.NETCDF4)
	if err != nil {
		t.Fatal(err)
	}
	dim, err := nc.AddDim(RecordDimension, 2)
	if err != nil {
		t.Fatal(err)
	}
	flags, err := nc.AddVar("sensor_flags", netcdf.UBYTE, []netcdf.Dim{dim})
	if err != nil {
		t.Fatal(err)
	}
	counts, err := nc.AddVar("counts", netcdf.UINT, []netcdf.Dim{dim})
	if err != nil {
		t.Fatal(err)
	}
	if err := writeTextAttr(flags.Attr(SensorAttribute), "sensor_flags"); err != nil {
		t.Fatal(err)
	}
	if err := counts.Attr(SensorAttribute).WriteUint32s([]uint32{7}); err != nil {
		t.Fatal(err)
	}
	if err := nc.EndDef(); err != nil {
		t.Fatal(err)
	}
	if err := flags.WriteUint8s([]uint8{1, 255}); err != nil {
		t.Fatal(err)
	}
	if err := counts.WriteUint32s([]uint32{4000000000, 1}); err != nil {
		t.Fatal(err)
	}
	if err := nc.Close(); err != nil {
		t.Fatal(err)
	}

	ds, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer ds.Close()

	vars, err := ds.VariablesByAttribute(SensorAttribute, "sensor_flags")
	if err != nil {
		t.Fatalf("a numeric sensor attribute elsewhere must not fail the lookup: %v", err)
	}
	if len(vars) != 1 || vars[0].Data[0] != 1 || vars[0].Data[1] != 255 {
		t.Fatalf("unexpected ubyte variable %+v", vars)
	}
	vars, err = ds.VariablesByAttribute(SensorAttribute, "7")
	if err != nil || len(vars) != 1 || vars[0].Name != "counts" || vars[0].Data[0] != 4000000000 {
		t.Fatalf("unexpected uint variable %+v %v", vars, err)
	}
}

func TestVariableRecords(t *testing.T) {
	flat := Variable{Shape: []uint64{3}, Data: []float64{1, 2, 3}}
	if got := flat.Records(); len(got) != 3 || got[1][0] != 2 {
		t.Fatalf("unexpected 1-D records %v", got)
	}
	grid := Variable{Shape: []uint64{2, 2}, Data: []float64{1, 2, 3, 4}}
	if got := grid.Records(); len(got) != 2 || got[1][0] != 3 || got[1][1] != 4 {
		t.Fatalf("unexpected 2-D records %v", got)
	}
	empty := Variable{Shape: []uint64{0, 4}}
	if got := empty.Records(); len(got) != 0 {
		t.Fatalf("expected no records, got %v", got)
	}
}

func TestJSONConverterFillsMissingValues(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "2023-05-01_environmentlogger.json")
	doc := `{"environment_sensor_readings": [
  {"timestamp": "2023.05.01-00:00:00", "sensor co2": {"unit": "ppm", "value": "430"}},
  {"timestamp": "2023.05.01-00:00:05", "sensor par": {"unit": "umol/(m^2*s)", "value": "7"}}
]}`
	if err := os.WriteFile(in, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "single.nc")
	if err := (JSONConverter{}).Convert(context.Background(), in, out); err != nil {
		t.Fatalf("convert: %v", err)
	}
	ds, err := Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer ds.Close()

	co2, err := ds.Float64s("sensor_co2")
	if err != nil {
		t.Fatal(err)
	}
	if co2[0] != 430 || !math.IsNaN(co2[1]) {
		t.Fatalf("expected [430 NaN], got %v", co2)
	}
}

func TestRecordAppenderSumsRecords(t *testing.T) {
	dir := t.TempDir()
	sizes := []int{2, 3, 1}
	single := filepath.Join(dir, "temp_single.nc")
	full := filepath.Join(dir, "temp_full.nc")

	for i, size := range sizes {
		in := writeLoggerFile(t, dir, i+1, size)
		if err := (JSONConverter{}).Convert(context.Background(), in, single); err != nil {
			t.Fatalf("convert %d: %v", i, err)
		}
		if err := (RecordAppender{}).Append(context.Background(), single, full); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		if err := os.Remove(single); err != nil {
			t.Fatal(err)
		}
	}

	ds, err := Open(full)
	if err != nil {
		t.Fatal(err)
	}
	defer ds.Close()

	times, err := ds.Float64s(TimeVariable)
	if err != nil || len(times) != 6 {
		t.Fatalf("expected 6 records, got %d %v", len(times), err)
	}
	for i := 1; i < len(times); i++ {
		if times[i] <= times[i-1] {
			t.Fatalf("expected records in append order, got %v", times)
		}
	}
	pressure, err := ds.Float64s("weather_station_airPressure")
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{1000, 1001, 1000, 1001, 1002, 1000}
	for i := range want {
		if pressure[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, pressure)
		}
	}
	spectrum, err := ds.Float64s(SpectrumVariable)
	if err != nil || len(spectrum) != 18 {
		t.Fatalf("expected 6x3 spectrum, got %d values %v", len(spectrum), err)
	}
}

func TestRecordAppenderRejectsMismatchedSchema(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "2023-05-01_environmentlogger.json")
	second := filepath.Join(dir, "2023-05-01_01_environmentlogger.json")
	if err := os.WriteFile(first, []byte(`{"environment_sensor_readings": [{"timestamp": "2023.05.01-00:00:00", "sensor co2": {"value": "1"}}]}`), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(second, []byte(`{"environment_sensor_readings": [{"timestamp": "2023.05.01-01:00:00", "sensor par": {"value": "1"}}]}`), 0o600); err != nil {
		t.Fatal(err)
	}
	single := filepath.Join(dir, "single.nc")
	full := filepath.Join(dir, "full.nc")
	for i, in := range []string{first, second} {
		if err := (JSONConverter{}).Convert(context.Background(), in, single); err != nil {
			t.Fatal(err)
		}
		err := (RecordAppender{}).Append(context.Background(), single, full)
		if i == 0 && err != nil {
			t.Fatalf("first append: %v", err)
		}
		if i == 1 && !errors.Is(err, ErrSchemaMismatch) {
			t.Fatalf("expected ErrSchemaMismatch, got %v", err)
		}
	}
}
