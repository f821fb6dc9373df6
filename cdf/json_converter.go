package cdf

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"time"

	"github.com/fhs/go-netcdf/netcdf"
	"go.uber.org/multierr"

	"envlog2netcdf/datetime"
	"envlog2netcdf/envlog"
)

const (
	SpectrumVariable   = "sensor_spectrum"
	wavelengthDim      = "wvl"
	wavelengthVariable = "wvl_lgr"
	defaultTitle       = "Environment logger readings"
)

// JSONConverter converts logger files in process.
//
// Layout: an unlimited time dimension with a double "time" variable in days since the epoch, one
// double variable per measurement carrying sensor/name/units/source_key attributes, and the
// spectrometer spectrum as sensor_spectrum(time, wvl).
type JSONConverter struct {
	Title string
}

type series struct {
	varName   string
	sensor    string
	name      string
	units     string
	sourceKey string
	values    []float64
}

type spectrumSeries struct {
	wavelength []float64
	width      int
	values     []float64 // n readings x width
}

func (c JSONConverter) Convert(ctx context.Context, logPath, outPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	doc, err := envlog.ReadFile(logPath)
	if err != nil {
		return err
	}
	times, all, spectrum := layoutDocument(doc)

	title := c.Title
	if title == "" {
		title = defaultTitle
	}
	if err := writeLayout(outPath, title, filepath.Base(logPath), times, all, spectrum); err != nil {
		return fmt.Errorf("write %s: %w", outPath, err)
	}
	return nil
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// layoutDocument lines every reading up on the record dimension. Values a reading lacks are NaN.
func layoutDocument(doc *envlog.Document) ([]float64, []*series, *spectrumSeries) {
	n := len(doc.Readings)
	times := make([]float64, n)
	byName := make(map[string]*series)
	get := func(varName, sensor, name, sourceKey string) *series {
		s, ok := byName[varName]
		if !ok {
			s = &series{varName: varName, sensor: sensor, name: name, sourceKey: sourceKey, values: nanSlice(n)}
			byName[varName] = s
		}
		return s
	}

	var spectrum *spectrumSeries
	for i, reading := range doc.Readings {
		times[i] = datetime.TimeToDayOffset(reading.Timestamp)
		for key, m := range reading.Measurements {
			name := envlog.VariableName(key)
			s := get(name, name, key, key)
			s.values[i] = float64(m.Value)
			if s.units == "" {
				s.units = m.Unit
			}
		}
		for group, members := range reading.Groups {
			for member, m := range members {
				s := get(envlog.JoinName(group, member), envlog.VariableName(group), member, group+"/"+member)
				s.values[i] = float64(m.Value)
				if s.units == "" {
					s.units = m.Unit
				}
			}
		}
		if reading.Spectrometer == nil {
			continue
		}
		for setting, value := range reading.Spectrometer.Settings {
			s := get(envlog.JoinName(envlog.SpectrometerKey, setting), envlog.SpectrometerKey, setting, envlog.SpectrometerKey+"/"+setting)
			s.values[i] = value
		}
		if spectrum == nil && len(reading.Spectrometer.Wavelength) > 0 {
			spectrum = &spectrumSeries{wavelength: reading.Spectrometer.Wavelength}
		}
	}

	if spectrum != nil {
		spectrum.width = len(spectrum.wavelength)
		spectrum.values = nanSlice(n * spectrum.width)
		for i, reading := range doc.Readings {
			if reading.Spectrometer == nil {
				continue
			}
			row := reading.Spectrometer.Spectrum
			if len(row) > spectrum.width {
				row = row[:spectrum.width]
			}
			copy(spectrum.values[i*spectrum.width:], row)
		}
	}

	all := make([]*series, 0, len(byName))
	for _, s := range byName {
		all = append(all, s)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].varName < all[j].varName })
	return times, all, spectrum
}

func writeLayout(outPath, title, source string, times []float64, all []*series, spectrum *spectrumSeries) (err error) {
	ds, err := netcdf.CreateFile(outPath, netcdf.CLOBBER)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, ds.Close()) }()

	timeDim, err := ds.AddDim(RecordDimension, unlimited)
	if err != nil {
		return err
	}
	timeVar, err := ds.AddVar(TimeVariable, netcdf.DOUBLE, []netcdf.Dim{timeDim})
	if err != nil {
		return err
	}
	err = multierr.Combine(
		writeTextAttr(timeVar.Attr("units"), datetime.TimeUnits),
		writeTextAttr(timeVar.Attr("long_name"), "time"),
	)
	if err != nil {
		return err
	}

	vars := make([]netcdf.Var, len(all))
	for i, s := range all {
		v, err := ds.AddVar(s.varName, netcdf.DOUBLE, []netcdf.Dim{timeDim})
		if err != nil {
			return fmt.Errorf("variable %s: %w", s.varName, err)
		}
		if err := writeSeriesAttrs(v, s.sensor, s.name, s.units, s.sourceKey); err != nil {
			return fmt.Errorf("variable %s: %w", s.varName, err)
		}
		vars[i] = v
	}

	var wvlVar, specVar netcdf.Var
	if spectrum != nil && spectrum.width > 0 {
		wvlDim, err := ds.AddDim(wavelengthDim, uint64(spectrum.width))
		if err != nil {
			return err
		}
		if wvlVar, err = ds.AddVar(wavelengthVariable, netcdf.DOUBLE, []netcdf.Dim{wvlDim}); err != nil {
			return err
		}
		if err := writeTextAttr(wvlVar.Attr("units"), "nm"); err != nil {
			return err
		}
		if specVar, err = ds.AddVar(SpectrumVariable, netcdf.DOUBLE, []netcdf.Dim{timeDim, wvlDim}); err != nil {
			return err
		}
		if err := writeSeriesAttrs(specVar, envlog.SpectrometerKey, "spectrum", "", envlog.SpectrometerKey+"/spectrum"); err != nil {
			return err
		}
	}

	err = multierr.Combine(
		writeTextAttr(ds.Attr("title"), title),
		writeTextAttr(ds.Attr("source"), source),
		writeTextAttr(ds.Attr("history"), time.Now().UTC().Format(time.RFC3339)+" converted from "+source),
	)
	if err != nil {
		return err
	}
	if err := ds.EndDef(); err != nil {
		return err
	}

	n := uint64(len(times))
	if n == 0 {
		return nil
	}
	if err := timeVar.WriteFloat64Slice(times, []uint64{0}, []uint64{n}); err != nil {
		return fmt.Errorf("variable %s: %w", TimeVariable, err)
	}
	for i, s := range all {
		if err := vars[i].WriteFloat64Slice(s.values, []uint64{0}, []uint64{n}); err != nil {
			return fmt.Errorf("variable %s: %w", s.varName, err)
		}
	}
	if spectrum != nil && spectrum.width > 0 {
		if err := wvlVar.WriteFloat64s(spectrum.wavelength); err != nil {
			return err
		}
		width := uint64(spectrum.width)
		if err := specVar.WriteFloat64Slice(spectrum.values, []uint64{0, 0}, []uint64{n, width}); err != nil {
			return fmt.Errorf("variable %s: %w", SpectrumVariable, err)
		}
	}
	return nil
}

func writeSeriesAttrs(v netcdf.Var, sensor, name, units, sourceKey string) error {
	err := multierr.Combine(
		writeTextAttr(v.Attr(SensorAttribute), sensor),
		writeTextAttr(v.Attr("name"), name),
		writeTextAttr(v.Attr("source_key"), sourceKey),
		v.Attr("_FillValue").WriteFloat64s([]float64{math.NaN()}),
	)
	if err == nil && units != "" {
		err = writeTextAttr(v.Attr("units"), units)
	}
	return err
}
