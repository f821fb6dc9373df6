package cdf

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fhs/go-netcdf/netcdf"
)

// AttributeSet is the fixed attribute schema read from a sensor variable. Attributes outside the
// schema are ignored.
type AttributeSet struct {
	Sensor       string
	Name         string
	Units        string
	LongName     string
	StandardName string
	FillValue    string
	SourceKey    string
}

func (a *AttributeSet) fields() []struct {
	attr  string
	value *string
} {
	return []struct {
		attr  string
		value *string
	}{
		{"sensor", &a.Sensor},
		{"name", &a.Name},
		{"units", &a.Units},
		{"long_name", &a.LongName},
		{"standard_name", &a.StandardName},
		{"_FillValue", &a.FillValue},
		{"source_key", &a.SourceKey},
	}
}

// Map returns the non-empty attributes keyed by netCDF attribute name. "name" falls back to varName.
func (a AttributeSet) Map(varName string) map[string]string {
	out := make(map[string]string)
	for _, f := range a.fields() {
		if *f.value != "" {
			out[f.attr] = *f.value
		}
	}
	if _, ok := out["name"]; !ok {
		out["name"] = varName
	}
	return out
}

// ReadAttributes reads the schema attributes present on v.
func ReadAttributes(v netcdf.Var) (AttributeSet, error) {
	var set AttributeSet
	for _, f := range set.fields() {
		text, ok, err := readTextAttr(v.Attr(f.attr))
		if err != nil {
			return set, fmt.Errorf("attribute %s: %w", f.attr, err)
		}
		if ok {
			*f.value = text
		}
	}
	return set, nil
}

// readTextAttr coerces an attribute to text. ok is false when the attribute does not exist.
func readTextAttr(a netcdf.Attr) (text string, ok bool, err error) {
	n, err := a.Len()
	if err != nil {
		return "", false, nil
	}
	typ, err := a.Type()
	if err != nil {
		return "", false, err
	}
	var values []float64
	switch typ {
	case netcdf.CHAR:
		buf := make([]byte, n)
		if err := a.ReadBytes(buf); err != nil {
			return "", false, err
		}
		return strings.TrimRight(string(buf), "\x00"), true, nil
	case netcdf.DOUBLE:
		values = make([]float64, n)
		err = a.ReadFloat64s(values)
	case netcdf.FLOAT:
		buf := make([]float32, n)
		err = a.ReadFloat32s(buf)
		values = widen(buf)
	case netcdf.INT:
		buf := make([]int32, n)
		err = a.ReadInt32s(buf)
		values = widen(buf)
	case netcdf.SHORT:
		buf := make([]int16, n)
		err = a.ReadInt16s(buf)
		values = widen(buf)
	case netcdf.INT64:
		buf := make([]int64, n)
		err = a.ReadInt64s(buf)
		values = widen(buf)
	case netcdf.BYTE:
		buf := make([]int8, n)
		err = a.ReadInt8s(buf)
		values = widen(buf)
	case netcdf.UBYTE:
		buf := make([]uint8, n)
		err = a.ReadUint8s(buf)
		values = widen(buf)
	case netcdf.USHORT:
		buf := make([]uint16, n)
		err = a.ReadUint16s(buf)
		values = widen(buf)
	case netcdf.UINT:
		buf := make([]uint32, n)
		err = a.ReadUint32s(buf)
		values = widen(buf)
	case netcdf.UINT64:
		buf := make([]uint64, n)
		err = a.ReadUint64s(buf)
		values = widen(buf)
	default:
		return "", false, fmt.Errorf("unsupported attribute type %v", typ)
	}
	if err != nil {
		return "", false, err
	}
	parts := make([]string, len(values))
	for i, f := range values {
		parts[i] = strconv.FormatFloat(f, 'g', -1, 64)
	}
	return strings.Join(parts, " "), true, nil
}

func writeTextAttr(a netcdf.Attr, text string) error {
	return a.WriteBytes([]byte(text))
}

type number interface {
	~float32 | ~int8 | ~uint8 | ~int16 | ~uint16 | ~int32 | ~uint32 | ~int64 | ~uint64
}

func widen[T number](in []T) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}
