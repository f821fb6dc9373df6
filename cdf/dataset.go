package cdf

import (
	"fmt"

	"github.com/fhs/go-netcdf/netcdf"
)

// Variable is one netCDF variable with its schema attributes and data flattened in C order.
type Variable struct {
	Name       string
	Attributes AttributeSet
	Shape      []uint64
	Data       []float64
}

// Records splits Data along the first dimension. A variable of rank 0 or 1 yields one value per record.
func (v Variable) Records() [][]float64 {
	if len(v.Shape) < 2 {
		records := make([][]float64, len(v.Data))
		for i := range v.Data {
			records[i] = v.Data[i : i+1]
		}
		return records
	}
	n := int(v.Shape[0])
	if n == 0 {
		return nil
	}
	stride := len(v.Data) / n
	records := make([][]float64, n)
	for i := range records {
		records[i] = v.Data[i*stride : (i+1)*stride]
	}
	return records
}

// Dataset is a read-only netCDF file.
type Dataset struct {
	ds netcdf.Dataset
}

// Open opens path read-only. The caller must Close it.
func Open(path string) (*Dataset, error) {
	ds, err := netcdf.OpenFile(path, netcdf.NOWRITE)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &Dataset{ds: ds}, nil
}

func (d *Dataset) Close() error {
	return d.ds.Close()
}

// VariableNames lists every variable in definition order.
func (d *Dataset) VariableNames() ([]string, error) {
	n, err := d.ds.NVars()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, n)
	for i := 0; i < n; i++ {
		name, err := d.ds.VarN(i).Name()
		if err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, nil
}

// VariablesByAttribute returns the variables whose text attribute attr equals value, with data.
// Variables without the attribute, or with one that cannot be read as text, never match.
func (d *Dataset) VariablesByAttribute(attr, value string) ([]Variable, error) {
	n, err := d.ds.NVars()
	if err != nil {
		return nil, err
	}
	matches := make([]Variable, 0)
	for i := 0; i < n; i++ {
		v := d.ds.VarN(i)
		text, ok, err := readTextAttr(v.Attr(attr))
		if err != nil || !ok || text != value {
			continue
		}
		variable, err := readVariable(v)
		if err != nil {
			return nil, err
		}
		matches = append(matches, variable)
	}
	return matches, nil
}

// Float64s reads the whole variable name as float64.
func (d *Dataset) Float64s(name string) ([]float64, error) {
	v, err := d.ds.Var(name)
	if err != nil {
		return nil, fmt.Errorf("variable %s: %w", name, err)
	}
	return readFloat64s(v)
}

func recordCount(ds netcdf.Dataset) (uint64, error) {
	dim, err := ds.Dim(RecordDimension)
	if err != nil {
		return 0, fmt.Errorf("dimension %s: %w", RecordDimension, err)
	}
	return dim.Len()
}

func readVariable(v netcdf.Var) (Variable, error) {
	name, err := v.Name()
	if err != nil {
		return Variable{}, err
	}
	attrs, err := ReadAttributes(v)
	if err != nil {
		return Variable{}, fmt.Errorf("variable %s: %w", name, err)
	}
	shape, err := v.LenDims()
	if err != nil {
		return Variable{}, fmt.Errorf("variable %s: %w", name, err)
	}
	data, err := readFloat64s(v)
	if err != nil {
		return Variable{}, fmt.Errorf("variable %s: %w", name, err)
	}
	return Variable{Name: name, Attributes: attrs, Shape: shape, Data: data}, nil
}

// readFloat64s reads any numeric variable widened to float64.
func readFloat64s(v netcdf.Var) ([]float64, error) {
	n, err := v.Len()
	if err != nil {
		return nil, err
	}
	typ, err := v.Type()
	if err != nil {
		return nil, err
	}
	switch typ {
	case netcdf.DOUBLE:
		data := make([]float64, n)
		return data, v.ReadFloat64s(data)
	case netcdf.FLOAT:
		buf := make([]float32, n)
		if err := v.ReadFloat32s(buf); err != nil {
			return nil, err
		}
		return widen(buf), nil
	case netcdf.INT:
		buf := make([]int32, n)
		if err := v.ReadInt32s(buf); err != nil {
			return nil, err
		}
		return widen(buf), nil
	case netcdf.SHORT:
		buf := make([]int16, n)
		if err := v.ReadInt16s(buf); err != nil {
			return nil, err
		}
		return widen(buf), nil
	case netcdf.INT64:
		buf := make([]int64, n)
		if err := v.ReadInt64s(buf); err != nil {
			return nil, err
		}
		return widen(buf), nil
	case netcdf.BYTE:
		buf := make([]int8, n)
		if err := v.ReadInt8s(buf); err != nil {
			return nil, err
		}
		return widen(buf), nil
	case netcdf.UBYTE:
		buf := make([]uint8, n)
		if err := v.ReadUint8s(buf); err != nil {
			return nil, err
		}
		return widen(buf), nil
	case netcdf.USHORT:
		buf := make([]uint16, n)
		if err := v.ReadUint16s(buf); err != nil {
			return nil, err
		}
		return widen(buf), nil
	case netcdf.UINT:
		buf := make([]uint32, n)
		if err := v.ReadUint32s(buf); err != nil {
			return nil, err
		}
		return widen(buf), nil
	case netcdf.UINT64:
		buf := make([]uint64, n)
		if err := v.ReadUint64s(buf); err != nil {
			return nil, err
		}
		return widen(buf), nil
	}
	return nil, fmt.Errorf("unsupported variable type %v", typ)
}
