package cdf

import (
	"context"
	"fmt"

	"github.com/fhs/go-netcdf/netcdf"
	"go.uber.org/multierr"

	"envlog2netcdf/filesystem"
)

// RecordAppender appends along the record dimension in process, like ncrcat --record_append.
// Variables without the record dimension are taken from the first file only.
type RecordAppender struct{}

func (RecordAppender) Append(ctx context.Context, srcPath, dstPath string) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	exists, err := filesystem.FileExists(dstPath)
	if err != nil {
		return err
	}
	if !exists {
		return filesystem.CopyFile(srcPath, dstPath)
	}

	src, err := netcdf.OpenFile(srcPath, netcdf.NOWRITE)
	if err != nil {
		return fmt.Errorf("open %s: %w", srcPath, err)
	}
	defer func() { err = multierr.Append(err, src.Close()) }()

	dst, err := netcdf.OpenFile(dstPath, netcdf.WRITE)
	if err != nil {
		return fmt.Errorf("open %s: %w", dstPath, err)
	}
	defer func() { err = multierr.Append(err, dst.Close()) }()

	srcRecords, err := recordCount(src)
	if err != nil {
		return fmt.Errorf("%s: %w", srcPath, err)
	}
	dstRecords, err := recordCount(dst)
	if err != nil {
		return fmt.Errorf("%s: %w", dstPath, err)
	}
	if srcRecords == 0 {
		return nil
	}

	n, err := src.NVars()
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if err := appendVar(src.VarN(i), dst, dstRecords); err != nil {
			return err
		}
	}
	return nil
}

func appendVar(sv netcdf.Var, dst netcdf.Dataset, offset uint64) error {
	name, err := sv.Name()
	if err != nil {
		return err
	}
	dims, err := sv.Dims()
	if err != nil {
		return fmt.Errorf("variable %s: %w", name, err)
	}
	if len(dims) == 0 {
		return nil
	}
	first, err := dims[0].Name()
	if err != nil || first != RecordDimension {
		return err
	}

	dv, err := dst.Var(name)
	if err != nil {
		return fmt.Errorf("%w: variable %s missing from accumulator", ErrSchemaMismatch, name)
	}
	typ, err := dv.Type()
	if err != nil {
		return err
	}
	if typ != netcdf.DOUBLE {
		return fmt.Errorf("%w: variable %s is %v, only doubles are appended in process", ErrSchemaMismatch, name, typ)
	}
	srcShape, err := sv.LenDims()
	if err != nil {
		return err
	}
	dstShape, err := dv.LenDims()
	if err != nil {
		return err
	}
	if len(srcShape) != len(dstShape) {
		return fmt.Errorf("%w: variable %s rank %d vs %d", ErrSchemaMismatch, name, len(srcShape), len(dstShape))
	}
	for d := 1; d < len(srcShape); d++ {
		if srcShape[d] != dstShape[d] {
			return fmt.Errorf("%w: variable %s dimension %d is %d vs %d", ErrSchemaMismatch, name, d, srcShape[d], dstShape[d])
		}
	}

	data, err := readFloat64s(sv)
	if err != nil {
		return fmt.Errorf("variable %s: %w", name, err)
	}
	start := make([]uint64, len(srcShape))
	start[0] = offset
	if err := dv.WriteFloat64Slice(data, start, srcShape); err != nil {
		return fmt.Errorf("variable %s: %w", name, err)
	}
	return nil
}
