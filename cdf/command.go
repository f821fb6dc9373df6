package cdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	"envlog2netcdf/filesystem"
	"envlog2netcdf/logging"
)

const (
	InputPlaceholder  = "{input}"
	OutputPlaceholder = "{output}"
	DefaultNcrcat     = "ncrcat"
)

// CommandConverter runs an external converter. Args is the argv template; {input} and {output}
// are replaced by the logger file and the netCDF destination.
type CommandConverter struct {
	Args   []string
	Logger *zap.SugaredLogger
}

func (c CommandConverter) Convert(ctx context.Context, logPath, outPath string) error {
	if len(c.Args) == 0 {
		return errors.New("converter command is empty")
	}
	argv := make([]string, len(c.Args))
	for i, arg := range c.Args {
		arg = strings.ReplaceAll(arg, InputPlaceholder, logPath)
		argv[i] = strings.ReplaceAll(arg, OutputPlaceholder, outPath)
	}
	return runCommand(ctx, c.Logger, argv)
}

// NcrcatAppender shells out to NCO's ncrcat --record_append.
type NcrcatAppender struct {
	Path   string
	Logger *zap.SugaredLogger
}

func (a NcrcatAppender) Append(ctx context.Context, srcPath, dstPath string) error {
	exists, err := filesystem.FileExists(dstPath)
	if err != nil {
		return err
	}
	if !exists {
		return filesystem.CopyFile(srcPath, dstPath)
	}
	path := a.Path
	if path == "" {
		path = DefaultNcrcat
	}
	return runCommand(ctx, a.Logger, []string{path, "--record_append", srcPath, dstPath})
}

func runCommand(ctx context.Context, logger *zap.SugaredLogger, argv []string) error {
	logging.OrNop(logger).Debugf("Running command: %v", argv)
	var output bytes.Buffer
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdout = &output
	cmd.Stderr = &output
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w: %s", argv[0], err, strings.TrimSpace(output.String()))
	}
	return nil
}
