package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"envlog2netcdf/config"
	"envlog2netcdf/filesystem"
	"envlog2netcdf/geostream"
	"envlog2netcdf/logging"
	"envlog2netcdf/transformer"
)

type options struct {
	metadata     string
	workingSpace string
	overrideDate string
	batchSize    int
	configPath   string
	resultFile   string
	envFiles     []string
	debug        bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:          "envlog2netcdf [files or folders...]",
		Short:        "Merge one day of environment logger files into a netCDF file and a geostreams CSV",
		Long:         "Processes one day's worth of data at a time. Folders are searched one level deep for *_environmentlogger.json files.",
		Args:         cobra.ArbitraryArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cmd.OutOrStdout(), opts, args)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.metadata, "metadata", "", "request metadata file (JSON or YAML) with list_files, timestamp and working_folder")
	flags.StringVar(&opts.workingSpace, "working_space", "", "folder receiving the outputs; overrides the metadata working_folder")
	flags.StringVar(&opts.overrideDate, "override_date", "", "the date to use as part of the output file names, taken as given (normally YYYY-MM-DD)")
	flags.IntVar(&opts.batchSize, "batch_size", 3000, "max number of data points to submit at a time")
	flags.StringVar(&opts.resultFile, "result_file", "", "also write the result JSON to this file")
	flags.StringVar(&opts.configPath, "config", "", "configuration file (default ./envlog2netcdf.yaml when present)")
	flags.StringSliceVar(&opts.envFiles, "env_file", nil, "dotenv files to load before reading the environment (default .env)")
	flags.BoolVar(&opts.debug, "debug", false, "console logging at debug level")

	cmd.AddCommand(newSummarizeCommand())
	return cmd
}

func run(ctx context.Context, out io.Writer, opts *options, args []string) error {
	if err := config.LoadEnvFiles(opts.envFiles...); err != nil {
		return err
	}
	logger, err := logging.New(opts.debug)
	if err != nil {
		return err
	}
	defer logger.Sync()

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	tr, err := transformer.FromConfig(cfg, logger)
	if err != nil {
		return err
	}

	req := transformer.Request{Files: args}
	if opts.metadata != "" {
		md, err := transformer.ReadHostMetadata(opts.metadata)
		if err != nil {
			return err
		}
		req = md.Request(args)
	}
	if opts.workingSpace != "" {
		req.WorkingFolder = opts.workingSpace
	}
	req.OverrideDate = opts.overrideDate
	req.BatchSize = opts.batchSize

	result, err := tr.PerformProcess(ctx, req)
	if cfg.Metrics.Pushgateway != "" {
		if pushErr := tr.Metrics.Push(ctx, cfg.Metrics.Pushgateway, cfg.Metrics.Job); pushErr != nil {
			logger.Warnf("Push to %s failed: %v", cfg.Metrics.Pushgateway, pushErr)
		}
	}
	if err != nil {
		logger.Errorf("Run failed: %v", err)
		return err
	}

	body, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	if opts.resultFile != "" {
		if err := filesystem.WriteTextLines([]string{string(body)}, opts.resultFile, false); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintln(out, string(body))
	return err
}

func newSummarizeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "summarize <geostreams.csv>",
		Short: "Count the rows and missing readings of each trait in a geostreams CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			counts, err := geostream.Summarize(args[0])
			if err != nil {
				return err
			}
			traits := make([]string, 0, len(counts))
			for trait := range counts {
				traits = append(traits, trait)
			}
			sort.Strings(traits)
			for _, trait := range traits {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\t%d\n", trait, counts[trait].Rows, counts[trait].Missing)
			}
			return nil
		},
	}
}
