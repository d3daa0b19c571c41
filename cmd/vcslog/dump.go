package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/therealutkarshpriyadarshi/vcslog/internal/dump"
	"github.com/therealutkarshpriyadarshi/vcslog/internal/metrics"
	"github.com/therealutkarshpriyadarshi/vcslog/internal/output"
)

type dumpOptions struct {
	*rootOptions
	format          string
	compression     string
	pattern         string
	sort            bool
	output          string
	metricsTextfile string
}

func newDumpCmd(root *rootOptions) *cobra.Command {
	opts := &dumpOptions{rootOptions: root}

	cmd := &cobra.Command{
		Use:   "dump [files...]",
		Short: "Write every logged command as a table",
		Long: `Parse the log files and write one row per command. With no file
arguments every log file in the home logs directory is read.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, args)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.format, "format", "f", "", "Output format: csv, tsv, jsonl")
	flags.StringVarP(&opts.compression, "compression", "z", "", "Output compression: none, gzip, snappy, zstd, lz4")
	flags.StringVar(&opts.pattern, "pattern", "", "Log file name pattern (default vcslog-*)")
	flags.BoolVar(&opts.sort, "sort", true, "Read discovered log files in name order")
	flags.StringVarP(&opts.output, "output", "o", "", "Write to file instead of stdout")
	flags.StringVar(&opts.metricsTextfile, "metrics-textfile", "", "Write run metrics to a node_exporter textfile")
	return cmd
}

func (o *dumpOptions) run(cmd *cobra.Command, args []string) error {
	rt, err := o.setup(cmd)
	if err != nil {
		return err
	}
	cfg := rt.cfg

	flags := cmd.Flags()
	if o.format != "" {
		cfg.Dump.Format = o.format
	}
	if o.compression != "" {
		cfg.Dump.Compression = o.compression
	}
	if o.pattern != "" {
		cfg.Dump.Pattern = o.pattern
	}
	if flags.Changed("sort") {
		cfg.Dump.Sort = &o.sort
	}
	if o.output != "" {
		cfg.Dump.Output = o.output
	}
	if o.metricsTextfile != "" {
		cfg.Metrics.Textfile = o.metricsTextfile
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	paths := args
	if len(paths) == 0 {
		paths, err = rt.env.LogFiles(cfg.Dump.Pattern, cfg.SortFiles())
		if err != nil {
			return err
		}
	}

	compression, err := output.ParseCompressionType(cfg.Dump.Compression)
	if err != nil {
		return err
	}

	var w io.Writer = cmd.OutOrStdout()
	if cfg.Dump.Output != "" {
		file, err := os.Create(cfg.Dump.Output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer file.Close()
		w = file
	}

	cw, err := output.NewCompressedWriter(w, compression)
	if err != nil {
		return err
	}

	sink, err := output.New(output.Format(cfg.Dump.Format), cw)
	if err != nil {
		cw.Close()
		return err
	}

	collector := metrics.NewCollector()
	dumper := dump.New(output.NewEmitter(sink),
		dump.WithLogger(rt.logger),
		dump.WithMetrics(collector),
	)

	_, runErr := dumper.Run(cmd.Context(), paths)
	if err := cw.Close(); err != nil && runErr == nil {
		runErr = fmt.Errorf("failed to finish compressed output: %w", err)
	}

	if cfg.Metrics.Textfile != "" {
		if err := collector.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			rt.logger.Warn().Err(err).Str("path", cfg.Metrics.Textfile).Msg("Failed to write metrics")
		}
	}
	return runErr
}
