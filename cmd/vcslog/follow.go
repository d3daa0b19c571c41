package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/therealutkarshpriyadarshi/vcslog/internal/checkpoint"
	"github.com/therealutkarshpriyadarshi/vcslog/internal/dump"
	"github.com/therealutkarshpriyadarshi/vcslog/internal/follow"
	"github.com/therealutkarshpriyadarshi/vcslog/internal/output"
)

type followOptions struct {
	*rootOptions
	format     string
	existing   bool
	checkpoint string
}

func newFollowCmd(root *rootOptions) *cobra.Command {
	opts := &followOptions{rootOptions: root}

	cmd := &cobra.Command{
		Use:   "follow",
		Short: "Stream commands as they finish",
		Long: `Watch the logs directory and write a row each time a wrapped
command finishes. Runs until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.format, "format", "f", "", "Output format: csv, tsv, jsonl")
	flags.BoolVar(&opts.existing, "existing", false, "Write the records already logged before following")
	flags.StringVar(&opts.checkpoint, "checkpoint", "", "Remember emitted records in this file, relative to the logs directory")
	return cmd
}

func (o *followOptions) run(cmd *cobra.Command) error {
	rt, err := o.setup(cmd)
	if err != nil {
		return err
	}
	cfg := rt.cfg

	if o.format != "" {
		cfg.Dump.Format = o.format
	}
	if cmd.Flags().Changed("existing") {
		cfg.Follow.Existing = o.existing
	}
	if o.checkpoint != "" {
		cfg.Follow.Checkpoint = o.checkpoint
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	sink, err := output.New(output.Format(cfg.Dump.Format), cmd.OutOrStdout())
	if err != nil {
		return err
	}
	dumper := dump.New(output.NewEmitter(sink), dump.WithLogger(rt.logger))

	logsDir := rt.env.LogsDir()
	checkpointFile := cfg.Follow.Checkpoint
	if checkpointFile != "" && !filepath.IsAbs(checkpointFile) {
		checkpointFile = filepath.Join(logsDir, checkpointFile)
	}
	ckptMgr := checkpoint.NewManager(checkpointFile)
	if err := ckptMgr.Load(); err != nil {
		rt.logger.Warn().Err(err).Msg("Failed to load checkpoints, starting fresh")
	}

	existing, err := rt.env.LogFiles(cfg.Dump.Pattern, cfg.SortFiles())
	if err != nil {
		return err
	}

	follower, err := follow.New(logsDir, cfg.Dump.Pattern, dumper, ckptMgr, rt.logger)
	if err != nil {
		return err
	}
	defer follower.Close()

	if cfg.Follow.Existing {
		err = follower.CatchUp(existing)
	} else {
		err = follower.SkipExisting(existing)
	}
	if err != nil {
		return err
	}

	return follower.Run(cmd.Context())
}
