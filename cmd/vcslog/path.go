package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPathCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "path [component [elem...]]",
		Short: "Print the vcslog home or a path inside it",
		Long: `Print the vcslog home directory. With a component (src, bin or logs)
print that directory, joined with any further path elements.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			environment, err := root.environment()
			if err != nil {
				return err
			}

			path := environment.Basedir()
			if len(args) > 0 {
				path, err = environment.Path(args[0], args[1:]...)
				if err != nil {
					return err
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "vcslog %s\n", version)
		},
	}
}
