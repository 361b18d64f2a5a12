package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand(overrides ...func(*commandContext)) *cobra.Command {
	var configFlag string

	ctx := newCommandContext(&configFlag)
	for _, override := range overrides {
		override(ctx)
	}

	rootCmd := &cobra.Command{
		Use:           "webmpipe",
		Short:         "Parallel two-pass WebM encoder",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	rootCmd.AddCommand(newEncodeCommand(ctx))
	rootCmd.AddCommand(newCheckCommand(ctx))
	rootCmd.AddCommand(newHistoryCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}
