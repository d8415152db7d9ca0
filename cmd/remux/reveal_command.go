package main

import (
	"github.com/spf13/cobra"

	"remux/internal/config"
	"remux/internal/reveal"
)

func newRevealCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "reveal FILE",
		Short:       "Show a file in the system file manager",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		Args:        cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			return reveal.Show(cmd.Context(), path)
		},
	}
}
