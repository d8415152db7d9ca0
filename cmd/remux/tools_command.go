package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"remux/internal/deps"
)

func newToolsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "Check availability of external tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			statuses := deps.CheckBinaries(deps.Requirements(cfg.FFmpeg.Binary))
			rows := make([][]string, 0, len(statuses))
			missingRequired := false
			for _, status := range statuses {
				detail := status.Detail
				if status.Available {
					detail = "ok"
				} else if !status.Optional {
					missingRequired = true
				}
				rows = append(rows, []string{status.Name, status.Command, yesNo(status.Available), detail})
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Tool", "Command", "Available", "Detail"},
				rows,
			))

			if missingRequired {
				return fmt.Errorf("required tools are missing; run `remux install-ffmpeg`")
			}
			return nil
		},
	}
}
