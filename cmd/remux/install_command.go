package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"remux/internal/deps"
	"remux/internal/installer"
)

func newInstallFFmpegCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "install-ffmpeg",
		Short: "Install ffmpeg through the platform package manager",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			prober := deps.NewFFmpegProber(cfg.FFmpeg.Binary)
			if available, err := prober.Probe(cmd.Context()); err != nil {
				return err
			} else if available {
				fmt.Fprintln(out, "ffmpeg is already available")
				return nil
			}

			inst := installer.New(installer.WithTimeout(time.Duration(cfg.Install.TimeoutSeconds) * time.Second))
			err = inst.Install(cmd.Context(), func(line string) {
				fmt.Fprintln(out, line)
			})
			if err != nil {
				if errors.Is(err, installer.ErrUnsupportedPlatform) {
					fmt.Fprintln(out, installer.ManualInstructions())
				}
				return err
			}

			// The package manager reported success; verify the binary answers.
			available, err := prober.Probe(cmd.Context())
			if err != nil {
				return err
			}
			if !available {
				fmt.Fprintln(out, installer.ManualInstructions())
				return errors.New("ffmpeg is still not available after installation")
			}
			fmt.Fprintln(out, "ffmpeg installed")
			return nil
		},
	}
}
