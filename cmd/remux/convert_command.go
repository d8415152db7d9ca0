package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"remux/internal/batch"
	"remux/internal/config"
	"remux/internal/converter"
	"remux/internal/deps"
	"remux/internal/history"
	"remux/internal/installer"
	"remux/internal/logging"
	"remux/internal/naming"
	"remux/internal/notifications"
)

func newConvertCommand(ctx *commandContext) *cobra.Command {
	var noInstall bool
	var assumeYes bool

	cmd := &cobra.Command{
		Use:   "convert FILE...",
		Short: "Convert video files to MP4 by stream copy",
		Long:  "Converts each given video container to MP4 without re-encoding. Files are processed one at a time in the order given.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(cmd, ctx, args, noInstall, assumeYes)
		},
	}

	cmd.Flags().BoolVar(&noInstall, "no-install", false, "Never attempt to install ffmpeg automatically")
	cmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Install ffmpeg without prompting when it is missing")
	return cmd
}

func runConvert(cmd *cobra.Command, cmdCtx *commandContext, args []string, noInstall, assumeYes bool) error {
	cfg, err := cmdCtx.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := cmdCtx.ensureLogger()
	if err != nil {
		return err
	}
	// Progress events print from a separate goroutine; serialize all writes.
	colorize := shouldColorize(cmd.OutOrStdout())
	out := &syncWriter{writer: cmd.OutOrStdout()}

	paths, err := discoverInputs(out, args)
	if err != nil {
		return err
	}

	lock := flock.New(cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire run lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another remux run is active (lock %s)", cfg.LockPath())
	}
	defer func() { _ = lock.Unlock() }()

	prober := deps.NewFFmpegProber(cfg.FFmpeg.Binary)

	var inst installer.Installer
	if cfg.Install.Enabled && !noInstall {
		inst = installer.New(installer.WithTimeout(time.Duration(cfg.Install.TimeoutSeconds) * time.Second))
	}

	var resolverOpts []naming.Option
	if dir := strings.TrimSpace(cfg.Paths.OutputDir); dir != "" {
		resolverOpts = append(resolverOpts, naming.WithOutputDir(dir))
	}
	convertClient := converter.NewCLI(
		converter.WithBinary(cfg.FFmpeg.Binary),
		converter.WithTimeout(time.Duration(cfg.FFmpeg.TimeoutSeconds)*time.Second),
		converter.WithResolver(naming.NewResolver(resolverOpts...)),
	)

	orchOpts := []batch.Option{batch.WithLogger(logger)}
	if cfg.History.Enabled {
		store, err := history.Open(cmd.Context(), cfg.HistoryDBPath(),
			history.WithKeepLast(cfg.History.KeepLast),
			history.WithLogger(logger))
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		orchOpts = append(orchOpts, batch.WithRecorder(store))
	}

	orch, err := batch.NewOrchestrator(prober, inst, convertClient, orchOpts...)
	if err != nil {
		return err
	}

	stop := make(chan struct{})
	drained := make(chan struct{})
	go drainEvents(out, orch.Events(), stop, drained)
	var stopOnce sync.Once
	stopDrain := func() {
		stopOnce.Do(func() {
			close(stop)
			<-drained
		})
	}
	defer stopDrain()

	notifier := notifications.NewService(cfg)
	if err := notifier.NotifyBatchStarted(cmd.Context(), len(paths)); err != nil {
		logger.Warn("send batch-started notification", logging.Error(err))
	}

	started := time.Now()
	submitErr := orch.Submit(cmd.Context(), paths)
	if errors.Is(submitErr, batch.ErrToolMissing) {
		submitErr = handleToolMissing(cmd, out, cfg, orch, notifier, noInstall, assumeYes)
	}
	stopDrain()
	if submitErr != nil {
		return submitErr
	}

	snapshot := orch.Snapshot()
	renderResults(out, snapshot, colorize)

	done, failed := 0, 0
	for _, item := range snapshot.Items {
		switch item.State {
		case batch.ItemDone:
			done++
		case batch.ItemFailed:
			failed++
		}
	}
	if err := notifier.NotifyBatchCompleted(cmd.Context(), done, failed, time.Since(started)); err != nil {
		logger.Warn("send batch-completed notification", logging.Error(err))
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d conversions failed", failed, len(snapshot.Items))
	}
	return nil
}

// discoverInputs expands and filters the argument list, keeping only
// existing files with a convertible container extension.
func discoverInputs(out io.Writer, args []string) ([]string, error) {
	paths := make([]string, 0, len(args))
	for _, arg := range args {
		expanded, err := config.ExpandPath(arg)
		if err != nil {
			return nil, err
		}
		info, err := os.Stat(expanded)
		if err != nil {
			return nil, fmt.Errorf("input %s: %w", arg, err)
		}
		if info.IsDir() {
			fmt.Fprintf(out, "skipping %s: is a directory\n", expanded)
			continue
		}
		if !naming.IsConvertible(expanded) {
			fmt.Fprintf(out, "skipping %s: not a convertible video container\n", expanded)
			continue
		}
		paths = append(paths, expanded)
	}
	if len(paths) == 0 {
		return nil, errors.New("no convertible video files among the arguments")
	}
	return paths, nil
}

// handleToolMissing runs the install-on-demand flow for a paused batch.
func handleToolMissing(cmd *cobra.Command, out io.Writer, cfg *config.Config, orch *batch.Orchestrator, notifier notifications.Service, noInstall, assumeYes bool) error {
	_ = notifier.NotifyToolMissing(cmd.Context())

	fmt.Fprintf(out, "FFmpeg (%s) is not available.\n", cfg.FFmpeg.Binary)

	if noInstall || !cfg.Install.Enabled {
		_ = orch.DeclineInstall()
		fmt.Fprintln(out, installer.ManualInstructions())
		return errors.New("ffmpeg is not installed")
	}

	accepted := assumeYes
	if !accepted {
		accepted = promptYesNo(cmd, out, "Install ffmpeg now? [y/N] ")
	}
	if !accepted {
		_ = orch.DeclineInstall()
		fmt.Fprintln(out, installer.ManualInstructions())
		return errors.New("ffmpeg is not installed")
	}

	err := orch.RetryInstall(cmd.Context())
	switch {
	case err == nil:
		return nil
	case errors.Is(err, batch.ErrToolMissing):
		_ = orch.DeclineInstall()
		fmt.Fprintln(out, "FFmpeg is still not available after installation.")
		fmt.Fprintln(out, installer.ManualInstructions())
		return errors.New("ffmpeg is not installed")
	default:
		_ = orch.DeclineInstall()
		fmt.Fprintln(out, installer.ManualInstructions())
		return err
	}
}

// promptYesNo asks on the terminal; anything but an interactive yes counts
// as a decline.
func promptYesNo(cmd *cobra.Command, out io.Writer, question string) bool {
	if !stdinIsTerminal() {
		return false
	}
	fmt.Fprint(out, question)
	reader := bufio.NewReader(cmd.InOrStdin())
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func drainEvents(out io.Writer, events <-chan batch.Event, stop <-chan struct{}, drained chan<- struct{}) {
	defer close(drained)
	for {
		select {
		case event := <-events:
			printEvent(out, event)
		case <-stop:
			for {
				select {
				case event := <-events:
					printEvent(out, event)
				default:
					return
				}
			}
		}
	}
}

func printEvent(out io.Writer, event batch.Event) {
	switch event.Kind {
	case batch.EventItemStarted:
		if event.Item != nil {
			fmt.Fprintf(out, "converting %s\n", event.Item.DisplayName)
		}
	case batch.EventItemFinished:
		if event.Item == nil {
			return
		}
		if event.Item.State == batch.ItemDone {
			fmt.Fprintf(out, "done %s -> %s\n", event.Item.DisplayName, event.Item.OutputPath)
		} else {
			fmt.Fprintf(out, "failed %s: %s\n", event.Item.DisplayName, event.Item.ErrorDetail)
		}
	case batch.EventInstallProgress:
		fmt.Fprintf(out, "  %s\n", event.Detail)
	}
}

func renderResults(out io.Writer, snapshot batch.Snapshot, table bool) {
	if len(snapshot.Items) == 0 {
		return
	}

	if table {
		rows := make([][]string, 0, len(snapshot.Items))
		for _, item := range snapshot.Items {
			result := item.OutputPath
			if item.State == batch.ItemFailed {
				result = item.ErrorDetail
			}
			rows = append(rows, []string{item.DisplayName, string(item.State), result})
		}
		fmt.Fprintln(out, renderTable([]string{"File", "Result", "Output / Error"}, rows))
	}
	fmt.Fprintf(out, "Outcome: %s (%d files)\n", snapshot.Outcome, len(snapshot.Items))
}
