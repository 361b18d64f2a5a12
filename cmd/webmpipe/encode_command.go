package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"webmpipe/internal/controller"
	"webmpipe/internal/encoder"
	"webmpipe/internal/history"
	"webmpipe/internal/logging"
	"webmpipe/internal/naming"
	"webmpipe/internal/options"
	"webmpipe/internal/pipeline"
	"webmpipe/internal/preflight"
)

type encodeFlags struct {
	output        string
	optionsRaw    string
	threads       int
	fontPath      string
	burnSubs      bool
	noAudio       bool
	duration      time.Duration
	skipPreflight bool
	showLog       bool
	showStages    bool
}

func newEncodeCommand(ctx *commandContext) *cobra.Command {
	var flags encodeFlags

	cmd := &cobra.Command{
		Use:   "encode <source>",
		Short: "Encode a source file to WebM with parallel two-pass segments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEncode(cmd, ctx, args[0], flags, cmd.Flags().Changed("options"))
		},
	}

	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "Output file or directory (default: next to the source)")
	cmd.Flags().StringVar(&flags.optionsRaw, "options", "", "ffmpeg option tokens replacing the configured defaults")
	cmd.Flags().IntVarP(&flags.threads, "threads", "t", 0, "Number of parallel video segments (default from config)")
	cmd.Flags().StringVar(&flags.fontPath, "font", "", "Font file made available to subtitle filters")
	cmd.Flags().BoolVar(&flags.burnSubs, "burn-subs", false, "Pass the font to video stages for subtitle burn-in")
	cmd.Flags().BoolVar(&flags.noAudio, "no-audio", false, "Drop audio from the output")
	cmd.Flags().DurationVar(&flags.duration, "duration", 0, "Source duration; skips the ffprobe lookup when set")
	cmd.Flags().BoolVar(&flags.skipPreflight, "skip-preflight", false, "Do not verify directories and binaries before encoding")
	cmd.Flags().BoolVar(&flags.showLog, "show-log", false, "Print every log stream after the run")
	cmd.Flags().BoolVar(&flags.showStages, "stages", false, "Print the stage table after the run")
	return cmd
}

func runEncode(cmd *cobra.Command, ctx *commandContext, sourceArg string, flags encodeFlags, optionsSet bool) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return err
	}

	sourcePath, err := filepath.Abs(strings.TrimSpace(sourceArg))
	if err != nil {
		return fmt.Errorf("resolve source: %w", err)
	}

	baseCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !flags.skipPreflight {
		if failed := preflight.Failed(preflight.RunAll(baseCtx, cfg)); len(failed) > 0 {
			names := make([]string, 0, len(failed))
			for _, r := range failed {
				names = append(names, fmt.Sprintf("%s (%s)", r.Name, r.Detail))
			}
			return fmt.Errorf("preflight failed: %s", strings.Join(names, "; "))
		}
	}

	data, err := os.ReadFile(sourcePath)
	if err != nil {
		return fmt.Errorf("read source: %w", err)
	}

	in := controller.Input{
		Source:   pipeline.Source{Name: filepath.Base(sourcePath), Data: data},
		BurnSubs: flags.burnSubs,
		Audio:    !flags.noAudio,
		Threads:  flags.threads,
		Duration: flags.duration,
	}
	if optionsSet {
		in.Options = options.Parse(flags.optionsRaw)
	}
	if in.Duration <= 0 {
		probe, err := ctx.probe(baseCtx, cfg.Encoder.FFprobeBinary, sourcePath)
		if err != nil {
			return fmt.Errorf("probe source: %w", err)
		}
		in.Duration = probe.Duration()
		in.Audio = in.Audio && probe.HasAudio()
	}
	if flags.fontPath != "" {
		font, err := os.ReadFile(flags.fontPath)
		if err != nil {
			return fmt.Errorf("read font: %w", err)
		}
		in.Font = &encoder.File{Name: filepath.Base(flags.fontPath), Data: font}
	}

	target := resolveOutputPath(sourcePath, flags.output, cfg.Encoder.TargetExtension)
	lock := flock.New(target + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire output lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another encode is writing %s", target)
	}
	defer func() {
		_ = lock.Unlock()
		_ = os.Remove(lock.Path())
	}()

	var ctrlOpts []controller.Option
	ctrlOpts = append(ctrlOpts, controller.WithLogger(logger))
	if cfg.History.Enabled {
		store, err := history.Open(cfg)
		if err != nil {
			logger.Warn("history unavailable; run will not be journaled",
				logging.Error(err),
				logging.String(logging.FieldEventType, "history_open_failed"),
			)
		} else {
			defer store.Close()
			ctrlOpts = append(ctrlOpts, controller.WithRecorder(store))
		}
	}

	ctrl := controller.New(cfg, ctx.newWorker(cfg, logger), ctrlOpts...)
	if err := ctrl.Start(baseCtx, in); err != nil {
		return err
	}

	progressDone := make(chan struct{})
	stderr := cmd.ErrOrStderr()
	interactive := shouldColorize(stderr)
	go func() {
		defer close(progressDone)
		if interactive {
			followProgress(baseCtx, ctrl, stderr)
		}
	}()

	res, runErr := ctrl.Wait(context.Background())
	stop()
	<-progressDone
	if interactive {
		fmt.Fprint(stderr, "\r"+ansiClear)
	}

	out := cmd.OutOrStdout()
	if flags.showStages {
		fmt.Fprintln(out, renderStageTable(ctrl.Stages()))
	}
	if flags.showLog {
		printStreams(out, ctrl.Snapshot())
	}

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			fmt.Fprintln(stderr, "Encode cancelled")
		}
		return runErr
	}

	if err := writeOutput(target, res.Output); err != nil {
		return err
	}
	fmt.Fprintf(out, "Wrote %s (%s)\n", target, naming.FormatSize(int64(len(res.Output))))
	if summary := lastMainLine(ctrl.Snapshot()); summary != "" {
		fmt.Fprintln(out, summary)
	}
	return nil
}

// resolveOutputPath places the derived output name next to the source, or
// inside output when it names a directory.
func resolveOutputPath(source, output, ext string) string {
	name := naming.OutputName(source, ext)
	output = strings.TrimSpace(output)
	if output == "" {
		return filepath.Join(filepath.Dir(source), name)
	}
	if info, err := os.Stat(output); err == nil && info.IsDir() {
		return filepath.Join(output, name)
	}
	return output
}

func writeOutput(target string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".*")
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close output: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("rename output: %w", err)
	}
	return nil
}

func followProgress(ctx context.Context, ctrl *controller.Controller, w io.Writer) {
	var version uint64
	for {
		fmt.Fprint(w, "\r"+ansiClear+renderProgressLine(ctrl.Progress(), ctrl.Stages()))
		next, err := ctrl.Updates(ctx, version)
		if err != nil || !ctrl.Active() {
			return
		}
		version = next
	}
}

func printStreams(w io.Writer, streams []logging.Stream) {
	for _, s := range streams {
		fmt.Fprintf(w, "== %s ==\n", s.Key)
		fmt.Fprint(w, s.Contents)
		if s.Contents != "" && !strings.HasSuffix(s.Contents, "\n") {
			fmt.Fprintln(w)
		}
	}
}

func lastMainLine(streams []logging.Stream) string {
	for _, s := range streams {
		if s.Key != pipeline.KeyMain {
			continue
		}
		lines := strings.Split(strings.TrimRight(s.Contents, "\n"), "\n")
		return lines[len(lines)-1]
	}
	return ""
}
