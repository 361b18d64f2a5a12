package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"webmpipe/internal/naming"
	"webmpipe/internal/pipeline"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
	ansiClear  = "\x1b[2K"
)

const (
	statusLabelWidth = 20
	statusIndent     = "  "
)

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := statusKindLabel(kind)
	if message != "" {
		statusText = fmt.Sprintf("[%s] %s", statusText, message)
	} else {
		statusText = fmt.Sprintf("[%s]", statusText)
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if colorize {
		if color := statusKindColor(kind); color != "" {
			return color + base + ansiReset
		}
	}
	return base
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	case statusInfo:
		return ansiBlue
	default:
		return ""
	}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// renderProgressLine summarizes a running pipeline on one line, e.g.
// "42.0% | running: Video 1 pass 2, Audio | 3/7 done".
func renderProgressLine(progress float64, stages []pipeline.StageInfo) string {
	var running []string
	done := 0
	for _, st := range stages {
		switch st.Status {
		case pipeline.StatusRunning:
			running = append(running, st.Label())
		case pipeline.StatusCompleted:
			done++
		}
	}
	line := fmt.Sprintf("%5.1f%%", progress)
	if len(running) > 0 {
		line += " | running: " + strings.Join(running, ", ")
	}
	return fmt.Sprintf("%s | %d/%d done", line, done, len(stages))
}

func stageStatusKind(status pipeline.Status) statusKind {
	switch status {
	case pipeline.StatusCompleted:
		return statusOK
	case pipeline.StatusFailed, pipeline.StatusAborted:
		return statusError
	case pipeline.StatusRunning:
		return statusWarn
	default:
		return statusInfo
	}
}

func renderStageTable(stages []pipeline.StageInfo) string {
	rows := make([][]string, 0, len(stages))
	for _, st := range stages {
		elapsed := "-"
		if d := st.Elapsed(); d > 0 {
			elapsed = naming.FormatDuration(d)
		}
		output := "-"
		if st.OutputBytes > 0 {
			output = naming.FormatSize(st.OutputBytes)
		}
		rows = append(rows, []string{st.Label(), st.Status.String(), elapsed, output, st.Err})
	}
	return renderTable(
		[]string{"Stage", "Status", "Elapsed", "Output", "Error"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft},
	)
}
