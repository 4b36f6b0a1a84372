package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"msconvert/internal/batch"
	"msconvert/internal/runlog"
	"msconvert/internal/services"
	"msconvert/internal/session"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	statusLabelWidth = 20
	statusIndent     = "  "
)

// renderStatusLine prints "  Label:   [OK] message", colored on terminals.
func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := fmt.Sprintf("[%s]", statusKindLabel(kind))
	if message != "" {
		statusText += " " + message
	}
	line := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if colorize {
		return statusKindColors(kind).Sprint(line)
	}
	return line
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

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		colors := statusKindColors(statusInfo)
		line, rule = colors.Sprint(line), colors.Sprint(rule)
	}
	return []string{line, rule}
}

// stateKind maps a session state onto the status palette.
func stateKind(state session.State) statusKind {
	switch state {
	case session.StateFullyConverted:
		return statusOK
	case session.StatePartiallyConverted, session.StateUnconverted:
		return statusWarn
	case session.StateMissingSource:
		return statusError
	default:
		return statusInfo
	}
}

// outcomeKind maps a run ledger outcome onto the status palette.
func outcomeKind(outcome string) statusKind {
	switch outcome {
	case services.OutcomeComplete, batch.OutcomeUpToDate:
		return statusOK
	case services.OutcomeSkipped, services.OutcomeRetry, batch.OutcomeLocked, runlog.OutcomeRunning:
		return statusWarn
	case services.OutcomeCorrupt, services.OutcomeFailed:
		return statusError
	default:
		return statusInfo
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
