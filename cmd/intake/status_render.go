package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// severity ranks a status line for labeling and color.
type severity int

const (
	sevInfo severity = iota
	sevOK
	sevWarn
	sevError
)

var severityLabels = map[severity]string{
	sevInfo:  "INFO",
	sevOK:    "OK",
	sevWarn:  "WARN",
	sevError: "ERROR",
}

var severityColors = map[severity]string{
	sevInfo:  "\x1b[34m",
	sevOK:    "\x1b[32m",
	sevWarn:  "\x1b[33m",
	sevError: "\x1b[31m",
}

const colorReset = "\x1b[0m"

// statusPrinter writes the status command's sections and aligned lines,
// coloring by severity when the destination is a terminal.
type statusPrinter struct {
	out   io.Writer
	color bool
}

func newStatusPrinter(out io.Writer) *statusPrinter {
	return &statusPrinter{out: out, color: writerIsTerminal(out)}
}

func (p *statusPrinter) Section(title string) {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if p.color {
		line = severityColors[sevInfo] + line + colorReset
		rule = severityColors[sevInfo] + rule + colorReset
	}
	fmt.Fprintln(p.out, line)
	fmt.Fprintln(p.out, rule)
}

func (p *statusPrinter) Line(label string, sev severity, message string) {
	status := fmt.Sprintf("[%s]", severityLabels[sev])
	if message != "" {
		status += " " + message
	}
	line := fmt.Sprintf("  %-14s %s", label+":", status)
	if p.color {
		line = severityColors[sev] + line + colorReset
	}
	fmt.Fprintln(p.out, line)
}

func (p *statusPrinter) Blank() {
	fmt.Fprintln(p.out)
}

func writerIsTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(file.Fd()) || isatty.IsCygwinTerminal(file.Fd())
}
