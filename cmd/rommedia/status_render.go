package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

var statusStyles = map[statusKind]struct {
	tag    string
	colors text.Colors
}{
	statusInfo:  {"INFO", text.Colors{text.FgBlue}},
	statusOK:    {"OK", text.Colors{text.FgGreen}},
	statusWarn:  {"WARN", text.Colors{text.FgYellow}},
	statusError: {"ERROR", text.Colors{text.FgRed, text.Bold}},
}

// statusLabelWidth fits "[123/456] " plus a typical ROM name.
const statusLabelWidth = 40

// statusPrinter writes aligned status lines, coloured when out is a terminal.
type statusPrinter struct {
	out      io.Writer
	colorize bool
}

func newStatusPrinter(out io.Writer) *statusPrinter {
	return &statusPrinter{out: out, colorize: isTerminal(out)}
}

func (p *statusPrinter) print(label string, kind statusKind, message string) {
	fmt.Fprintln(p.out, renderStatusLine(label, kind, message, p.colorize))
}

// renderStatusLine pads label to a fixed column, trimming long ROM names
// with an ellipsis so the status column lines up.
func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	label += ":"
	if width := text.RuneWidthWithoutEscSequences(label); width > statusLabelWidth {
		label = text.Trim(label, statusLabelWidth-1) + "…"
	}
	label = text.Pad(label, statusLabelWidth, ' ')

	style := statusStyles[kind]
	status := "[" + style.tag + "]"
	if message != "" {
		status += " " + message
	}
	line := "  " + label + " " + status
	if colorize {
		return style.colors.Sprint(line)
	}
	return strings.TrimRight(line, " ")
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
