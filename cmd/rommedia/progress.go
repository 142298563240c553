package main

import (
	"fmt"
	"io"
	"path/filepath"

	"rommedia/internal/pipeline"
)

// progressReporter prints one line per ROM once it settles.
type progressReporter struct {
	status *statusPrinter
	total  int
	done   int
}

func newProgressReporter(out io.Writer, total int) *progressReporter {
	return &progressReporter{status: newStatusPrinter(out), total: total}
}

func (p *progressReporter) Report(e pipeline.Event) {
	switch e.Type {
	case pipeline.EventStateChanged:
		if !e.State.Terminal() {
			return
		}
		p.done++
		label := fmt.Sprintf("[%d/%d] %s", p.done, p.total, filepath.Base(e.RomPath))
		p.status.print(label, stateKind(e.State), stateMessage(e))
	case pipeline.EventRunHalted:
		p.status.print("Run halted", statusError, e.ErrorKind)
	}
}

func stateKind(state pipeline.State) statusKind {
	switch state {
	case pipeline.StateAssetsComplete:
		return statusOK
	case pipeline.StateAssetsPartial, pipeline.StateUnresolved, pipeline.StateDeferred:
		return statusWarn
	case pipeline.StateFailed:
		return statusError
	default:
		return statusInfo
	}
}

func stateMessage(e pipeline.Event) string {
	msg := string(e.State)
	if e.ErrorKind != "" {
		msg += " (" + e.ErrorKind + ")"
	}
	return msg
}
