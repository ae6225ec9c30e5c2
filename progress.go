package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"

	"render-engine/internal/pipeline"
)

const (
	defaultBarWidth = 40
	// lineStep is the percent step between plain-text progress lines.
	lineStep = 10
)

// progressDisplay renders pipeline events for the CLI. On a terminal it
// redraws a single bar line; otherwise it prints a line per stage and per
// lineStep percent so logs stay readable.
type progressDisplay struct {
	out      io.Writer
	tty      bool
	barWidth int

	mu          sync.Mutex
	started     time.Time
	stage       string
	lastPercent int
	drawn       bool
}

func newProgressDisplay(f *os.File) *progressDisplay {
	d := &progressDisplay{out: f, barWidth: defaultBarWidth, lastPercent: -1}
	fd := int(f.Fd())
	if term.IsTerminal(fd) {
		d.tty = true
		if width, _, err := term.GetSize(fd); err == nil {
			// Leave room for the stage name and the numbers.
			d.barWidth = max(10, min(defaultBarWidth, width-40))
		}
	}
	return d
}

// Handle is a pipeline.EventFunc.
func (d *progressDisplay) Handle(e pipeline.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch e.Type {
	case pipeline.EventStageStarted:
		if d.started.IsZero() {
			d.started = e.Time
		}
		d.stage = e.Stage
		if !d.tty {
			fmt.Fprintf(d.out, "[%s] %s\n", shortID(e.JobID), e.Stage)
		}
	case pipeline.EventProgress:
		d.progress(e)
	case pipeline.EventCompleted:
		d.finish("done in "+e.Time.Sub(d.started).Round(time.Millisecond).String(), e)
	case pipeline.EventFailed:
		d.finish("failed: "+e.Error, e)
	case pipeline.EventCancelled:
		d.finish("cancelled", e)
	}
}

func (d *progressDisplay) progress(e pipeline.Event) {
	pct := int(e.Percent)
	if !d.tty {
		if d.lastPercent >= 0 && pct/lineStep == d.lastPercent/lineStep && pct < 100 {
			return
		}
		d.lastPercent = pct
		fmt.Fprintf(d.out, "[%s] %s %3d%%\n", shortID(e.JobID), d.stage, pct)
		return
	}

	d.lastPercent = pct
	fmt.Fprintf(d.out, "\r%-12s %s %3d%%", d.stage, bar(e.Percent, d.barWidth), pct)
	if e.Progress != nil {
		fmt.Fprintf(d.out, " %6.1f fps %5.2fx", e.Progress.FPS, e.Progress.Speed)
	}
	d.drawn = true
}

func (d *progressDisplay) finish(msg string, e pipeline.Event) {
	if d.tty && d.drawn {
		fmt.Fprintln(d.out)
		d.drawn = false
	}
	fmt.Fprintf(d.out, "[%s] %s\n", shortID(e.JobID), msg)
}

// bar draws pct in [0,100] as a fixed-width bar.
func bar(pct float64, width int) string {
	pct = max(0, min(100, pct))
	filled := int(pct / 100 * float64(width))
	return "[" + strings.Repeat("=", filled) + strings.Repeat(" ", width-filled) + "]"
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
