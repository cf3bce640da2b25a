package clientcli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/term"
)

const (
	progressTick = 100 * time.Millisecond
	barWidth     = 30
	narrowBar    = 20
)

// transfer draws a progress bar on stderr while get or put copies data.
// Off a terminal only the summary line is printed when it finishes.
type transfer struct {
	label   string
	total   int64
	moved   atomic.Int64
	started time.Time

	out   io.Writer
	tty   bool
	width int

	done    chan struct{}
	stopped chan struct{}
}

func newTransfer(label string, total int64) *transfer {
	fd := int(os.Stderr.Fd())
	t := &transfer{
		label:   label,
		total:   total,
		started: time.Now(),
		out:     os.Stderr,
		tty:     term.IsTerminal(fd),
		width:   80,
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	if t.tty {
		if w, _, err := term.GetSize(fd); err == nil && w > 0 {
			t.width = w
		}
	}
	go t.run()
	return t
}

func (t *transfer) run() {
	defer close(t.stopped)
	ticker := time.NewTicker(progressTick)
	defer ticker.Stop()
	for {
		select {
		case <-t.done:
			t.draw(true)
			return
		case <-ticker.C:
			t.draw(false)
		}
	}
}

// finish prints the final state and waits for the drawing goroutine.
func (t *transfer) finish() {
	close(t.done)
	<-t.stopped
}

func (t *transfer) draw(final bool) {
	moved := t.moved.Load()
	elapsed := max(time.Since(t.started), time.Millisecond)
	rate := float64(moved) / elapsed.Seconds()

	if !t.tty {
		if final {
			fmt.Fprintf(t.out, "%s: %s (%s/s)\n", t.label, formatBytes(t.total), formatBytes(int64(rate)))
		}
		return
	}

	line := progressLine(t.label, moved, t.total, rate, t.width, final)
	fmt.Fprint(t.out, "\r"+line)
	if final {
		fmt.Fprintln(t.out)
	}
}

// progressLine renders one frame of the bar padded to width.
func progressLine(label string, moved, total int64, rate float64, width int, final bool) string {
	frac := 0.0
	if total > 0 {
		frac = min(float64(moved)/float64(total), 1)
	}

	size := barWidth
	if width < 80 {
		size = narrowBar
	}
	filled := int(frac * float64(size))
	bar := strings.Repeat("=", filled)
	if filled < size {
		if !final {
			bar += ">"
		} else {
			bar += " "
		}
		bar += strings.Repeat(" ", size-filled-1)
	}

	line := fmt.Sprintf("%s [%s] %5.1f%% %s/%s %s/s",
		label, bar, frac*100, formatBytes(moved), formatBytes(total), formatBytes(int64(rate)))
	if !final && rate > 0 && moved < total {
		eta := time.Duration(float64(total-moved)/rate) * time.Second
		line += " ETA " + formatDuration(eta)
	}
	if pad := width - len(line); pad > 0 {
		line += strings.Repeat(" ", pad)
	}
	return line
}

type countingWriter struct {
	w io.Writer
	t *transfer
}

func (c countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.t.moved.Add(int64(n))
	return n, err
}

type countingReader struct {
	r io.Reader
	t *transfer
}

func (c countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.t.moved.Add(int64(n))
	return n, err
}

func (t *transfer) writer(w io.Writer) io.Writer { return countingWriter{w: w, t: t} }

func (t *transfer) reader(r io.Reader) io.Reader { return countingReader{r: r, t: t} }
