package cli

import (
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/term"

	"github.com/0x6d61/vulnprobe/internal/engine"
)

const maxLabel = 40

// progressLine renders sweep progress on a single terminal line and prints
// module status messages above it. Progress is only drawn on a terminal.
type progressLine struct {
	mu     sync.Mutex
	w      io.Writer
	tty    bool
	quiet  bool
	active bool
}

func newProgressLine(w io.Writer, verbose int) *progressLine {
	tty := false
	if f, ok := w.(*os.File); ok {
		tty = term.IsTerminal(int(f.Fd()))
	}
	return &progressLine{
		w:     w,
		tty:   tty,
		quiet: !tty && verbose == 0,
	}
}

// Update redraws the progress line.
func (p *progressLine) Update(pr engine.Progress) {
	if !p.tty {
		return
	}
	pct := float64(0)
	if pr.Total > 0 {
		pct = float64(pr.Done) / float64(pr.Total) * 100
	}
	label := []rune(pr.Label)
	if len(label) > maxLabel {
		label = append(label[:maxLabel-3], []rune("...")...)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "\r\033[K[%s] %d/%d (%.0f%%) %s", pr.Sweep, pr.Done, pr.Total, pct, string(label))
	p.active = true
}

// Status prints msg on its own line.
func (p *progressLine) Status(msg string) {
	if p.quiet {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clear()
	fmt.Fprintf(p.w, "[*] %s\n", msg)
}

// Done erases the progress line.
func (p *progressLine) Done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clear()
}

func (p *progressLine) clear() {
	if p.active {
		fmt.Fprint(p.w, "\r\033[K")
		p.active = false
	}
}
