// Package notify surfaces human-readable error and status text to the operator.
package notify

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/loykin/launchr/internal/keypress"
)

// Notifier shows a message to the operator.
type Notifier interface {
	Show(message string)
}

// Modes accepted by New.
const (
	ModeConsole = "console"
	ModeDialog  = "dialog"
)

// New returns the notifier selected by mode. keys is only used by the dialog
// mode and may be nil otherwise.
func New(mode string, w io.Writer, keys keypress.Reader) (Notifier, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", ModeConsole:
		return &Console{W: w}, nil
	case ModeDialog:
		return &Dialog{W: w, Keys: keys}, nil
	default:
		return nil, fmt.Errorf("unknown notifier %q (want %q or %q)", mode, ModeConsole, ModeDialog)
	}
}

// Console writes one line per message.
type Console struct {
	W  io.Writer
	mu sync.Mutex
}

func (c *Console) Show(message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintln(c.W, message)
}

// Dialog draws a framed box and blocks until the operator acknowledges it.
type Dialog struct {
	W    io.Writer
	Keys keypress.Reader
	mu   sync.Mutex
}

func (d *Dialog) Show(message string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	lines := wrap(message, 68)
	width := 0
	for _, l := range lines {
		if len(l) > width {
			width = len(l)
		}
	}
	border := "+" + strings.Repeat("-", width+2) + "+"
	_, _ = fmt.Fprintln(d.W, border)
	for _, l := range lines {
		_, _ = fmt.Fprintf(d.W, "| %-*s |\n", width, l)
	}
	_, _ = fmt.Fprintln(d.W, border)
	if d.Keys == nil {
		return
	}
	_, _ = fmt.Fprint(d.W, "Press any key to dismiss . . . ")
	_ = d.Keys.ReadKey()
	_, _ = fmt.Fprintln(d.W)
}

// Func adapts a function to Notifier.
type Func func(message string)

func (f Func) Show(message string) { f(message) }

// wrap breaks s into lines of at most width bytes on word boundaries.
func wrap(s string, width int) []string {
	words := strings.Fields(s)
	if len(words) == 0 {
		return []string{""}
	}
	var lines []string
	cur := words[0]
	for _, w := range words[1:] {
		if len(cur)+1+len(w) > width {
			lines = append(lines, cur)
			cur = w
			continue
		}
		cur += " " + w
	}
	return append(lines, cur)
}
