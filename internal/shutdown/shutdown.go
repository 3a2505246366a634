// Package shutdown closes the launcher, optionally after a delay or an
// operator keypress.
package shutdown

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/loykin/launchr/internal/keypress"
)

// Prompt is printed before waiting for the final keypress.
const Prompt = "Press any key to continue . . . "

// Closer performs the actual application close.
type Closer interface {
	Close()
}

// CloserFunc adapts a function to Closer.
type CloserFunc func()

func (f CloserFunc) Close() { f() }

// Terminator issues exactly one close request no matter how many callers
// ask for it.
type Terminator struct {
	out    io.Writer
	keys   keypress.Reader
	closer Closer
	log    *slog.Logger

	once sync.Once
	done chan struct{}
}

func NewTerminator(out io.Writer, keys keypress.Reader, closer Closer, log *slog.Logger) *Terminator {
	if out == nil {
		out = io.Discard
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Terminator{out: out, keys: keys, closer: closer, log: log, done: make(chan struct{})}
}

// Done is closed once the close request has been issued.
func (t *Terminator) Done() <-chan struct{} { return t.done }

// CloseAfter issues the close once d has elapsed. With independent set the
// wait runs on its own goroutine and CloseAfter returns immediately,
// otherwise the caller blocks for d. A close issued by someone else in the
// meantime ends the wait early.
func (t *Terminator) CloseAfter(d time.Duration, independent bool) {
	if independent {
		go t.closeAfter(d)
		return
	}
	t.closeAfter(d)
}

func (t *Terminator) closeAfter(d time.Duration) {
	if d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-t.done:
			return
		}
	}
	t.log.Debug("shutdown timer elapsed", "delay", d)
	t.close("timer")
}

// CloseApplication closes the application, first waiting for a keypress
// when waitForKeypress is set. A failed key read is logged and the close
// goes ahead.
func (t *Terminator) CloseApplication(waitForKeypress bool) {
	if waitForKeypress && t.keys != nil {
		select {
		case <-t.done:
			return
		default:
		}
		_, _ = fmt.Fprint(t.out, Prompt)
		if err := t.keys.ReadKey(); err != nil {
			t.log.Warn("read keypress", "error", err)
		}
		_, _ = fmt.Fprintln(t.out)
	}
	t.close("application")
}

func (t *Terminator) close(source string) {
	t.once.Do(func() {
		t.log.Log(context.Background(), slog.LevelDebug, "closing application", "source", source)
		if t.closer != nil {
			t.closer.Close()
		}
		close(t.done)
	})
}
