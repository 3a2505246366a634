// Package keypress blocks until the operator presses a key.
package keypress

import (
	"bufio"
	"io"
	"os"
	"sync"

	"golang.org/x/term"
)

// Reader waits for a single acknowledgment from the operator.
type Reader interface {
	ReadKey() error
}

// Terminal reads one key from a terminal in raw mode. When the input is not a
// terminal it falls back to reading a full line.
type Terminal struct {
	in    *os.File
	lines *bufio.Reader // non-terminal input, shared across reads

	mu    sync.Mutex
	state *term.State
}

func NewTerminal(in *os.File) *Terminal { return &Terminal{in: in} }

func (t *Terminal) ReadKey() error {
	fd := int(t.in.Fd())
	if !term.IsTerminal(fd) {
		if t.lines == nil {
			t.lines = bufio.NewReader(t.in)
		}
		_, err := t.lines.ReadString('\n')
		if err == io.EOF {
			return nil
		}
		return err
	}
	st, err := term.MakeRaw(fd)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.state = st
	t.mu.Unlock()
	defer func() { _ = t.Restore() }()

	var b [1]byte
	_, err = t.in.Read(b[:])
	if err == io.EOF {
		return nil
	}
	return err
}

// Restore puts the terminal back into the mode it had before ReadKey. It is
// safe to call from another goroutine while ReadKey is blocked, which is what
// happens when the application closes itself before a key arrives.
func (t *Terminal) Restore() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == nil {
		return nil
	}
	err := term.Restore(int(t.in.Fd()), t.state)
	t.state = nil
	return err
}

// Func adapts a function to Reader.
type Func func() error

func (f Func) ReadKey() error { return f() }
