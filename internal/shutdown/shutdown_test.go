package shutdown

import (
	"bytes"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/launchr/internal/keypress"
)

type countingCloser struct{ n atomic.Int32 }

func (c *countingCloser) Close() { c.n.Add(1) }

func waitDone(t *testing.T, term *Terminator) {
	t.Helper()
	select {
	case <-term.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("close was not issued")
	}
}

func TestCloseAfterBlocking(t *testing.T) {
	c := &countingCloser{}
	term := NewTerminator(nil, nil, c, nil)

	start := time.Now()
	term.CloseAfter(50*time.Millisecond, false)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	assert.EqualValues(t, 1, c.n.Load())
	waitDone(t, term)
}

func TestCloseAfterIndependentReturnsImmediately(t *testing.T) {
	c := &countingCloser{}
	term := NewTerminator(nil, nil, c, nil)

	start := time.Now()
	term.CloseAfter(100*time.Millisecond, true)
	assert.Less(t, time.Since(start), 50*time.Millisecond)
	assert.EqualValues(t, 0, c.n.Load())

	waitDone(t, term)
	assert.EqualValues(t, 1, c.n.Load())
}

func TestCloseIsIssuedOnce(t *testing.T) {
	c := &countingCloser{}
	term := NewTerminator(nil, nil, c, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			term.CloseApplication(false)
		}()
	}
	wg.Wait()
	term.CloseAfter(0, false)
	assert.EqualValues(t, 1, c.n.Load())
}

func TestCloseApplicationWaitsForKey(t *testing.T) {
	var out bytes.Buffer
	c := &countingCloser{}
	pressed := make(chan struct{})
	keys := keypress.Func(func() error {
		<-pressed
		return nil
	})
	term := NewTerminator(&out, keys, c, nil)

	finished := make(chan struct{})
	go func() {
		term.CloseApplication(true)
		close(finished)
	}()

	select {
	case <-term.Done():
		t.Fatal("closed before keypress")
	case <-time.After(30 * time.Millisecond):
	}
	close(pressed)
	<-finished
	waitDone(t, term)
	assert.Contains(t, out.String(), Prompt)
	assert.EqualValues(t, 1, c.n.Load())
}

func TestCloseApplicationKeyErrorStillCloses(t *testing.T) {
	c := &countingCloser{}
	term := NewTerminator(nil, keypress.Func(func() error { return errors.New("tty gone") }), c, nil)
	term.CloseApplication(true)
	waitDone(t, term)
	assert.EqualValues(t, 1, c.n.Load())
}

func TestTimerClosesWhileWaitingForKey(t *testing.T) {
	c := &countingCloser{}
	block := make(chan struct{})
	defer close(block)
	term := NewTerminator(nil, keypress.Func(func() error { <-block; return nil }), c, nil)

	term.CloseAfter(20*time.Millisecond, true)
	go term.CloseApplication(true)

	waitDone(t, term)
	require.EqualValues(t, 1, c.n.Load())
}

func TestCloserFunc(t *testing.T) {
	called := false
	term := NewTerminator(nil, nil, CloserFunc(func() { called = true }), nil)
	term.CloseApplication(false)
	assert.True(t, called)
}
