package models

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"
)

const (
	ansiHideCursor = "\x1b[?25l"
	ansiShowCursor = "\x1b[?25h"
	ansiClearLine  = "\r\x1b[2K"
)

// spinnerFrames are drawn in order; spinnerColor is cyan
var spinnerFrames = []string{"\\", "|", "/", "-"}

const spinnerColor = "36"

// Loader is the busy indicator shown while providers are contacted.
//
// It runs one goroutine that redraws a spinner frame on a ticker and exits as
// soon as Stop is called. Stop always clears the line and restores the cursor,
// so callers should defer it right after Start. A loader whose output is not
// a terminal draws nothing.
//
//	l := models.NewLoader(os.Stdout, "Collecting Info")
//	l.Start()
//	defer l.Stop()
type Loader struct {
	mu           sync.Mutex
	msg          string
	interval     time.Duration
	out          io.Writer
	stopCh       chan struct{}
	doneCh       chan struct{}
	active       bool
	terminal     bool
	supportsANSI bool
}

// Option configures the loader.
type Option func(*Loader)

// WithInterval sets frame interval.
func WithInterval(d time.Duration) Option { return func(l *Loader) { l.interval = d } }

// WithANSI forces ANSI on/off (useful for tests or specific terminals).
func WithANSI(enabled bool) Option { return func(l *Loader) { l.supportsANSI = enabled } }

// WithTerminal overrides terminal detection. A loader that is not on a
// terminal stays silent.
func WithTerminal(tty bool) Option { return func(l *Loader) { l.terminal = tty } }

// NewLoader creates a loader writing to out (os.Stdout when nil).
func NewLoader(out io.Writer, message string, opts ...Option) *Loader {
	if out == nil {
		out = os.Stdout
	}
	tty := isTerminal(out)
	l := &Loader{
		msg:          message,
		interval:     100 * time.Millisecond,
		out:          out,
		terminal:     tty,
		supportsANSI: tty && runtime.GOOS != "windows",
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Start begins the spinner. Calling Start on an active loader is a no-op.
func (l *Loader) Start() {
	l.mu.Lock()
	if l.active {
		l.mu.Unlock()
		return
	}
	l.active = true
	l.stopCh = make(chan struct{})
	l.doneCh = make(chan struct{})
	stopCh, doneCh := l.stopCh, l.doneCh
	l.mu.Unlock()

	if !l.terminal {
		close(doneCh)
		return
	}
	if l.supportsANSI {
		fmt.Fprint(l.out, ansiHideCursor)
	}

	go l.spin(stopCh, doneCh)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (l *Loader) spin(stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for i := 0; ; i++ {
		l.draw(spinnerFrames[i%len(spinnerFrames)])
		select {
		case <-stopCh:
			return
		case <-ticker.C:
		}
	}
}

func (l *Loader) draw(frame string) {
	l.mu.Lock()
	msg := l.msg
	l.mu.Unlock()
	if l.supportsANSI {
		fmt.Fprintf(l.out, "%s%s:  \x1b[%sm%s\x1b[0m", ansiClearLine, msg, spinnerColor, frame)
		return
	}
	fmt.Fprintf(l.out, "\r%s:  %s", msg, frame)
}

// Stop halts the spinner, erases its line and restores the cursor. It waits
// for the spinner goroutine to exit and is safe to call more than once.
func (l *Loader) Stop() {
	l.mu.Lock()
	if !l.active {
		l.mu.Unlock()
		return
	}
	l.active = false
	close(l.stopCh)
	done := l.doneCh
	msg := l.msg
	l.mu.Unlock()
	<-done

	if !l.terminal {
		return
	}
	if l.supportsANSI {
		fmt.Fprint(l.out, ansiClearLine+ansiShowCursor)
		return
	}
	fmt.Fprint(l.out, "\r"+strings.Repeat(" ", len(msg)+4)+"\r")
}

// SetMessage updates the message displayed before the spinner.
func (l *Loader) SetMessage(m string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.msg = m
}

// Active returns whether the loader is currently running.
func (l *Loader) Active() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}
