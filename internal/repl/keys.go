package repl

import (
	"bufio"
	"io"
	"os"

	"golang.org/x/term"
)

// KeyCode classifies a keystroke
type KeyCode int

const (
	KeyRune KeyCode = iota
	KeyEnter
	KeyBackspace
	KeyInterrupt // ctrl-c or ctrl-d
	KeyEscape    // escape or an unhandled escape sequence
)

// Key is one decoded keystroke
type Key struct {
	Code KeyCode
	Rune rune // set for KeyRune
}

// KeyReader delivers single keystrokes without waiting for a newline
type KeyReader interface {
	ReadKey() (Key, error)
}

// Flusher is implemented by key readers that can drop typed-ahead input
type Flusher interface {
	Flush() error
}

// Terminal reads keys from a tty. The terminal is switched to raw mode only
// for the duration of each read, so ordinary output keeps its line discipline.
type Terminal struct {
	in  *os.File
	fd  int
	tty bool
	r   *bufio.Reader
}

// NewTerminal wraps in, usually os.Stdin
func NewTerminal(in *os.File) *Terminal {
	fd := int(in.Fd())
	return &Terminal{in: in, fd: fd, tty: term.IsTerminal(fd), r: bufio.NewReader(in)}
}

// IsTerminal reports whether the input is interactive
func (t *Terminal) IsTerminal() bool {
	return t.tty
}

// ReadKey blocks for one keystroke
func (t *Terminal) ReadKey() (Key, error) {
	if t.tty {
		state, err := term.MakeRaw(t.fd)
		if err != nil {
			return Key{}, err
		}
		defer term.Restore(t.fd, state)
	}
	return decodeKey(t.r)
}

// Flush discards keys typed before the current prompt, both those already
// buffered and those still queued in the terminal driver. Piped input is
// left alone.
func (t *Terminal) Flush() error {
	if !t.tty {
		return nil
	}
	if _, err := t.r.Discard(t.r.Buffered()); err != nil {
		return err
	}
	return flushInput(t.fd)
}

// decodeKey reads one keystroke from r. Escape sequences that arrive in one
// burst (arrow keys, function keys) collapse into a single KeyEscape.
func decodeKey(r *bufio.Reader) (Key, error) {
	c, _, err := r.ReadRune()
	if err != nil {
		return Key{}, err
	}
	switch c {
	case '\r', '\n':
		return Key{Code: KeyEnter}, nil
	case 0x7f, 0x08:
		return Key{Code: KeyBackspace}, nil
	case 0x03, 0x04:
		return Key{Code: KeyInterrupt}, nil
	case 0x1b:
		skipSequence(r)
		return Key{Code: KeyEscape}, nil
	}
	return Key{Code: KeyRune, Rune: c}, nil
}

func skipSequence(r *bufio.Reader) {
	if r.Buffered() == 0 {
		return
	}
	b, err := r.ReadByte()
	if err != nil || (b != '[' && b != 'O') {
		return
	}
	// CSI parameters end at the first byte in 0x40..0x7e
	for r.Buffered() > 0 {
		b, err = r.ReadByte()
		if err != nil || (b >= 0x40 && b <= 0x7e) {
			return
		}
	}
}

// scriptedKeys replays a fixed byte stream; used for piped input
type scriptedKeys struct {
	r *bufio.Reader
}

// NewKeyReader decodes keys from an arbitrary reader without touching
// terminal modes
func NewKeyReader(r io.Reader) KeyReader {
	return &scriptedKeys{r: bufio.NewReader(r)}
}

func (s *scriptedKeys) ReadKey() (Key, error) {
	return decodeKey(s.r)
}
