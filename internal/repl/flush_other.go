//go:build !linux

package repl

// flushInput is a no-op where the driver queue cannot be flushed portably;
// the buffered reader is still drained by Terminal.Flush.
func flushInput(fd int) error {
	return nil
}
