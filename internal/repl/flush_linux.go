package repl

import "golang.org/x/sys/unix"

// flushInput drops unread bytes from the terminal's input queue
func flushInput(fd int) error {
	return unix.IoctlSetInt(fd, unix.TCFLSH, unix.TCIFLUSH)
}
