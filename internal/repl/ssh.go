package repl

import (
	"context"
	"io"
	"os"
	"os/exec"

	"github.com/pkg/errors"

	"github.com/hemantobora/mcc/internal/models"
)

// SSHRunner hands the terminal to an interactive remote shell
type SSHRunner interface {
	Run(ctx context.Context, target models.SSHTarget) error
}

// ExecSSH runs the system ssh client attached to the process's terminal
type ExecSSH struct {
	Binary string
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// NewExecSSH returns a runner bound to the standard streams
func NewExecSSH() *ExecSSH {
	return &ExecSSH{Binary: "ssh", Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr}
}

// Run blocks until the remote session ends. A non-zero exit status is the
// status of the remote shell's last command and still ends the session
// normally; only a client that cannot be started is an error.
func (e *ExecSSH) Run(ctx context.Context, target models.SSHTarget) error {
	bin, err := exec.LookPath(e.Binary)
	if err != nil {
		return errors.Wrap(err, "ssh client not found")
	}
	cmd := exec.CommandContext(ctx, bin, target.Args()...)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = e.Stdin, e.Stdout, e.Stderr
	err = cmd.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "ssh %s@%s", target.User, target.Host)
	}
	return nil
}
