// Package repl drives the interactive command loop: render the inventory,
// read a command key and a target number, check the target's state, confirm,
// act through the provider session, then refresh or keep waiting.
package repl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/sirupsen/logrus"

	"github.com/hemantobora/mcc/internal/cloud"
	"github.com/hemantobora/mcc/internal/display"
	"github.com/hemantobora/mcc/internal/inventory"
	"github.com/hemantobora/mcc/internal/models"
)

const (
	hideCursor = "\x1b[?25l"
	showCursor = "\x1b[?25h"
	eraseLine  = "\r\x1b[2K"
	eraseDown  = "\x1b[J"

	shortPause = 500 * time.Millisecond
	longPause  = 2 * time.Second
)

// Collector is the part of cloud.Collector the loop depends on
type Collector interface {
	Collect(ctx context.Context) (*cloud.Result, error)
	Session(id models.ProviderID) (cloud.Session, bool)
}

// Sleeper waits for d or until ctx is done
type Sleeper func(ctx context.Context, d time.Duration)

type command int

const (
	cmdInvalid command = iota
	cmdRun
	cmdStop
	cmdConnect
	cmdUpdate
	cmdQuit
)

var commandKeys = map[rune]command{
	'r': cmdRun,
	's': cmdStop,
	'c': cmdConnect,
	'u': cmdUpdate,
	'q': cmdQuit,
}

var commandNames = map[command]string{
	cmdRun:     "Run",
	cmdStop:    "Stop",
	cmdConnect: "Connect",
}

// requiredState is the state a target must be in for each node command
var requiredState = map[command]string{
	cmdRun:     models.StateStopped,
	cmdStop:    models.StateRunning,
	cmdConnect: models.StateRunning,
}

// resultState is where a successful run or stop leaves the target
var resultState = map[command]string{
	cmdRun:  models.StateRunning,
	cmdStop: models.StateStopped,
}

type outcome int

const (
	stayIdle outcome = iota
	refresh
)

// Loop is the interactive command loop. It runs on a single goroutine and
// owns the current inventory snapshot.
type Loop struct {
	collector Collector
	keys      KeyReader
	out       io.Writer
	theme     *display.Theme
	sleep     Sleeper
	ssh       SSHRunner
	log       logrus.FieldLogger

	inv   *inventory.Inventory
	drawn int // lines drawn since the top of the table
}

// Option configures the loop
type Option func(*Loop)

// WithOutput sets the terminal writer
func WithOutput(w io.Writer) Option {
	return func(l *Loop) { l.out = w }
}

// WithTheme sets the color theme
func WithTheme(t *display.Theme) Option {
	return func(l *Loop) { l.theme = t }
}

// WithSleeper replaces the pause used for messages and settle delays
func WithSleeper(s Sleeper) Option {
	return func(l *Loop) { l.sleep = s }
}

// WithSSHRunner replaces the ssh subprocess runner
func WithSSHRunner(r SSHRunner) Option {
	return func(l *Loop) { l.ssh = r }
}

// WithLogger sets the diagnostic logger
func WithLogger(log logrus.FieldLogger) Option {
	return func(l *Loop) { l.log = log }
}

// New creates a command loop
func New(collector Collector, keys KeyReader, options ...Option) *Loop {
	l := &Loop{
		collector: collector,
		keys:      keys,
		out:       os.Stdout,
		sleep:     sleepContext,
		ssh:       NewExecSSH(),
		log:       logrus.StandardLogger(),
	}
	for _, opt := range options {
		opt(l)
	}
	if l.theme == nil {
		l.theme = display.NewTheme(l.out)
	}
	return l
}

func sleepContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Inventory returns the snapshot currently on screen
func (l *Loop) Inventory() *inventory.Inventory {
	return l.inv
}

// Run collects, renders and processes commands until quit. It returns an
// error only for conditions that stop the program: no providers left or an
// instance state the display does not know.
func (l *Loop) Run(ctx context.Context) error {
	fmt.Fprint(l.out, hideCursor)
	defer fmt.Fprint(l.out, showCursor)

	if err := l.refresh(ctx); err != nil {
		return endOfInput(err)
	}
	for {
		cmd, err := l.readCommand()
		if err != nil {
			return endOfInput(err)
		}

		next := stayIdle
		switch cmd {
		case cmdQuit:
			fmt.Fprint(l.out, " Quitting\n")
			return nil
		case cmdUpdate:
			next = refresh
		default:
			next, err = l.nodeCommand(ctx, cmd)
			if err != nil {
				return endOfInput(err)
			}
		}

		if next == refresh {
			if err := l.refresh(ctx); err != nil {
				return endOfInput(err)
			}
		}
	}
}

// endOfInput treats a closed input stream or an interrupt as quit
func endOfInput(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// refresh re-collects, rebuilds the inventory and redraws the table in place
func (l *Loop) refresh(ctx context.Context) error {
	if l.drawn > 0 {
		fmt.Fprintf(l.out, "%s\x1b[%dA%s", eraseLine, l.drawn, eraseDown)
		l.drawn = 0
	} else {
		fmt.Fprint(l.out, eraseLine)
	}

	res, err := l.collector.Collect(ctx)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if res != nil {
		for _, w := range res.Warnings {
			fmt.Fprintln(l.out, l.theme.Warn.Render(w))
			l.drawn++
		}
	}
	if err != nil {
		return err
	}

	inv := inventory.Build(res.Instances)
	table, err := display.IndexTable(inv, l.theme)
	if err != nil {
		return err
	}
	l.inv = inv
	fmt.Fprintf(l.out, "%s\n\n", table)
	l.drawn += display.Lines(table) + 1
	l.log.WithField("instances", inv.Len()).Debug("inventory rebuilt")
	return nil
}

func (l *Loop) commandBar() string {
	t := l.theme
	return fmt.Sprintf("%sSELECT COMMAND -   %sun   %stop   %sonnect   %spdate   %suit:  ",
		eraseLine,
		t.Good.Render("(R)"), t.Err.Render("(S)"), t.Accent.Render("(C)"),
		t.Title.Render("(U)"), t.Warn.Render("(Q)"))
}

// readCommand waits in Idle until a known command key arrives. Keys typed
// while the table was being collected are discarded first.
func (l *Loop) readCommand() (command, error) {
	for {
		fmt.Fprint(l.out, l.commandBar())
		if f, ok := l.keys.(Flusher); ok {
			if err := f.Flush(); err != nil {
				l.log.WithError(err).Debug("input flush failed")
			}
		}
		key, err := l.keys.ReadKey()
		if err != nil {
			return cmdInvalid, err
		}
		if key.Code == KeyInterrupt {
			return cmdQuit, nil
		}
		if key.Code == KeyRune {
			if cmd, ok := commandKeys[unicode.ToLower(key.Rune)]; ok {
				return cmd, nil
			}
		}
		fmt.Fprint(l.out, l.theme.Err.Render("Invalid Entry"))
		l.sleep(context.Background(), shortPause)
	}
}

// nodeCommand walks TargetSelection, validation, Confirming and Executing
func (l *Loop) nodeCommand(ctx context.Context, cmd command) (outcome, error) {
	name := commandNames[cmd]
	n, err := l.selectTarget(name)
	if err != nil {
		return stayIdle, err
	}
	if n == 0 {
		l.message(" - Exit Command", shortPause)
		return stayIdle, nil
	}

	inst, _ := l.inv.Get(n)
	if msg, ok := l.validate(cmd, inst); !ok {
		l.message(msg, longPause)
		return stayIdle, nil
	}

	ok, err := l.confirm(name, inst)
	if err != nil {
		return stayIdle, err
	}
	if !ok {
		l.message(" - Cancelled", shortPause)
		return stayIdle, nil
	}

	if err := l.execute(ctx, cmd, inst); err != nil {
		l.log.WithError(err).WithField("instance", inst.Name).Debug("command failed")
		l.message(" - "+l.theme.Err.Render(name+" failed: "+err.Error()), longPause)
		return stayIdle, nil
	}
	return refresh, nil
}

// selectTarget reads an instance number in [0, N]. Anything else, including
// non-numeric input, is rejected and the prompt is shown again.
func (l *Loop) selectTarget(name string) (int, error) {
	t := l.theme
	prompt := fmt.Sprintf("%s%s NODE - Enter %s and 'enter' (%s):  ",
		eraseLine, t.Title.Render(strings.ToUpper(name)), t.Warn.Render("NODE #"), t.Accent.Render("0 = Exit Command"))
	for {
		fmt.Fprint(l.out, prompt)
		raw, err := l.readNumber()
		if err != nil {
			return 0, err
		}
		n, err := parseTarget(raw, l.inv.Len())
		if err == nil {
			return n, nil
		}
		l.log.WithError(err).Debug("target rejected")
		fmt.Fprint(l.out, " - "+t.Err.Render("Invalid Entry"))
		l.sleep(context.Background(), shortPause)
	}
}

// parseTarget accepts an instance number in [0, max]
func parseTarget(raw string, max int) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 || n > max {
		return 0, &models.InputValidationError{
			InputType: "instance number",
			Value:     raw,
			Expected:  fmt.Sprintf("0 to %d", max),
		}
	}
	return n, nil
}

// readNumber echoes keys until enter; ctrl-c aborts as if 0 was entered
func (l *Loop) readNumber() (string, error) {
	var buf []rune
	for {
		key, err := l.keys.ReadKey()
		if err != nil {
			return "", err
		}
		switch key.Code {
		case KeyEnter:
			return string(buf), nil
		case KeyInterrupt:
			return "0", nil
		case KeyBackspace:
			if len(buf) > 0 {
				buf = buf[:len(buf)-1]
				fmt.Fprint(l.out, "\b \b")
			}
		case KeyRune:
			if unicode.IsPrint(key.Rune) {
				buf = append(buf, key.Rune)
				fmt.Fprint(l.out, string(key.Rune))
			}
		}
	}
}

// validate checks the command precondition against the target's state
func (l *Loop) validate(cmd command, inst models.Instance) (string, bool) {
	if inst.State == requiredState[cmd] {
		return "", true
	}
	if cmd == cmdConnect {
		return fmt.Sprintf(" - %s - '%s' is %s", l.theme.Err.Render("Cannot Connect"), inst.Name, inst.State), false
	}
	aborting := l.theme.Err.Render("Aborting " + commandNames[cmd])
	if inst.State == resultState[cmd] {
		return fmt.Sprintf(" - %s - Node Already %s", aborting, titleCase(inst.State)), false
	}
	return fmt.Sprintf(" - %s - Node is %s", aborting, titleCase(inst.State)), false
}

// confirm reads one keystroke; only y or Y proceeds
func (l *Loop) confirm(name string, inst models.Instance) (bool, error) {
	fmt.Fprintf(l.out, "%s%s '%s' (%s)? %s ", eraseLine,
		l.theme.Title.Render(name), inst.Name, inst.ProviderLabel(), l.theme.Warn.Render("[y/N]"))
	key, err := l.keys.ReadKey()
	if err != nil {
		return false, err
	}
	return key.Code == KeyRune && (key.Rune == 'y' || key.Rune == 'Y'), nil
}

func (l *Loop) execute(ctx context.Context, cmd command, inst models.Instance) error {
	session, ok := l.collector.Session(inst.Provider)
	if !ok {
		return &models.ProviderError{Provider: inst.Provider, Operation: "session", Resource: inst.Name,
			Cause: errors.New("provider is no longer active")}
	}

	switch cmd {
	case cmdRun:
		fmt.Fprint(l.out, " - "+l.theme.Good.Render("Starting Node"))
		return session.Start(ctx, inst)
	case cmdStop:
		fmt.Fprint(l.out, " - "+l.theme.Err.Render("Stopping Node"))
		if err := session.Stop(ctx, inst); err != nil {
			return err
		}
		l.sleep(ctx, cloud.SettleDelay(inst.Kind))
		return nil
	case cmdConnect:
		target, err := session.SSHTarget(inst)
		if err != nil {
			return err
		}
		return l.handoff(ctx, target)
	}
	return nil
}

// handoff gives the terminal to ssh with the cursor visible and takes it back
// afterwards. The remote session scrolls the table away, so the next refresh
// draws below instead of erasing upward.
func (l *Loop) handoff(ctx context.Context, target models.SSHTarget) error {
	fmt.Fprintf(l.out, "%s\n", showCursor)
	err := l.ssh.Run(ctx, target)
	fmt.Fprint(l.out, "\n"+hideCursor)
	l.drawn = 0
	return err
}

// message appends msg to the current line and pauses so it can be read
func (l *Loop) message(msg string, pause time.Duration) {
	fmt.Fprint(l.out, msg)
	l.sleep(context.Background(), pause)
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
