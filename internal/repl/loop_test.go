package repl

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hemantobora/mcc/internal/cloud"
	"github.com/hemantobora/mcc/internal/cloud/fake"
	"github.com/hemantobora/mcc/internal/display"
	"github.com/hemantobora/mcc/internal/models"
)

type recordedSSH struct {
	targets []models.SSHTarget
	err     error
}

func (r *recordedSSH) Run(ctx context.Context, target models.SSHTarget) error {
	r.targets = append(r.targets, target)
	return r.err
}

type harness struct {
	loop   *Loop
	out    *bytes.Buffer
	sleeps []time.Duration
	ssh    *recordedSSH
}

func newHarness(t *testing.T, input string, sessions ...*fake.Session) *harness {
	t.Helper()
	conn := fake.NewConnector(sessions...)
	var ids []models.ProviderID
	for _, s := range sessions {
		ids = append(ids, s.Provider)
	}
	h := &harness{out: &bytes.Buffer{}, ssh: &recordedSSH{}}
	collector := cloud.NewCollector(conn, fake.Credentials(ids...), ids)
	h.loop = New(collector, NewKeyReader(strings.NewReader(input)),
		WithOutput(h.out),
		WithTheme(display.NewPlainTheme(h.out)),
		WithSleeper(func(ctx context.Context, d time.Duration) { h.sleeps = append(h.sleeps, d) }),
		WithSSHRunner(h.ssh),
	)
	return h
}

// webAndAPI sorts as api=1, web=2
func webAndAPI() *fake.Session {
	return fake.NewSession("aws",
		models.Instance{Name: "web", State: models.StateRunning, PublicIP: "54.0.0.1"},
		models.Instance{Name: "api", State: models.StateStopped},
	)
}

func TestStopConfirmedCallsAdapterOnce(t *testing.T) {
	aws := webAndAPI()
	h := newHarness(t, "s2\ryq", aws)

	require.NoError(t, h.loop.Run(context.Background()))

	calls := aws.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "stop", calls[0].Op)
	assert.Equal(t, "web", calls[0].Instance.Name)
	assert.Contains(t, h.sleeps, 5*time.Second, "aws stop waits for the settle delay")
	assert.Equal(t, 2, aws.Lists(), "successful stop forces a refresh")
}

func TestRunOnRunningIsRejectedBeforeConfirm(t *testing.T) {
	aws := webAndAPI()
	h := newHarness(t, "r2\rq", aws)

	require.NoError(t, h.loop.Run(context.Background()))

	assert.Empty(t, aws.Calls())
	assert.NotContains(t, h.out.String(), "[y/N]")
	assert.Contains(t, h.out.String(), "Node Already Running")
	assert.Equal(t, 1, aws.Lists(), "failed precondition does not refresh")
}

func TestPreconditions(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"stop on stopped", "s1\rq"},
		{"connect on stopped", "c1\rq"},
		{"run on running", "r2\rq"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			aws := webAndAPI()
			h := newHarness(t, tt.input, aws)
			require.NoError(t, h.loop.Run(context.Background()))
			assert.Empty(t, aws.Calls())
			assert.Empty(t, h.ssh.targets)
			assert.NotContains(t, h.out.String(), "[y/N]")
		})
	}
}

func TestRejectionNamesActualState(t *testing.T) {
	aws := fake.NewSession("aws", models.Instance{Name: "boot", State: models.StatePending})
	h := newHarness(t, "s1\rr1\rq", aws)

	require.NoError(t, h.loop.Run(context.Background()))

	out := h.out.String()
	assert.Equal(t, 2, strings.Count(out, "Node is Pending"))
	assert.NotContains(t, out, "Already Pending")
	assert.Empty(t, aws.Calls())
}

func TestZeroAbortsWithoutAdapterCalls(t *testing.T) {
	aws := webAndAPI()
	h := newHarness(t, "s0\rr0\rc0\rq", aws)

	require.NoError(t, h.loop.Run(context.Background()))

	assert.Empty(t, aws.Calls())
	assert.Equal(t, 3, strings.Count(h.out.String(), " - Exit Command"))
	assert.Equal(t, 1, aws.Lists())
}

func TestOutOfRangeRePrompts(t *testing.T) {
	aws := webAndAPI()
	h := newHarness(t, "s9\rabc\r\r0\rq", aws)

	require.NoError(t, h.loop.Run(context.Background()))

	out := h.out.String()
	assert.Equal(t, 3, strings.Count(out, " - Invalid Entry"), "9, abc and empty input are all out of range")
	assert.Equal(t, 4, strings.Count(out, "STOP NODE"), "prompt shown again after each rejection")
	assert.Empty(t, aws.Calls())
}

func TestBackspaceEditsNumber(t *testing.T) {
	aws := webAndAPI()
	h := newHarness(t, "s1\x7f2\ryq", aws)

	require.NoError(t, h.loop.Run(context.Background()))

	calls := aws.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "web", calls[0].Instance.Name)
}

func TestRunThenRefreshShowsRunning(t *testing.T) {
	aws := webAndAPI()
	h := newHarness(t, "r1\ryq", aws)

	require.NoError(t, h.loop.Run(context.Background()))

	inst, ok := h.loop.Inventory().Get(1)
	require.True(t, ok)
	assert.Equal(t, "api", inst.Name)
	assert.Equal(t, models.StateRunning, inst.State)
	assert.NotContains(t, h.sleeps, 5*time.Second, "start has no settle delay")
}

func TestOnlyYesConfirms(t *testing.T) {
	for _, answer := range []string{"n", "N", "\r", "x", " "} {
		aws := webAndAPI()
		h := newHarness(t, "s2\r"+answer+"q", aws)
		require.NoError(t, h.loop.Run(context.Background()))
		assert.Empty(t, aws.Calls(), "answer %q", answer)
		assert.Contains(t, h.out.String(), "Cancelled")
	}

	aws := webAndAPI()
	h := newHarness(t, "S2\rYQ", aws)
	require.NoError(t, h.loop.Run(context.Background()))
	assert.Len(t, aws.Calls(), 1, "keys are case insensitive")
}

func TestInvalidCommandKey(t *testing.T) {
	aws := webAndAPI()
	h := newHarness(t, "x7q", aws)

	require.NoError(t, h.loop.Run(context.Background()))

	assert.Equal(t, 2, strings.Count(h.out.String(), "Invalid Entry"))
	assert.Equal(t, 3, strings.Count(h.out.String(), "SELECT COMMAND"))
}

func TestUpdateRefreshes(t *testing.T) {
	aws := webAndAPI()
	h := newHarness(t, "uuq", aws)

	require.NoError(t, h.loop.Run(context.Background()))
	assert.Equal(t, 3, aws.Lists())
	assert.Empty(t, aws.Calls())
	assert.Contains(t, h.out.String(), "\x1b[J", "previous table erased before redraw")
}

func TestConnectHandsOffToSSH(t *testing.T) {
	aws := webAndAPI()
	h := newHarness(t, "c2\ryq", aws)

	require.NoError(t, h.loop.Run(context.Background()))

	require.Len(t, h.ssh.targets, 1)
	assert.Equal(t, models.SSHTarget{User: "ops", Host: "54.0.0.1"}, h.ssh.targets[0])
	out := h.out.String()
	handoff := strings.Index(out, showCursor+"\n")
	require.GreaterOrEqual(t, handoff, 0, "cursor shown before ssh")
	assert.Contains(t, out[handoff:], "\n"+hideCursor, "cursor hidden again afterwards")
	assert.Equal(t, 2, aws.Lists())
}

func TestActionFailureStaysIdle(t *testing.T) {
	aws := webAndAPI()
	aws.StartErr = &models.TransportError{Provider: "aws", Operation: "start", Cause: errors.New("throttled")}
	h := newHarness(t, "r1\ryq", aws)

	require.NoError(t, h.loop.Run(context.Background()))

	assert.Len(t, aws.Calls(), 1)
	assert.Contains(t, h.out.String(), "Run failed")
	assert.Equal(t, 1, aws.Lists(), "failed action does not refresh")
}

func TestInterruptQuits(t *testing.T) {
	h := newHarness(t, "\x03", webAndAPI())
	require.NoError(t, h.loop.Run(context.Background()))
	assert.True(t, strings.HasSuffix(h.out.String(), showCursor))
}

func TestEndOfInputQuits(t *testing.T) {
	h := newHarness(t, "s2", webAndAPI())
	assert.NoError(t, h.loop.Run(context.Background()))
}

func TestUnknownStateIsFatal(t *testing.T) {
	aws := fake.NewSession("aws", models.Instance{Name: "odd", State: "hibernating"})
	h := newHarness(t, "q", aws)

	err := h.loop.Run(context.Background())
	var stateErr *models.StateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, "hibernating", stateErr.State)
}

func TestNoProvidersIsFatal(t *testing.T) {
	conn := fake.NewConnector()
	out := &bytes.Buffer{}
	collector := cloud.NewCollector(conn, fake.Credentials("aws"), []models.ProviderID{"aws"})
	loop := New(collector, NewKeyReader(strings.NewReader("q")), WithOutput(out), WithTheme(display.NewPlainTheme(out)))

	err := loop.Run(context.Background())
	assert.ErrorIs(t, err, cloud.ErrNoProviders)
	assert.Contains(t, out.String(), "Authentication failed for 'aws'")
}

func TestMultiProviderScenario(t *testing.T) {
	azure := fake.NewSession("azure",
		models.Instance{Name: "db", State: models.StateRunning},
		models.Instance{Name: "app", State: models.StateStopped},
	)
	conn := fake.NewConnector(azure)
	conn.Errors["aws"] = &models.AuthenticationError{Provider: "aws", Cause: errors.New("AuthFailure")}
	out := &bytes.Buffer{}
	ids := []models.ProviderID{"aws", "azure"}
	loop := New(cloud.NewCollector(conn, fake.Credentials(ids...), ids),
		NewKeyReader(strings.NewReader("q")), WithOutput(out), WithTheme(display.NewPlainTheme(out)))

	require.NoError(t, loop.Run(context.Background()))
	require.Equal(t, 2, loop.Inventory().Len())
	for _, e := range loop.Inventory().Entries() {
		assert.Equal(t, models.ProviderAzure, e.Instance.Kind)
	}
	assert.Contains(t, out.String(), "Authentication failed for 'aws'")
}

func TestParseTarget(t *testing.T) {
	n, err := parseTarget("2", 3)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = parseTarget("0", 0)
	require.NoError(t, err)
	assert.Zero(t, n)

	for _, raw := range []string{"4", "-1", "abc", ""} {
		_, err := parseTarget(raw, 3)
		var verr *models.InputValidationError
		require.ErrorAs(t, err, &verr, raw)
		assert.Equal(t, raw, verr.Value)
		assert.Equal(t, "0 to 3", verr.Expected)
	}
}

// typeaheadKeys serves keys typed during collection before the real ones;
// Flush drops the typed-ahead keys the way a terminal input flush does
type typeaheadKeys struct {
	typeahead []Key
	keys      []Key
	flushes   int
}

func (k *typeaheadKeys) Flush() error {
	k.flushes++
	k.typeahead = nil
	return nil
}

func (k *typeaheadKeys) ReadKey() (Key, error) {
	if len(k.typeahead) > 0 {
		key := k.typeahead[0]
		k.typeahead = k.typeahead[1:]
		return key, nil
	}
	if len(k.keys) == 0 {
		return Key{}, io.EOF
	}
	key := k.keys[0]
	k.keys = k.keys[1:]
	return key, nil
}

func TestCommandPromptDropsTypeahead(t *testing.T) {
	aws := webAndAPI()
	keys := &typeaheadKeys{
		typeahead: []Key{{Code: KeyRune, Rune: 's'}, {Code: KeyRune, Rune: '2'}, {Code: KeyEnter}},
		keys:      []Key{{Code: KeyRune, Rune: 'q'}},
	}
	out := &bytes.Buffer{}
	ids := []models.ProviderID{"aws"}
	loop := New(cloud.NewCollector(fake.NewConnector(aws), fake.Credentials(ids...), ids), keys,
		WithOutput(out), WithTheme(display.NewPlainTheme(out)),
		WithSleeper(func(context.Context, time.Duration) {}))

	require.NoError(t, loop.Run(context.Background()))

	assert.Equal(t, 1, keys.flushes)
	assert.NotContains(t, out.String(), "STOP NODE")
	assert.Empty(t, aws.Calls())
	assert.Contains(t, out.String(), "Quitting")
}

func TestDecodeKey(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("a\r\n\x7f\x08\x03\x1b[A\x1bOPb"))
	want := []Key{
		{Code: KeyRune, Rune: 'a'},
		{Code: KeyEnter},
		{Code: KeyEnter},
		{Code: KeyBackspace},
		{Code: KeyBackspace},
		{Code: KeyInterrupt},
		{Code: KeyEscape},
		{Code: KeyEscape},
		{Code: KeyRune, Rune: 'b'},
	}
	for i, w := range want {
		got, err := decodeKey(r)
		require.NoError(t, err, i)
		assert.Equal(t, w, got, i)
	}
}
