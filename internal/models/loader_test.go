package models

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoader_StartStop_RestoresCursor(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoader(&buf, "Collecting Info", WithTerminal(true), WithANSI(true), WithInterval(5*time.Millisecond))
	l.Start()
	time.Sleep(25 * time.Millisecond)
	l.SetMessage("Almost there")
	time.Sleep(15 * time.Millisecond)
	l.Stop()

	out := buf.String()
	require.NotEmpty(t, out)
	assert.True(t, strings.HasPrefix(out, ansiHideCursor), "cursor should be hidden first")
	assert.True(t, strings.HasSuffix(out, ansiClearLine+ansiShowCursor), "line cleared and cursor restored last")
	assert.Contains(t, out, "Collecting Info")
	assert.False(t, l.Active())
}

func TestLoader_StopIsIdempotent(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoader(&buf, "Working", WithTerminal(true), WithANSI(true), WithInterval(5*time.Millisecond))
	l.Stop() // never started
	assert.Empty(t, buf.String())

	l.Start()
	l.Stop()
	n := buf.Len()
	l.Stop()
	assert.Equal(t, n, buf.Len(), "second Stop must not write")
}

func TestLoader_Restartable(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoader(&buf, "Establishing Connections", WithTerminal(true), WithANSI(false), WithInterval(5*time.Millisecond))
	for i := 0; i < 2; i++ {
		l.Start()
		assert.True(t, l.Active())
		l.Stop()
	}
	out := buf.String()
	assert.NotContains(t, out, "\x1b[", "plain mode must not emit escape sequences")
	assert.Contains(t, out, "Establishing Connections:  ")
}

func TestLoader_SilentOffTerminal(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoader(&buf, "Collecting Info", WithInterval(time.Millisecond))
	l.Start()
	assert.True(t, l.Active())
	time.Sleep(10 * time.Millisecond)
	l.Stop()
	assert.Empty(t, buf.String(), "redirected output gets no spinner or escape sequences")
	assert.False(t, l.Active())

	forced := NewLoader(&buf, "Collecting Info", WithTerminal(false), WithANSI(true))
	forced.Start()
	forced.Stop()
	assert.Empty(t, buf.String())
}
