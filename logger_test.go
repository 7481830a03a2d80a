package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStandardLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	l := NewStandardLogger(&buf)
	l.Debugf("hidden %d", 1)
	l.Infof("shown %d", 2)
	l.Warnf("careful")
	l.Errorf("broken")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	require.Contains(t, lines[0], "INFO:  shown 2")
	require.Contains(t, lines[1], "WARN:  careful")
	require.Contains(t, lines[2], "ERROR: broken")
	require.NotContains(t, buf.String(), "hidden")
}

func TestVerboseLogger_Prefix(t *testing.T) {
	var buf bytes.Buffer
	l := newLoggerTo(&buf, true).WithPrefix("[run] ").WithPrefix("[train] ")
	l.Debugf("detail")

	out := buf.String()
	require.Contains(t, out, "DEBUG: [run] [train] detail")
	// Timestamps are UTC.
	require.Contains(t, strings.Fields(out)[0], "Z")
}

func TestNopLogger(t *testing.T) {
	require.NotPanics(t, func() {
		NopLogger.WithPrefix("x").Errorf("%s", "nothing")
	})
}
