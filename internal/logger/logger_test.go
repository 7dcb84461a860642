package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func capture(t *testing.T, v bool) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(v)
	t.Cleanup(func() {
		SetVerbose(false)
	})
	return &buf
}

func TestDebugAndInfo_QuietByDefault(t *testing.T) {
	buf := capture(t, false)

	Debug("hidden %d", 1)
	Info("hidden %d", 2)
	Section("hidden")

	assert.Empty(t, buf.String())
	assert.False(t, IsVerbose())
}

func TestDebugAndInfo_Verbose(t *testing.T) {
	buf := capture(t, true)

	Debug("query %q", "abc")
	Info("loaded %d", 3)
	Section("Retrieval")

	out := buf.String()
	assert.Contains(t, out, `[DEBUG] query "abc"`)
	assert.Contains(t, out, "[INFO] loaded 3")
	assert.Contains(t, out, "=== Retrieval ===")
}

func TestWarn_AlwaysPrinted(t *testing.T) {
	buf := capture(t, false)

	Warn("no reranker available")

	assert.Equal(t, "[WARN] no reranker available\n", buf.String())
}
