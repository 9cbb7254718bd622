package stash

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal(line, &m))
		out = append(out, m)
	}
	return out
}

func TestLogger_LogOp(t *testing.T) {
	var buf bytes.Buffer
	l := NewJSONLoggerTo(&buf, slog.LevelDebug).WithService("fs")
	ctx := context.Background()

	l.LogOp(ctx, OpOpen, "./a.txt", time.Millisecond, nil)
	l.LogOp(ctx, OpUpload, "./b.txt", time.Millisecond, NewError("fs", OpUpload, "./b.txt", KindPermission, errors.New("denied")))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)

	assert.Equal(t, "DEBUG", lines[0]["level"])
	assert.Equal(t, "open completed", lines[0]["msg"])
	assert.Equal(t, "fs", lines[0]["service"])
	assert.Equal(t, "./a.txt", lines[0]["path"])

	assert.Equal(t, "ERROR", lines[1]["level"])
	assert.Equal(t, "upload failed", lines[1]["msg"])
	assert.Equal(t, "permission denied", lines[1]["kind"])
}

func TestLogger_Helpers(t *testing.T) {
	var buf bytes.Buffer
	l := NewJSONLoggerTo(&buf, slog.LevelInfo).WithPath("x")
	ctx := context.Background()

	l.LogSkipped(ctx, "./a.txt")
	l.LogCreated(ctx, "bucket", "assets")
	l.LogOp(ctx, OpOpen, "./a.txt", 0, nil) // below level

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "WARN", lines[0]["level"])
	assert.Equal(t, "./a.txt", lines[0]["path"])
	assert.Equal(t, "bucket created", lines[1]["msg"])
	assert.Equal(t, "assets", lines[1]["name"])
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestLogger_OrNoop(t *testing.T) {
	var l *Logger
	assert.NotNil(t, l.OrNoop())
	assert.False(t, NoopLogger().Enabled(context.Background(), slog.LevelError))

	tl := NewTextLogger(slog.LevelInfo)
	assert.Same(t, tl, tl.OrNoop())
	assert.NotNil(t, NewLogger(nil))
}
