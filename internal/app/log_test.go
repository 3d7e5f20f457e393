package app

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler_Handle(t *testing.T) {
	ts := time.Date(2024, 6, 15, 14, 30, 45, 0, time.UTC)

	tests := []struct {
		name    string
		opID    string
		level   slog.Level
		message string
		attrs   []slog.Attr
		want    string
	}{
		{
			name:    "basic info message",
			opID:    "op-123",
			level:   slog.LevelInfo,
			message: "copied folder",
			want:    "2024-06-15T14:30:45Z\tINFO\top-123\tcopied folder\n",
		},
		{
			name:    "debug level",
			opID:    "op-456",
			level:   slog.LevelDebug,
			message: "saved file",
			want:    "2024-06-15T14:30:45Z\tDEBUG\top-456\tsaved file\n",
		},
		{
			name:    "with record attrs",
			opID:    "op-789",
			level:   slog.LevelInfo,
			message: "revoked folder tree",
			attrs:   []slog.Attr{slog.String("subject", "u-1"), slog.Int("folders", 3)},
			want:    "2024-06-15T14:30:45Z\tINFO\top-789\trevoked folder tree\tsubject=u-1\tfolders=3\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := &handler{w: &buf, opID: tt.opID}

			r := slog.NewRecord(ts, tt.level, tt.message, 0)
			for _, a := range tt.attrs {
				r.AddAttrs(a)
			}

			if err := h.Handle(context.Background(), r); err != nil {
				t.Fatalf("Handle() error = %v", err)
			}

			if got := buf.String(); got != tt.want {
				t.Errorf("Handle() output =\n%q\nwant:\n%q", got, tt.want)
			}
		})
	}
}

func TestHandler_Echo(t *testing.T) {
	var file, echo bytes.Buffer
	h := &handler{w: &file, echo: &echo, echoLevel: slog.LevelWarn, opID: "op-1"}
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for _, level := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError} {
		if err := h.Handle(context.Background(), slog.NewRecord(ts, level, "msg", 0)); err != nil {
			t.Fatalf("Handle(%v) error = %v", level, err)
		}
	}

	if got := strings.Count(file.String(), "\n"); got != 4 {
		t.Errorf("file lines = %d, want 4", got)
	}
	if got := strings.Count(echo.String(), "\n"); got != 2 {
		t.Errorf("echo lines = %d, want 2: %q", got, echo.String())
	}
	if strings.Contains(echo.String(), "INFO") {
		t.Errorf("echo contains info record: %q", echo.String())
	}
}

func TestHandler_Scoping(t *testing.T) {
	var buf bytes.Buffer
	base := &handler{w: &buf, opID: "op-1", attrs: []slog.Attr{slog.String("a", "1")}}

	scoped := base.WithAttrs([]slog.Attr{slog.String("component", "storage")}).(*handler)
	assert.Len(t, base.attrs, 1, "WithAttrs mutated the receiver")
	assert.Len(t, scoped.attrs, 2)

	slog.New(scoped).Info("evicted", "tenant", 7)
	slog.New(base).WithGroup("s3").With("bucket", "docs").Info("listed", "keys", 2)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasSuffix(lines[0], "\tevicted\ta=1\tcomponent=storage\ttenant=7"), lines[0])
	assert.Contains(t, lines[1], "\ts3.bucket=docs")
	assert.Contains(t, lines[1], "\ts3.keys=2")

	for _, level := range []slog.Level{slog.LevelDebug, slog.LevelError} {
		assert.True(t, base.Enabled(context.Background(), level), "level %v", level)
	}
}

func TestNewLogger(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "log")

	sl, f, err := newLogger(dir, "20240115T103000Z")
	require.NoError(t, err)
	defer f.Close()

	logger := (&slogAdapter{l: sl}).With("tenant", 3)
	logger.Debug("saved file", "file", "12")
	logger.With("provider", "box").Info("opened session")

	data, err := os.ReadFile(filepath.Join(dir, "docstore.log"))
	require.NoError(t, err)
	got := string(data)
	assert.Contains(t, got, "\tDEBUG\t20240115T103000Z\tsaved file\ttenant=3\tfile=12\n")
	assert.Contains(t, got, "\tINFO\t20240115T103000Z\topened session\ttenant=3\tprovider=box\n")
}
