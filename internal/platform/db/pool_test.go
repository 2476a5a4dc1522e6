package db

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/tracelog"
	"github.com/rs/zerolog"
)

func TestTraceLevel(t *testing.T) {
	tests := []struct {
		in   zerolog.Level
		want tracelog.LogLevel
	}{
		{zerolog.TraceLevel, tracelog.LogLevelTrace},
		{zerolog.DebugLevel, tracelog.LogLevelInfo},
		{zerolog.InfoLevel, tracelog.LogLevelError},
		{zerolog.WarnLevel, tracelog.LogLevelError},
		{zerolog.Disabled, tracelog.LogLevelNone},
	}
	for _, tt := range tests {
		if got := traceLevel(tt.in); got != tt.want {
			t.Errorf("traceLevel(%s) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestZerologAdapter(t *testing.T) {
	var buf bytes.Buffer
	log := zerologAdapter(zerolog.New(&buf))

	log.Log(context.Background(), tracelog.LogLevelError, "Query", map[string]any{"sql": "SELECT 1"})
	out := buf.String()
	if !strings.Contains(out, `"level":"error"`) || !strings.Contains(out, `"sql":"SELECT 1"`) {
		t.Errorf("unexpected log line: %s", out)
	}

	buf.Reset()
	log.Log(context.Background(), tracelog.LogLevelInfo, "Query", nil)
	if !strings.Contains(buf.String(), `"level":"debug"`) {
		t.Errorf("expected info traces at debug level, got %s", buf.String())
	}
}

func TestNewPool_BadURL(t *testing.T) {
	if _, err := NewPool(context.Background(), "://not-a-url", 4, 1, zerolog.Nop()); err == nil {
		t.Error("expected parse error")
	}
}
