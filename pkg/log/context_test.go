package log

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestCtxFallsBackToGlobal(t *testing.T) {
	if Ctx(context.Background()) != L() {
		t.Fatal("expected the global logger for a bare context")
	}
}

// Call sites chain level methods directly on Ctx's return value; the stored
// request-scoped logger must drive the output.
func TestCtxReturnsStoredLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).With().Str(FieldRequestID, "req-1").Logger()
	ctx := WithLogger(context.Background(), logger)

	Ctx(ctx).Info().Str(FieldSessionID, "s1").Msg("hello")

	out := buf.String()
	if !strings.Contains(out, "req-1") || !strings.Contains(out, "hello") {
		t.Fatalf("unexpected log output %q", out)
	}
}
