package notify

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	portal "github.com/chimerakang/portal-go"
)

func TestLog_Levels(t *testing.T) {
	var buf bytes.Buffer
	n := NewLog(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	ctx := context.Background()

	n.Notify(ctx, portal.SeverityError, "boom")
	n.Notify(ctx, portal.SeverityWarning, "careful")
	n.Notify(ctx, portal.SeveritySuccess, "done")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines: %q", len(lines), buf.String())
	}
	for i, want := range []string{"level=ERROR", "level=WARN", "level=INFO"} {
		if !strings.Contains(lines[i], want) {
			t.Errorf("line %d = %q, want %s", i, lines[i], want)
		}
	}
	if !strings.Contains(lines[2], "severity=success") {
		t.Errorf("missing severity attr: %q", lines[2])
	}
}

func TestRecorder(t *testing.T) {
	var r Recorder
	r.Notify(context.Background(), portal.SeverityInfo, "a")
	r.Notify(context.Background(), portal.SeverityError, "b")

	got := r.Entries()
	if len(got) != 2 || got[0].Message != "a" || got[1].Severity != portal.SeverityError {
		t.Fatalf("Entries() = %+v", got)
	}
	got[0].Message = "mutated"
	if r.Entries()[0].Message != "a" {
		t.Error("Entries must return a copy")
	}
	r.Reset()
	if len(r.Entries()) != 0 {
		t.Error("Reset did not clear entries")
	}
}

func TestMulti_SkipsNil(t *testing.T) {
	var a, b Recorder
	m := Multi(&a, nil, &b)
	m.Notify(context.Background(), portal.SeverityWarning, "x")
	if len(a.Entries()) != 1 || len(b.Entries()) != 1 {
		t.Errorf("a=%v b=%v", a.Entries(), b.Entries())
	}
}
