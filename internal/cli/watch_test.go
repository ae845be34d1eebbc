package cli

import (
	"bytes"
	"strings"
	"testing"
)

func TestSummarizeEvent_KnownFields(t *testing.T) {
	got := summarizeEvent([]byte(`{"session_id":"s-42","status":"running","extra":"ignored"}`))
	if got != "session_id=s-42 status=running" {
		t.Errorf("summary = %q", got)
	}
}

func TestSummarizeEvent_NestedPayloadFallsBackToRaw(t *testing.T) {
	got := summarizeEvent([]byte(`{"payload":{"x":1}}`))
	if got != `{"payload":{"x":1}}` {
		t.Errorf("summary = %q", got)
	}
}

func TestSummarizeEvent_StripsANSIAndCollapsesWhitespace(t *testing.T) {
	got := summarizeEvent([]byte("{\"other\":\"\x1b[31mline\n  two\x1b[0m\"}"))
	if strings.Contains(got, "\x1b") {
		t.Errorf("summary still has escapes: %q", got)
	}
	if strings.Contains(got, "\n") {
		t.Errorf("summary spans lines: %q", got)
	}
}

func TestSummarizeEvent_TruncatesLongPayloads(t *testing.T) {
	got := summarizeEvent([]byte(`{"other":"` + strings.Repeat("a", 300) + `"}`))
	if !strings.HasSuffix(got, "...") {
		t.Errorf("summary not truncated: %q", got)
	}
	if len(got) > 130 {
		t.Errorf("summary length = %d", len(got))
	}
}

func TestSummarizeEvent_Empty(t *testing.T) {
	if got := summarizeEvent(nil); got != "" {
		t.Errorf("summary = %q", got)
	}
}

func TestPrintEventLine_Format(t *testing.T) {
	var buf bytes.Buffer
	printEventLine(&buf, "task-updated", []byte(`{"task_id":"t-7","status":"done"}`))

	line := buf.String()
	if !strings.Contains(line, "task-updated") {
		t.Errorf("line = %q", line)
	}
	if !strings.Contains(line, "task_id=t-7 status=done") {
		t.Errorf("line = %q", line)
	}
	if !strings.HasSuffix(line, "\n") {
		t.Errorf("line not newline-terminated: %q", line)
	}
}
