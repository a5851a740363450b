package report

import (
	"strings"
	"testing"
)

func TestConsoleSink(t *testing.T) {
	var buf strings.Builder
	if err := drive(NewConsoleSink(&buf)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"label: hello world",
		"deepspeech: hello word (distance 1, 1.250s)",
		"watson: FAILED after 3 attempt(s)",
		"summary (2 samples)",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	last := strings.Fields(lines[len(lines)-1])
	if len(last) != 5 || last[0] != "watson" || last[1] != "0.000" || last[4] != "1" {
		t.Fatalf("unexpected watson summary: %v", last)
	}
	deepspeech := strings.Fields(lines[len(lines)-2])
	if deepspeech[0] != "deepspeech" || deepspeech[1] != "0.500" || deepspeech[2] != "1.000s" {
		t.Fatalf("unexpected deepspeech summary: %v", deepspeech)
	}
}
