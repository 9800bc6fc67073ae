package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/chazu/nupython/vm"
)

func replTranscript(t *testing.T, input string) string {
	t.Helper()
	var out bytes.Buffer
	runREPL(strings.NewReader(input), &out, vm.Options{})
	return out.String()
}

func TestREPL_PrintsOnlyNewOutput(t *testing.T) {
	out := replTranscript(t, "x = 2\nprint(x)\ny = x * 3\nprint(y)\nexit\n")

	if strings.Count(out, "2\n") != 1 {
		t.Errorf("expected 2 printed once:\n%s", out)
	}
	if strings.Count(out, "6\n") != 1 {
		t.Errorf("expected 6 printed once:\n%s", out)
	}
}

func TestREPL_SemanticErrorShownOnce(t *testing.T) {
	out := replTranscript(t, "print(nope)\nprint(1)\nprint(2)\n")

	if n := strings.Count(out, "**SEMANTIC ERROR: name 'nope' is not defined (line 1)"); n != 1 {
		t.Errorf("diagnostic shown %d times:\n%s", n, out)
	}
}

func TestREPL_SyntaxErrorDiscardsLine(t *testing.T) {
	out := replTranscript(t, "x = 1 +\n:source\n")

	if !strings.Contains(out, "syntax error") {
		t.Errorf("missing syntax error:\n%s", out)
	}
	if strings.Contains(out, "   1  x = 1 +") {
		t.Errorf("rejected line kept in the program:\n%s", out)
	}
}

func TestREPL_Commands(t *testing.T) {
	out := replTranscript(t, "a = 1\nb = \"hi\"\n:memory\n:source\n:reset\n:memory\n:bogus\n:help\n")

	for _, want := range []string{
		"   0  a",
		"   1  b",
		"hi",
		"   1  a = 1",
		"   2  b = \"hi\"",
		"Program cleared",
		"(empty)",
		"Unknown command: :bogus",
		"REPL Commands:",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("transcript missing %q:\n%s", want, out)
		}
	}
}

func TestSession_FloatFormat(t *testing.T) {
	s := newSession(vm.Options{FloatFormat: vm.FloatShortest})
	var out bytes.Buffer
	if err := s.eval(bg(), "print(1.5)", &out); err != nil {
		t.Fatal(err)
	}
	if out.String() != "1.5\n" {
		t.Errorf("out = %q", out.String())
	}
}

func bg() context.Context {
	return context.Background()
}
