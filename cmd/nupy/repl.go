package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/chazu/nupython/compiler"
	"github.com/chazu/nupython/vm"
)

// session is the state of an interactive REPL. Each accepted line is
// appended to the program, which is then run again from the top on a fresh
// VM; only what the new line produced is shown.
type session struct {
	opts   vm.Options
	lines  []string
	last   *vm.Result
	output int // printed lines already shown
	diags  int // diagnostics already shown
}

func newSession(opts vm.Options) *session {
	opts.Output = nil
	opts.OnDiagnostic = nil
	return &session{opts: opts}
}

// eval adds one line to the program and writes its effect to out. A line
// with a syntax error is reported and discarded.
func (s *session) eval(ctx context.Context, line string, out io.Writer) error {
	candidate := append(append([]string(nil), s.lines...), line)
	prog, err := compiler.Parse(strings.Join(candidate, "\n") + "\n")
	if err != nil {
		if list, ok := compiler.AsErrorList(err); ok {
			for _, e := range list {
				fmt.Fprintf(out, "syntax error: column %d: %s\n", e.Pos.Column, e.Msg)
			}
			return nil
		}
		return err
	}

	result, err := vm.Run(ctx, prog, s.opts)
	if err != nil {
		return err
	}
	s.lines = candidate
	s.last = result

	for _, l := range result.Output[min(s.output, len(result.Output)):] {
		fmt.Fprintln(out, l)
	}
	for _, d := range result.Diagnostics[min(s.diags, len(result.Diagnostics)):] {
		fmt.Fprintln(out, d.String())
	}
	s.output = len(result.Output)
	s.diags = len(result.Diagnostics)
	return nil
}

func (s *session) reset() {
	s.lines = nil
	s.last = nil
	s.output = 0
	s.diags = 0
}

func (s *session) command(line string, out io.Writer) {
	parts := strings.Fields(line)
	switch parts[0] {
	case ":help", ":h":
		fmt.Fprintln(out, "REPL Commands:")
		fmt.Fprintln(out, "  :help, :h       Show this help")
		fmt.Fprintln(out, "  :memory, :m     Show the address table")
		fmt.Fprintln(out, "  :source, :s     Show the program entered so far")
		fmt.Fprintln(out, "  :reset          Forget every line entered")
		fmt.Fprintln(out, "  exit, quit      Leave the REPL")

	case ":memory", ":m":
		if s.last == nil || len(s.last.Memory) == 0 {
			fmt.Fprintln(out, "(empty)")
			return
		}
		for _, slot := range s.last.Memory {
			fmt.Fprintf(out, "%4d  %-12s %-6s %s\n",
				slot.Address, slot.Name, slot.Value.Kind(), slot.Value.Format(s.opts.FloatFormat))
		}

	case ":source", ":s":
		for i, l := range s.lines {
			fmt.Fprintf(out, "%4d  %s\n", i+1, l)
		}

	case ":reset":
		s.reset()
		fmt.Fprintln(out, "Program cleared")

	default:
		fmt.Fprintf(out, "Unknown command: %s (type :help for commands)\n", parts[0])
	}
}

func runREPL(in io.Reader, out io.Writer, opts vm.Options) {
	fmt.Fprintln(out, "nuPython REPL (type 'exit' to quit, ':help' for commands)")
	fmt.Fprintln(out)

	s := newSession(opts)
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, ">> ")
		if !scanner.Scan() {
			break
		}

		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "exit" || trimmed == "quit":
			return
		case trimmed == "":
			continue
		case strings.HasPrefix(trimmed, ":"):
			s.command(trimmed, out)
			continue
		}

		if err := s.eval(context.Background(), line, out); err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
		}
	}
	fmt.Fprintln(out)
}
