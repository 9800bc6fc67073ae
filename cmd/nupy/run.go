package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/chazu/nupython/compiler"
	"github.com/chazu/nupython/manifest"
	"github.com/chazu/nupython/report"
	"github.com/chazu/nupython/server"
	"github.com/chazu/nupython/vm"
)

// Exit statuses of a batch run.
const (
	exitOK         = 0
	exitFailed     = 1 // unreadable file, syntax error or aborted run
	exitDiagnostic = 2 // every program ran, at least one reported a semantic error
)

// runOptions is the resolved configuration of a batch run.
type runOptions struct {
	vm          vm.Options
	diagnostics string
	format      report.Format
	outPath     string
	jobs        int
	remote      string
	memory      bool // print the final address table after each program
}

// fileRun is one program of a batch. Text output is buffered so that
// concurrent runs print in command-line order.
type fileRun struct {
	path   string
	out    bytes.Buffer
	errOut bytes.Buffer
	report *report.Report
	err    error
}

// runFiles executes every program, at most opts.jobs at a time, then writes
// their output in order and returns the exit status.
func runFiles(ctx context.Context, paths []string, opts runOptions, stdout, stderr io.Writer) int {
	var client *server.Client
	if opts.remote != "" {
		client = server.NewClient(http.DefaultClient, opts.remote)
	}

	runs := make([]*fileRun, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.jobs)
	for i, path := range paths {
		fr := &fileRun{path: path}
		runs[i] = fr
		g.Go(func() error {
			if client != nil {
				return fr.executeRemote(gctx, client, opts)
			}
			return fr.execute(gctx, opts)
		})
	}
	waitErr := g.Wait()

	status := exitOK
	var reports []*report.Report
	for _, fr := range runs {
		switch {
		case fr.err != nil:
			status = exitFailed
		case fr.report != nil && !fr.report.OK() && status == exitOK:
			status = exitDiagnostic
		}
		if fr.report != nil {
			reports = append(reports, fr.report)
		}
	}
	if waitErr != nil {
		fmt.Fprintf(stderr, "Error: %v\n", waitErr)
		status = exitFailed
	}

	out := stdout
	if opts.outPath != "" {
		f, err := os.Create(opts.outPath)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitFailed
		}
		defer f.Close()
		out = f
	}

	if opts.format == report.FormatText {
		for _, fr := range runs {
			if len(runs) > 1 {
				fmt.Fprintf(out, "==> %s <==\n", fr.path)
			}
			out.Write(fr.out.Bytes())
			stderr.Write(fr.errOut.Bytes())
		}
		return status
	}

	for _, fr := range runs {
		stderr.Write(fr.errOut.Bytes())
	}
	if len(reports) == 0 {
		return status
	}
	data, err := report.EncodeAll(reports, opts.format)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailed
	}
	if _, err := out.Write(data); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailed
	}
	return status
}

// execute parses and runs one program locally. Per-file failures are kept
// on the fileRun; only cancellation is returned, so one bad file does not
// stop the others.
func (fr *fileRun) execute(ctx context.Context, opts runOptions) error {
	src, err := os.ReadFile(fr.path)
	if err != nil {
		fr.fail(err)
		return nil
	}

	prog, err := compiler.Parse(string(src))
	if err != nil {
		fr.syntaxErrors(err)
		return nil
	}

	vmOpts := opts.vm
	if opts.format == report.FormatText {
		vmOpts.Output = &fr.out
	}
	if sink := fr.diagnosticSink(opts); sink != nil {
		vmOpts.OnDiagnostic = func(d vm.Diagnostic) {
			fmt.Fprintln(sink, d.String())
		}
	}

	result, err := vm.Run(ctx, prog, vmOpts)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		fr.fail(err)
		return nil
	}

	fr.report = report.New(fr.path, prog, result, opts.vm.FloatFormat)
	log.Infof("%s: %d statements, %d diagnostics", fr.path, fr.report.Executed, len(fr.report.Diagnostics))
	if opts.memory && opts.format == report.FormatText {
		if err := writeMemory(&fr.out, fr.report, opts.vm.FloatFormat); err != nil {
			fr.fail(err)
		}
	}
	return nil
}

// executeRemote sends one program to an evaluation service. The service
// returns output and diagnostics separately, so text mode prints the
// diagnostics after the output.
func (fr *fileRun) executeRemote(ctx context.Context, client *server.Client, opts runOptions) error {
	src, err := os.ReadFile(fr.path)
	if err != nil {
		fr.fail(err)
		return nil
	}

	r, err := client.Evaluate(ctx, &server.EvaluateRequest{
		Source:      string(src),
		Name:        fr.path,
		HaltOnError: opts.vm.HaltOnError,
		FloatFormat: opts.vm.FloatFormat.String(),
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		fr.fail(err)
		return nil
	}
	fr.report = r
	log.Infof("%s: run %s on %s", fr.path, r.RunID, opts.remote)

	if opts.format == report.FormatText {
		for _, line := range r.Output {
			fmt.Fprintln(&fr.out, line)
		}
		if sink := fr.diagnosticSink(opts); sink != nil {
			for _, d := range r.Diagnostics {
				fmt.Fprintln(sink, d.String())
			}
		}
		if opts.memory {
			if err := writeMemory(&fr.out, r, opts.vm.FloatFormat); err != nil {
				fr.fail(err)
			}
		}
	}
	return nil
}

// writeMemory prints the final address table of a report, one slot per
// line, with values formatted the way print() shows them.
func writeMemory(w io.Writer, r *report.Report, ff vm.FloatFormat) error {
	fmt.Fprintln(w, "-- memory --")
	for _, slot := range r.Memory {
		v, err := slot.Value()
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%4d  %-12s %-6s %s\n", slot.Address, slot.Name, slot.Kind, v.Format(ff))
	}
	return nil
}

// diagnosticSink returns where semantic errors are written, or nil when
// they are silenced. Structured formats keep them in the report only.
func (fr *fileRun) diagnosticSink(opts runOptions) io.Writer {
	if opts.format != report.FormatText {
		return nil
	}
	switch opts.diagnostics {
	case manifest.DiagnosticsInline:
		return &fr.out
	case manifest.DiagnosticsStderr:
		return &fr.errOut
	}
	return nil
}

func (fr *fileRun) syntaxErrors(err error) {
	fr.err = err
	list, ok := compiler.AsErrorList(err)
	if !ok {
		fr.fail(err)
		return
	}
	for _, e := range list {
		fmt.Fprintf(&fr.errOut, "%s:%d:%d: syntax error: %s\n", fr.path, e.Pos.Line, e.Pos.Column, e.Msg)
	}
	log.Debugf("%s: %d syntax errors", fr.path, len(list))
}

func (fr *fileRun) fail(err error) {
	fr.err = err
	var pe *os.PathError
	if errors.As(err, &pe) {
		fmt.Fprintf(&fr.errOut, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(&fr.errOut, "Error: %s: %v\n", fr.path, err)
}
