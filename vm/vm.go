package vm

import (
	"context"
	"fmt"
	"io"

	"github.com/tliron/commonlog"

	"github.com/chazu/nupython/compiler"
)

var log = commonlog.GetLogger("nupython.vm")

// ---------------------------------------------------------------------------
// VM: single-pass semantic checker and executor
// ---------------------------------------------------------------------------

// Options configures a VM.
type Options struct {
	// Output receives each printed line, newline-terminated, as it is
	// produced. May be nil.
	Output io.Writer

	// OnDiagnostic is called as each diagnostic is recorded, before the
	// next statement runs. May be nil.
	OnDiagnostic func(Diagnostic)

	// FloatFormat controls how print() renders reals.
	FloatFormat FloatFormat

	// HaltOnError stops the run at the first diagnostic instead of
	// skipping the failing statement.
	HaltOnError bool
}

// Result is everything one run produced.
type Result struct {
	Output      []string     // printed lines, without newlines
	Diagnostics []Diagnostic // in statement order
	Memory      []Slot       // final table contents in address order
	Executed    int          // statements visited
	Halted      bool         // stopped early by HaltOnError
}

// OK reports whether the run recorded no diagnostics.
func (r *Result) OK() bool {
	return len(r.Diagnostics) == 0
}

// VM executes nuPython programs. It holds configuration only: every Run
// gets a fresh address table, so one VM may serve concurrent runs.
type VM struct {
	opts Options
}

// New creates a VM.
func New(opts Options) *VM {
	return &VM{opts: opts}
}

// Run executes prog once, statement by statement. A statement that fails
// semantic validation is recorded as a diagnostic and has no effect; later
// statements still run. The context is checked between statements only. The
// returned error is non-nil only for cancellation or an output write
// failure, in which case the partial Result is still returned.
func (vm *VM) Run(ctx context.Context, prog *compiler.Program) (*Result, error) {
	r := &run{
		opts:   vm.opts,
		table:  NewAddressTable(),
		result: &Result{},
	}
	r.eval = NewEvaluator(r.table)

	var err error
	if prog != nil {
		err = r.execute(ctx, prog.Stmts)
	}
	r.result.Memory = r.table.Snapshot()

	log.Debugf("run finished: %d statements, %d lines, %d diagnostics",
		r.result.Executed, len(r.result.Output), len(r.result.Diagnostics))
	return r.result, err
}

// Run executes prog on a VM configured by opts.
func Run(ctx context.Context, prog *compiler.Program, opts Options) (*Result, error) {
	return New(opts).Run(ctx, prog)
}

// run is the state owned by one execution.
type run struct {
	opts   Options
	table  *AddressTable
	eval   *Evaluator
	result *Result
}

func (r *run) execute(ctx context.Context, stmts []compiler.Stmt) error {
	for i, stmt := range stmts {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.result.Executed++

		failure, err := r.step(stmt)
		if err != nil {
			return err
		}
		if failure != nil {
			r.diagnose(i, stmt, failure)
			if r.opts.HaltOnError {
				r.result.Halted = true
				return nil
			}
		}
	}
	return nil
}

// step executes one statement. A semantic failure is returned as the first
// result and means the statement committed nothing; the second result is
// reserved for output errors, which abort the run.
func (r *run) step(stmt compiler.Stmt) (*SemanticError, error) {
	switch s := stmt.(type) {
	case *compiler.Assignment:
		v, err := r.eval.Eval(s.Value)
		if err != nil {
			return asSemantic(err), nil
		}
		addr := r.table.Allocate(s.Name)
		if err := r.table.Write(addr, v); err != nil {
			return asSemantic(err), nil
		}
		log.Debugf("%s = %s (address %d)", s.Name, describeExpr(s.Value), addr)
		return nil, nil

	case *compiler.DerefAssignment:
		addr, err := r.eval.ResolveAddress(s.Pointer)
		if err != nil {
			return asSemantic(err), nil
		}
		v, err := r.eval.Eval(s.Value)
		if err != nil {
			return asSemantic(err), nil
		}
		if err := r.table.Write(addr, v); err != nil {
			return asSemantic(err), nil
		}
		log.Debugf("*%s = %s (address %d)", describeExpr(s.Pointer), describeExpr(s.Value), addr)
		return nil, nil

	case *compiler.Print:
		if s.Arg == nil {
			return nil, r.emit("")
		}
		v, err := r.eval.Eval(s.Arg)
		if err != nil {
			return asSemantic(err), nil
		}
		return nil, r.emit(v.Format(r.opts.FloatFormat))

	case *compiler.Pass:
		return nil, nil
	}
	return invalidOperation("unsupported statement %T", stmt), nil
}

func (r *run) emit(line string) error {
	r.result.Output = append(r.result.Output, line)
	if r.opts.Output == nil {
		return nil
	}
	if _, err := io.WriteString(r.opts.Output, line+"\n"); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

func (r *run) diagnose(index int, stmt compiler.Stmt, failure *SemanticError) {
	d := Diagnostic{
		Stmt:    index,
		Kind:    failure.Kind,
		Message: failure.Msg,
	}
	if stmt != nil {
		d.Line = stmt.Span().Start.Line
	}
	r.result.Diagnostics = append(r.result.Diagnostics, d)
	log.Debugf("statement %d: %s: %s", index, d.Kind, d.Message)
	if r.opts.OnDiagnostic != nil {
		r.opts.OnDiagnostic(d)
	}
}

// asSemantic converts an evaluation error into a SemanticError. Everything
// the evaluator and table return already is one; anything else is treated
// as an invalid operation.
func asSemantic(err error) *SemanticError {
	if se, ok := err.(*SemanticError); ok {
		return se
	}
	return invalidOperation("%v", err)
}
