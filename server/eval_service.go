package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"connectrpc.com/connect"

	"github.com/chazu/nupython/compiler"
	"github.com/chazu/nupython/compiler/hash"
	"github.com/chazu/nupython/report"
	"github.com/chazu/nupython/vm"
)

// Procedure paths of the evaluation service.
const (
	EvaluationServiceName = "nupython.v1.EvaluationService"

	EvaluateProcedure    = "/" + EvaluationServiceName + "/Evaluate"
	CheckSyntaxProcedure = "/" + EvaluationServiceName + "/CheckSyntax"
	GetRunProcedure      = "/" + EvaluationServiceName + "/GetRun"
)

// EvaluateRequest asks the service to run one program.
type EvaluateRequest struct {
	Source      string `cbor:"1,keyasint" json:"source"`
	Name        string `cbor:"2,keyasint,omitempty" json:"name,omitempty"`
	HaltOnError bool   `cbor:"3,keyasint,omitempty" json:"halt_on_error,omitempty"`
	FloatFormat string `cbor:"4,keyasint,omitempty" json:"float_format,omitempty"`
}

// CheckSyntaxRequest asks the service to parse a program without running it.
type CheckSyntaxRequest struct {
	Source string `cbor:"1,keyasint" json:"source"`
}

// CheckSyntaxResponse lists the syntax errors found.
type CheckSyntaxResponse struct {
	Valid       bool          `cbor:"1,keyasint" json:"valid"`
	Errors      []SyntaxError `cbor:"2,keyasint,omitempty" json:"errors,omitempty"`
	ProgramHash string        `cbor:"3,keyasint,omitempty" json:"program_hash,omitempty"`
	Statements  int           `cbor:"4,keyasint" json:"statements"`
}

// SyntaxError is one parse error.
type SyntaxError struct {
	Line    int    `cbor:"1,keyasint" json:"line"`
	Column  int    `cbor:"2,keyasint" json:"column"`
	Message string `cbor:"3,keyasint" json:"message"`
}

// GetRunRequest fetches the report of an earlier Evaluate call.
type GetRunRequest struct {
	RunID string `cbor:"1,keyasint" json:"run_id"`
}

// EvalService implements the evaluation service.
type EvalService struct {
	worker *RunWorker
	runs   *RunStore
}

// NewEvalService creates an EvalService.
func NewEvalService(worker *RunWorker, runs *RunStore) *EvalService {
	return &EvalService{
		worker: worker,
		runs:   runs,
	}
}

// Evaluate parses and executes a nuPython program on a fresh VM. Semantic
// errors are part of the returned report; only syntax errors, bad options
// and failed runs are reported as RPC errors.
func (s *EvalService) Evaluate(
	ctx context.Context,
	req *connect.Request[EvaluateRequest],
) (*connect.Response[report.Report], error) {
	ff, err := vm.ParseFloatFormat(req.Msg.FloatFormat)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	prog, err := compiler.Parse(req.Msg.Source)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	result, err := s.worker.Exec(ctx, prog, vm.Options{
		FloatFormat: ff,
		HaltOnError: req.Msg.HaltOnError,
	})
	if err != nil {
		return nil, runError(err)
	}

	r := report.New(req.Msg.Name, prog, result, ff)
	id := s.runs.Put(r)
	log.Infof("run %s: %d statements, %d diagnostics", id, r.Executed, len(r.Diagnostics))

	return connect.NewResponse(r), nil
}

// CheckSyntax parses source without executing it.
func (s *EvalService) CheckSyntax(
	ctx context.Context,
	req *connect.Request[CheckSyntaxRequest],
) (*connect.Response[CheckSyntaxResponse], error) {
	p := compiler.NewParser(req.Msg.Source)
	prog := p.ParseProgram()

	resp := &CheckSyntaxResponse{Valid: len(p.Errors()) == 0}
	for _, e := range p.Errors() {
		resp.Errors = append(resp.Errors, SyntaxError{
			Line:    e.Pos.Line,
			Column:  e.Pos.Column,
			Message: e.Msg,
		})
	}
	if resp.Valid {
		resp.ProgramHash = hash.Hex(prog)
		resp.Statements = len(prog.Stmts)
	}
	return connect.NewResponse(resp), nil
}

// GetRun returns the stored report of an earlier run.
func (s *EvalService) GetRun(
	ctx context.Context,
	req *connect.Request[GetRunRequest],
) (*connect.Response[report.Report], error) {
	id := req.Msg.RunID
	if id == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("run_id is required"))
	}
	r, ok := s.runs.Get(id)
	if !ok {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("run %q not found", id))
	}
	return connect.NewResponse(r), nil
}

// runError maps a failed run to a Connect error.
func runError(err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	case errors.Is(err, ErrWorkerStopped):
		return connect.NewError(connect.CodeUnavailable, err)
	}
	return connect.NewError(connect.CodeInternal, err)
}

// NewEvaluationServiceHandler builds an HTTP handler serving every
// procedure of svc. It returns the path to mount the handler on.
func NewEvaluationServiceHandler(svc *EvalService, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{
		connect.WithCodec(cborCodec{}),
		connect.WithCodec(jsonCodec{}),
	}, opts...)

	evaluate := connect.NewUnaryHandler(EvaluateProcedure, svc.Evaluate, opts...)
	checkSyntax := connect.NewUnaryHandler(CheckSyntaxProcedure, svc.CheckSyntax, opts...)
	getRun := connect.NewUnaryHandler(GetRunProcedure, svc.GetRun, opts...)

	return "/" + EvaluationServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case EvaluateProcedure:
			evaluate.ServeHTTP(w, r)
		case CheckSyntaxProcedure:
			checkSyntax.ServeHTTP(w, r)
		case GetRunProcedure:
			getRun.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}
