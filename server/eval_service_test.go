package server

import (
	"context"
	"errors"
	"math"
	"testing"

	"connectrpc.com/connect"

	"github.com/chazu/nupython/compiler"
	"github.com/chazu/nupython/compiler/hash"
)

// ---------------------------------------------------------------------------
// Evaluate
// ---------------------------------------------------------------------------

func TestEvaluate_Copies(t *testing.T) {
	svc := newTestEvalService()

	resp, err := svc.Evaluate(bg(), connectReq(&EvaluateRequest{
		Source: "a = 123\nb = a\nb = 2 * b\nc = a\nprint(a)\nprint(b)\nprint(c)\n",
		Name:   "copies.py",
	}))
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	r := resp.Msg
	if !r.OK() {
		t.Fatalf("unexpected diagnostics: %v", r.Diagnostics)
	}
	want := []string{"123", "246", "123"}
	if len(r.Output) != len(want) {
		t.Fatalf("output = %q, want %q", r.Output, want)
	}
	for i := range want {
		if r.Output[i] != want[i] {
			t.Errorf("output[%d] = %q, want %q", i, r.Output[i], want[i])
		}
	}
	if r.RunID == "" {
		t.Error("Evaluate should assign a run id")
	}
	if r.Source != "copies.py" {
		t.Errorf("source = %q, want copies.py", r.Source)
	}
}

func TestEvaluate_SemanticErrorsAreNotRPCErrors(t *testing.T) {
	svc := newTestEvalService()

	resp, err := svc.Evaluate(bg(), connectReq(&EvaluateRequest{
		Source: "x = 1\nptr = 9\n*ptr = 2\nprint(y)\nprint(x)\n",
	}))
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	r := resp.Msg
	if len(r.Diagnostics) != 2 {
		t.Fatalf("diagnostics = %v, want 2", r.Diagnostics)
	}
	if r.Diagnostics[0].Kind != "InvalidAddress" || r.Diagnostics[0].Line != 3 {
		t.Errorf("diagnostic 0 = %+v", r.Diagnostics[0])
	}
	if r.Diagnostics[1].Kind != "UndefinedIdentifier" || r.Diagnostics[1].Line != 4 {
		t.Errorf("diagnostic 1 = %+v", r.Diagnostics[1])
	}
	if len(r.Output) != 1 || r.Output[0] != "1" {
		t.Errorf("output = %q, want [1]", r.Output)
	}
}

func TestEvaluate_Options(t *testing.T) {
	svc := newTestEvalService()

	resp, err := svc.Evaluate(bg(), connectReq(&EvaluateRequest{
		Source:      "print(7 / 2)\nprint(nope)\nprint(1)\n",
		HaltOnError: true,
		FloatFormat: "shortest",
	}))
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	r := resp.Msg
	if !r.Halted {
		t.Error("Halted = false, want true")
	}
	if len(r.Output) != 1 || r.Output[0] != "3.5" {
		t.Errorf("output = %q, want [3.5]", r.Output)
	}
	if r.FloatFormat != "shortest" {
		t.Errorf("float format = %q", r.FloatFormat)
	}
}

func TestEvaluate_SyntaxError(t *testing.T) {
	svc := newTestEvalService()

	_, err := svc.Evaluate(bg(), connectReq(&EvaluateRequest{Source: "x = = 1\n"}))
	if connect.CodeOf(err) != connect.CodeInvalidArgument {
		t.Errorf("code = %v, want InvalidArgument (err %v)", connect.CodeOf(err), err)
	}
}

func TestEvaluate_BadFloatFormat(t *testing.T) {
	svc := newTestEvalService()

	_, err := svc.Evaluate(bg(), connectReq(&EvaluateRequest{Source: "pass\n", FloatFormat: "hex"}))
	if connect.CodeOf(err) != connect.CodeInvalidArgument {
		t.Errorf("code = %v, want InvalidArgument", connect.CodeOf(err))
	}
}

func TestEvaluate_Cancelled(t *testing.T) {
	svc := newTestEvalService()
	ctx, cancel := context.WithCancel(bg())
	cancel()

	_, err := svc.Evaluate(ctx, connectReq(&EvaluateRequest{Source: "print(1)\n"}))
	if connect.CodeOf(err) != connect.CodeCanceled {
		t.Errorf("code = %v, want Canceled (err %v)", connect.CodeOf(err), err)
	}
}

// ---------------------------------------------------------------------------
// CheckSyntax / GetRun
// ---------------------------------------------------------------------------

func TestCheckSyntax(t *testing.T) {
	svc := newTestEvalService()

	resp, err := svc.CheckSyntax(bg(), connectReq(&CheckSyntaxRequest{Source: "x = 1\nprint(x)\n"}))
	if err != nil {
		t.Fatal(err)
	}
	if !resp.Msg.Valid || resp.Msg.Statements != 2 || len(resp.Msg.ProgramHash) != 64 {
		t.Errorf("response = %+v", resp.Msg)
	}
	prog, err := compiler.Parse("x = 1\nprint(x)\n")
	if err != nil {
		t.Fatal(err)
	}
	if want := hash.Hex(prog); resp.Msg.ProgramHash != want {
		t.Errorf("ProgramHash = %s, want %s", resp.Msg.ProgramHash, want)
	}

	resp, err = svc.CheckSyntax(bg(), connectReq(&CheckSyntaxRequest{Source: "x = \nfoo(1)\n"}))
	if err != nil {
		t.Fatal(err)
	}
	if resp.Msg.Valid || len(resp.Msg.Errors) != 2 {
		t.Fatalf("response = %+v, want 2 errors", resp.Msg)
	}
	if resp.Msg.Errors[1].Line != 2 || resp.Msg.Errors[1].Message != "unknown function 'foo'" {
		t.Errorf("error 1 = %+v", resp.Msg.Errors[1])
	}
}

func TestGetRun(t *testing.T) {
	svc := newTestEvalService()

	resp, err := svc.Evaluate(bg(), connectReq(&EvaluateRequest{Source: "print(\"hi\")\n"}))
	if err != nil {
		t.Fatal(err)
	}
	id := resp.Msg.RunID

	got, err := svc.GetRun(bg(), connectReq(&GetRunRequest{RunID: id}))
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Msg.RunID != id || len(got.Msg.Output) != 1 || got.Msg.Output[0] != "hi" {
		t.Errorf("GetRun = %+v", got.Msg)
	}

	_, err = svc.GetRun(bg(), connectReq(&GetRunRequest{RunID: "missing"}))
	if connect.CodeOf(err) != connect.CodeNotFound {
		t.Errorf("code = %v, want NotFound", connect.CodeOf(err))
	}
	_, err = svc.GetRun(bg(), connectReq(&GetRunRequest{}))
	if connect.CodeOf(err) != connect.CodeInvalidArgument {
		t.Errorf("code = %v, want InvalidArgument", connect.CodeOf(err))
	}
}

func TestRunErrorCodes(t *testing.T) {
	tests := []struct {
		err  error
		want connect.Code
	}{
		{context.Canceled, connect.CodeCanceled},
		{context.DeadlineExceeded, connect.CodeDeadlineExceeded},
		{ErrWorkerStopped, connect.CodeUnavailable},
		{errors.New("run panicked: boom"), connect.CodeInternal},
	}
	for _, tt := range tests {
		if got := connect.CodeOf(runError(tt.err)); got != tt.want {
			t.Errorf("runError(%v) code = %v, want %v", tt.err, got, tt.want)
		}
	}
}

// ---------------------------------------------------------------------------
// Over HTTP
// ---------------------------------------------------------------------------

func TestClient_EvaluateOverHTTP(t *testing.T) {
	client := newTestClient(t)

	r, err := client.Evaluate(bg(), &EvaluateRequest{
		Source: "x = 1234\nptr_x = 0\n*ptr_x = 5\nprint(x)\n",
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(r.Output) != 1 || r.Output[0] != "5" {
		t.Errorf("output = %q, want [5]", r.Output)
	}
	if len(r.Memory) != 2 || r.Memory[0].Name != "x" || r.Memory[0].Int != 5 {
		t.Errorf("memory = %+v", r.Memory)
	}

	stored, err := client.GetRun(bg(), r.RunID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if stored.ProgramHash != r.ProgramHash {
		t.Errorf("stored hash %s != %s", stored.ProgramHash, r.ProgramHash)
	}
}

func TestClient_JSONCodec(t *testing.T) {
	client := newTestClient(t, connect.WithCodec(jsonCodec{}))

	r, err := client.Evaluate(bg(), &EvaluateRequest{Source: "print(2 ** 10)\n"})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(r.Output) != 1 || r.Output[0] != "1024" {
		t.Errorf("output = %q, want [1024]", r.Output)
	}
}

func TestClient_JSONCodecNonFiniteReal(t *testing.T) {
	client := newTestClient(t, connect.WithCodec(jsonCodec{}))

	r, err := client.Evaluate(bg(), &EvaluateRequest{Source: "x = 0.0 ** -1\ny = -x\nprint(x)\n"})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(r.Output) != 1 || r.Output[0] != "inf" {
		t.Errorf("output = %q, want [inf]", r.Output)
	}
	if len(r.Memory) != 2 || !math.IsInf(r.Memory[0].Float, 1) || !math.IsInf(r.Memory[1].Float, -1) {
		t.Errorf("memory = %+v", r.Memory)
	}
}

func TestClient_SyntaxErrorOverHTTP(t *testing.T) {
	client := newTestClient(t)

	_, err := client.Evaluate(bg(), &EvaluateRequest{Source: "print(1, 2)\n"})
	if connect.CodeOf(err) != connect.CodeInvalidArgument {
		t.Errorf("code = %v, want InvalidArgument (err %v)", connect.CodeOf(err), err)
	}

	resp, err := client.CheckSyntax(bg(), "print(1, 2)\n")
	if err != nil {
		t.Fatal(err)
	}
	if resp.Valid {
		t.Error("CheckSyntax reported valid")
	}
}
