package vm

import (
	"context"
	"testing"

	"github.com/chazu/nupython/compiler"
)

// ---------------------------------------------------------------------------
// FuzzRun: feed arbitrary programs through parse and execute. Semantic
// errors are fine, panics and run errors are not.
// ---------------------------------------------------------------------------

func FuzzRun(f *testing.F) {
	seeds := []string{
		"x = 1\nprint(x)\n",
		"x = 2 ** 10\ny = x / 3\nprint(y)\n",
		"x = 7.5 % 2\nprint(x)\n",
		"s = \"a\" + 'b'\nprint(s)\n",
		"s = \"ab\" * 3\n",
		"x = 1 / 0\n",
		"x = 1 % 0\n",
		"x = 2.0 ** -1\nprint(x)\n",
		"p = 0\n*p = 5\nprint(p)\n",
		"x = *99\n",
		"*(-1) = 2\n",
		"print(undefined)\n",
		"x = -\"s\"\n",
		"pass\nprint()\n",
		"",
	}
	for _, s := range seeds {
		f.Add(s, false)
		f.Add(s, true)
	}

	f.Fuzz(func(t *testing.T, src string, halt bool) {
		prog, err := compiler.Parse(src)
		if err != nil {
			return
		}

		result, err := Run(context.Background(), prog, Options{HaltOnError: halt})
		if err != nil {
			t.Fatalf("Run failed on %q: %v", src, err)
		}
		if result.Executed > len(prog.Stmts) {
			t.Fatalf("executed %d of %d statements on %q", result.Executed, len(prog.Stmts), src)
		}
		if halt && len(result.Diagnostics) > 1 {
			t.Fatalf("halting run recorded %d diagnostics on %q", len(result.Diagnostics), src)
		}
		for i, slot := range result.Memory {
			if slot.Address != i {
				t.Fatalf("slot %d has address %d on %q", i, slot.Address, src)
			}
		}
	})
}
