// nuPython CLI - the main entry point for running nuPython programs
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/nupython/manifest"
	"github.com/chazu/nupython/report"
	"github.com/chazu/nupython/server"
	"github.com/chazu/nupython/vm"
)

var log = commonlog.GetLogger("nupython.cli")

func main() {
	configDir := flag.String("config", "", "Directory holding nupython.toml (default: search upward from the working directory)")
	verbose := flag.Bool("v", false, "Verbose (debug) logging")
	interactive := flag.Bool("i", false, "Start interactive REPL")
	halt := flag.Bool("halt", false, "Stop each program at its first semantic error")
	floatFmt := flag.String("float", "", "Real number format: fixed or shortest (default from config)")
	diagMode := flag.String("diagnostics", "", "Where semantic errors go: inline, stderr or silent (default from config)")
	format := flag.String("format", "text", "Report format: text, json or cbor")
	outPath := flag.String("o", "", "Write the report to this file instead of stdout")
	jobs := flag.Int("j", 1, "Run up to N programs concurrently")
	memory := flag.Bool("memory", false, "Print the final address table after each program (text format)")
	all := flag.Bool("all", false, "Run every program in the configured source directories")
	remote := flag.String("remote", "", "Evaluate on a running service at this URL instead of locally")
	initMode := flag.Bool("init", false, "Write a default nupython.toml to the working directory")
	serveMode := flag.Bool("serve", false, "Start the evaluation service (Connect CBOR/JSON)")
	servePort := flag.Int("port", 0, "Evaluation service port (default from config, else 4568)")
	lspMode := flag.Bool("lsp", false, "Start the language server on stdio")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: nupy [options] [files...]\n\n")
		fmt.Fprintf(os.Stderr, "Parses and runs nuPython programs, printing their output and semantic errors.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  nupy prog.py                   # Run one program\n")
		fmt.Fprintf(os.Stderr, "  nupy -halt prog.py             # Stop at the first semantic error\n")
		fmt.Fprintf(os.Stderr, "  nupy -j 4 -format json *.py    # Run in parallel, emit JSON reports\n")
		fmt.Fprintf(os.Stderr, "  nupy -all                      # Run every program of the project\n")
		fmt.Fprintf(os.Stderr, "  nupy -memory prog.py           # Show the address table after the run\n")
		fmt.Fprintf(os.Stderr, "  nupy -i                        # Start REPL\n")
		fmt.Fprintf(os.Stderr, "\nServices:\n")
		fmt.Fprintf(os.Stderr, "  nupy -serve                    # Evaluation service on :4568\n")
		fmt.Fprintf(os.Stderr, "  nupy -serve -port 8080         # Evaluation service on :8080\n")
		fmt.Fprintf(os.Stderr, "  nupy -remote http://host:4568 prog.py  # Run on a remote service\n")
		fmt.Fprintf(os.Stderr, "  nupy -lsp                      # Language server for editors\n")
	}
	flag.Parse()

	if *initMode {
		if err := initProject("."); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote %s\n", manifest.FileName)
		os.Exit(0)
	}

	m, err := loadManifest(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	verbosity := m.Log.Verbosity
	if *verbose {
		verbosity = 2
	}
	var logPath *string
	if m.Log.Path != "" {
		logPath = &m.Log.Path
	}
	commonlog.Configure(verbosity, logPath)

	set := setFlags()
	opts, err := resolveOptions(m, set, flagValues{
		halt:        *halt,
		floatFormat: *floatFmt,
		diagnostics: *diagMode,
		format:      *format,
		outPath:     *outPath,
		jobs:        *jobs,
		remote:      *remote,
		memory:      *memory,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Start the language server if requested
	if *lspMode {
		lsp := server.NewLSP(nil)
		if err := lsp.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "Language server error: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	// Start the evaluation service if requested
	if *serveMode {
		port := m.Server.Port
		if set["port"] {
			port = *servePort
		}
		os.Exit(serve(fmt.Sprintf(":%d", port), m.Server.MaxConcurrentRuns))
	}

	paths, err := programPaths(m, flag.Args(), *all)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Start REPL if requested or if there is nothing to run
	if *interactive || len(paths) == 0 {
		runREPL(os.Stdin, os.Stdout, opts.vm)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(runFiles(ctx, paths, opts, os.Stdout, os.Stderr))
}

// loadManifest reads nupython.toml from dir, or searches upward from the
// working directory when dir is empty. Without a file every default applies.
func loadManifest(dir string) (*manifest.Manifest, error) {
	if dir != "" {
		return manifest.Load(dir)
	}
	m, err := manifest.FindAndLoad(".")
	if err != nil {
		return nil, err
	}
	if m == nil {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		m = manifest.Default(wd)
	}
	return m, nil
}

func initProject(dir string) error {
	if _, err := os.Stat(manifest.FileName); err == nil {
		return fmt.Errorf("%s already exists", manifest.FileName)
	}
	m := manifest.Default(dir)
	m.Project.Name = "nupython-project"
	m.Source.Entry = "main.py"
	return m.Save(dir)
}

// setFlags returns the names of the flags given on the command line.
func setFlags() map[string]bool {
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

// flagValues holds the command-line values that may override the manifest.
type flagValues struct {
	halt        bool
	floatFormat string
	diagnostics string
	format      string
	outPath     string
	jobs        int
	remote      string
	memory      bool
}

// resolveOptions merges the manifest's [run] table with the flags that were
// set explicitly. Flags win.
func resolveOptions(m *manifest.Manifest, set map[string]bool, fv flagValues) (runOptions, error) {
	opts := runOptions{
		diagnostics: m.Run.Diagnostics,
		outPath:     fv.outPath,
		jobs:        fv.jobs,
		remote:      fv.remote,
		memory:      fv.memory,
	}
	if opts.jobs < 1 {
		opts.jobs = 1
	}

	ffName := m.Run.FloatFormat
	if set["float"] {
		ffName = fv.floatFormat
	}
	ff, err := vm.ParseFloatFormat(ffName)
	if err != nil {
		return runOptions{}, err
	}
	opts.vm.FloatFormat = ff

	opts.vm.HaltOnError = m.Run.HaltOnError
	if set["halt"] {
		opts.vm.HaltOnError = fv.halt
	}

	if set["diagnostics"] {
		opts.diagnostics = fv.diagnostics
	}
	switch opts.diagnostics {
	case manifest.DiagnosticsInline, manifest.DiagnosticsStderr, manifest.DiagnosticsSilent:
	default:
		return runOptions{}, fmt.Errorf("unknown diagnostics mode %q (want inline, stderr or silent)", opts.diagnostics)
	}

	opts.format, err = report.ParseFormat(fv.format)
	if err != nil {
		return runOptions{}, err
	}
	return opts, nil
}

// programPaths picks what to run: the command-line files, every project
// source with all, or else the configured entry program.
func programPaths(m *manifest.Manifest, args []string, all bool) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	if all {
		files, err := m.SourceFiles()
		if err != nil {
			return nil, err
		}
		if len(files) == 0 {
			return nil, fmt.Errorf("no .py files in %v", m.SourceDirPaths())
		}
		return files, nil
	}
	if entry := m.EntryPath(); entry != "" {
		return []string{entry}, nil
	}
	return nil, nil
}

func serve(addr string, maxRuns int) int {
	srv := server.New(server.WithMaxConcurrentRuns(maxRuns))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warningf("shutdown: %v", err)
		}
	}()

	if err := srv.ListenAndServe(addr); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		srv.Stop()
		return 1
	}
	return 0
}
