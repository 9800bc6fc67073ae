// Package manifest handles nupython.toml project configuration.
package manifest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"
)

// FileName is the name of the project configuration file.
const FileName = "nupython.toml"

// Diagnostic display modes for [run] diagnostics.
const (
	DiagnosticsInline = "inline"
	DiagnosticsStderr = "stderr"
	DiagnosticsSilent = "silent"
)

// Manifest represents a nupython.toml project configuration.
type Manifest struct {
	Project Project `toml:"project"`
	Source  Source  `toml:"source"`
	Run     Run     `toml:"run"`
	Log     Log     `toml:"log"`
	Server  Server  `toml:"server"`

	// Dir is the directory containing the nupython.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version,omitempty"`
}

// Source configures source file locations.
type Source struct {
	Dirs  []string `toml:"dirs"`
	Entry string   `toml:"entry,omitempty"`
}

// Run configures program execution.
type Run struct {
	FloatFormat string `toml:"float-format"`
	HaltOnError bool   `toml:"halt-on-error"`
	Diagnostics string `toml:"diagnostics"`
}

// Log configures commonlog.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	Path      string `toml:"path,omitempty"`
}

// Server configures the evaluation service.
type Server struct {
	Port              int `toml:"port"`
	MaxConcurrentRuns int `toml:"max-concurrent-runs"`
}

// Default returns a manifest with every default applied, rooted at dir.
func Default(dir string) *Manifest {
	m := &Manifest{Dir: dir}
	m.applyDefaults()
	return m
}

func (m *Manifest) applyDefaults() {
	if len(m.Source.Dirs) == 0 {
		m.Source.Dirs = []string{"."}
	}
	if m.Run.FloatFormat == "" {
		m.Run.FloatFormat = "fixed"
	}
	if m.Run.Diagnostics == "" {
		m.Run.Diagnostics = DiagnosticsInline
	}
	if m.Server.Port == 0 {
		m.Server.Port = 4568
	}
	if m.Server.MaxConcurrentRuns <= 0 {
		m.Server.MaxConcurrentRuns = 8
	}
}

// Validate checks option values that TOML decoding cannot.
func (m *Manifest) Validate() error {
	switch m.Run.FloatFormat {
	case "fixed", "shortest":
	default:
		return fmt.Errorf("run.float-format: unknown format %q (want fixed or shortest)", m.Run.FloatFormat)
	}
	switch m.Run.Diagnostics {
	case DiagnosticsInline, DiagnosticsStderr, DiagnosticsSilent:
	default:
		return fmt.Errorf("run.diagnostics: unknown mode %q (want inline, stderr or silent)", m.Run.Diagnostics)
	}
	if m.Server.Port < 0 || m.Server.Port > 65535 {
		return fmt.Errorf("server.port: %d out of range", m.Server.Port)
	}
	return nil
}

// Load parses a nupython.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	m.applyDefaults()
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &m, nil
}

// FindAndLoad walks up from startDir to find a nupython.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

// Save writes the manifest to nupython.toml in dir.
func (m *Manifest) Save(dir string) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(m); err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("cannot write %s: %w", path, err)
	}
	return nil
}

// SourceDirPaths returns absolute paths for the configured source directories.
func (m *Manifest) SourceDirPaths() []string {
	var paths []string
	for _, d := range m.Source.Dirs {
		paths = append(paths, filepath.Join(m.Dir, d))
	}
	return paths
}

// EntryPath returns the absolute path of the entry program, or "" when
// none is configured.
func (m *Manifest) EntryPath() string {
	if m.Source.Entry == "" {
		return ""
	}
	return filepath.Join(m.Dir, m.Source.Entry)
}

// SourceFiles returns every *.py file directly inside the source
// directories, sorted by path.
func (m *Manifest) SourceFiles() ([]string, error) {
	var files []string
	for _, dir := range m.SourceDirPaths() {
		matches, err := filepath.Glob(filepath.Join(dir, "*.py"))
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}
	sort.Strings(files)
	return files, nil
}
