// Package report converts the result of a nuPython run into a portable
// record and encodes it as canonical CBOR or JSON.
package report

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/nupython/compiler"
	"github.com/chazu/nupython/compiler/hash"
	"github.com/chazu/nupython/vm"
)

// Report is the serialisable outcome of one run.
type Report struct {
	RunID       string       `cbor:"1,keyasint,omitempty" json:"run_id,omitempty"`
	Source      string       `cbor:"2,keyasint,omitempty" json:"source,omitempty"`
	ProgramHash string       `cbor:"3,keyasint,omitempty" json:"program_hash,omitempty"`
	FloatFormat string       `cbor:"4,keyasint" json:"float_format"`
	Output      []string     `cbor:"5,keyasint" json:"output"`
	Diagnostics []Diagnostic `cbor:"6,keyasint,omitempty" json:"diagnostics,omitempty"`
	Memory      []Slot       `cbor:"7,keyasint,omitempty" json:"memory,omitempty"`
	Executed    int          `cbor:"8,keyasint" json:"executed"`
	Halted      bool         `cbor:"9,keyasint,omitempty" json:"halted,omitempty"`
}

// Diagnostic mirrors vm.Diagnostic with the kind spelled out.
type Diagnostic struct {
	Stmt    int    `cbor:"1,keyasint" json:"stmt"`
	Line    int    `cbor:"2,keyasint" json:"line"`
	Kind    string `cbor:"3,keyasint" json:"kind"`
	Message string `cbor:"4,keyasint" json:"message"`
}

// String renders the diagnostic the way the interpreter prints it.
func (d Diagnostic) String() string {
	if d.Line > 0 {
		return fmt.Sprintf("**SEMANTIC ERROR: %s (line %d)", d.Message, d.Line)
	}
	return fmt.Sprintf("**SEMANTIC ERROR: %s", d.Message)
}

// Slot is one entry of the final address table. Exactly one of Int, Float
// and Str is meaningful, selected by Kind.
type Slot struct {
	Address int     `cbor:"1,keyasint" json:"address"`
	Name    string  `cbor:"2,keyasint" json:"name"`
	Kind    string  `cbor:"3,keyasint" json:"kind"`
	Int     int64   `cbor:"4,keyasint,omitempty" json:"int,omitempty"`
	Float   float64 `cbor:"5,keyasint,omitempty" json:"float,omitempty"`
	Str     string  `cbor:"6,keyasint,omitempty" json:"str,omitempty"`
}

// Value rebuilds the vm.Value held by the slot.
func (s Slot) Value() (vm.Value, error) {
	switch s.Kind {
	case vm.KindInt.String():
		return vm.FromInt(s.Int), nil
	case vm.KindFloat.String():
		return vm.FromFloat64(s.Float), nil
	case vm.KindStr.String():
		return vm.FromString(s.Str), nil
	case vm.KindUnset.String():
		return vm.Value{}, nil
	}
	return vm.Value{}, fmt.Errorf("report: slot %d: unknown kind %q", s.Address, s.Kind)
}

// slotJSON is the JSON form of Slot. Float holds a number, or one of the
// strings "inf", "-inf" and "nan", which JSON numbers cannot express.
type slotJSON struct {
	Address int             `json:"address"`
	Name    string          `json:"name"`
	Kind    string          `json:"kind"`
	Int     int64           `json:"int,omitempty"`
	Float   json.RawMessage `json:"float,omitempty"`
	Str     string          `json:"str,omitempty"`
}

// MarshalJSON encodes a non-finite Float as a string.
func (s Slot) MarshalJSON() ([]byte, error) {
	out := slotJSON{Address: s.Address, Name: s.Name, Kind: s.Kind, Int: s.Int, Str: s.Str}
	switch {
	case math.IsNaN(s.Float) || math.IsInf(s.Float, 0):
		out.Float = json.RawMessage(strconv.Quote(vm.FromFloat64(s.Float).Format(vm.FloatShortest)))
	case s.Float != 0:
		out.Float = json.RawMessage(strconv.FormatFloat(s.Float, 'g', -1, 64))
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts Float as a number or as "inf", "-inf" or "nan".
func (s *Slot) UnmarshalJSON(data []byte) error {
	var in slotJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*s = Slot{Address: in.Address, Name: in.Name, Kind: in.Kind, Int: in.Int, Str: in.Str}
	if len(in.Float) == 0 {
		return nil
	}
	var text string
	if err := json.Unmarshal(in.Float, &text); err == nil {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return fmt.Errorf("report: slot %d: bad float %q", in.Address, text)
		}
		s.Float = f
		return nil
	}
	return json.Unmarshal(in.Float, &s.Float)
}

// OK reports whether the run recorded no diagnostics.
func (r *Report) OK() bool {
	return len(r.Diagnostics) == 0
}

// New builds a report from a run result. prog may be nil, in which case
// no program hash is recorded.
func New(source string, prog *compiler.Program, result *vm.Result, ff vm.FloatFormat) *Report {
	r := &Report{
		Source:      source,
		FloatFormat: ff.String(),
		Output:      []string{},
	}
	if prog != nil {
		r.ProgramHash = hash.Hex(prog)
	}
	if result == nil {
		return r
	}

	r.Output = append(r.Output, result.Output...)
	r.Executed = result.Executed
	r.Halted = result.Halted
	for _, d := range result.Diagnostics {
		r.Diagnostics = append(r.Diagnostics, Diagnostic{
			Stmt:    d.Stmt,
			Line:    d.Line,
			Kind:    d.Kind.String(),
			Message: d.Message,
		})
	}
	for _, s := range result.Memory {
		r.Memory = append(r.Memory, slotFromVM(s))
	}
	return r
}

func slotFromVM(s vm.Slot) Slot {
	out := Slot{Address: s.Address, Name: s.Name, Kind: s.Value.Kind().String()}
	switch {
	case s.Value.IsInt():
		out.Int = s.Value.Int64()
	case s.Value.IsFloat():
		out.Float = s.Value.Float64()
	case s.Value.IsStr():
		out.Str = s.Value.Str()
	}
	return out
}

// ---------------------------------------------------------------------------
// Encoding
// ---------------------------------------------------------------------------

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("report: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// MarshalCBOR serializes a report to canonical CBOR. Equal reports
// produce identical bytes.
func MarshalCBOR(r *Report) ([]byte, error) {
	return cborEncMode.Marshal(r)
}

// UnmarshalCBOR deserializes a report from CBOR bytes.
func UnmarshalCBOR(data []byte) (*Report, error) {
	var r Report
	if err := cbor.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("report: unmarshal cbor: %w", err)
	}
	return &r, nil
}

// MarshalJSON serializes a report as indented JSON.
func MarshalJSON(r *Report) ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// UnmarshalJSON deserializes a report from JSON bytes.
func UnmarshalJSON(data []byte) (*Report, error) {
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("report: unmarshal json: %w", err)
	}
	return &r, nil
}

// Format names an encoding accepted by Encode.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatCBOR Format = "cbor"
)

// ParseFormat validates a format name.
func ParseFormat(name string) (Format, error) {
	switch f := Format(name); f {
	case FormatText, FormatJSON, FormatCBOR:
		return f, nil
	case "":
		return FormatText, nil
	}
	return "", fmt.Errorf("unknown report format %q (want text, json or cbor)", name)
}

// Encode serializes r in the given format. The text format is the
// program output followed by one line per diagnostic.
func Encode(r *Report, f Format) ([]byte, error) {
	switch f {
	case FormatJSON:
		return MarshalJSON(r)
	case FormatCBOR:
		return MarshalCBOR(r)
	case FormatText, "":
		var buf []byte
		for _, line := range r.Output {
			buf = append(buf, line...)
			buf = append(buf, '\n')
		}
		for _, d := range r.Diagnostics {
			buf = append(buf, d.String()...)
			buf = append(buf, '\n')
		}
		return buf, nil
	}
	return nil, fmt.Errorf("unknown report format %q", f)
}

// EncodeAll serializes several reports. Text concatenates them, JSON and
// CBOR produce an array. A single report is encoded on its own.
func EncodeAll(rs []*Report, f Format) ([]byte, error) {
	if len(rs) == 1 {
		return Encode(rs[0], f)
	}
	switch f {
	case FormatJSON:
		return json.MarshalIndent(rs, "", "  ")
	case FormatCBOR:
		return cborEncMode.Marshal(rs)
	case FormatText, "":
		var buf []byte
		for _, r := range rs {
			data, err := Encode(r, f)
			if err != nil {
				return nil, err
			}
			buf = append(buf, data...)
		}
		return buf, nil
	}
	return nil, fmt.Errorf("unknown report format %q", f)
}
