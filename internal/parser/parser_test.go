package parser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jbsim/logicsim/internal/names"
)

func writeCircuit(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "circuit.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestParseValidCircuit(t *testing.T) {
	path := writeCircuit(t, `
DEVICE
  SWITCH sw1(1), sw2(0);
  AND a1(2);
CONNECT
  sw1 -> a1.I1;
  sw2 -> a1.I2;
MONITOR
  a1
END
`)
	p := New(path, names.New())
	if !p.Parse() {
		t.Fatalf("Parse() = false, diagnostics: %v", p.Diagnostics())
	}
	if p.ErrorCount() != 0 {
		t.Errorf("ErrorCount() = %d, want 0", p.ErrorCount())
	}
	if !p.Network().CheckNetwork() {
		t.Error("CheckNetwork() = false for a fully wired circuit")
	}
}

func TestParseMissingTopLevelKeywordIsFatal(t *testing.T) {
	path := writeCircuit(t, `
  SWITCH sw1(1);
CONNECT
MONITOR
END
`)
	p := New(path, names.New())
	if p.Parse() {
		t.Fatal("Parse() = true, want false (missing DEVICE)")
	}
	diags := p.Diagnostics()
	if len(diags) != 1 || diags[0].Category != "KeywordError" {
		t.Fatalf("diagnostics = %+v, want exactly one KeywordError", diags)
	}
}

func TestParseEmptyFile(t *testing.T) {
	path := writeCircuit(t, "")
	p := New(path, names.New())
	if p.Parse() {
		t.Fatal("Parse() = true for an empty file, want false")
	}
}

// A malformed device line recovers at CONNECT and parses the rest of
// the file successfully (spec.md §8 scenario 6).
func TestParseRecoversFromDeviceSectionError(t *testing.T) {
	path := writeCircuit(t, `
DEVICE
  AND a1(;
CONNECT
MONITOR
END
`)
	p := New(path, names.New())
	ok := p.Parse()
	if ok {
		t.Fatal("Parse() = true, want false (device section has an error)")
	}
	if p.ErrorCount() < 1 {
		t.Errorf("ErrorCount() = %d, want >= 1", p.ErrorCount())
	}
	foundEnd := false
	for _, d := range p.Diagnostics() {
		if d.Message == "expected end of file after END" {
			foundEnd = true
		}
	}
	if foundEnd {
		t.Error("parser should have reached END/EOF after recovering, not failed there too")
	}
}

func TestParseInputToInputConnection(t *testing.T) {
	path := writeCircuit(t, `
DEVICE
  DFF ff;
  AND a2(2);
CONNECT
  ff.DATA -> a2.I2;
MONITOR
  a2
END
`)
	p := New(path, names.New())
	if p.Parse() {
		t.Fatal("Parse() = true, want false (input-to-input connection)")
	}
	var found bool
	for _, d := range p.Diagnostics() {
		if d.Category == "SemanticError" && d.Message == "cannot connect an input to an input" {
			found = true
		}
	}
	if !found {
		t.Errorf("diagnostics = %+v, want an input-to-input SemanticError", p.Diagnostics())
	}
}

func TestParseUnknownDeviceType(t *testing.T) {
	path := writeCircuit(t, `
DEVICE
  FROB f1;
CONNECT
MONITOR
END
`)
	p := New(path, names.New())
	if p.Parse() {
		t.Fatal("Parse() = true, want false (unknown device type)")
	}
}

func TestParseInputsNotConnectedReportedGlobally(t *testing.T) {
	path := writeCircuit(t, `
DEVICE
  AND a1(2);
CONNECT
MONITOR
  a1
END
`)
	p := New(path, names.New())
	if p.Parse() {
		t.Fatal("Parse() = true, want false (a1's inputs are unconnected)")
	}
	var found bool
	for _, d := range p.Diagnostics() {
		if d.Line == -1 && d.Category == "SemanticError" {
			found = true
		}
	}
	if !found {
		t.Errorf("diagnostics = %+v, want a global (line -1) SemanticError", p.Diagnostics())
	}
}

func TestParseFixtureAndGate(t *testing.T) {
	p := New("../../testdata/and_gate.circuit", names.New())
	if !p.Parse() {
		t.Fatalf("Parse(and_gate.circuit) = false, diagnostics: %v", p.Diagnostics())
	}
	if !p.Network().CheckNetwork() {
		t.Error("CheckNetwork() = false for testdata/and_gate.circuit")
	}
}

func TestParseRecoversAcrossRealFixtureFile(t *testing.T) {
	p := New("../../testdata/recovery.circuit", names.New())
	if p.Parse() {
		t.Fatal("Parse() = true, want false (testdata/recovery.circuit has a device-section error)")
	}
	if p.ErrorCount() < 1 {
		t.Errorf("ErrorCount() = %d, want >= 1", p.ErrorCount())
	}
	for _, d := range p.Diagnostics() {
		if d.Category == "KeywordError" {
			t.Errorf("unexpected fatal-class diagnostic: %+v", d)
		}
	}
}

// A device that fails to build in the DEVICE section must not trigger
// a second, cascading semantic error when CONNECT references it: once
// the error counter is nonzero, no further build calls are made.
func TestParseSuppressesCascadeAfterDeviceError(t *testing.T) {
	path := writeCircuit(t, `
DEVICE
  AND a1(;
CONNECT
  a1 -> a1.I1;
MONITOR
END
`)
	p := New(path, names.New())
	if p.Parse() {
		t.Fatal("Parse() = true, want false (device section has an error)")
	}
	if p.ErrorCount() != 1 {
		t.Errorf("ErrorCount() = %d, want exactly 1 (no cascade from the CONNECT reference)", p.ErrorCount())
	}
	for _, d := range p.Diagnostics() {
		if d.Category == "SemanticError" {
			t.Errorf("unexpected cascaded SemanticError: %+v", d)
		}
	}
}

func TestParseMissingPunctuationIsFileError(t *testing.T) {
	path := writeCircuit(t, `
DEVICE
  SWITCH sw1(1)
CONNECT
MONITOR
END
`)
	p := New(path, names.New())
	if p.Parse() {
		t.Fatal("Parse() = true, want false (missing ';' after device list)")
	}
	var found bool
	for _, d := range p.Diagnostics() {
		if d.Category == "FileError" && d.Message == "expected ';' after device list" {
			found = true
		}
	}
	if !found {
		t.Errorf("diagnostics = %+v, want a FileError for the missing ';'", p.Diagnostics())
	}
}

func TestDiagnosticRenderShape(t *testing.T) {
	d := Diagnostic{
		Category: "DeviceError",
		Path:     "circuit.txt",
		Line:     2,
		Col:      3,
		Source:   "  AND a1(;\n",
		Message:  "expected a number inside '(' ')'",
	}
	out := d.Render()
	want := "File \"circuit.txt\", line 3\n  AND a1(;\n  ^\nDeviceError: expected a number inside '(' ')'\n"
	if out != want {
		t.Errorf("Render() = %q, want %q", out, want)
	}
}
