package sim

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jbsim/logicsim/internal/device"
	"github.com/jbsim/logicsim/internal/names"
	"github.com/jbsim/logicsim/internal/parser"
)

func mustParse(t *testing.T, content string) *parser.Parser {
	t.Helper()
	path := filepath.Join(t.TempDir(), "circuit.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	p := parser.New(path, names.New())
	if !p.Parse() {
		t.Fatalf("Parse() = false, diagnostics: %v", p.Diagnostics())
	}
	return p
}

func id(t *testing.T, p *parser.Parser, name string) names.ID {
	t.Helper()
	n := p.Names().Query(name)
	if n == names.AbsentID {
		t.Fatalf("device %q was never interned", name)
	}
	return n
}

// spec.md §8 scenario 2: AND(sw1, sw2) monitored, sw1 held high and sw2
// held low yields a steady LOW trace; flipping sw2 and continuing
// extends the record correctly.
func TestRunThenContinueWithSwitchFlip(t *testing.T) {
	p := mustParse(t, `
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
	s := New(p)

	completed, osc := s.Run(2)
	if osc || completed != 2 {
		t.Fatalf("Run(2) = (%d, %v)", completed, osc)
	}

	sw2 := id(t, p, "sw2")
	if !s.SetSwitch(sw2, 1) {
		t.Fatal("SetSwitch(sw2, 1) = false")
	}

	completed, osc = s.Continue(2)
	if osc || completed != 2 {
		t.Fatalf("Continue(2) = (%d, %v)", completed, osc)
	}
	if s.CyclesCompleted() != 4 {
		t.Errorf("CyclesCompleted() = %d, want 4", s.CyclesCompleted())
	}

	a1 := id(t, p, "a1")
	samples, ok := s.Monitors().Samples(a1, names.AbsentID)
	if !ok || len(samples) != 4 {
		t.Fatalf("samples = %v, ok=%v", samples, ok)
	}
	for i, lvl := range samples[:2] {
		if lvl.IsHigh() {
			t.Errorf("sample %d = %v, want LOW before the switch flip", i, lvl)
		}
	}
	for i, lvl := range samples[2:] {
		if !lvl.IsHigh() {
			t.Errorf("sample %d = %v, want HIGH after the switch flip", i+2, lvl)
		}
	}
}

func TestOscillationStopsRunEarly(t *testing.T) {
	p := mustParse(t, `
DEVICE
  SWITCH sw(1);
  NAND n1(2), n2(2);
CONNECT
  sw -> n1.I1;
  sw -> n2.I1;
  n1 -> n2.I2;
  n2 -> n1.I2;
MONITOR
  n1
END
`)
	s := New(p)
	completed, osc := s.Run(4)
	if !osc {
		t.Fatal("Run() should report oscillation for cross-coupled NAND")
	}
	if completed != 0 {
		t.Errorf("completed = %d, want 0 (oscillates on cycle 1)", completed)
	}
}

func TestRestartZeroesCyclesAndRestoresSwitchDefault(t *testing.T) {
	p := mustParse(t, `
DEVICE
  SWITCH sw(1);
CONNECT
MONITOR
  sw
END
`)
	s := New(p)
	s.Run(3)
	sw := id(t, p, "sw")
	s.SetSwitch(sw, 0)

	s.Restart()
	if s.CyclesCompleted() != 0 {
		t.Errorf("CyclesCompleted() after Restart = %d, want 0", s.CyclesCompleted())
	}
	dev := s.Devices().Get(sw)
	if !dev.Output[names.AbsentID].IsHigh() {
		t.Error("Restart should restore the switch's declared level (1), not the runtime override")
	}
}

func TestFixtureClockPeriod(t *testing.T) {
	p := mustParseFile(t, "../../testdata/clock.circuit")
	s := New(p)
	clk := id(t, p, "clk")

	completed, osc := s.Run(8)
	if osc || completed != 8 {
		t.Fatalf("Run(8) = (%d, %v)", completed, osc)
	}
	samples, ok := s.Monitors().Samples(clk, names.AbsentID)
	if !ok || len(samples) != 8 {
		t.Fatalf("samples = %v, ok=%v", samples, ok)
	}
	for i := 0; i+4 < len(samples); i++ {
		if samples[i].IsHigh() != samples[i+4].IsHigh() {
			t.Errorf("CLOCK(2) should repeat with period 4: sample %d=%v, sample %d=%v", i, samples[i], i+4, samples[i+4])
		}
	}
}

func TestFixtureDFFTogglesEveryCycle(t *testing.T) {
	p := mustParseFile(t, "../../testdata/dff_toggle.circuit")
	s := New(p)
	ff := id(t, p, "ff")
	qPort := p.Devices().Get(ff).QPort()

	completed, osc := s.Run(6)
	if osc || completed != 6 {
		t.Fatalf("Run(6) = (%d, %v)", completed, osc)
	}
	samples, ok := s.Monitors().Samples(ff, qPort)
	if !ok || len(samples) != 6 {
		t.Fatalf("samples = %v, ok=%v", samples, ok)
	}
	for i := 1; i < len(samples); i++ {
		if samples[i].IsHigh() == samples[i-1].IsHigh() {
			t.Fatalf("Q should toggle every cycle: %v", samples)
		}
	}
}

func TestFixtureOscillatorNeverCompletesACycle(t *testing.T) {
	p := mustParseFile(t, "../../testdata/oscillator.circuit")
	s := New(p)
	completed, osc := s.Run(4)
	if !osc || completed != 0 {
		t.Fatalf("Run(4) = (%d, %v), want (0, true)", completed, osc)
	}
}

func mustParseFile(t *testing.T, path string) *parser.Parser {
	t.Helper()
	p := parser.New(path, names.New())
	if !p.Parse() {
		t.Fatalf("Parse(%s) = false, diagnostics: %v", path, p.Diagnostics())
	}
	return p
}

func TestToggleMonitorAddsWithBackfillAndRemoves(t *testing.T) {
	p := mustParse(t, `
DEVICE
  SWITCH sw(1);
CONNECT
MONITOR
  sw
END
`)
	s := New(p)
	sw := id(t, p, "sw")

	s.Run(2)
	if got := s.ToggleMonitor(sw, names.AbsentID); got != 0 {
		t.Fatalf("ToggleMonitor (remove) = %v", got)
	}
	if _, ok := s.Monitors().Samples(sw, names.AbsentID); ok {
		t.Error("signal should no longer be monitored")
	}

	if got := s.ToggleMonitor(sw, names.AbsentID); got != 0 {
		t.Fatalf("ToggleMonitor (add) = %v", got)
	}
	samples, ok := s.Monitors().Samples(sw, names.AbsentID)
	if !ok || len(samples) != 2 {
		t.Fatalf("samples = %v, ok=%v, want 2 BLANK backfilled entries", samples, ok)
	}
	for i, lvl := range samples {
		if lvl != device.BLANK {
			t.Errorf("sample %d = %v, want BLANK", i, lvl)
		}
	}
}
