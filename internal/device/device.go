// Package device owns device instances: their kind, parameter, port
// tables, and (for CLOCK and DFF) sequential state. It knows nothing
// about wiring between devices — that is network's job — or about
// which ports are being traced — that is monitor's job.
package device

import (
	"fmt"

	"github.com/jbsim/logicsim/internal/names"
)

// Level is the four-valued signal level plus the BLANK sentinel meaning
// "no sample". RISING/FALLING are edge markers: they render as
// transitions in a trace but are read as HIGH/LOW by combinational
// evaluation (see IsHigh).
type Level int

const (
	BLANK Level = iota
	LOW
	HIGH
	RISING
	FALLING
)

// IsHigh reports the boolean value a combinational evaluator should use
// for this level: RISING counts as HIGH, FALLING (and LOW) count as LOW.
// BLANK only ever appears as a transient cold-start value before the
// first stabilisation pass has run; it reads as LOW.
func (l Level) IsHigh() bool {
	return l == HIGH || l == RISING
}

func levelFromBool(b bool) Level {
	if b {
		return HIGH
	}
	return LOW
}

// Glyph is the one-character trace rendering used by a CLI: '‾' for
// HIGH (and RISING, which ends a cycle HIGH), '_' for LOW (and FALLING),
// and a space for BLANK.
func (l Level) Glyph() rune {
	switch l {
	case HIGH, RISING:
		return '‾'
	case LOW, FALLING:
		return '_'
	default:
		return ' '
	}
}

func (l Level) String() string {
	switch l {
	case BLANK:
		return "BLANK"
	case LOW:
		return "LOW"
	case HIGH:
		return "HIGH"
	case RISING:
		return "RISING"
	case FALLING:
		return "FALLING"
	default:
		return "?"
	}
}

// Kind is the closed set of device kinds the language supports.
type Kind int

const (
	AND Kind = iota
	NAND
	OR
	NOR
	XOR
	CLOCK
	SWITCH
	DFF
)

func (k Kind) String() string {
	switch k {
	case AND:
		return "AND"
	case NAND:
		return "NAND"
	case OR:
		return "OR"
	case NOR:
		return "NOR"
	case XOR:
		return "XOR"
	case CLOCK:
		return "CLOCK"
	case SWITCH:
		return "SWITCH"
	case DFF:
		return "DFF"
	default:
		return "?"
	}
}

// IsGate reports whether k is one of the combinational gate kinds.
func (k Kind) IsGate() bool {
	switch k {
	case AND, NAND, OR, NOR, XOR:
		return true
	default:
		return false
	}
}

// ErrorKind is the closed set of semantic error codes make_device can
// return, matching spec.md §4.3.
type ErrorKind int

const (
	NoError ErrorKind = iota
	DevicePresent
	NoQualifier
	InvalidQualifier
	QualifierPresent
	BadDevice
)

// DFF port names, interned once so every DFF instance shares the same ids.
var dffPortNames = []string{"DATA", "CLK", "SET", "RESET", "Q", "QBAR"}

// Device is one gate, flip-flop, clock or switch instance.
type Device struct {
	ID     names.ID
	Kind   Kind
	Param  int // fan-in N, half-period H, or initial SWITCH level; unused for XOR/DFF
	Inputs map[names.ID]Level
	Output map[names.ID]Level // keyed by port id; gates/CLOCK/SWITCH use the single AbsentID key

	inputOrder  []names.ID // deterministic iteration order, insertion order
	outputOrder []names.ID

	// Sequential state.
	clockHalf  int // CLOCK half-period, copied from Param
	clockPhase int // cycles remaining until next toggle

	dataPortID, clkPortID, setPortID, resetPortID names.ID
	qPortID, qbarPortID                           names.ID
}

// Devices owns the device table: a map from id to *Device plus the
// insertion order needed for deterministic iteration during
// stabilisation (spec.md §5).
type Devices struct {
	names *names.Table
	byID  map[names.ID]*Device
	order []names.ID

	dffNameIDs []names.ID // DATA CLK SET RESET Q QBAR, interned once
}

func New(tab *names.Table) *Devices {
	return &Devices{
		names:      tab,
		byID:       make(map[names.ID]*Device),
		dffNameIDs: tab.Lookup(dffPortNames),
	}
}

// Get returns the device bound to id, or nil if none exists.
func (d *Devices) Get(id names.ID) *Device { return d.byID[id] }

// All returns every device in the order it was created.
func (d *Devices) All() []*Device {
	out := make([]*Device, len(d.order))
	for i, id := range d.order {
		out[i] = d.byID[id]
	}
	return out
}

// InputPortID returns the interned id of gate input port I<n> (1-based).
func (d *Devices) InputPortID(n int) names.ID {
	return d.names.LookupOne(fmt.Sprintf("I%d", n))
}

// MakeDevice creates a device of the given kind bound to id, validating
// the parameter per spec.md §4.3's table. param is nil when no
// parameter was supplied in the source.
func (d *Devices) MakeDevice(id names.ID, kind Kind, param *int) ErrorKind {
	if _, exists := d.byID[id]; exists {
		return DevicePresent
	}

	dev := &Device{
		ID:     id,
		Kind:   kind,
		Inputs: make(map[names.ID]Level),
		Output: make(map[names.ID]Level),
	}

	switch kind {
	case AND, NAND, OR, NOR:
		if param == nil {
			return NoQualifier
		}
		if *param < 1 || *param > 16 {
			return InvalidQualifier
		}
		dev.Param = *param
		for i := 1; i <= *param; i++ {
			portID := d.InputPortID(i)
			dev.Inputs[portID] = BLANK
			dev.inputOrder = append(dev.inputOrder, portID)
		}
		dev.Output[names.AbsentID] = BLANK
		dev.outputOrder = []names.ID{names.AbsentID}

	case XOR:
		if param != nil {
			return QualifierPresent
		}
		for i := 1; i <= 2; i++ {
			portID := d.InputPortID(i)
			dev.Inputs[portID] = BLANK
			dev.inputOrder = append(dev.inputOrder, portID)
		}
		dev.Output[names.AbsentID] = BLANK
		dev.outputOrder = []names.ID{names.AbsentID}

	case CLOCK:
		if param == nil {
			return NoQualifier
		}
		if *param < 1 {
			return InvalidQualifier
		}
		dev.Param = *param
		dev.clockHalf = *param
		dev.Output[names.AbsentID] = BLANK
		dev.outputOrder = []names.ID{names.AbsentID}

	case SWITCH:
		if param == nil {
			return NoQualifier
		}
		if *param != 0 && *param != 1 {
			return InvalidQualifier
		}
		dev.Param = *param
		dev.Output[names.AbsentID] = BLANK
		dev.outputOrder = []names.ID{names.AbsentID}

	case DFF:
		if param != nil {
			return QualifierPresent
		}
		dev.dataPortID, dev.clkPortID = d.dffNameIDs[0], d.dffNameIDs[1]
		dev.setPortID, dev.resetPortID = d.dffNameIDs[2], d.dffNameIDs[3]
		dev.qPortID, dev.qbarPortID = d.dffNameIDs[4], d.dffNameIDs[5]
		for _, p := range []names.ID{dev.dataPortID, dev.clkPortID, dev.setPortID, dev.resetPortID} {
			dev.Inputs[p] = BLANK
			dev.inputOrder = append(dev.inputOrder, p)
		}
		dev.Output[dev.qPortID] = BLANK
		dev.Output[dev.qbarPortID] = BLANK
		dev.outputOrder = []names.ID{dev.qPortID, dev.qbarPortID}

	default:
		return BadDevice
	}

	d.byID[id] = dev
	d.order = append(d.order, id)
	return NoError
}

// HasInput reports whether port is a declared input port of dev.
func (dev *Device) HasInput(port names.ID) bool {
	_, ok := dev.Inputs[port]
	return ok
}

// HasOutput reports whether port is a declared output port of dev.
func (dev *Device) HasOutput(port names.ID) bool {
	_, ok := dev.Output[port]
	return ok
}

// InputOrder and OutputOrder expose the deterministic, insertion-order
// iteration sequence over a device's ports, as required by spec.md §5.
func (dev *Device) InputOrder() []names.ID  { return dev.inputOrder }
func (dev *Device) OutputOrder() []names.ID { return dev.outputOrder }

// Evaluate recomputes a combinational gate's single output from its
// current input levels. It is a no-op for non-gate kinds.
func (dev *Device) Evaluate() {
	if !dev.Kind.IsGate() {
		return
	}
	switch dev.Kind {
	case AND, NAND:
		allHigh := true
		for _, lvl := range dev.Inputs {
			if !lvl.IsHigh() {
				allHigh = false
				break
			}
		}
		out := allHigh
		if dev.Kind == NAND {
			out = !out
		}
		dev.Output[names.AbsentID] = levelFromBool(out)

	case OR, NOR:
		anyHigh := false
		for _, lvl := range dev.Inputs {
			if lvl.IsHigh() {
				anyHigh = true
				break
			}
		}
		out := anyHigh
		if dev.Kind == NOR {
			out = !out
		}
		dev.Output[names.AbsentID] = levelFromBool(out)

	case XOR:
		i1 := dev.Inputs[dev.inputOrder[0]].IsHigh()
		i2 := dev.Inputs[dev.inputOrder[1]].IsHigh()
		dev.Output[names.AbsentID] = levelFromBool(i1 != i2)
	}
}

// TickClock advances a CLOCK's phase counter by one cycle, toggling and
// marking its output RISING/FALLING when the half-period elapses.
// Returns true if the output toggled this cycle.
func (dev *Device) TickClock() bool {
	// An edge marker only describes the cycle it was set in; settle it
	// to a steady level before deciding whether this cycle toggles.
	switch dev.Output[names.AbsentID] {
	case RISING:
		dev.Output[names.AbsentID] = HIGH
	case FALLING:
		dev.Output[names.AbsentID] = LOW
	}

	dev.clockPhase--
	if dev.clockPhase > 0 {
		return false
	}
	dev.clockPhase = dev.clockHalf
	cur := dev.Output[names.AbsentID]
	if cur.IsHigh() {
		dev.Output[names.AbsentID] = FALLING
	} else {
		dev.Output[names.AbsentID] = RISING
	}
	return true
}

// LatchDFF computes the new Q/QBAR from the input levels captured at the
// start of the cycle (before this cycle's combinational propagation),
// per spec.md §4.4. SET and RESET are asynchronous; RESET wins when both
// are asserted (the pinned resolution of spec.md §9's open question).
func (dev *Device) LatchDFF(startOfCycle map[names.ID]Level) {
	set := startOfCycle[dev.setPortID].IsHigh()
	reset := startOfCycle[dev.resetPortID].IsHigh()

	var q bool
	switch {
	case reset:
		q = false
	case set:
		q = true
	default:
		q = startOfCycle[dev.dataPortID].IsHigh()
	}

	dev.Output[dev.qPortID] = levelFromBool(q)
	dev.Output[dev.qbarPortID] = levelFromBool(!q)
}

// QPort and QBarPort return the interned port ids of a DFF's named
// outputs, for callers that need to address them without a device
// reference (e.g. the parser resolving "dff1.Q").
func (dev *Device) QPort() names.ID    { return dev.qPortID }
func (dev *Device) QBarPort() names.ID { return dev.qbarPortID }

// DataPort and ClkPort return the interned port ids of a DFF's Data
// and Clk inputs.
func (dev *Device) DataPort() names.ID { return dev.dataPortID }
func (dev *Device) ClkPort() names.ID  { return dev.clkPortID }

// ColdStartup puts every device into its defined start state: gate
// inputs go BLANK, CLOCK output goes LOW with its phase counter reset to
// the half-period (so its first toggle comes at cycle H — deterministic
// across platforms, per the pinned resolution of spec.md §9's open question),
// DFF's Q/QBAR go LOW/HIGH, and SWITCH holds its configured level.
func (d *Devices) ColdStartup() {
	for _, dev := range d.byID {
		switch dev.Kind {
		case AND, NAND, OR, NOR, XOR:
			for p := range dev.Inputs {
				dev.Inputs[p] = BLANK
			}
			dev.Output[names.AbsentID] = BLANK

		case CLOCK:
			dev.clockPhase = dev.clockHalf
			dev.Output[names.AbsentID] = LOW

		case SWITCH:
			dev.Output[names.AbsentID] = levelFromBool(dev.Param == 1)

		case DFF:
			for p := range dev.Inputs {
				dev.Inputs[p] = BLANK
			}
			dev.Output[dev.qPortID] = LOW
			dev.Output[dev.qbarPortID] = HIGH
		}
	}
}

// ResetDevices restores cold-startup state without re-interning names or
// forgetting the device table, per spec.md §4.3.
func (d *Devices) ResetDevices() { d.ColdStartup() }

// SetSwitch mutates a SWITCH's output level. ok is false if id does not
// name a SWITCH. The switch's declared initial level (from its DEVICE
// statement) is left untouched, so a later ResetDevices/restart reverts
// the switch to the level the circuit file declared rather than to
// whatever a front-end last set it to.
func (d *Devices) SetSwitch(id names.ID, level int) (ok bool) {
	dev, exists := d.byID[id]
	if !exists || dev.Kind != SWITCH {
		return false
	}
	dev.Output[names.AbsentID] = levelFromBool(level == 1)
	return true
}
