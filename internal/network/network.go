// Package network owns the connection set between devices and runs the
// per-cycle stabilisation algorithm: a sequential update pass followed
// by a combinational fixed-point pass, per spec.md §4.4.
package network

import (
	"github.com/jbsim/logicsim/internal/device"
	"github.com/jbsim/logicsim/internal/names"
)

// ErrorKind is the closed set of semantic error codes make_connection
// can return, matching spec.md §4.4.
type ErrorKind int

const (
	NoError ErrorKind = iota
	DeviceAbsent
	InputConnected
	InputToInput
	PortAbsent
)

// Connection is a directed edge from one (device, port) to another.
type Connection struct {
	SrcDev, SrcPort   names.ID
	SinkDev, SinkPort names.ID
}

type sinkKey struct {
	dev, port names.ID
}

// Network owns the connection set over a shared, non-owning handle to
// the device table (per the facade design in spec.md §9: one owner
// holds the tables, each subsystem borrows a reference rather than
// holding its own copy).
type Network struct {
	devices *device.Devices
	bySink  map[sinkKey]Connection
	order   []Connection // insertion order, iterated deterministically (spec.md §5)
}

func New(devices *device.Devices) *Network {
	return &Network{
		devices: devices,
		bySink:  make(map[sinkKey]Connection),
	}
}

// MakeConnection wires src (an output port) to sink (an input port).
func (n *Network) MakeConnection(srcDev, srcPort, sinkDev, sinkPort names.ID) ErrorKind {
	sd := n.devices.Get(srcDev)
	kd := n.devices.Get(sinkDev)
	if sd == nil || kd == nil {
		return DeviceAbsent
	}

	srcIsOutput := sd.HasOutput(srcPort)
	srcIsInput := sd.HasInput(srcPort)
	sinkIsInput := kd.HasInput(sinkPort)

	if !srcIsOutput && srcIsInput && sinkIsInput {
		// Both ends name an input port: e.g. "ff.DATA -> a2.I2", where the
		// source side's dot happened to name one of the DFF's own inputs.
		return InputToInput
	}
	if !srcIsOutput || !sinkIsInput {
		return PortAbsent
	}

	key := sinkKey{sinkDev, sinkPort}
	if _, exists := n.bySink[key]; exists {
		return InputConnected
	}

	conn := Connection{SrcDev: srcDev, SrcPort: srcPort, SinkDev: sinkDev, SinkPort: sinkPort}
	n.bySink[key] = conn
	n.order = append(n.order, conn)
	return NoError
}

// Connections returns every connection in insertion order.
func (n *Network) Connections() []Connection {
	out := make([]Connection, len(n.order))
	copy(out, n.order)
	return out
}

// CheckNetwork verifies that every input port of every device has
// exactly one incoming connection. It reports the condition only as a
// boolean; rendering the INPUTS_NOT_CONNECTED diagnostic (with no
// specific source location, since the failure is circuit-global) is the
// parser's job, per spec.md §4.6.
func (n *Network) CheckNetwork() bool {
	ok := true
	for _, dev := range n.devices.All() {
		for _, port := range dev.InputOrder() {
			if _, connected := n.bySink[sinkKey{dev.ID, port}]; !connected {
				ok = false
			}
		}
	}
	return ok
}

// stabilisationBound is the fixed-point iteration budget: 16 times the
// device count, per spec.md §4.4. A circuit with no devices still gets
// a small floor so the loop body is well-defined.
func stabilisationBound(deviceCount int) int {
	if deviceCount == 0 {
		return 16
	}
	return 16 * deviceCount
}

// Execute runs one simulated cycle: sequential update (CLOCK toggle,
// DFF latch) followed by combinational stabilisation. oscillating is
// true if the fixed point was not reached within the iteration budget,
// in which case no device state should be treated as this cycle's
// settled result.
func (n *Network) Execute() (oscillating bool) {
	devices := n.devices.All()

	// DFFs latch from the values present at the START of the cycle, i.e.
	// before this cycle's combinational propagation — snapshot first.
	startInputs := make(map[names.ID]map[names.ID]device.Level, len(devices))
	for _, dev := range devices {
		if dev.Kind == device.DFF {
			snap := make(map[names.ID]device.Level, len(dev.Inputs))
			for port, lvl := range dev.Inputs {
				snap[port] = lvl
			}
			startInputs[dev.ID] = snap
		}
	}

	for _, dev := range devices {
		switch dev.Kind {
		case device.CLOCK:
			dev.TickClock()
		case device.DFF:
			dev.LatchDFF(startInputs[dev.ID])
		}
	}

	bound := stabilisationBound(len(devices))
	for iter := 0; iter < bound; iter++ {
		for _, dev := range devices {
			if dev.Kind.IsGate() {
				dev.Evaluate()
			}
		}

		changed := false
		for _, conn := range n.order {
			src := n.devices.Get(conn.SrcDev)
			sink := n.devices.Get(conn.SinkDev)
			lvl := src.Output[conn.SrcPort]
			if sink.Inputs[conn.SinkPort] != lvl {
				sink.Inputs[conn.SinkPort] = lvl
				changed = true
			}
		}

		if !changed {
			return false
		}
	}
	return true
}
