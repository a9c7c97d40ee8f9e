// Package sim is the simulation driver: it orchestrates reset, run,
// continue and single-parameter mutation operations over a parsed
// circuit, per spec.md §4.7. It owns no state of its own beyond the
// cycle counter — devices, connections and monitors live in the tables
// built by the parser and are only ever reached through them.
package sim

import (
	"github.com/jbsim/logicsim/internal/device"
	"github.com/jbsim/logicsim/internal/monitor"
	"github.com/jbsim/logicsim/internal/names"
	"github.com/jbsim/logicsim/internal/network"
	"github.com/jbsim/logicsim/internal/parser"
)

// Simulation drives execute_network/record_signals over a built circuit.
type Simulation struct {
	devices  *device.Devices
	netw     *network.Network
	monitors *monitor.Monitors

	cyclesCompleted int
}

// New builds a Simulation over the tables a successful Parser.Parse
// populated. Callers should only build one once p.Parse() returned true.
func New(p *parser.Parser) *Simulation {
	return &Simulation{
		devices:  p.Devices(),
		netw:     p.Network(),
		monitors: p.Monitors(),
	}
}

// CyclesCompleted returns the total number of cycles executed since the
// last restart.
func (s *Simulation) CyclesCompleted() int { return s.cyclesCompleted }

// Run resets monitors and cold-starts every device, then executes up to
// n cycles, stopping early if the network oscillates. It returns the
// number of cycles actually completed and whether an oscillation was hit.
func (s *Simulation) Run(n int) (completed int, oscillated bool) {
	s.monitors.ResetMonitors()
	s.devices.ColdStartup()
	s.cyclesCompleted = 0
	return s.Continue(n)
}

// Continue executes up to n more cycles without resetting any state,
// stopping early on oscillation. It accumulates into CyclesCompleted.
func (s *Simulation) Continue(n int) (completed int, oscillated bool) {
	for i := 0; i < n; i++ {
		if s.netw.Execute() {
			return completed, true
		}
		s.monitors.RecordSignals()
		s.cyclesCompleted++
		completed++
	}
	return completed, false
}

// Restart resets devices and monitors and zeroes the cycle counter,
// without forgetting the device/connection/monitor tables themselves.
func (s *Simulation) Restart() {
	s.devices.ResetDevices()
	s.monitors.ResetMonitors()
	s.cyclesCompleted = 0
}

// SetSwitch adjusts a switch's level between runs. ok is false if id
// does not name a SWITCH.
func (s *Simulation) SetSwitch(id names.ID, level int) (ok bool) {
	return s.devices.SetSwitch(id, level)
}

// ToggleMonitor adds a monitor if devID.portID is not currently
// monitored, or removes it if it is. When adding, the new record is
// back-filled with the cycles already completed, per spec.md §4.7.
func (s *Simulation) ToggleMonitor(devID, portID names.ID) monitor.ErrorKind {
	if _, monitored := s.monitors.Samples(devID, portID); monitored {
		s.monitors.RemoveMonitor(devID, portID)
		return monitor.NoError
	}
	return s.monitors.MakeMonitor(devID, portID, s.cyclesCompleted)
}

// Devices, Network and Monitors expose the underlying tables for
// callers (e.g. a CLI) that need direct read access, such as rendering
// signal names or traces.
func (s *Simulation) Devices() *device.Devices   { return s.devices }
func (s *Simulation) Network() *network.Network  { return s.netw }
func (s *Simulation) Monitors() *monitor.Monitors { return s.monitors }
