// Package monitor records the level of chosen output ports once per
// simulated cycle, and renders the accumulated traces for a text UI.
package monitor

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/jbsim/logicsim/internal/device"
	"github.com/jbsim/logicsim/internal/names"
)

// ErrorKind is the closed set of semantic error codes make_monitor can
// return, matching spec.md §4.5.
type ErrorKind int

const (
	NoError ErrorKind = iota
	NotOutput
	MonitorPresent
)

type key struct {
	dev, port names.ID
}

// record is one monitored signal's sample history.
type record struct {
	dev, port names.ID
	samples   []device.Level
}

// Monitors owns every monitor record, keyed by the (device, port) pair
// it watches, plus the insertion order needed for deterministic display.
type Monitors struct {
	devices *device.Devices
	names   *names.Table

	byKey map[key]*record
	order []key
}

func New(devices *device.Devices, tab *names.Table) *Monitors {
	return &Monitors{
		devices: devices,
		names:   tab,
		byKey:   make(map[key]*record),
	}
}

// MakeMonitor starts recording devID.portID. startingCycle BLANK entries
// are prepended so that every record can be indexed by absolute cycle
// number regardless of when it was attached (spec.md §3, "monitor
// alignment").
func (m *Monitors) MakeMonitor(devID, portID names.ID, startingCycle int) ErrorKind {
	dev := m.devices.Get(devID)
	if dev == nil || !dev.HasOutput(portID) {
		return NotOutput
	}
	k := key{devID, portID}
	if _, exists := m.byKey[k]; exists {
		return MonitorPresent
	}

	rec := &record{dev: devID, port: portID, samples: make([]device.Level, startingCycle)}
	for i := range rec.samples {
		rec.samples[i] = device.BLANK
	}
	m.byKey[k] = rec
	m.order = append(m.order, k)
	return NoError
}

// RemoveMonitor deletes the record for devID.portID, if any.
func (m *Monitors) RemoveMonitor(devID, portID names.ID) {
	k := key{devID, portID}
	if _, exists := m.byKey[k]; !exists {
		return
	}
	delete(m.byKey, k)
	for i, o := range m.order {
		if o == k {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// ResetMonitors clears every record back to empty, keeping the set of
// monitored signals unchanged.
func (m *Monitors) ResetMonitors() {
	for _, k := range m.order {
		m.byKey[k].samples = nil
	}
}

// RecordSignals appends the current level of every monitored output.
// The simulation driver calls this immediately after a successful
// Network.Execute.
func (m *Monitors) RecordSignals() {
	for _, k := range m.order {
		dev := m.devices.Get(k.dev)
		m.byKey[k].samples = append(m.byKey[k].samples, dev.Output[k.port])
	}
}

// Samples returns the recorded levels for devID.portID, or nil, false if
// it is not monitored.
func (m *Monitors) Samples(devID, portID names.ID) ([]device.Level, bool) {
	rec, ok := m.byKey[key{devID, portID}]
	if !ok {
		return nil, false
	}
	out := make([]device.Level, len(rec.samples))
	copy(out, rec.samples)
	return out, true
}

func (m *Monitors) signalName(k key) string {
	devName, _ := m.names.String(k.dev)
	if k.port == names.AbsentID {
		return devName
	}
	portName, _ := m.names.String(k.port)
	return devName + "." + portName
}

// GetSignalNames returns two natural-order-sorted lists: every currently
// monitored signal, and every unmonitored output that could be
// monitored instead.
func (m *Monitors) GetSignalNames() (monitored, unmonitored []string) {
	for _, k := range m.order {
		monitored = append(monitored, m.signalName(k))
	}
	for _, dev := range m.devices.All() {
		for _, port := range dev.OutputOrder() {
			k := key{dev.ID, port}
			if _, isMonitored := m.byKey[k]; isMonitored {
				continue
			}
			unmonitored = append(unmonitored, m.signalName(k))
		}
	}
	sort.Sort(byNaturalOrder(monitored))
	sort.Sort(byNaturalOrder(unmonitored))
	return monitored, unmonitored
}

// DisplaySignals renders every monitored record as one "name: traceline"
// row per signal, suitable for a CLI: device.Level.Glyph per sample.
func (m *Monitors) DisplaySignals() string {
	var b strings.Builder
	sortedNames := make([]string, 0, len(m.order))
	byName := make(map[string]key, len(m.order))
	for _, k := range m.order {
		name := m.signalName(k)
		sortedNames = append(sortedNames, name)
		byName[name] = k
	}
	sort.Sort(byNaturalOrder(sortedNames))

	for _, name := range sortedNames {
		rec := m.byKey[byName[name]]
		fmt.Fprintf(&b, "%s: ", name)
		for _, lvl := range rec.samples {
			fmt.Fprintf(&b, "%c", lvl.Glyph())
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// byNaturalOrder sorts strings so that embedded digit runs compare
// numerically: "a10" sorts after "a2", not before it.
type byNaturalOrder []string

func (s byNaturalOrder) Len() int      { return len(s) }
func (s byNaturalOrder) Swap(i, j int) { s[i], s[j] = s[j], s[i] }
func (s byNaturalOrder) Less(i, j int) bool {
	return naturalLess(s[i], s[j])
}

func naturalLess(a, b string) bool {
	ai, bi := 0, 0
	for ai < len(a) && bi < len(b) {
		ac, bc := a[ai], b[bi]
		if isASCIIDigit(ac) && isASCIIDigit(bc) {
			aNum, aNext := scanDigits(a, ai)
			bNum, bNext := scanDigits(b, bi)
			if aNum != bNum {
				return aNum < bNum
			}
			ai, bi = aNext, bNext
			continue
		}
		if ac != bc {
			return ac < bc
		}
		ai++
		bi++
	}
	return len(a)-ai < len(b)-bi
}

func isASCIIDigit(b byte) bool { return b >= '0' && b <= '9' }

func scanDigits(s string, i int) (int64, int) {
	start := i
	for i < len(s) && isASCIIDigit(s[i]) {
		i++
	}
	n, _ := strconv.ParseInt(s[start:i], 10, 64)
	return n, i
}
