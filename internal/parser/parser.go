// Package parser recognises the circuit definition grammar, recovers
// from syntax errors using per-context stopping-symbol sets, and drives
// the semantic build calls into device, network and monitor only while
// no error has been reported anywhere in the file so far.
package parser

import (
	"fmt"
	"strings"

	"github.com/jbsim/logicsim/internal/device"
	"github.com/jbsim/logicsim/internal/monitor"
	"github.com/jbsim/logicsim/internal/names"
	"github.com/jbsim/logicsim/internal/network"
	"github.com/jbsim/logicsim/internal/scanner"
)

// Diagnostic is one reported error: a category tag, a source position,
// and a message, carrying enough to render the three-line traceback
// shape (file/line header, source text, caret).
type Diagnostic struct {
	Category string // KeywordError, DeviceError, ConnectionError, FileError, SemanticError
	Path     string
	Line     int // 0-based; -1 for circuit-global errors with no location
	Col      int // 1-based
	Source   string
	Message  string
}

// Render formats d the way the original tool's boilerplate_error does:
// a file/line header, the offending line verbatim, then a caret.
func (d Diagnostic) Render() string {
	var b strings.Builder
	if d.Line < 0 {
		fmt.Fprintf(&b, "File %q: %s: %s\n", d.Path, d.Category, d.Message)
		return b.String()
	}
	fmt.Fprintf(&b, "File %q, line %d\n", d.Path, d.Line+1)
	fmt.Fprintf(&b, "%s", d.Source)
	if !strings.HasSuffix(d.Source, "\n") {
		b.WriteByte('\n')
	}
	col := d.Col
	if col < 1 {
		col = 1
	}
	fmt.Fprintf(&b, "%s^\n", strings.Repeat(" ", col-1))
	fmt.Fprintf(&b, "%s: %s\n", d.Category, d.Message)
	return b.String()
}

var deviceKinds = map[string]device.Kind{
	"AND":    device.AND,
	"NAND":   device.NAND,
	"OR":     device.OR,
	"NOR":    device.NOR,
	"XOR":    device.XOR,
	"CLOCK":  device.CLOCK,
	"SWITCH": device.SWITCH,
	"DFF":    device.DFF,
}

// Parser owns the scanner and the device/network/monitor tables it
// builds, per the facade design in spec.md §9: one owner holds the
// tables, the parser is the single writer.
type Parser struct {
	sc    *scanner.Scanner
	names *names.Table

	devices  *device.Devices
	netw     *network.Network
	monitors *monitor.Monitors

	cur      scanner.Token
	diags    []Diagnostic
	errCount int
}

// New opens path and prepares a Parser over it. Opening the file is
// fatal on failure (handled inside scanner.Open), matching spec.md §4.2.
func New(path string, tab *names.Table) *Parser {
	sc := scanner.Open(path, tab)
	devices := device.New(tab)
	p := &Parser{
		sc:       sc,
		names:    tab,
		devices:  devices,
		netw:     network.New(devices),
		monitors: monitor.New(devices, tab),
	}
	p.cur = sc.Next()
	return p
}

func (p *Parser) Devices() *device.Devices    { return p.devices }
func (p *Parser) Network() *network.Network   { return p.netw }
func (p *Parser) Monitors() *monitor.Monitors { return p.monitors }
func (p *Parser) Names() *names.Table         { return p.names }
func (p *Parser) Diagnostics() []Diagnostic   { return p.diags }
func (p *Parser) ErrorCount() int             { return p.errCount }

func (p *Parser) advance() { p.cur = p.sc.Next() }

func (p *Parser) nameText(id names.ID) string {
	s, _ := p.names.String(id)
	return s
}

func (p *Parser) isKeyword(text string) bool {
	return p.cur.Type == scanner.KEYWORD && p.nameText(p.cur.ID) == text
}

func (p *Parser) isDeviceName() bool {
	switch p.cur.Type {
	case scanner.NAME_CAPS, scanner.NAME_CAPSNUM, scanner.NAME_ALNUM:
		return true
	default:
		return false
	}
}

func (p *Parser) report(category, message string) {
	p.errCount++
	p.diags = append(p.diags, Diagnostic{
		Category: category,
		Path:     p.sc.Path(),
		Line:     p.cur.Line,
		Col:      p.cur.Col,
		Source:   p.sc.Line(p.cur.Line),
		Message:  message,
	})
}

func (p *Parser) reportGlobal(category, message string) {
	p.errCount++
	p.diags = append(p.diags, Diagnostic{
		Category: category,
		Path:     p.sc.Path(),
		Line:     -1,
		Message:  message,
	})
}

// fatal reports a missing top-level keyword and terminates parsing
// immediately: the four cases in spec.md §4.6 where recovery is not
// attempted. ok is always false; callers return it straight to their
// caller so Parse() unwinds to the top without any further section work.
func (p *Parser) fatal(message string) bool {
	p.report("KeywordError", message)
	return false
}

// recoverTo skips tokens until one whose type is in stop, or EOF,
// without consuming the stopping token. This is the per-context
// stopping-symbol set fast-forward of spec.md §4.6.
func (p *Parser) recoverTo(stop ...scanner.Type) {
	for {
		if p.cur.Type == scanner.EOF {
			return
		}
		for _, t := range stop {
			if p.cur.Type == t {
				return
			}
		}
		p.advance()
	}
}

// recoverStatement fast-forwards to the next ';', keyword, or EOF — the
// "within a statement" stopping set — and consumes a trailing ';'.
func (p *Parser) recoverStatement() {
	for p.cur.Type != scanner.SEMICOLON && p.cur.Type != scanner.KEYWORD && p.cur.Type != scanner.EOF {
		p.advance()
	}
	if p.cur.Type == scanner.SEMICOLON {
		p.advance()
	}
}

// Parse runs the whole grammar and returns true if the circuit was
// built without any error (syntactic or semantic). On a fatal error it
// returns false immediately, having already reported the diagnostic.
func (p *Parser) Parse() bool {
	if !p.isKeyword("DEVICE") {
		return p.fatal("expected DEVICE")
	}
	p.advance()
	p.parseDeviceSection()

	if !p.isKeyword("CONNECT") {
		return p.fatal("expected CONNECT")
	}
	p.advance()
	p.parseConnectSection()

	if !p.isKeyword("MONITOR") {
		return p.fatal("expected MONITOR")
	}
	p.advance()
	p.parseMonitorSection()

	if !p.isKeyword("END") {
		return p.fatal("expected END")
	}
	p.advance()

	if p.cur.Type != scanner.EOF {
		p.report("FileError", "expected end of file after END")
	}

	if p.errCount == 0 && !p.netw.CheckNetwork() {
		p.reportGlobal("SemanticError", "one or more inputs are not connected")
	}

	return p.errCount == 0
}

// --- DEVICE section ---------------------------------------------------

func (p *Parser) parseDeviceSection() {
	for p.isDeviceName() {
		p.parseDeviceDef()
	}
}

func (p *Parser) parseDeviceDef() {
	typeTok := p.cur
	if typeTok.Type != scanner.NAME_CAPS {
		p.report("DeviceError", "device type must be an all-capitals name")
		p.recoverTo(scanner.KEYWORD)
		return
	}
	typeName := p.nameText(typeTok.ID)
	kind, known := deviceKinds[typeName]
	p.advance()

	for {
		ok := p.parseOneDevice(typeName, kind, known)
		if !ok {
			p.recoverStatement()
			break
		}
		if p.cur.Type == scanner.COMMA {
			p.advance()
			continue
		}
		if p.cur.Type == scanner.SEMICOLON {
			p.advance()
		} else {
			p.report("FileError", "expected ';' after device list")
			p.recoverStatement()
		}
		break
	}
}

// parseOneDevice parses "device_name ('(' NUMBER ')')?" and, if the
// statement is syntactically well-formed, calls make_device. It returns
// false on a syntax error so the caller can invoke statement recovery.
func (p *Parser) parseOneDevice(typeName string, kind device.Kind, known bool) bool {
	if !p.isDeviceName() {
		p.report("DeviceError", "expected a device name")
		return false
	}
	id := p.cur.ID
	p.advance()

	var param *int
	if p.cur.Type == scanner.OPENPAREN {
		p.advance()
		if p.cur.Type != scanner.NUMBER {
			p.report("DeviceError", "expected a number inside '(' ')'")
			return false
		}
		n := int(p.cur.Num)
		param = &n
		p.advance()
		if p.cur.Type != scanner.CLOSEPAREN {
			p.report("DeviceError", "expected ')'")
			return false
		}
		p.advance()
	}

	if !known {
		p.report("SemanticError", fmt.Sprintf("unknown device type %q", typeName))
		return true
	}

	if p.errCount == 0 {
		switch p.devices.MakeDevice(id, kind, param) {
		case device.NoError:
		case device.DevicePresent:
			p.report("SemanticError", fmt.Sprintf("device %q is already defined", p.nameText(id)))
		case device.NoQualifier:
			p.report("SemanticError", fmt.Sprintf("%s requires a parameter", typeName))
		case device.InvalidQualifier:
			p.report("SemanticError", fmt.Sprintf("%s parameter is out of range", typeName))
		case device.QualifierPresent:
			p.report("SemanticError", fmt.Sprintf("%s does not take a parameter", typeName))
		case device.BadDevice:
			p.report("SemanticError", fmt.Sprintf("unknown device type %q", typeName))
		}
	}
	return true
}

// --- CONNECT section ---------------------------------------------------

func (p *Parser) parseConnectSection() {
	for p.isDeviceName() {
		p.parseConnection()
	}
}

type portRef struct {
	dev, port names.ID
	line, col int
}

func (p *Parser) parseConnection() {
	src, ok := p.parseOutputRef()
	if !ok {
		p.recoverStatement()
		return
	}
	if p.cur.Type != scanner.CONNECTION_OP {
		p.report("ConnectionError", "expected '->'")
		p.recoverStatement()
		return
	}
	p.advance()

	for {
		sink, ok := p.parseInputRef()
		if !ok {
			p.recoverStatement()
			return
		}
		p.makeConnection(src, sink)

		if p.cur.Type == scanner.COMMA {
			p.advance()
			continue
		}
		break
	}

	if p.cur.Type == scanner.SEMICOLON {
		p.advance()
	} else {
		p.report("FileError", "expected ';' after connection")
		p.recoverStatement()
	}
}

// parseOutputRef parses "device_name ('.' NAME_CAPS)?": the dot, and the
// port name after it, are optional (anonymous-port devices omit both).
func (p *Parser) parseOutputRef() (portRef, bool) {
	if !p.isDeviceName() {
		p.report("ConnectionError", "expected a device name")
		return portRef{}, false
	}
	ref := portRef{dev: p.cur.ID, port: names.AbsentID, line: p.cur.Line, col: p.cur.Col}
	p.advance()

	if p.cur.Type == scanner.DOT {
		p.advance()
		if p.cur.Type != scanner.NAME_CAPS {
			p.report("ConnectionError", "expected a port name after '.'")
			return portRef{}, false
		}
		ref.port = p.cur.ID
		p.advance()
	}
	return ref, true
}

// parseInputRef parses "device_name '.' (NAME_CAPS | NAME_CAPSNUM)": the
// dot and port name are mandatory, unlike an output_ref.
func (p *Parser) parseInputRef() (portRef, bool) {
	if !p.isDeviceName() {
		p.report("ConnectionError", "expected a device name")
		return portRef{}, false
	}
	ref := portRef{dev: p.cur.ID, line: p.cur.Line, col: p.cur.Col}
	p.advance()

	if p.cur.Type != scanner.DOT {
		p.report("ConnectionError", "expected '.' before the input port name")
		return portRef{}, false
	}
	p.advance()
	if p.cur.Type != scanner.NAME_CAPS && p.cur.Type != scanner.NAME_CAPSNUM {
		p.report("ConnectionError", "expected an input port name")
		return portRef{}, false
	}
	ref.port = p.cur.ID
	p.advance()
	return ref, true
}

func (p *Parser) makeConnection(src, sink portRef) {
	if p.errCount != 0 {
		return
	}
	switch p.netw.MakeConnection(src.dev, src.port, sink.dev, sink.port) {
	case network.NoError:
	case network.DeviceAbsent:
		p.report("SemanticError", "connection refers to an unknown device")
	case network.InputConnected:
		p.report("SemanticError", "input is already connected")
	case network.InputToInput:
		p.report("SemanticError", "cannot connect an input to an input")
	case network.PortAbsent:
		p.report("SemanticError", "connection refers to an unknown port")
	}
}

// --- MONITOR section ---------------------------------------------------

func (p *Parser) parseMonitorSection() {
	if !p.isDeviceName() {
		return
	}
	for {
		ref, ok := p.parseOutputRef()
		if !ok {
			p.recoverStatement()
			return
		}
		if p.errCount == 0 {
			switch p.monitors.MakeMonitor(ref.dev, ref.port, 0) {
			case monitor.NoError:
			case monitor.NotOutput:
				p.report("SemanticError", "monitor target is not an output")
			case monitor.MonitorPresent:
				p.report("SemanticError", "signal is already monitored")
			}
		}

		if p.cur.Type == scanner.COMMA {
			p.advance()
			continue
		}
		return
	}
}
