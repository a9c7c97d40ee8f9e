package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"

	"github.com/jbsim/logicsim/internal/monitor"
	"github.com/jbsim/logicsim/internal/names"
	"github.com/jbsim/logicsim/internal/parser"
	"github.com/jbsim/logicsim/internal/sim"
)

var textUIFile = flag.String("c", "", "run the text console UI against the given circuit file")

const defaultRunCycles = 10

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s -c <circuit-file>\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "       %s <circuit-file>\n\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "Digital logic circuit simulator.\n\n")
	fmt.Fprintf(os.Stderr, "Options:\n")
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, "\nArguments:\n")
	fmt.Fprintf(os.Stderr, "  <circuit-file>    circuit definition to load\n")
	fmt.Fprintf(os.Stderr, "\n-c <path> runs the interactive text console. A bare path names the\n")
	fmt.Fprintf(os.Stderr, "graphical front-end, which is not part of this build.\n")
}

func main() {
	flag.Usage = usage
	flag.Parse()
	args := flag.Args()

	if *textUIFile != "" {
		if len(args) != 0 {
			usage()
			os.Exit(1)
		}
		runTextUI(*textUIFile)
		return
	}

	if len(args) != 1 {
		usage()
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "%s: graphical mode is not part of this build; rerun with -c %s\n", os.Args[0], args[0])
	os.Exit(1)
}

func runTextUI(path string) {
	tab := names.New()
	p := parser.New(path, tab)
	if !p.Parse() {
		for _, d := range p.Diagnostics() {
			fmt.Fprint(os.Stderr, d.Render())
		}
		os.Exit(1)
	}

	s := sim.New(p)
	ui := &console{sim: s, tab: tab, in: os.Stdin, out: os.Stdout}
	ui.loop()
}

// console is the interactive command loop: single keystrokes drive
// run/continue/restart, and the two commands that need a typed name
// (switch, monitor) briefly restore cooked terminal mode to read a line,
// the same setup/restore pairing emul/main.go uses around UART I/O.
type console struct {
	sim *sim.Simulation
	tab *names.Table
	in  *os.File
	out *os.File

	orig *term.State // cooked-mode state captured before the first MakeRaw
	raw  bool
}

func (c *console) enterRaw() {
	if !term.IsTerminal(int(c.in.Fd())) {
		return
	}
	if c.orig == nil {
		c.orig, _ = term.GetState(int(c.in.Fd()))
	}
	if _, err := term.MakeRaw(int(c.in.Fd())); err == nil {
		c.raw = true
	}
}

func (c *console) restoreCooked() {
	if c.raw && c.orig != nil {
		term.Restore(int(c.in.Fd()), c.orig)
		c.raw = false
	}
}

func (c *console) readLine(prompt string) string {
	c.restoreCooked()
	fmt.Fprint(c.out, prompt)
	scanner := bufio.NewScanner(c.in)
	scanner.Scan()
	line := strings.TrimSpace(scanner.Text())
	c.enterRaw()
	return line
}

func (c *console) readKey() byte {
	buf := make([]byte, 1)
	n, err := c.in.Read(buf)
	if err != nil || n == 0 {
		return 'q'
	}
	return buf[0]
}

const helpText = `
r  run %d cycles (resets monitors and devices first)
c  continue %d more cycles
d  display monitored signal traces
n  list monitored and unmonitored signal names
t  restart (reset devices and monitors, zero cycle count)
w  set a switch
m  toggle a monitor
h  show this help
q  quit
`

func (c *console) loop() {
	c.enterRaw()
	defer c.restoreCooked()

	fmt.Fprintf(c.out, helpText, defaultRunCycles, defaultRunCycles)
	for {
		fmt.Fprint(c.out, "\r\n> ")
		switch c.readKey() {
		case 'r':
			c.run()
		case 'c':
			c.cont()
		case 'd':
			c.display()
		case 'n':
			c.names()
		case 't':
			c.sim.Restart()
			fmt.Fprint(c.out, "\r\nrestarted\r\n")
		case 'w':
			c.setSwitch()
		case 'm':
			c.toggleMonitor()
		case 'h':
			fmt.Fprintf(c.out, helpText, defaultRunCycles, defaultRunCycles)
		case 'q':
			fmt.Fprint(c.out, "\r\n")
			return
		}
	}
}

func (c *console) run() {
	completed, osc := c.sim.Run(defaultRunCycles)
	c.reportCycles(completed, osc)
}

func (c *console) cont() {
	completed, osc := c.sim.Continue(defaultRunCycles)
	c.reportCycles(completed, osc)
}

func (c *console) reportCycles(completed int, oscillated bool) {
	fmt.Fprintf(c.out, "\r\nran %d cycle(s)\r\n", completed)
	if oscillated {
		fmt.Fprint(c.out, "Error! Network oscillating.\r\n")
	}
	c.display()
}

func (c *console) display() {
	trace := c.sim.Monitors().DisplaySignals()
	for _, line := range strings.Split(strings.TrimRight(trace, "\n"), "\n") {
		fmt.Fprintf(c.out, "%s\r\n", line)
	}
}

func (c *console) names() {
	monitored, unmonitored := c.sim.Monitors().GetSignalNames()
	fmt.Fprintf(c.out, "\r\nmonitored:   %s\r\n", strings.Join(monitored, ", "))
	fmt.Fprintf(c.out, "unmonitored: %s\r\n", strings.Join(unmonitored, ", "))
}

func (c *console) setSwitch() {
	name := c.readLine("switch name: ")
	id := c.tab.Query(name)
	if id == names.AbsentID {
		fmt.Fprintf(c.out, "\r\nunknown device %q\r\n", name)
		return
	}
	levelText := c.readLine("level (0/1): ")
	level, err := strconv.Atoi(levelText)
	if err != nil || (level != 0 && level != 1) {
		fmt.Fprintf(c.out, "\r\ninvalid level %q\r\n", levelText)
		return
	}
	if !c.sim.SetSwitch(id, level) {
		fmt.Fprintf(c.out, "\r\n%q is not a switch\r\n", name)
	}
}

func (c *console) toggleMonitor() {
	devName := c.readLine("device name: ")
	devID := c.tab.Query(devName)
	if devID == names.AbsentID {
		fmt.Fprintf(c.out, "\r\nunknown device %q\r\n", devName)
		return
	}
	portName := c.readLine("port (blank for unnamed output): ")
	portID := names.AbsentID
	if portName != "" {
		portID = c.tab.Query(portName)
		if portID == names.AbsentID {
			fmt.Fprintf(c.out, "\r\nunknown port %q\r\n", portName)
			return
		}
	}
	switch c.sim.ToggleMonitor(devID, portID) {
	case monitor.NoError:
	case monitor.NotOutput:
		fmt.Fprint(c.out, "\r\nthat port is not an output\r\n")
	case monitor.MonitorPresent:
		fmt.Fprint(c.out, "\r\nalready monitored\r\n")
	}
}
