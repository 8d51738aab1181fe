// Package link owns the physical serial connection to the LED-matrix board.
// It delivers received lines, trimmed of their terminator, to a single
// registered consumer and notifies observers of every connection-state
// transition.
package link

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/arcadeops/ledarcade/internal/protocol"
	"go.bug.st/serial"
)

// ErrNotConnected is returned by Send when no port is open.
var ErrNotConnected = errors.New("not connected")

// ErrNoDevice is returned by AutoConnect when no enumerated port opens.
var ErrNoDevice = errors.New("no device found")

// disconnectGrace gives the board a moment to process the courtesy
// DISCONNECT line before the port closes under it.
const disconnectGrace = 100 * time.Millisecond

// Transport manages one serial connection at a time. A second Connect while
// one is open performs an implicit Disconnect first.
type Transport struct {
	mu       sync.Mutex
	port     serial.Port
	portName string
	gen      int // incremented per connection; stale read loops check it on exit

	cbMu      sync.RWMutex
	consumer  func(line string)
	observers []func(connected bool)

	// Injection points for tests; production uses the serial library.
	openPort  func(name string, mode *serial.Mode) (serial.Port, error)
	listPorts func() ([]string, error)

	logger *slog.Logger
}

// NewTransport creates a transport backed by the host's serial ports.
func NewTransport(logger *slog.Logger) *Transport {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transport{
		openPort:  serial.Open,
		listPorts: serial.GetPortsList,
		logger:    logger,
	}
}

// ListPorts enumerates the host's serial port names.
func (t *Transport) ListPorts() ([]string, error) {
	ports, err := t.listPorts()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}
	return ports, nil
}

// Subscribe registers the single line consumer. Each received line is
// delivered to exactly one consumer; a later call replaces the earlier one.
func (t *Transport) Subscribe(fn func(line string)) {
	t.cbMu.Lock()
	t.consumer = fn
	t.cbMu.Unlock()
}

// OnStateChange registers an observer fired on every connected/disconnected
// transition.
func (t *Transport) OnStateChange(fn func(connected bool)) {
	t.cbMu.Lock()
	t.observers = append(t.observers, fn)
	t.cbMu.Unlock()
}

// Connect opens the named port. An already-open connection is closed first.
func (t *Transport) Connect(portName string, baud int) error {
	t.mu.Lock()
	if t.port != nil {
		t.disconnectLocked()
	}

	port, err := t.openPort(portName, &serial.Mode{BaudRate: baud})
	if err != nil {
		t.mu.Unlock()
		t.notify(false)
		return fmt.Errorf("open port %s: %w", portName, err)
	}

	t.port = port
	t.portName = portName
	t.gen++
	gen := t.gen
	t.mu.Unlock()

	go t.readLoop(port, gen)

	t.logger.Info("Serial port connected", "port", portName, "baud", baud)
	t.notify(true)
	return nil
}

// AutoConnect tries every enumerated port in order and keeps the first one
// that opens. It does not probe further and does not retry internally; the
// caller owns the retry policy.
func (t *Transport) AutoConnect(baud int) (string, error) {
	ports, err := t.ListPorts()
	if err != nil {
		return "", err
	}

	for _, name := range ports {
		if err := t.Connect(name, baud); err != nil {
			t.logger.Debug("Port did not open during auto-connect", "port", name, "error", err)
			continue
		}
		return name, nil
	}
	return "", ErrNoDevice
}

// Connected reports whether a port is currently open.
func (t *Transport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.port != nil
}

// PortName returns the open port's name, or "" when disconnected.
func (t *Transport) PortName() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.portName
}

// Send writes one command line to the board, appending the terminator.
func (t *Transport) Send(line string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port == nil {
		return fmt.Errorf("send %q: %w", line, ErrNotConnected)
	}
	if _, err := t.port.Write([]byte(line + "\n")); err != nil {
		return fmt.Errorf("write %q to %s: %w", line, t.portName, err)
	}
	return nil
}

// Disconnect closes the connection. Safe to call when not connected, and
// best-effort throughout: a device that is already gone never causes an
// error here.
func (t *Transport) Disconnect() {
	t.mu.Lock()
	closed := t.port != nil
	t.disconnectLocked()
	t.mu.Unlock()

	if closed {
		t.notify(false)
	}
}

// disconnectLocked sends the courtesy disconnect line, waits a grace period
// and closes the port. Caller holds mu.
func (t *Transport) disconnectLocked() {
	if t.port == nil {
		return
	}

	if _, err := t.port.Write([]byte(protocol.CmdDisconnect + "\n")); err != nil {
		t.logger.Debug("Courtesy disconnect write failed", "port", t.portName, "error", err)
	}
	time.Sleep(disconnectGrace)

	if err := t.port.Close(); err != nil {
		t.logger.Debug("Port close failed", "port", t.portName, "error", err)
	}

	t.logger.Info("Serial port disconnected", "port", t.portName)
	t.port = nil
	t.portName = ""
	t.gen++
}

// readLoop delivers received lines until the port dies or is replaced.
func (t *Transport) readLoop(port serial.Port, gen int) {
	scanner := bufio.NewScanner(port)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")

		t.cbMu.RLock()
		consumer := t.consumer
		t.cbMu.RUnlock()

		if consumer != nil {
			consumer(line)
		}
	}

	if err := scanner.Err(); err != nil {
		t.logger.Warn("Serial read failed", "error", err)
	}

	// Only report the loss if this loop's connection is still the current
	// one; an implicit disconnect already notified.
	t.mu.Lock()
	current := t.gen == gen && t.port != nil
	if current {
		if err := t.port.Close(); err != nil {
			t.logger.Debug("Port close after read failure", "error", err)
		}
		t.port = nil
		t.portName = ""
		t.gen++
	}
	t.mu.Unlock()

	if current {
		t.logger.Info("Serial connection lost")
		t.notify(false)
	}
}

func (t *Transport) notify(connected bool) {
	t.cbMu.RLock()
	observers := make([]func(bool), len(t.observers))
	copy(observers, t.observers)
	t.cbMu.RUnlock()

	for _, fn := range observers {
		fn(connected)
	}
}
