package nci

import (
	"fmt"
	"sync"
	"time"

	"go.bug.st/serial"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// SerialTransportConfig configures the real UART link to the NFC
// controller chip, plus an optional hardware reset line.
type SerialTransportConfig struct {
	Port     string
	BaudRate int
	// ResetPin names a periph.io gpio.PinOut (e.g. "GPIO17"); empty
	// disables reset-line control.
	ResetPin string
	// ResetPulse is how long the reset line is held low before release.
	ResetPulse time.Duration
}

// DefaultSerialTransportConfig mirrors the spec's literal constants where
// applicable and otherwise picks the controller's usual defaults.
func DefaultSerialTransportConfig() SerialTransportConfig {
	return SerialTransportConfig{
		Port:       "/dev/ttyACM0",
		BaudRate:   115200,
		ResetPulse: 20 * time.Millisecond,
	}
}

// SerialTransport is the real Transport implementation: a UART link to the
// NFC controller (go.bug.st/serial), with an optional GPIO reset pulse
// driven through periph.io, grounded on the teacher's board/peripheral
// access pattern (internal/hal/rpi.go, gpio_monitor.go).
type SerialTransport struct {
	cfg SerialTransportConfig

	mu     sync.Mutex
	port   serial.Port
	reset  gpio.PinIO
	reader func([]byte)

	stopRead chan struct{}
}

// NewSerialTransport constructs a SerialTransport. periph.io host drivers
// are initialized lazily on first Open so tests that never open a real
// port don't pay for hardware enumeration.
func NewSerialTransport(cfg SerialTransportConfig) *SerialTransport {
	return &SerialTransport{cfg: cfg}
}

func (t *SerialTransport) Open() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cfg.ResetPin != "" {
		if _, err := host.Init(); err != nil {
			return fmt.Errorf("nci: periph host init: %w", err)
		}
		pin := gpioreg.ByName(t.cfg.ResetPin)
		if pin == nil {
			return fmt.Errorf("nci: reset pin %q not found", t.cfg.ResetPin)
		}
		t.reset = pin
		if err := t.pulseResetLocked(); err != nil {
			return err
		}
	}

	mode := &serial.Mode{BaudRate: t.cfg.BaudRate}
	port, err := serial.Open(t.cfg.Port, mode)
	if err != nil {
		return fmt.Errorf("nci: open serial port %s: %w", t.cfg.Port, err)
	}
	t.port = port
	t.stopRead = make(chan struct{})
	go t.readLoop(t.port, t.stopRead)
	return nil
}

func (t *SerialTransport) pulseResetLocked() error {
	if err := t.reset.Out(gpio.Low); err != nil {
		return fmt.Errorf("nci: assert reset: %w", err)
	}
	time.Sleep(t.cfg.ResetPulse)
	if err := t.reset.Out(gpio.High); err != nil {
		return fmt.Errorf("nci: release reset: %w", err)
	}
	return nil
}

func (t *SerialTransport) readLoop(port serial.Port, stop chan struct{}) {
	buf := make([]byte, 512)
	for {
		select {
		case <-stop:
			return
		default:
		}
		n, err := port.Read(buf)
		if err != nil {
			return
		}
		if n == 0 {
			continue
		}
		frame := make([]byte, n)
		copy(frame, buf[:n])
		t.mu.Lock()
		h := t.reader
		t.mu.Unlock()
		if h != nil {
			h(frame)
		}
	}
}

func (t *SerialTransport) Write(frame []byte) (int, error) {
	t.mu.Lock()
	port := t.port
	t.mu.Unlock()
	if port == nil {
		return 0, fmt.Errorf("nci: transport not open")
	}
	return port.Write(frame)
}

func (t *SerialTransport) SetReadHandler(fn func(frame []byte)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reader = fn
}

func (t *SerialTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopRead != nil {
		close(t.stopRead)
		t.stopRead = nil
	}
	if t.port == nil {
		return nil
	}
	err := t.port.Close()
	t.port = nil
	return err
}
