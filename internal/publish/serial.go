package publish

import (
	"fmt"
	"io"
	"sync"

	"go.bug.st/serial"
)

// SerialPublisher writes one line per command to a motor controller:
//
//	V <linear.x> <angular.z>\r\n
type SerialPublisher struct {
	mu     sync.Mutex
	port   io.WriteCloser
	closed bool
}

// OpenSerial opens portName at baud and returns a publisher on it.
func OpenSerial(portName string, baud int) (*SerialPublisher, error) {
	mode := &serial.Mode{
		BaudRate: baud,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", portName, err)
	}

	return NewSerialPublisher(port), nil
}

// NewSerialPublisher wraps an already-open link.
func NewSerialPublisher(port io.WriteCloser) *SerialPublisher {
	return &SerialPublisher{port: port}
}

// SerialPorts lists the serial ports present on the host.
func SerialPorts() ([]string, error) {
	return serial.GetPortsList()
}

// FormatSerial renders msg in the serial line protocol.
func FormatSerial(msg Twist) string {
	return fmt.Sprintf("V %.4f %.4f\r\n", msg.Linear.X, msg.Angular.Z)
}

func (p *SerialPublisher) Publish(msg Twist) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}
	if _, err := io.WriteString(p.port, FormatSerial(msg)); err != nil {
		return fmt.Errorf("write serial: %w", err)
	}
	return nil
}

func (p *SerialPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	return p.port.Close()
}
