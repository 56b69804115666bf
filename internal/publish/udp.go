package publish

import (
	"fmt"
	"net"
)

// UDPPublisher sends commands over UDP as CSV.
type UDPPublisher struct {
	conn *net.UDPConn
}

// NewUDPPublisher creates a UDP sender for the given address.
func NewUDPPublisher(addr string) (*UDPPublisher, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", addr, err)
	}
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return &UDPPublisher{conn: conn}, nil
}

// FormatCSV renders "linear,angular,topic".
func FormatCSV(msg Twist) string {
	return fmt.Sprintf("%.4f,%.4f,%s", msg.Linear.X, msg.Angular.Z, msg.Topic)
}

// Publish writes one datagram.
func (p *UDPPublisher) Publish(msg Twist) error {
	if p.conn == nil {
		return ErrClosed
	}
	_, err := p.conn.Write([]byte(FormatCSV(msg)))
	return err
}

// Close releases the UDP socket.
func (p *UDPPublisher) Close() error {
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn = nil
	return err
}
