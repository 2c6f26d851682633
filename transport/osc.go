package transport

import (
	"fmt"
	"log/slog"
	"net"

	"github.com/hypebeast/go-osc/osc"
)

// OSCSource listens for UDP OSC packets from the desktop router and
// feeds the intensity argument of the configured address into the
// sink. This is the primary ingress during VR sessions.
type OSCSource struct {
	sink    Sink
	listen  string
	address string
	conn    net.PacketConn
	server  *osc.Server
}

func NewOSCSource(sink Sink, listen string, address string) *OSCSource {
	return &OSCSource{sink: sink, listen: listen, address: address}
}

// Start binds the UDP socket and serves packets until Stop is called.
func (s *OSCSource) Start() error {
	dispatcher := osc.NewStandardDispatcher()
	if err := dispatcher.AddMsgHandler(s.address, s.handleMessage); err != nil {
		return fmt.Errorf("registering OSC handler for %s: %w", s.address, err)
	}
	conn, err := net.ListenPacket("udp", s.listen)
	if err != nil {
		return fmt.Errorf("binding OSC socket on %s: %w", s.listen, err)
	}
	s.conn = conn
	s.server = &osc.Server{Addr: s.listen, Dispatcher: dispatcher}
	go func() {
		// Serve returns once Stop closes the socket.
		if err := s.server.Serve(conn); err != nil {
			slog.Info("OSC server stopped", "error", err)
		}
	}()
	slog.Info("OSC source listening", "listen", s.listen, "address", s.address)
	return nil
}

// Stop closes the socket, which ends the serve loop.
func (s *OSCSource) Stop() {
	if s.conn != nil {
		s.conn.Close()
	}
}

// handleMessage extracts the first numeric argument. VRChat routers
// send float32, but some senders use int32 or float64.
func (s *OSCSource) handleMessage(msg *osc.Message) {
	if len(msg.Arguments) == 0 {
		slog.Warn("OSC message without arguments", "address", msg.Address)
		return
	}
	var raw float64
	switch v := msg.Arguments[0].(type) {
	case float32:
		raw = float64(v)
	case float64:
		raw = v
	case int32:
		raw = float64(v)
	case int64:
		raw = float64(v)
	default:
		slog.Warn("OSC message with non numeric argument", "address", msg.Address, "type", fmt.Sprintf("%T", v))
		return
	}
	feed(s.sink, "osc", raw)
}
