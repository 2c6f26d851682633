package transport

import (
	"log/slog"
	"strings"

	"github.com/grandcat/zeroconf"
)

// ServiceType is the mDNS service the desktop router browses for.
const ServiceType = "_sharkee._udp"

// Announce publishes the device on the local network so the router
// finds it without manual IP entry.
type Announce struct {
	server *zeroconf.Server
}

// StartAnnounce registers the device as an mDNS service instance on
// the OSC port. The instance is sharkee-<part>, matching the hostname
// convention the router resolves against.
func StartAnnounce(deviceName string, port int, instanceID string) (*Announce, error) {
	instance := "sharkee-" + strings.ToLower(deviceName)
	txt := []string{"id=" + instanceID, "part=" + deviceName, "v=1"}
	server, err := zeroconf.Register(instance, ServiceType, "local.", port, txt, nil)
	if err != nil {
		return nil, err
	}
	slog.Info("announcing device via mDNS", "instance", instance, "service", ServiceType, "port", port)
	return &Announce{server: server}, nil
}

func (a *Announce) Stop() {
	if a.server != nil {
		a.server.Shutdown()
	}
}
