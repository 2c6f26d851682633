// Package transport contains the intensity ingress paths of the
// device: the OSC listener fed by the desktop router, an MQTT
// subscriber for home automation setups, the ambient audio source,
// and the mDNS announcement that lets the router find the device.
// Every source converts its wire encoding to [0,1] and submits the
// result to a single sink, usually the engine's controller.
package transport

import (
	"log/slog"
	"time"

	u "sharkee.net/gohaptics/util"
)

// Sink consumes normalized intensity updates. The engine's controller
// implements it; tests substitute their own.
type Sink interface {
	Submit(upd *u.Update)
}

// Source is an intensity ingress that can be started and stopped. Stop
// must be safe to call after a failed Start.
type Source interface {
	Start() error
	Stop()
}

func feed(sink Sink, source string, raw float64) {
	v := Normalize(raw)
	sink.Submit(u.NewUpdate(source, v, time.Now()))
	slog.Debug("intensity update", "source", source, "raw", raw, "value", v)
}
