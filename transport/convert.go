package transport

// Normalize converts the wire encodings senders use into the engine's
// [0,1] intensity scale. Routers send floats already in [0,1], legacy
// senders percentages in (1,100], and raw byte senders values in
// (100,255]. NaN and negative readings collapse to zero so a
// malformed packet can never drive the actuator.
func Normalize(raw float64) float64 {
	switch {
	case raw != raw || raw <= 0:
		return 0
	case raw <= 1:
		return raw
	case raw <= 100:
		return raw / 100
	case raw <= 255:
		return raw / 255
	default:
		return 1
	}
}
