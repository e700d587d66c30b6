package engine

// Interruption is the engine-level meaning of a system audio signal.
type Interruption int

// Interruption kinds delivered to the registered handler.
const (
	// InterruptionBegan means output was taken away; the engine has paused.
	InterruptionBegan Interruption = iota + 1
	// InterruptionEnded means output is available again but playback should stay paused.
	InterruptionEnded
	// InterruptionResume means output is available again and playback was resumed.
	InterruptionResume
	// InterruptionFinished means output was revoked for good; the engine has paused.
	InterruptionFinished
)

func (i Interruption) String() string {
	switch i {
	case InterruptionBegan:
		return "began"
	case InterruptionEnded:
		return "ended"
	case InterruptionResume:
		return "resume"
	case InterruptionFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// SignalKind identifies a raw audio focus or route signal from the host.
type SignalKind int

// Raw signal kinds.
const (
	SignalFocusLost SignalKind = iota + 1
	SignalFocusGained
	SignalFocusRevoked
	SignalRouteChanged
)

// RouteChangeReason explains a SignalRouteChanged.
type RouteChangeReason int

// Route change reasons.
const (
	RouteOther RouteChangeReason = iota
	RouteDeviceConnected
	RouteDeviceDisconnected
)

// Signal is a raw host notification.
type Signal struct {
	Kind         SignalKind
	ShouldResume bool // FocusGained only
	Reason       RouteChangeReason
}

// Handler receives translated interruptions. Calls are sequential and happen
// off the engine worker, so a handler may call back into the engine.
type Handler func(Interruption)

// Translate maps a raw signal to an interruption. It returns false for signals
// that need no action, such as plugging in a new output device.
func Translate(sig Signal) (Interruption, bool) {
	switch sig.Kind {
	case SignalFocusLost:
		return InterruptionBegan, true
	case SignalFocusGained:
		if sig.ShouldResume {
			return InterruptionResume, true
		}
		return InterruptionEnded, true
	case SignalFocusRevoked:
		return InterruptionFinished, true
	case SignalRouteChanged:
		if sig.Reason == RouteDeviceDisconnected {
			return InterruptionBegan, true
		}
	}
	return 0, false
}
