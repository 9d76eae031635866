package signalr

// State is the lifecycle position of a Client.
//
//	Disconnected -> Connecting -> Connected -> (Reconnecting <-> Connected) -> Disconnected
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
	Reconnecting
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	case Reconnecting:
		return "Reconnecting"
	default:
		return "Unknown"
	}
}
