package domain

// ConnectivityState describes where the most recent data came from
type ConnectivityState string

const (
	StateConnected ConnectivityState = "connected"
	StateDegraded  ConnectivityState = "degraded"
	StateDemo      ConnectivityState = "demo"
)

// Label is the status text shown next to the indicator
func (s ConnectivityState) Label() string {
	switch s {
	case StateConnected:
		return "Connected"
	case StateDegraded:
		return "Degraded"
	case StateDemo:
		return "Demo Mode"
	default:
		return "Unknown"
	}
}
