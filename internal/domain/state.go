package domain

import "encoding/json"

// ConnectionState is the lifecycle state of the capture connection
type ConnectionState int32

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateDisconnecting
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateConnecting:
		return "Connecting"
	case StateConnected:
		return "Connected"
	case StateDisconnecting:
		return "Disconnecting"
	}
	return "Unknown"
}

// MarshalJSON encodes the state by name
func (s ConnectionState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}
