package voice

import "encoding/json"

// ConnState tracks connectivity to the voice service.
type ConnState int

const (
	Disconnected ConnState = iota
	Connecting
	Connected
)

var connStateNames = map[ConnState]string{
	Disconnected: "disconnected",
	Connecting:   "connecting",
	Connected:    "connected",
}

func (s ConnState) String() string {
	if n, ok := connStateNames[s]; ok {
		return n
	}
	return "unknown"
}

func (s ConnState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// RecState tracks the recording lifecycle within a session. Recording is
// only reachable while the connection is up; any disconnect forces Idle.
type RecState int

const (
	Idle RecState = iota
	Recording
	Processing
)

var recStateNames = map[RecState]string{
	Idle:       "idle",
	Recording:  "recording",
	Processing: "processing",
}

func (s RecState) String() string {
	if n, ok := recStateNames[s]; ok {
		return n
	}
	return "unknown"
}

func (s RecState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}
