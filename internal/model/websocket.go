package model

// WebSocket message types pushed to the frontend
const (
	WSMessageTypeStage       = "stage"
	WSMessageTypeStatus      = "status"
	WSMessageTypeStreamError = "stream_error"
	WSMessageTypePing        = "ping"
	WSMessageTypePong        = "pong"
)

// WSMessage represents a generic WebSocket message
type WSMessage struct {
	Type string `json:"type"`
}

// WSStageMessage announces a stage transition (or a state refresh within a
// stage) together with the full campaign snapshot.
type WSStageMessage struct {
	Type  string        `json:"type"`
	Stage Stage         `json:"stage"`
	State CampaignState `json:"state"`
}

// WSStatusMessage relays one push-stream status snapshot.
type WSStatusMessage struct {
	Type   string       `json:"type"`
	Update StatusUpdate `json:"update"`
}

// WSStreamErrorMessage reports a terminal stream failure that needs an
// explicit user restart.
type WSStreamErrorMessage struct {
	Type    string `json:"type"`
	JobID   string `json:"jobId"`
	Message string `json:"message"`
}
