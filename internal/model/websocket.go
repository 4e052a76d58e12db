package model

// WebSocket message types
const (
	WSMessageTypeStep     = "step"
	WSMessageTypeComplete = "complete"
	WSMessageTypeError    = "error"
	WSMessageTypePing     = "ping"
	WSMessageTypePong     = "pong"
)

// WSMessage represents a generic WebSocket message
type WSMessage struct {
	Type string `json:"type"`
}

// WSStepMessage reports that a pipeline step started or finished.
type WSStepMessage struct {
	Type     string `json:"type"`
	TaskID   string `json:"taskId"`
	StepKind string `json:"stepKind"`
	Status   string `json:"status,omitempty"`
}

// WSCompleteMessage represents task completion
type WSCompleteMessage struct {
	Type   string      `json:"type"`
	TaskID string      `json:"taskId"`
	Result interface{} `json:"result"`
}

// WSErrorMessage represents an error
type WSErrorMessage struct {
	Type   string  `json:"type"`
	TaskID string  `json:"taskId"`
	Error  WSError `json:"error"`
}

// WSError represents error details
type WSError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
