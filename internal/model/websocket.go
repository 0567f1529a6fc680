package model

// WSMessageType identifies a WebSocket message
type WSMessageType string

const (
	WSMessageTypeProgress WSMessageType = "progress"
	WSMessageTypeComplete WSMessageType = "complete"
	WSMessageTypeError    WSMessageType = "error"
	WSMessageTypePing     WSMessageType = "ping"
	WSMessageTypePong     WSMessageType = "pong"
)

// WSMessage is a generic WebSocket message
type WSMessage struct {
	Type WSMessageType `json:"type"`
}

// WSProgressMessage carries a render progress update
type WSProgressMessage struct {
	Type     WSMessageType `json:"type"`
	JobID    string        `json:"jobId"`
	Progress float64       `json:"progress"`
}

// WSCompleteMessage announces a finished render and its delivery outcome
type WSCompleteMessage struct {
	Type          WSMessageType `json:"type"`
	JobID         string        `json:"jobId"`
	TelegramSent  *bool         `json:"telegramSent"`
	TelegramError string        `json:"telegramError,omitempty"`
}

// WSError carries error details
type WSError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// WSErrorMessage announces a failed render
type WSErrorMessage struct {
	Type  WSMessageType `json:"type"`
	JobID string        `json:"jobId"`
	Error WSError       `json:"error"`
}
