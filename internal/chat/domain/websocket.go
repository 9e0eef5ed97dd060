package domain

// Action websocket request action
type Action string

const (
	// SendMessage websocket action send_message
	SendMessage Action = "send_message"
	// NotifyMessage websocket action notify_message
	NotifyMessage Action = "notify_message"
)

// WSRequest websocket Request
type WSRequest struct {
	Action  string `json:"action,omitempty"`
	Content string `json:"message"`
}

// WSResponse websocket Response
type WSResponse struct {
	Type    string `json:"type"`
	User    string `json:"user"`
	Message string `json:"message"`
}
