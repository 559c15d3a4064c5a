package bridge

import (
	"encoding/json"
	"fmt"
)

// Bridge event names.
const (
	EventMessagesUpsert   = "messages.upsert"
	EventConnectionUpdate = "connection.update"
	EventError            = "error"
)

// Bridge actions.
const (
	ActionSendMessage         = "send_message"
	ActionSendPresence        = "send_presence_update"
	ActionGroupMetadata       = "group_metadata"
	ActionReadMessages        = "read_messages"
	ActionProfilePictureURL   = "profile_picture_url"
	ActionDownloadMedia       = "download_media"
	ActionUpdateProfileStatus = "update_profile_status"
)

// Disconnect status codes reported in connection.update.
const (
	StatusLoggedOut       = 401
	StatusRestartRequired = 515
)

// request is a frame sent to the bridge.
type request struct {
	Action string `json:"action"`
	Params any    `json:"params,omitempty"`
	Echo   string `json:"echo"`
}

// frame is any frame received from the bridge: either a response to a
// request (Echo set) or an event.
type frame struct {
	Event   string          `json:"event,omitempty"`
	Echo    string          `json:"echo,omitempty"`
	Status  string          `json:"status,omitempty"`
	Retcode int             `json:"retcode,omitempty"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (f *frame) isResponse() bool {
	return f.Echo != "" && f.Event == ""
}

// ConnectionUpdate is the payload of a connection.update event.
type ConnectionUpdate struct {
	Connection string `json:"connection"`
	Me         string `json:"me,omitempty"`
	StatusCode int    `json:"statusCode,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// LoggedOut reports whether the session was revoked.
func (u ConnectionUpdate) LoggedOut() bool {
	return u.StatusCode == StatusLoggedOut || u.Reason == "logged_out"
}

// errorEvent is the payload of an error event.
type errorEvent struct {
	Message string `json:"message"`
}

// ResponseError is a request the bridge answered with a failure status.
type ResponseError struct {
	Action  string
	Retcode int
	Message string
}

func (e *ResponseError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("bridge %s failed (retcode %d)", e.Action, e.Retcode)
	}
	return fmt.Sprintf("bridge %s failed (retcode %d): %s", e.Action, e.Retcode, e.Message)
}
