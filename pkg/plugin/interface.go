package plugin

import (
	"github.com/harun/lynae/pkg/message"
)

// CommandPlugin is the interface exec plugins implement.
// It is served over HashiCorp go-plugin net/rpc.
type CommandPlugin interface {
	// Execute handles one matched command and returns the messages to
	// send. Replies go through the host's outbound guard.
	Execute(inv *Invocation) ([]Reply, error)
}

// Invocation is what an exec plugin receives for one command.
type Invocation struct {
	Plugin     string           `json:"plugin"`
	Command    *message.Command `json:"command"`
	UsedPrefix string           `json:"used_prefix"`
	IsAdmin    bool             `json:"is_admin"`
	IsBotAdmin bool             `json:"is_bot_admin"`
	Self       string           `json:"self"`
	Config     map[string]any   `json:"config,omitempty"`
}

// Reply is one message an exec plugin wants sent. An empty To targets the
// originating chat.
type Reply struct {
	To      string            `json:"to,omitempty"`
	Content *message.Outgoing `json:"content"`
	NoQuote bool              `json:"no_quote,omitempty"`
}
