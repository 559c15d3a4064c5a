package message

// Container is the protocol message body. At most one content field is set
// for a well-formed message; wrappers carry a nested Container.
type Container struct {
	Conversation               string           `json:"conversation,omitempty"`
	ExtendedTextMessage        *ExtendedText    `json:"extendedTextMessage,omitempty"`
	ImageMessage               *Media           `json:"imageMessage,omitempty"`
	VideoMessage               *Media           `json:"videoMessage,omitempty"`
	AudioMessage               *Media           `json:"audioMessage,omitempty"`
	StickerMessage             *Media           `json:"stickerMessage,omitempty"`
	DocumentMessage            *Media           `json:"documentMessage,omitempty"`
	ButtonsResponseMessage     *ButtonsResponse `json:"buttonsResponseMessage,omitempty"`
	TemplateButtonReplyMessage *TemplateReply   `json:"templateButtonReplyMessage,omitempty"`
	ListResponseMessage        *ListResponse    `json:"listResponseMessage,omitempty"`
	ViewOnceMessage            *Wrapper         `json:"viewOnceMessage,omitempty"`
	ViewOnceMessageV2          *Wrapper         `json:"viewOnceMessageV2,omitempty"`
	ViewOnceMessageV2Extension *Wrapper         `json:"viewOnceMessageV2Extension,omitempty"`
	EphemeralMessage           *Wrapper         `json:"ephemeralMessage,omitempty"`
}

// Wrapper is the envelope used by view-once and ephemeral messages.
type Wrapper struct {
	Message *Container `json:"message,omitempty"`
}

// ExtendedText is a text message that carries context (reply, mentions).
type ExtendedText struct {
	Text        string       `json:"text,omitempty"`
	ContextInfo *ContextInfo `json:"contextInfo,omitempty"`
}

// Media is a reference to an encrypted attachment that has not been
// downloaded yet.
type Media struct {
	URL         string       `json:"url,omitempty"`
	DirectPath  string       `json:"directPath,omitempty"`
	MediaKey    string       `json:"mediaKey,omitempty"`
	Mimetype    string       `json:"mimetype,omitempty"`
	Caption     string       `json:"caption,omitempty"`
	FileLength  Long         `json:"fileLength,omitempty"`
	Seconds     int          `json:"seconds,omitempty"`
	PTT         bool         `json:"ptt,omitempty"`
	ViewOnce    bool         `json:"viewOnce,omitempty"`
	FileName    string       `json:"fileName,omitempty"`
	ContextInfo *ContextInfo `json:"contextInfo,omitempty"`
}

// ContextInfo carries reply and mention metadata.
type ContextInfo struct {
	StanzaID      string     `json:"stanzaId,omitempty"`
	Participant   string     `json:"participant,omitempty"`
	RemoteJID     string     `json:"remoteJid,omitempty"`
	FromMe        bool       `json:"fromMe,omitempty"`
	QuotedMessage *Container `json:"quotedMessage,omitempty"`
	MentionedJID  []string   `json:"mentionedJid,omitempty"`
}

// ButtonsResponse is the reply to a buttons message.
type ButtonsResponse struct {
	SelectedButtonID    string `json:"selectedButtonId,omitempty"`
	SelectedDisplayText string `json:"selectedDisplayText,omitempty"`
}

// TemplateReply is the reply to a template buttons message.
type TemplateReply struct {
	SelectedID          string `json:"selectedId,omitempty"`
	SelectedDisplayText string `json:"selectedDisplayText,omitempty"`
}

// ListResponse is the reply to a list message.
type ListResponse struct {
	Title             string             `json:"title,omitempty"`
	SingleSelectReply *SingleSelectReply `json:"singleSelectReply,omitempty"`
}

// SingleSelectReply holds the chosen list row.
type SingleSelectReply struct {
	SelectedRowID string `json:"selectedRowId,omitempty"`
}

// UnwrapViewOnce peels exactly one view-once layer. A container without
// such a layer is returned unchanged.
func (c *Container) UnwrapViewOnce() *Container {
	if c == nil {
		return nil
	}
	for _, w := range []*Wrapper{c.ViewOnceMessage, c.ViewOnceMessageV2, c.ViewOnceMessageV2Extension} {
		if w != nil && w.Message != nil {
			return w.Message
		}
	}
	return c
}

// IsViewOnce reports whether the container is wrapped as view-once or
// carries a media payload flagged as view-once.
func (c *Container) IsViewOnce() bool {
	if c == nil {
		return false
	}
	if c.UnwrapViewOnce() != c {
		return true
	}
	for _, m := range []*Media{c.ImageMessage, c.VideoMessage, c.AudioMessage} {
		if m != nil && m.ViewOnce {
			return true
		}
	}
	return false
}

// Unwrap removes an ephemeral envelope and then one view-once layer.
func (c *Container) Unwrap() *Container {
	if c == nil {
		return nil
	}
	if c.EphemeralMessage != nil && c.EphemeralMessage.Message != nil {
		c = c.EphemeralMessage.Message
	}
	return c.UnwrapViewOnce()
}

// Context returns the context info attached to the first content field that
// carries one.
func (c *Container) Context() *ContextInfo {
	if c == nil {
		return nil
	}
	if c.ExtendedTextMessage != nil && c.ExtendedTextMessage.ContextInfo != nil {
		return c.ExtendedTextMessage.ContextInfo
	}
	for _, m := range []*Media{c.ImageMessage, c.VideoMessage, c.AudioMessage, c.DocumentMessage, c.StickerMessage} {
		if m != nil && m.ContextInfo != nil {
			return m.ContextInfo
		}
	}
	return nil
}

// Text returns the human readable text of the container: conversation,
// extended text, then image or video caption.
func (c *Container) Text() string {
	if c == nil {
		return ""
	}
	switch {
	case c.Conversation != "":
		return c.Conversation
	case c.ExtendedTextMessage != nil && c.ExtendedTextMessage.Text != "":
		return c.ExtendedTextMessage.Text
	case c.ImageMessage != nil && c.ImageMessage.Caption != "":
		return c.ImageMessage.Caption
	case c.VideoMessage != nil && c.VideoMessage.Caption != "":
		return c.VideoMessage.Caption
	}
	return ""
}
