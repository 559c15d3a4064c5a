package message

// Kind discriminates the content variants of an inbound message.
type Kind int

const (
	KindUnknown Kind = iota
	KindConversation
	KindExtendedText
	KindImage
	KindVideo
	KindButtonReply
	KindTemplateReply
	KindListReply
)

var kindNames = map[Kind]string{
	KindUnknown:       "unknown",
	KindConversation:  "conversation",
	KindExtendedText:  "extended_text",
	KindImage:         "image",
	KindVideo:         "video",
	KindButtonReply:   "button_reply",
	KindTemplateReply: "template_reply",
	KindListReply:     "list_reply",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Variant is the decoded content of an inbound message. Exactly one concrete
// type exists per content kind.
type Variant interface {
	Kind() Kind
	// Body is the text the command parser works on.
	Body() string
}

// ConversationVariant is a plain text message.
type ConversationVariant struct{ Text string }

// ExtendedTextVariant is a text message with reply or mention context.
type ExtendedTextVariant struct {
	Text    string
	Context *ContextInfo
}

// ImageVariant is an image, optionally captioned.
type ImageVariant struct{ Media *Media }

// VideoVariant is a video, optionally captioned.
type VideoVariant struct{ Media *Media }

// ButtonVariant is a tap on a buttons message.
type ButtonVariant struct{ SelectedID string }

// TemplateVariant is a tap on a template button.
type TemplateVariant struct{ SelectedID string }

// ListVariant is a row picked from a list message.
type ListVariant struct{ RowID string }

// UnknownVariant is any content the bot does not parse.
type UnknownVariant struct{}

func (ConversationVariant) Kind() Kind { return KindConversation }
func (ExtendedTextVariant) Kind() Kind { return KindExtendedText }
func (ImageVariant) Kind() Kind { return KindImage }
func (VideoVariant) Kind() Kind { return KindVideo }
func (ButtonVariant) Kind() Kind { return KindButtonReply }
func (TemplateVariant) Kind() Kind { return KindTemplateReply }
func (ListVariant) Kind() Kind { return KindListReply }
func (UnknownVariant) Kind() Kind { return KindUnknown }

func (v ConversationVariant) Body() string { return v.Text }
func (v ExtendedTextVariant) Body() string { return v.Text }
func (v ImageVariant) Body() string { return v.Media.Caption }
func (v VideoVariant) Body() string { return v.Media.Caption }
func (v ButtonVariant) Body() string { return v.SelectedID }
func (v TemplateVariant) Body() string { return v.SelectedID }
func (v ListVariant) Body() string { return v.RowID }
func (UnknownVariant) Body() string { return "" }

// Classify decodes a container into its variant. The precedence is
// conversation, extended text, image, video, then button, template and
// list replies. The container should already be unwrapped.
func Classify(c *Container) Variant {
	if c == nil {
		return UnknownVariant{}
	}
	switch {
	case c.Conversation != "":
		return ConversationVariant{Text: c.Conversation}
	case c.ExtendedTextMessage != nil && c.ExtendedTextMessage.Text != "":
		return ExtendedTextVariant{Text: c.ExtendedTextMessage.Text, Context: c.ExtendedTextMessage.ContextInfo}
	case c.ImageMessage != nil:
		return ImageVariant{Media: c.ImageMessage}
	case c.VideoMessage != nil:
		return VideoVariant{Media: c.VideoMessage}
	case c.ButtonsResponseMessage != nil && c.ButtonsResponseMessage.SelectedButtonID != "":
		return ButtonVariant{SelectedID: c.ButtonsResponseMessage.SelectedButtonID}
	case c.TemplateButtonReplyMessage != nil && c.TemplateButtonReplyMessage.SelectedID != "":
		return TemplateVariant{SelectedID: c.TemplateButtonReplyMessage.SelectedID}
	case c.ListResponseMessage != nil && c.ListResponseMessage.SingleSelectReply != nil &&
		c.ListResponseMessage.SingleSelectReply.SelectedRowID != "":
		return ListVariant{RowID: c.ListResponseMessage.SingleSelectReply.SelectedRowID}
	}
	return UnknownVariant{}
}
