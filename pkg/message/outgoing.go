package message

import "strings"

// Outgoing is the content of one outbound message. Fields mirror the
// session library's send payload; the bridge forwards them unchanged.
type Outgoing struct {
	Text     string      `json:"text,omitempty"`
	Caption  string      `json:"caption,omitempty"`
	Image    *Attachment `json:"image,omitempty"`
	Video    *Attachment `json:"video,omitempty"`
	Audio    *Attachment `json:"audio,omitempty"`
	Sticker  *Attachment `json:"sticker,omitempty"`
	Document *Attachment `json:"document,omitempty"`
	Contacts *Contacts   `json:"contacts,omitempty"`
	Location *Location   `json:"location,omitempty"`
	Buttons  []Button    `json:"buttons,omitempty"`
	List     *List       `json:"list,omitempty"`
	Sections []Section   `json:"sections,omitempty"`
	React    *Reaction   `json:"react,omitempty"`

	Mimetype    string       `json:"mimetype,omitempty"`
	FileName    string       `json:"fileName,omitempty"`
	Footer      string       `json:"footer,omitempty"`
	PTT         bool         `json:"ptt,omitempty"`
	ViewOnce    bool         `json:"viewOnce,omitempty"`
	Mentions    []string     `json:"mentions,omitempty"`
	ContextInfo *ContextInfo `json:"contextInfo,omitempty"`
}

// Attachment is media to upload, either inline bytes or a URL the session
// layer fetches itself.
type Attachment struct {
	Data []byte `json:"data,omitempty"`
	URL  string `json:"url,omitempty"`
}

// IsZero reports whether the attachment carries nothing to send.
func (a *Attachment) IsZero() bool {
	return a == nil || (len(a.Data) == 0 && strings.TrimSpace(a.URL) == "")
}

// Contacts is a contact card payload.
type Contacts struct {
	DisplayName string    `json:"displayName,omitempty"`
	Contacts    []Contact `json:"contacts"`
}

// Contact is one vCard.
type Contact struct {
	VCard string `json:"vcard"`
}

// Location is a pinned map location.
type Location struct {
	Latitude  float64 `json:"degreesLatitude"`
	Longitude float64 `json:"degreesLongitude"`
	Name      string  `json:"name,omitempty"`
	Address   string  `json:"address,omitempty"`
}

// Button is a quick-reply button.
type Button struct {
	ButtonID    string `json:"buttonId"`
	DisplayText string `json:"displayText"`
}

// List is an interactive list message.
type List struct {
	Title      string    `json:"title,omitempty"`
	ButtonText string    `json:"buttonText"`
	Sections   []Section `json:"sections"`
}

// Section groups list rows.
type Section struct {
	Title string `json:"title,omitempty"`
	Rows  []Row  `json:"rows"`
}

// Row is a selectable list entry.
type Row struct {
	RowID       string `json:"rowId"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// Reaction is an emoji reaction to an existing message.
type Reaction struct {
	Text string `json:"text"`
	Key  *Key   `json:"key,omitempty"`
}

// Text builds a plain text message.
func Text(s string) *Outgoing {
	return &Outgoing{Text: s}
}

// IsReaction reports whether the content is a reaction with a non-blank
// emoji.
func (o *Outgoing) IsReaction() bool {
	return o != nil && o.React != nil && strings.TrimSpace(o.React.Text) != ""
}

// IsEmpty reports whether no field at all is set.
func (o *Outgoing) IsEmpty() bool {
	if o == nil {
		return true
	}
	return o.Text == "" && o.Caption == "" && o.Image == nil && o.Video == nil &&
		o.Audio == nil && o.Sticker == nil && o.Document == nil && o.Contacts == nil &&
		o.Location == nil && len(o.Buttons) == 0 && o.List == nil && len(o.Sections) == 0 &&
		o.React == nil && o.Mimetype == "" && o.FileName == "" && o.Footer == "" &&
		!o.PTT && !o.ViewOnce && len(o.Mentions) == 0 && o.ContextInfo == nil
}

// HasPayload reports whether at least one deliverable payload kind is
// present: text, media, contacts, location, buttons, list or sections.
func (o *Outgoing) HasPayload() bool {
	if o == nil {
		return false
	}
	return strings.TrimSpace(o.Text) != "" ||
		!o.Image.IsZero() ||
		!o.Video.IsZero() ||
		!o.Audio.IsZero() ||
		!o.Sticker.IsZero() ||
		!o.Document.IsZero() ||
		(o.Contacts != nil && len(o.Contacts.Contacts) > 0) ||
		o.Location != nil ||
		len(o.Buttons) > 0 ||
		(o.List != nil && len(o.List.Sections) > 0) ||
		len(o.Sections) > 0
}

// Clone returns a copy that can be modified without touching o. Attachment
// bytes are shared.
func (o *Outgoing) Clone() *Outgoing {
	if o == nil {
		return nil
	}
	c := *o
	if o.Buttons != nil {
		c.Buttons = append([]Button(nil), o.Buttons...)
	}
	if o.Sections != nil {
		c.Sections = append([]Section(nil), o.Sections...)
	}
	if o.Mentions != nil {
		c.Mentions = append([]string(nil), o.Mentions...)
	}
	if o.ContextInfo != nil {
		ci := *o.ContextInfo
		c.ContextInfo = &ci
	}
	return &c
}
