package message

import "strings"

// Command is the normalized view of one inbound message that carries a bot
// command. It is built once per dispatch and discarded afterwards.
type Command struct {
	Key      Key
	Sender   string
	Chat     string
	PushName string

	// Body is the raw text the prefix was detected on.
	Body   string
	Prefix string
	// Command is the post-prefix text, trimmed and lower-cased.
	Command string
	// Text is the post-prefix text in its original case.
	Text string

	Quoted   *Quoted
	Mentions []string

	Image *Media
	Video *Media
	Audio *Media

	IsGroup    bool
	IsAdmin    bool
	IsBotAdmin bool

	Raw *Event
}

// Quoted describes the message a command replied to.
type Quoted struct {
	Key         Key
	Participant string
	Text        string
	// Message is the quoted container with one view-once layer removed.
	Message *Container
	// ViewOnce is set when the quoted container was a view-once message.
	ViewOnce bool
}

// Trigger returns the first word of the command, lower-cased.
func (c *Command) Trigger() string {
	fields := strings.Fields(c.Command)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// Args returns the words after the trigger in their original case.
func (c *Command) Args() []string {
	fields := strings.Fields(c.Text)
	if len(fields) <= 1 {
		return nil
	}
	return fields[1:]
}

// Arg returns everything after the trigger, trimmed, in original case.
func (c *Command) Arg() string {
	text := strings.TrimSpace(c.Text)
	i := strings.IndexFunc(text, func(r rune) bool { return r == ' ' || r == '\n' || r == '\t' })
	if i < 0 {
		return ""
	}
	return strings.TrimSpace(text[i:])
}
