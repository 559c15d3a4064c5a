package plugin

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/harun/lynae/pkg/message"
	"github.com/harun/lynae/pkg/outbound"
)

// Kind tells how a plugin's handler is provided.
type Kind string

const (
	// KindBuiltin handlers are compiled into the bot and looked up in a
	// Catalog.
	KindBuiltin Kind = "builtin"
	// KindExec handlers run in a separate process over go-plugin.
	KindExec Kind = "exec"
)

// Handler executes a matched command.
type Handler interface {
	Execute(ctx context.Context, cmd *message.Command, ec *ExecutionContext) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, cmd *message.Command, ec *ExecutionContext) error

// Execute calls f.
func (f HandlerFunc) Execute(ctx context.Context, cmd *message.Command, ec *ExecutionContext) error {
	return f(ctx, cmd, ec)
}

// Matcher decides whether a plugin handles the post-prefix command text.
type Matcher interface {
	Match(text string) bool
}

// RegexpMatcher matches with a compiled regular expression.
type RegexpMatcher struct {
	re *regexp.Regexp
}

// NewRegexpMatcher compiles pattern. Matching is case-insensitive unless
// caseSensitive is set.
func NewRegexpMatcher(pattern string, caseSensitive bool) (*RegexpMatcher, error) {
	if !caseSensitive && !strings.HasPrefix(pattern, "(?i)") {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	return &RegexpMatcher{re: re}, nil
}

// Match implements Matcher.
func (m *RegexpMatcher) Match(text string) bool {
	return m.re.MatchString(text)
}

// String returns the pattern.
func (m *RegexpMatcher) String() string {
	return m.re.String()
}

// Plugin is one loaded command unit. Instances are immutable once
// registered; a reload registers a new instance.
type Plugin struct {
	// Name is the source name: the manifest file name without extension.
	Name        string
	Source      string
	Kind        Kind
	Help        []string
	Tags        []string
	Description string
	Matcher     Matcher
	Handler     Handler
	Config      map[string]any
	LoadedAt    time.Time

	closer func()
}

// PrimaryName is the first help entry, or the source name.
func (p *Plugin) PrimaryName() string {
	if len(p.Help) > 0 && p.Help[0] != "" {
		return p.Help[0]
	}
	return p.Name
}

// Matches reports whether the plugin accepts the command text.
func (p *Plugin) Matches(text string) bool {
	return p.Matcher != nil && p.Matcher.Match(text)
}

// Close releases resources held by the plugin, such as an exec process.
func (p *Plugin) Close() {
	if p != nil && p.closer != nil {
		p.closer()
	}
}

// ExecutionContext is the per-dispatch bundle handed to a handler.
type ExecutionContext struct {
	// Client sends through the outbound guard of the triggering message.
	Client *outbound.GuardedSender
	// UsedPrefix is the prefix the command was written with.
	UsedPrefix string
	// Command is the lower-cased post-prefix text.
	Command string
	// Plugins is the registry snapshot taken for this dispatch.
	Plugins    []*Plugin
	IsAdmin    bool
	IsBotAdmin bool
	Logger     zerolog.Logger
}

// LoadResult summarizes a LoadAll pass.
type LoadResult struct {
	Loaded  []string
	Failed  []string
	Skipped []string
	Errors  map[string]error
}
