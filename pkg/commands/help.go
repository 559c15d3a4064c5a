package commands

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/harun/lynae/pkg/message"
	"github.com/harun/lynae/pkg/plugin"
)

type helpHandler struct {
	deps *Deps
}

func (h *helpHandler) Execute(ctx context.Context, cmd *message.Command, ec *plugin.ExecutionContext) error {
	categories, names := categorize(ec.Plugins)
	prefix := ec.UsedPrefix

	input := ""
	if args := cmd.Args(); len(args) > 0 {
		input = strings.ToLower(args[0])
	}

	if input == "" {
		return reply(ctx, cmd, ec, h.menu(cmd, prefix, categories, names))
	}

	for _, name := range names {
		if strings.ToLower(name) == input {
			var b strings.Builder
			fmt.Fprintf(&b, "╭───「 *%s Menu* 」\n", capitalize(name))
			for _, c := range categories[name] {
				fmt.Fprintf(&b, "│ • %s%s\n", prefix, c)
			}
			b.WriteString("╰──────────────")
			return reply(ctx, cmd, ec, b.String())
		}
	}

	if p := findByHelp(ec.Plugins, input); p != nil {
		return reply(ctx, cmd, ec, details(p, prefix))
	}

	return reply(ctx, cmd, ec, fmt.Sprintf("❌ Category or Command \"%s\" not found.", input))
}

func (h *helpHandler) menu(cmd *message.Command, prefix string, categories map[string][]string, names []string) string {
	now := h.deps.Now()
	pushName := cmd.PushName
	if pushName == "" {
		pushName = "User"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "╭───「 *%s* 」\n│\n", h.deps.BotName)
	fmt.Fprintf(&b, "│ 👋 *Hi %s!*\n", pushName)
	fmt.Fprintf(&b, "│ 🤖 *Bot Name:* %s\n", h.deps.BotName)
	fmt.Fprintf(&b, "│ 📅 *Date:* %s\n", now.Format("Monday, January 2, 2006"))
	fmt.Fprintf(&b, "│ ⏰ *Time:* %s\n", now.Format("3:04 PM"))
	fmt.Fprintf(&b, "│ 🚀 *Prefix:* [ %s ]\n│\n", prefix)
	b.WriteString("╰────────────────\n\n")

	for _, name := range names {
		fmt.Fprintf(&b, "╭───「 *%s* 」\n", capitalize(name))
		for _, c := range categories[name] {
			fmt.Fprintf(&b, "│ • %s%s\n", prefix, c)
		}
		b.WriteString("╰──────────────\n\n")
	}

	fmt.Fprintf(&b, "_Use %shelp <command> for details_", prefix)
	return b.String()
}

// categorize groups the primary command word of every plugin under each of
// its tags. Category names come back sorted.
func categorize(plugins []*plugin.Plugin) (map[string][]string, []string) {
	categories := make(map[string][]string)
	for _, p := range plugins {
		if len(p.Help) == 0 || len(p.Tags) == 0 {
			continue
		}
		main := firstWord(p.Help[0])
		for _, tag := range p.Tags {
			if !slices.Contains(categories[tag], main) {
				categories[tag] = append(categories[tag], main)
			}
		}
	}

	names := make([]string, 0, len(categories))
	for name := range categories {
		names = append(names, name)
	}
	sort.Strings(names)
	return categories, names
}

func findByHelp(plugins []*plugin.Plugin, input string) *plugin.Plugin {
	for _, p := range plugins {
		for _, entry := range p.Help {
			if strings.ToLower(firstWord(entry)) == input {
				return p
			}
		}
	}
	return nil
}

func details(p *plugin.Plugin, prefix string) string {
	usage := p.PrimaryName()
	category := "unknown"
	if len(p.Tags) > 0 {
		category = p.Tags[0]
	}
	description := p.Description
	if description == "" {
		description = "No description available"
	}

	aliases := "None"
	if len(p.Help) > 1 {
		words := make([]string, 0, len(p.Help)-1)
		for _, a := range p.Help[1:] {
			words = append(words, firstWord(a))
		}
		aliases = strings.Join(words, ", ")
	}

	var b strings.Builder
	b.WriteString("╭───「 *COMMAND INFO* 」\n│\n")
	fmt.Fprintf(&b, "│ 📝 *Command:* %s%s\n", prefix, firstWord(usage))
	fmt.Fprintf(&b, "│ 📁 *Category:* %s\n", capitalize(category))
	fmt.Fprintf(&b, "│ 💡 *Description:* %s\n", description)
	fmt.Fprintf(&b, "│ 🔗 *Usage:* %s%s\n│\n", prefix, usage)
	fmt.Fprintf(&b, "│ 🖇️ *Aliases:* %s\n│\n", aliases)
	b.WriteString("╰──────────────")
	return b.String()
}

func firstWord(s string) string {
	word, _, _ := strings.Cut(strings.TrimSpace(s), " ")
	return word
}
