package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/harun/lynae/pkg/message"
	"github.com/harun/lynae/pkg/plugin"
)

var manifestNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+\.(yaml|yml|json)$`)

// sfHandler saves the replied text as a manifest in the plugin directory.
// The watcher loads it from there.
type sfHandler struct {
	deps *Deps
}

func (h *sfHandler) Execute(ctx context.Context, cmd *message.Command, ec *plugin.ExecutionContext) error {
	p := ec.UsedPrefix

	if !h.deps.IsOwner(cmd.Sender) {
		return reply(ctx, cmd, ec, "❌ This command is only available for bot owners.")
	}
	if cmd.Quoted == nil {
		return reply(ctx, cmd, ec, fmt.Sprintf("❌ Please reply to a message containing the manifest.\n\n"+
			"Usage: %[1]ssf <filename>.yaml\n\n"+
			"Example:\n1. Send your manifest to chat\n2. Reply to that message\n3. Type: %[1]ssf mycommand.yaml", p))
	}

	args := cmd.Args()
	if len(args) == 0 {
		return reply(ctx, cmd, ec, fmt.Sprintf("❌ Please specify a filename.\n\nUsage: %[1]ssf <filename>.yaml\n\nExample: %[1]ssf mycommand.yaml", p))
	}
	name := args[0]

	if err := validateManifestName(name); err != nil {
		return reply(ctx, cmd, ec, fmt.Sprintf("❌ %s\n\nExample: %ssf my_command.yaml", capitalize(err.Error()), p))
	}

	content := quotedText(cmd.Quoted)
	if strings.TrimSpace(content) == "" {
		return reply(ctx, cmd, ec, fmt.Sprintf("❌ Could not extract the manifest from the quoted message.\n\n"+
			"Please reply to a text message containing the manifest, then type: %ssf %s", p, name))
	}

	if _, err := plugin.NewManifestLoader(ec.Logger).ParseManifest([]byte(content), filepath.Ext(name)); err != nil {
		return fail(ctx, cmd, ec, "Manifest rejected", err)
	}

	if h.deps.PluginDir == "" {
		return fail(ctx, cmd, ec, "Error saving manifest", errors.New("plugin directory is not configured"))
	}
	path := filepath.Join(h.deps.PluginDir, name)

	if _, err := os.Stat(path); err == nil {
		if err := reply(ctx, cmd, ec, fmt.Sprintf("⚠️ File %s already exists. It will be overwritten.", name)); err != nil {
			return err
		}
	}

	if err := writeFileAtomic(path, []byte(content)); err != nil {
		return fail(ctx, cmd, ec, "Error saving manifest", err)
	}

	ec.Logger.Info().Str("file", name).Str("sender", cmd.Sender).Msg("Manifest saved")

	return reply(ctx, cmd, ec, fmt.Sprintf("✅ Manifest saved successfully!\n\n📁 File: %s\n📂 Location: plugins/%s\n\n"+
		"🔄 Plugin will be automatically reloaded (hot-reload enabled)", name, name))
}

func validateManifestName(name string) error {
	ext := strings.ToLower(filepath.Ext(name))
	switch {
	case ext != ".yaml" && ext != ".yml" && ext != ".json":
		return errors.New("filename must end with .yaml, .yml or .json")
	case !manifestNamePattern.MatchString(name):
		return errors.New("invalid filename. Only letters, numbers, underscores, and hyphens are allowed")
	case strings.TrimSuffix(name, filepath.Ext(name)) == "sf":
		return fmt.Errorf("cannot overwrite %s. Please use a different filename", name)
	}
	return nil
}

// quotedText prefers the extracted quote text and falls back to the quoted
// container.
func quotedText(q *message.Quoted) string {
	if q.Text != "" {
		return q.Text
	}
	return q.Message.Unwrap().Text()
}

// writeFileAtomic writes through a hidden temp file so the watcher never
// sees a partial manifest.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".sf-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to save manifest: %w", err)
	}
	return nil
}
