package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/harun/lynae/pkg/commands"
	"github.com/harun/lynae/pkg/plugin"
)

var pluginsCmd = &cobra.Command{
	Use:   "plugins",
	Short: "Inspect command plugins",
}

var pluginsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the manifests in the plugin directory",
	Args:  cobra.NoArgs,
	RunE:  runPluginsList,
}

var pluginsValidateCmd = &cobra.Command{
	Use:   "validate <file>...",
	Short: "Validate plugin manifest files",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runPluginsValidate,
}

func init() {
	pluginsCmd.AddCommand(pluginsListCmd)
	pluginsCmd.AddCommand(pluginsValidateCmd)
	rootCmd.AddCommand(pluginsCmd)
}

func runPluginsList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return listPlugins(cmd.OutOrStdout(), cfg.Plugins.Dir)
}

func listPlugins(out io.Writer, dir string) error {
	discovered, err := plugin.Discover(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(out, "No plugin directory at %s (it is created on first start)\n", dir)
			return nil
		}
		return err
	}

	loader := plugin.NewManifestLoader(zerolog.Nop())
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tCOMMANDS\tHANDLER\tTAGS\tSTATUS")
	for _, d := range discovered {
		m, err := loader.LoadManifest(d.ManifestPath)
		if err != nil {
			fmt.Fprintf(w, "%s\t-\t-\t-\tinvalid\n", d.Name)
			continue
		}
		status := "enabled"
		if m.Disabled {
			status = "disabled"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			d.Name,
			strings.Join(m.Help, ","),
			handlerLabel(m),
			strings.Join(m.Tags, ","),
			status,
		)
	}
	return w.Flush()
}

func handlerLabel(m *plugin.Manifest) string {
	if m.Kind() == plugin.KindExec {
		return "exec:" + m.Exec
	}
	return m.Handler
}

func runPluginsValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	handlers, err := builtinHandlers()
	if err != nil {
		return err
	}

	var errs []error
	for _, path := range args {
		if err := validateManifest(path, handlers); err != nil {
			fmt.Fprintf(out, "✗ %s: %v\n", path, err)
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
			continue
		}
		fmt.Fprintf(out, "✓ %s\n", path)
	}
	return errors.Join(errs...)
}

// builtinHandlers lists the handler names manifests may refer to.
func builtinHandlers() ([]string, error) {
	catalog := plugin.NewCatalog()
	if err := commands.Register(catalog, commands.Deps{}); err != nil {
		return nil, err
	}
	return catalog.Names(), nil
}

// validateManifest checks a manifest the way the loader would, without
// starting exec plugins.
func validateManifest(path string, handlers []string) error {
	m, err := plugin.NewManifestLoader(zerolog.Nop()).LoadManifest(path)
	if err != nil {
		return err
	}
	switch m.Kind() {
	case plugin.KindExec:
		bin := m.Exec
		if !filepath.IsAbs(bin) {
			bin = filepath.Join(filepath.Dir(path), bin)
		}
		info, err := os.Stat(bin)
		if err != nil {
			return fmt.Errorf("exec binary: %w", err)
		}
		if info.IsDir() || info.Mode()&0111 == 0 {
			return fmt.Errorf("exec binary %s is not executable", bin)
		}
	default:
		if !slices.Contains(handlers, m.Handler) {
			return fmt.Errorf("unknown handler %q (known: %s)", m.Handler, strings.Join(handlers, ", "))
		}
	}
	return nil
}
