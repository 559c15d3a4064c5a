// Package plugins holds the manifests of the built-in commands. They are
// copied into a fresh plugin directory on first start.
package plugins

import "embed"

// FS contains every shipped manifest.
//
//go:embed *.yaml
var FS embed.FS
