package config

import (
	"strings"

	"github.com/spf13/viper"
)

var envKeyReplacer = strings.NewReplacer(".", "_")

// envKeys are the settings that may be overridden from the environment,
// e.g. LYNAE_BRIDGE_URL or LYNAE_BOT_OWNERS=62811,62822.
var envKeys = []string{
	"bot.name",
	"bot.number",
	"bot.owners",
	"bot.bio",
	"bot.prefixes",
	"bridge.url",
	"bridge.token",
	"bridge.request_timeout",
	"plugins.dir",
	"plugins.watch",
	"dispatch.max_message_age",
	"cache.path",
	"cache.ttl",
	"commands.genius_token",
	"logging.level",
	"logging.file",
	"logging.pretty",
	"metrics.enabled",
	"metrics.addr",
	"telemetry.enabled",
	"data_dir",
}

// bindEnv registers envKeys so Unmarshal sees them even when the config
// file does not mention them.
func bindEnv(v *viper.Viper) {
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}
}
