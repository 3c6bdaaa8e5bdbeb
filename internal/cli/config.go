package cli

import (
	"errors"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func InitConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("shaderpaper")
		viper.SetConfigType("toml")
		viper.AddConfigPath("$HOME/.config/shaderpaper")
		viper.AddConfigPath("/etc/xdg/shaderpaper")
	}

	SetDefaults(viper.GetViper())

	viper.AutomaticEnv() // read environment variables that match

	if err := viper.ReadInConfig(); err != nil {
		// Running without a config file is fine; the defaults cover
		// everything. An explicitly named file still has to exist.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			cobra.CheckErr(err)
		}
	}

	if viper.GetBool("debug") {
		log.SetLevel(log.DebugLevel)
	} else {
		setLogLevel(viper.GetString("log_level"))
	}
}

// SetDefaults applies the config defaults to v. Split out so tests can
// exercise it on a fresh viper.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("shader", "")
	v.SetDefault("pointer_source", "auto")
	v.SetDefault("poll_interval_ms", 25)
	v.SetDefault("framerate_limit", 0)
	v.SetDefault("layer", "background")
	v.SetDefault("log_level", "info")
	v.SetDefault("debug", false)
}

func setLogLevel(level string) {
	switch strings.ToLower(level) {
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "warn":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	default:
		log.SetLevel(log.InfoLevel)
	}
}
