package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

func RegisterFlags(rootCmd *cobra.Command) {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/shaderpaper/shaderpaper.toml)")
	viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))

	rootCmd.PersistentFlags().StringP("shader", "s", "", "WGSL shader file to render instead of the builtin")
	viper.BindPFlag("shader", rootCmd.PersistentFlags().Lookup("shader"))

	rootCmd.PersistentFlags().String("pointer-source", "", "pointer source: auto, evdev or poll")
	viper.BindPFlag("pointer_source", rootCmd.PersistentFlags().Lookup("pointer-source"))

	rootCmd.PersistentFlags().BoolP("installconfig", "i", false, "Install a default config file")
	rootCmd.PersistentFlags().Bool("show-config", false, "Dump resolved config")
	rootCmd.PersistentFlags().BoolP("background", "b", false, "Run as a daemon")
	viper.BindPFlag("background", rootCmd.PersistentFlags().Lookup("background"))
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	rootCmd.PersistentFlags().BoolP("version", "v", false, "Print version")
	rootCmd.PersistentFlags().BoolP("help", "h", false, "Print usage")
}
