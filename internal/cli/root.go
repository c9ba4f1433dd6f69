// Package cli contains the docpager commands.
package cli

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// NewRootCommand enables all children commands to read flags from CLI flags,
// environment variables prefixed with DOCPAGER, or docpager.yaml (in that
// order).
func NewRootCommand() *cobra.Command {
	viper.SetConfigName("docpager")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("DOCPAGER")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	for _, path := range []string{"/etc/docpager", "$HOME/.docpager", "."} {
		viper.AddConfigPath(path)
	}
	// a missing config file is fine; flags and env still apply
	_ = viper.ReadInConfig()

	return &cobra.Command{
		Use:          "docpager",
		Short:        "Cursor pagination over document collections",
		Long:         "Reads relay-style pages from a MongoDB collection using opaque cursors.",
		SilenceUsage: true,
	}
}

// mustBindPFlag attempts to bind a specific key to a pflag (as used by cobra)
// and panics if the binding fails with a non-nil error.
func mustBindPFlag(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic("failed to bind pflag: " + err.Error())
	}
}

func mustBindEnv(input ...string) {
	if err := viper.BindEnv(input...); err != nil {
		panic("failed to bind env key: " + err.Error())
	}
}
