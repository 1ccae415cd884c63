package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/goliatone/go-content-cache/config"
)

var rootCmd = &cobra.Command{
	Use:          "contentd",
	Short:        "Notes and posts API with a read-through cache",
	Long:         "Serves the notes and posts REST API backed by a SQL or in-memory store and a memory, Redis or bbolt cache.",
	SilenceUsage: true,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (YAML); CONTENTD_* env vars override it")
}

// loadConfig reads the config file named by --config plus the environment.
// Flags bound to v by the caller win over both.
func loadConfig(cmd *cobra.Command, v *viper.Viper) (config.Config, error) {
	var path string
	if f := cmd.Flag("config"); f != nil {
		path = f.Value.String()
	}
	return config.Load(v, path)
}
