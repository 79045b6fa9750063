// Package cli is the command surface for the documentation retriever,
// grounded on the teacher's internal/cli/root.go (cobra root command +
// viper config binding, persistent --config/--verbose flags) kept
// nearly verbatim since the ambient CLI shape does not change with
// the domain.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile   string
	verbose   bool
	indexRoot string
)

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "docs-retriever",
	Short: "Multi-project documentation retrieval service for AI coding agents",
	Long: `docs-retriever ingests documentation from docs sites, GitHub repos, and
local markdown trees, indexes it into a hybrid vector + full-text
store, and serves hybrid search over MCP.`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. Called once by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.docs-retriever.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&indexRoot, "registry", "", "registry root directory containing projects/ and sources/ (default is $HOME/.docs-retriever)")

	viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("registry", rootCmd.PersistentFlags().Lookup("registry"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".docs-retriever")
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// registryRoot resolves the registry directory: --registry flag, then
// viper config/env, then $HOME/.docs-retriever.
func registryRoot() (string, error) {
	if indexRoot != "" {
		return indexRoot, nil
	}
	if r := viper.GetString("registry"); r != "" {
		return r, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return home + "/.docs-retriever", nil
}
