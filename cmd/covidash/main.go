package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsmeraldi/diy-covid19dash/cmd/covidash/commands"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "covidash",
	Short: "UKHSA data dashboard downloader",
	Long: `A command-line client for the UKHSA data dashboard API.

Downloads epidemiological statistics selected by theme, sub-theme, topic,
geography and metric, walking the API's pagination under its request rate cap,
and renders or saves the result.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.covidash/config.yml)")
	rootCmd.PersistentFlags().String("access-point", "", "API base URL")
	rootCmd.PersistentFlags().String("user-agent", "covidash/"+version, "User-Agent header sent to the API")
	rootCmd.PersistentFlags().Duration("timeout", 0, "HTTP request timeout")
	rootCmd.PersistentFlags().Duration("rate-interval", 0, "minimum spacing between API requests")
	rootCmd.PersistentFlags().String("output", "table", "output format (table, json, yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("pretty", false, "human-readable console logs")

	// Bind flags to viper
	viper.BindPFlag("access-point", rootCmd.PersistentFlags().Lookup("access-point"))
	viper.BindPFlag("user-agent", rootCmd.PersistentFlags().Lookup("user-agent"))
	viper.BindPFlag("timeout", rootCmd.PersistentFlags().Lookup("timeout"))
	viper.BindPFlag("rate-interval", rootCmd.PersistentFlags().Lookup("rate-interval"))
	viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))
	viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("pretty", rootCmd.PersistentFlags().Lookup("pretty"))

	// Add commands
	rootCmd.AddCommand(commands.NewFetchCommand())
	rootCmd.AddCommand(commands.NewVersionCommand(version, commit, date))
}

func initConfig() {
	cfgFile := viper.GetString("config")

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		viper.AddConfigPath(filepath.Join(home, ".covidash"))
		viper.SetConfigType("yml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("COVIDASH")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetString("log-level") == "debug" {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
