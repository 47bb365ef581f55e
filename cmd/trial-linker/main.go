// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the trial-linker CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/magicai-labs/trial-linker/internal/ctgov"
	"github.com/magicai-labs/trial-linker/internal/httputil"
	"github.com/magicai-labs/trial-linker/internal/pubchem"
	"github.com/magicai-labs/trial-linker/internal/resolve"
	"github.com/magicai-labs/trial-linker/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

const (
	defaultTimeout   = 60 * time.Second
	defaultDelay     = 250 * time.Millisecond
	defaultUserAgent = "trial-linker/0.1"
)

// rootCmd is the base command for the trial-linker CLI.
var rootCmd = &cobra.Command{
	Use:   "trial-linker",
	Short: "Link PubChem compounds to ClinicalTrials.gov studies",
	Long: `trial-linker maps PubChem compound identifiers (CIDs) to ClinicalTrials.gov
registry identifiers (NCT IDs) and collects the linked study documents.

Resolution tries several PubChem surfaces in a fixed priority order and
records which one produced each compound's links. The collect subcommand
runs the full pipeline over a compound classification node, streaming
results to disk with per-compound checkpointing so interrupted runs can
resume.`,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./trial-linker.yaml or ~/.config/trial-linker/config.yaml)")
	rootCmd.PersistentFlags().Duration("timeout", 0, "HTTP request timeout (default 60s)")
	rootCmd.PersistentFlags().Duration("delay", 0, "minimum spacing between upstream requests (default 250ms)")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("trial-linker")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "trial-linker"))
		}
	}

	viper.SetEnvPrefix("TRIAL_LINKER")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// httpConfig builds the shared HTTP settings from the persistent flags.
func httpConfig(cmd *cobra.Command) types.HTTPConfig {
	timeout, _ := cmd.Flags().GetDuration("timeout")
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return types.HTTPConfig{Timeout: timeout, UserAgent: defaultUserAgent}
}

// requestDelay reads the politeness spacing from the persistent flags.
func requestDelay(cmd *cobra.Command) time.Duration {
	delay, _ := cmd.Flags().GetDuration("delay")
	if delay == 0 {
		delay = defaultDelay
	}
	return delay
}

// buildClients constructs the upstream clients sharing one rate limiter, so
// the spacing applies across every surface rather than per client.
func buildClients(cfg types.HTTPConfig, delay time.Duration) resolve.Clients {
	limiter := httputil.NewLimiter(delay)
	return resolve.Clients{
		PubChem: pubchem.NewClient(cfg, limiter),
		PugView: pubchem.NewPugViewClient(cfg, limiter),
		SDQ:     pubchem.NewSDQClient(cfg, limiter),
		Page:    pubchem.NewPageClient(cfg, limiter),
		CTGov:   ctgov.NewClient(cfg, limiter),
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
