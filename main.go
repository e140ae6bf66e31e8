// Command contractwatch analyzes contracts with a generative model and serves the results over HTTP.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/AnTengye/contractwatch/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "contractwatch",
	Short: "Contract analysis with breach detection, penalties and alerts",
	Long: `contractwatch runs uploaded contracts through OCR, structured extraction and
quality assessment, then checks them for breaches, calculates penalties and raises
expiration alerts.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the YAML config file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file, falling back to defaults when it does not exist
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = config.Default()
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}
