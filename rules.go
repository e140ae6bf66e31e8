package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AnTengye/contractwatch/breach"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Print the default breach rules as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := json.MarshalIndent(breach.DefaultRules(), "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal rules: %w", err)
		}
		cmd.Println(string(data))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rulesCmd)
}
