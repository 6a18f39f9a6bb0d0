package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var languagesCmd = &cobra.Command{
	Use:   "languages",
	Short: "List the configured site languages",
	Long:  "Reads the config and prints the language codes jobs can be imported for.",
	RunE:  runLanguages,
}

func init() {
	rootCmd.AddCommand(languagesCmd)
}

func runLanguages(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-10s %s\n", "Code", "Language ID")
	fmt.Fprintln(out, strings.Repeat("─", 22))
	for _, l := range cfg.Site.Languages {
		fmt.Fprintf(out, "%-10s %d\n", l.Code, l.ID)
	}
	fmt.Fprintf(out, "\nTotal: %d languages\n", len(cfg.Site.Languages))
	return nil
}
