package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/securerpc/tlsmatrix/internal/scenario"
)

// Scenarios command flags
var (
	scenariosJSON bool
	scenariosAll  bool
)

var scenariosCmd = &cobra.Command{
	Use:   "scenarios",
	Short: "List matrix scenarios and their predicted verdicts",
	Long: `List matrix scenarios and their predicted verdicts.

By default only the legal, executable scenarios are shown. With --all
the full Cartesian product is listed, annotating each illegal
combination with the rule that excludes it.`,
	RunE: listScenarios,
}

func init() {
	scenariosCmd.Flags().BoolVar(&scenariosJSON, "json", false, "Print as JSON")
	scenariosCmd.Flags().BoolVar(&scenariosAll, "all", false, "Include illegal combinations")

	rootCmd.AddCommand(scenariosCmd)
}

func listScenarios(cmd *cobra.Command, args []string) error {
	type entry struct {
		ID       string           `json:"id"`
		Expected scenario.Verdict `json:"expected,omitempty"`
		Illegal  string           `json:"illegal,omitempty"`
	}

	var entries []entry
	for _, cfg := range scenario.Enumerate() {
		reason, ok := cfg.Legal()
		switch {
		case ok:
			entries = append(entries, entry{ID: cfg.ID(), Expected: cfg.Expected()})
		case scenariosAll:
			entries = append(entries, entry{ID: cfg.ID(), Illegal: reason})
		}
	}

	if scenariosJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	legal := 0
	for _, e := range entries {
		if e.Illegal != "" {
			fmt.Printf("%-84s ILLEGAL: %s\n", e.ID, e.Illegal)
			continue
		}
		legal++
		fmt.Printf("%-84s %s\n", e.ID, e.Expected)
	}
	fmt.Printf("%d legal scenarios\n", legal)
	return nil
}
