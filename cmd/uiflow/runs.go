package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/uiflow/uiflow/pkg/history"
)

var (
	runsTitle string
	runsLimit int
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List past runs from the local history index",
	RunE:  runRuns,
}

func runRuns(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(historyPath); os.IsNotExist(err) {
		fmt.Println("no run history yet — execute a flow first")
		return nil
	}
	store, err := history.Open(historyPath)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.List(runsTitle, runsLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no matching runs")
		return nil
	}
	for _, r := range runs {
		glyph := stylePass.Render("✓")
		if r.Status != "passed" {
			glyph = styleFail.Render("✗")
		}
		fmt.Printf("%s %-32s %-7s %5.0fms  %d/%d steps  %s\n",
			glyph, r.Title, r.Status, r.DurationMS,
			r.Summary.Passed, r.Summary.Total, styleDim.Render(r.RunDir))
	}
	return nil
}

func init() {
	runsCmd.Flags().StringVar(&runsTitle, "title", "", "filter by scenario title")
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum rows to show")
	rootCmd.AddCommand(runsCmd, watchCmd)
}
