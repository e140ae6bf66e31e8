package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/AnTengye/contractwatch/export"
	"github.com/AnTengye/contractwatch/model"
	"github.com/AnTengye/contractwatch/pipeline"
)

var (
	analyzeLayout       string
	analyzeInstructions string
	analyzeCSV          string
	analyzeBreaches     bool
	analyzeConcurrency  int
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>...",
	Short: "Analyze contract files and print the results",
	Long: `Runs each file through the analysis pipeline. Files ending in .pdf are sent to OCR,
anything else is read as contract text. Independent files are analyzed concurrently.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeLayout, "layout", "", "layout description, enables the OCR improvement stage")
	analyzeCmd.Flags().StringVar(&analyzeInstructions, "instructions", "", "extra instructions for the extraction stage")
	analyzeCmd.Flags().StringVar(&analyzeCSV, "csv", "", "write the results to this CSV file")
	analyzeCmd.Flags().BoolVar(&analyzeBreaches, "breaches", false, "run breach detection with the default rules")
	analyzeCmd.Flags().IntVarP(&analyzeConcurrency, "concurrency", "j", 4, "documents analyzed at once")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}

	inputs := make([]*pipeline.Input, len(args))
	for i, path := range args {
		in, err := readInput(path)
		if err != nil {
			return err
		}
		in.LayoutDescription = analyzeLayout
		in.UserInstructions = analyzeInstructions
		inputs[i] = in
	}

	results := make([]*model.Contract, len(inputs))
	failures := make([]error, len(inputs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(analyzeConcurrency, 1))
	for i, in := range inputs {
		g.Go(func() error {
			c, err := analyzeOne(gctx, a, in)
			results[i], failures[i] = c, err
			// One failed document does not stop the others
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	failed := 0
	for i, c := range results {
		printResult(out, args[i], c, failures[i])
		if failures[i] != nil {
			failed++
		}
	}

	if analyzeCSV != "" {
		if err := writeCSVFile(analyzeCSV, results); err != nil {
			return err
		}
		fmt.Fprintf(out, "\nWrote %s\n", analyzeCSV)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed", failed, len(results))
	}
	return nil
}

func analyzeOne(ctx context.Context, a *app, in *pipeline.Input) (*model.Contract, error) {
	c, err := a.runner.Analyze(ctx, in)
	if err != nil || !analyzeBreaches {
		return c, err
	}
	if _, err := a.detector.Detect(ctx, c.ID, nil); err != nil {
		return c, err
	}
	return a.store.Get(c.ID)
}

func readInput(path string) (*pipeline.Input, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	base := filepath.Base(path)
	in := &pipeline.Input{
		Name:     strings.TrimSuffix(base, filepath.Ext(base)),
		FileName: base,
	}
	if strings.EqualFold(filepath.Ext(base), ".pdf") {
		in.PDF = data
	} else {
		in.Text = string(data)
	}
	return in, nil
}

func printResult(w io.Writer, path string, c *model.Contract, err error) {
	bold := color.New(color.Bold).SprintFunc()
	green := color.New(color.FgGreen, color.Bold).SprintFunc()
	red := color.New(color.FgRed, color.Bold).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()

	if err != nil {
		fmt.Fprintf(w, "%s %s: %v\n", red("✗"), bold(path), err)
		return
	}
	fmt.Fprintf(w, "%s %s (%s)\n", green("✓"), bold(c.Name), c.ID)

	if e := c.ExtractedData; e != nil {
		fmt.Fprintf(w, "  %s %s\n", cyan("Summary:"), e.ContractSummary)
		fmt.Fprintf(w, "  %s %s\n", cyan("Parties:"), strings.Join(e.PartiesInvolved, ", "))
		if e.EffectiveDate != "" || e.ExpirationDate != "" {
			fmt.Fprintf(w, "  %s %s → %s\n", cyan("Term:"), e.EffectiveDate, e.ExpirationDate)
		}
	}
	if q := c.QualityAssessment; q != nil {
		fmt.Fprintf(w, "  %s %.2f (%s confidence, complete: %v)\n", cyan("Quality:"), q.QualityScore, q.ConfidenceLevel, q.IsComplete)
	}
	if b := c.BreachDetection; b != nil && b.Result != nil {
		fmt.Fprintf(w, "  %s %s\n", cyan("Breaches:"), b.Result.Summary)
		for _, p := range b.Result.PotentialBreaches {
			fmt.Fprintf(w, "    - %s\n", p)
		}
	}
}

func writeCSVFile(path string, results []*model.Contract) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := export.WriteCSV(f, results...); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
