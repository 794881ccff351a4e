/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/moamenhredeen/apicheck/internal/batch"
	"github.com/moamenhredeen/apicheck/internal/catalog"
	"github.com/moamenhredeen/apicheck/internal/dataset"
	"github.com/moamenhredeen/apicheck/internal/models"
	"github.com/moamenhredeen/apicheck/internal/output"
	"github.com/spf13/cobra"
)

var (
	batchOutputFormat string
	batchOutputFile   string
	verbose           bool

	// Color helpers
	cyan   = color.New(color.FgCyan, color.Bold).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	white  = color.New(color.FgWhite, color.Bold).SprintFunc()
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch [dataset-file]",
	Short: "Check a dataset of requests",
	Long: `Check every request of a JSON-lines dataset against the OpenAPI documents
found in the specs directory.

Each line of the dataset is an object with an "answers" array of requests.
A request names its API by the title of the document, with spaces replaced
by underscores.

Examples:
  # Check a dataset with the documents in ./APIs
  apicheck batch requests.jsonl

  # Use another specs directory and four workers
  apicheck batch requests.jsonl --specs ./specs -c 4

  # Reproducible mocks, exported as CSV
  apicheck batch requests.jsonl --seed 42 -o csv --output-file results.csv`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func runBatch(cmd *cobra.Command, args []string) error {
	var format output.Format
	if batchOutputFormat != "" {
		f, err := output.ParseFormat(batchOutputFormat)
		if err != nil {
			return err
		}
		format = f
	}

	requests, err := dataset.ReadFile(args[0], dataset.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("error reading dataset: %w", err)
	}

	cat, err := catalog.Scan(cfg.Specs.Dir, catalog.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("error loading specs: %w", err)
	}

	if len(requests) == 0 {
		fmt.Println("No requests found in dataset")
		return nil
	}

	config := batch.Config{
		Concurrency: cfg.Batch.Concurrency,
		Seed:        cfg.Batch.Seed,
		CollectAll:  cfg.Check.CollectAll,
		Audit:       cfg.Check.Audit,
	}

	// Print batch info, unless the results go to stdout
	quiet := format != "" && batchOutputFile == ""
	if !quiet {
		fmt.Printf("\n%s\n", white("=== Batch Configuration ==="))
		fmt.Printf("Requests:    %d\n", len(requests))
		fmt.Printf("Specs:       %d (%s)\n", cat.Len(), cfg.Specs.Dir)
		fmt.Printf("Concurrency: %d\n", config.Concurrency)
		if config.Seed != 0 {
			fmt.Printf("Seed:        %d\n", config.Seed)
		}
		fmt.Printf("Audit:       %v\n", config.Audit)
		fmt.Println()
	}

	runner := batch.NewRunner(config, cat, logger)

	// Setup context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\n\nBatch interrupted, generating partial results...")
		cancel()
	}()

	var s *spinner.Spinner
	if isTTY && !quiet {
		s = spinner.New(spinner.CharSets[14], 100*time.Millisecond)
		s.Start()
		defer s.Stop()
	}

	// Create event handler for live output
	onEvent := func(event batch.Event) {
		if quiet {
			return
		}
		prefix := fmt.Sprintf("[%d/%d]", event.Index+1, event.Total)

		switch event.Type {
		case batch.EventStarting:
			if s != nil {
				s.Suffix = fmt.Sprintf(" %s %s %s", prefix, event.Request.Method, event.Request.Endpoint)
			}

		case batch.EventCompleted:
			result := event.Result
			if !verbose && result.Succeeded() {
				return
			}
			if s != nil {
				s.Stop()
				defer s.Start()
			}
			printResult(prefix, *result)
		}
	}

	summary := runner.Run(ctx, requests, onEvent)
	if s != nil {
		s.Stop()
	}

	// Handle output format
	if format != "" {
		if err := output.ExportSummary(summary, format, batchOutputFile); err != nil {
			return fmt.Errorf("error exporting results: %w", err)
		}

		// If writing to file, still show summary
		if batchOutputFile != "" {
			fmt.Printf("\nResults exported to: %s\n", batchOutputFile)
			displayBatchSummary(summary)
		}
	} else {
		displayBatchSummary(summary)
	}

	if summary.Failed > 0 {
		return errFailed
	}
	return nil
}

func printResult(prefix string, result models.Result) {
	req := result.Request

	if result.Verdict == nil {
		fmt.Printf("%s %s %s %s (%s)\n", prefix, yellow("●"), req.Method, req.Endpoint, req.APIName)
		fmt.Printf("    %s\n", yellow(result.Error))
		return
	}

	status := green("✓")
	if result.Verdict.Failed() {
		status = red("✗")
	}
	fmt.Printf("%s %s %d %s %s (%s)\n", prefix, status, result.Verdict.StatusCode, req.Method, req.Endpoint, req.APIName)

	if msg := output.ErrorText(result); msg != "" {
		fmt.Printf("    %s %s\n", cyan("→"), red(msg))
	}
	if verbose {
		fmt.Printf("    Spec: %s | Check time: %.3fms\n",
			result.SpecFile, float64(result.Duration.Microseconds())/1000)
	}
}

func displayBatchSummary(summary models.Summary) {
	fmt.Println()
	fmt.Printf("%s\n", white("=== Batch Summary ==="))
	fmt.Printf("Total Requests: %d\n", summary.TotalRequests)
	fmt.Printf("Successful:     %s\n", green(summary.Successful))
	if summary.Failed > 0 {
		fmt.Printf("Failed:         %s\n", red(summary.Failed))
	} else {
		fmt.Printf("Failed:         %s\n", green("0"))
	}
	if summary.Unmatched > 0 {
		fmt.Printf("Unmatched:      %s\n", yellow(summary.Unmatched))
	}
	fmt.Printf("Total Duration: %v\n", summary.TotalDuration.Round(time.Millisecond))
	fmt.Println()

	if len(summary.StatusCodes) > 0 {
		var codes []string
		for _, code := range summary.SortedStatusCodes() {
			codes = append(codes, fmt.Sprintf("%d:%d", code, summary.StatusCodes[code]))
		}
		fmt.Printf("Status codes: %s\n", strings.Join(codes, ", "))
		fmt.Println()
	}

	// Latency summary
	l := summary.Latency
	fmt.Printf("%s\n", white("Check Latency:"))
	fmt.Printf("  Min: %.3fms | Avg: %.3fms | Max: %.3fms\n", ms(l.Min), ms(l.Avg), ms(l.Max))
	fmt.Printf("  P50: %.3fms | P90: %.3fms | P99: %.3fms\n", ms(l.P50), ms(l.P90), ms(l.P99))
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().String("specs", "APIs", "Directory containing the OpenAPI documents")
	batchCmd.Flags().IntP("concurrency", "c", 1, "Number of concurrent workers")
	batchCmd.Flags().Uint64("seed", 0, "Seed for reproducible mock values (0 = random)")
	batchCmd.Flags().Bool("collect-all", false, "Report every parameter violation instead of the first")
	batchCmd.Flags().Bool("audit", true, "Validate generated mocks against their schema")
	batchCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show every result, not only failures")

	// Output flags
	batchCmd.Flags().StringVarP(&batchOutputFormat, "output", "o", "", "Output format: json, csv")
	batchCmd.Flags().StringVar(&batchOutputFile, "output-file", "", "Write output to file (default: stdout)")
}
