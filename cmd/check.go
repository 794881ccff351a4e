/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/moamenhredeen/apicheck/internal/catalog"
	"github.com/moamenhredeen/apicheck/internal/checker"
	"github.com/moamenhredeen/apicheck/internal/models"
	"github.com/moamenhredeen/apicheck/internal/output"
	"github.com/moamenhredeen/apicheck/internal/parser"
	"github.com/spf13/cobra"
)

var (
	checkURL      string
	checkMethod   string
	checkEndpoint string
	checkParams   []string
)

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check [openapi-spec-file]",
	Short: "Check a single request",
	Long: `Check a single request against an OpenAPI document and print the verdict
as JSON. The command exits with status 1 when the verdict is a failure.

Examples:
  apicheck check bank.json --url https://api.example.com/v1/accounts/42 \
    --method GET --endpoint '/accounts/{id}' --param id=42`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	params, err := parseParams(checkParams)
	if err != nil {
		return err
	}

	doc, err := parser.ParseFile(args[0], parser.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("error parsing OpenAPI file: %w", err)
	}

	opts := []checker.Option{
		checker.WithLogger(logger),
		checker.WithCollectAll(cfg.Check.CollectAll),
		checker.WithAudit(cfg.Check.Audit),
	}
	if cfg.Batch.Seed != 0 {
		opts = append(opts, checker.WithSeed(cfg.Batch.Seed))
	}

	verdict := checker.New(doc, opts...).Check(models.Request{
		APIName:  catalog.APIName(doc.Title()),
		URL:      checkURL,
		Method:   checkMethod,
		Endpoint: checkEndpoint,
		Params:   params,
	})

	if err := output.WriteJSON(os.Stdout, verdict); err != nil {
		return err
	}
	if verdict.Failed() {
		return errFailed
	}
	return nil
}

// parseParams splits repeated key=value flags
func parseParams(raw []string) (map[string]any, error) {
	params := make(map[string]any, len(raw))
	for _, kv := range raw {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid parameter %q: expected key=value", kv)
		}
		params[key] = value
	}
	return params, nil
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringVar(&checkURL, "url", "", "Full request URL, including any query string")
	checkCmd.Flags().StringVarP(&checkMethod, "method", "X", "GET", "HTTP method")
	checkCmd.Flags().StringVar(&checkEndpoint, "endpoint", "", "Path template, e.g. /accounts/{id}")
	checkCmd.Flags().StringArrayVarP(&checkParams, "param", "p", nil, "Request parameter as key=value (repeatable)")
	checkCmd.Flags().Bool("collect-all", false, "Report every parameter violation instead of the first")
	checkCmd.Flags().Bool("audit", true, "Validate generated mocks against their schema")
	checkCmd.Flags().Uint64("seed", 0, "Seed for reproducible mock values (0 = random)")

	checkCmd.MarkFlagRequired("url")
	checkCmd.MarkFlagRequired("endpoint")
}
