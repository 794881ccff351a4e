/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"strings"

	"github.com/moamenhredeen/apicheck/internal/catalog"
	"github.com/spf13/cobra"
)

// specsCmd represents the specs command
var specsCmd = &cobra.Command{
	Use:   "specs [dir]",
	Short: "List the OpenAPI documents of the specs directory",
	Long: `List the OpenAPI documents found in the specs directory, with the api name
requests must use to reach them.

The directory defaults to the specs.dir setting.

Examples:
  apicheck specs ./APIs`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSpecs,
}

func runSpecs(cmd *cobra.Command, args []string) error {
	dir := cfg.Specs.Dir
	if len(args) == 1 {
		dir = args[0]
	}

	cat, err := catalog.Scan(dir, catalog.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("error loading specs: %w", err)
	}

	if cat.Len() == 0 {
		fmt.Printf("No OpenAPI documents found in %s\n", dir)
		return nil
	}

	fmt.Printf("%-30s %-8s %-20s %s\n", "API NAME", "VERSION", "BASE PATH", "FILE")
	fmt.Println(strings.Repeat("-", 90))
	for _, name := range cat.Names() {
		entry, _ := cat.Lookup(name)
		base, ok := entry.Doc.BasePath()
		if !ok {
			base = "(none)"
		}
		fmt.Printf("%-30s %-8s %-20s %s\n", name, entry.Doc.Version(), base, entry.Path)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(specsCmd)

	specsCmd.Flags().String("specs", "APIs", "Directory containing the OpenAPI documents")
}
