package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/complykit/groundd/internal/logging"
	"github.com/complykit/groundd/internal/store"
)

var obligationsCmd = &cobra.Command{
	Use:   "obligations",
	Short: "Manage the obligation knowledge base",
}

var obligationsImportCmd = &cobra.Command{
	Use:   "import <obligations.yaml>",
	Short: "Import obligations from a YAML file",
	Long: `Import obligation records from a YAML file into the knowledge store.
Invalid records are skipped with a warning.

Example:
  groundd obligations import eu-ai-act.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runObligationsImport,
}

func init() {
	obligationsCmd.AddCommand(obligationsImportCmd)
}

func runObligationsImport(cmd *cobra.Command, args []string) error {
	_, logger, s, err := setup()
	if err != nil {
		return err
	}
	defer logging.Sync(logger)
	defer s.Close()

	result, err := store.ImportObligationsFile(cmd.Context(), s, args[0], logger)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	fmt.Printf("Imported %d obligation(s), skipped %d\n", result.Imported, result.Skipped)
	return nil
}
