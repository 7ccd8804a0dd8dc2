package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/complykit/groundd/internal/alignment"
	"github.com/complykit/groundd/internal/embeddings"
	"github.com/complykit/groundd/internal/logging"
	"github.com/complykit/groundd/internal/obligation"
)

var (
	alignThreshold int
	alignJSON      bool
)

var alignCmd = &cobra.Command{
	Use:   "align <template.yaml> <reference.yaml>",
	Short: "Align a custom template to a reference standard",
	Long: `Align a custom template's slots to a pre-mapped reference standard and
derive obligation coverage transitively.

Examples:
  # Align a custom template to the EU technical documentation standard
  groundd align custom.yaml eu-tech-doc.yaml

  # Require an alignment score of at least 75
  groundd align custom.yaml eu-tech-doc.yaml --threshold 75`,
	Args: cobra.ExactArgs(2),
	RunE: runAlign,
}

func init() {
	alignCmd.Flags().IntVar(&alignThreshold, "threshold", 0, "alignment score threshold (0,100]")
	alignCmd.Flags().BoolVar(&alignJSON, "json", false, "emit the full result as JSON")
}

// referenceFile is the on-disk reference standard shape the CLI accepts.
type referenceFile struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Slots []struct {
		obligation.RawSlot `yaml:",inline"`
		ObligationIDs      []string `yaml:"obligation_ids"`
	} `yaml:"slots"`
}

func loadReferenceFile(path string) (alignment.ReferenceStandard, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return alignment.ReferenceStandard{}, fmt.Errorf("reading reference file: %w", err)
	}
	var ref referenceFile
	if err := yaml.Unmarshal(data, &ref); err != nil {
		return alignment.ReferenceStandard{}, fmt.Errorf("parsing reference file: %w", err)
	}

	std := alignment.ReferenceStandard{ID: ref.ID, Name: ref.Name}
	for i, rs := range ref.Slots {
		slot, err := obligation.NormalizeSlot(rs.RawSlot)
		if err != nil {
			return alignment.ReferenceStandard{}, fmt.Errorf("reference slot at index %d: %w", i, err)
		}
		std.Slots = append(std.Slots, alignment.ReferenceSlot{
			Slot:          slot,
			ObligationIDs: rs.ObligationIDs,
		})
	}
	return std, nil
}

func runAlign(cmd *cobra.Command, args []string) error {
	cfg, logger, s, err := setup()
	if err != nil {
		return err
	}
	defer logging.Sync(logger)
	defer s.Close()

	tpl, err := loadTemplateFile(args[0])
	if err != nil {
		return err
	}
	ref, err := loadReferenceFile(args[1])
	if err != nil {
		return err
	}

	slots, warnings := obligation.NormalizeSlots(tpl.Slots)
	for _, w := range warnings {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", w)
	}

	var alignerOpts []alignment.AlignerOption
	if cfg.Embeddings.APIKey != "" {
		provider, err := embeddings.NewOpenAIProvider(embeddings.OpenAIConfig{
			APIKey:  cfg.Embeddings.APIKey,
			Model:   cfg.Embeddings.Model,
			BaseURL: cfg.Embeddings.BaseURL,
		}, logger)
		if err != nil {
			return fmt.Errorf("creating embedding provider: %w", err)
		}
		cached, err := embeddings.NewCachingProvider(provider, cfg.Embeddings.CacheSize)
		if err != nil {
			return fmt.Errorf("creating embedding cache: %w", err)
		}
		alignerOpts = append(alignerOpts, alignment.WithSemanticFallback(cached))
	}

	threshold := cfg.Alignment.Threshold
	if alignThreshold != 0 {
		threshold = alignThreshold
	}

	aligner := alignment.NewAligner(logger, alignerOpts...)
	result, err := aligner.Align(cmd.Context(), alignment.Request{
		TemplateID: tpl.TemplateID,
		Slots:      slots,
		Reference:  ref,
		Threshold:  threshold,
	})
	if err != nil {
		return fmt.Errorf("alignment failed: %w", err)
	}

	if alignJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	printAlignmentResult(result)
	return nil
}

func printAlignmentResult(result *alignment.Result) {
	fmt.Printf("Template:       %s\n", result.TemplateID)
	fmt.Printf("Reference:      %s\n", result.ReferenceStandardID)
	fmt.Printf("Classification: %s\n", result.Classification)
	fmt.Printf("Coverage:       %d/%d required reference slots\n",
		result.CoveredReferenceSlots, result.RequiredReferenceSlots)
	fmt.Printf("Obligations:    %d derived\n", len(result.CoveredObligationIDs))

	for _, sr := range result.SlotResults {
		if len(sr.Alignments) == 0 {
			fmt.Printf("  %-30s -> (unaligned)\n", sr.SlotID)
			continue
		}
		best := sr.Alignments[0]
		fmt.Printf("  %-30s -> %s (score %d, %s)\n",
			sr.SlotID, best.ReferenceSlotID, best.Score, best.Stage)
	}
}
