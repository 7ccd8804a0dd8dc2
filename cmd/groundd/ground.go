package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/complykit/groundd/internal/config"
	"github.com/complykit/groundd/internal/embeddings"
	"github.com/complykit/groundd/internal/grounding"
	"github.com/complykit/groundd/internal/llm"
	"github.com/complykit/groundd/internal/logging"
	"github.com/complykit/groundd/internal/matcher"
	"github.com/complykit/groundd/internal/obligation"
	"github.com/complykit/groundd/internal/store"
)

var (
	groundJurisdictions []string
	groundArtifactType  string
	groundUseLLM        bool
	groundThreshold     float64
	groundStrict        bool
	groundJSON          bool
	groundDryRun        bool
)

var groundCmd = &cobra.Command{
	Use:   "ground <template.yaml>",
	Short: "Ground a template's slots in regulatory obligations",
	Long: `Ground every slot of a compliance template in the mandatory obligations
of the given jurisdictions, compute coverage, and gate the result.

Examples:
  # Ground a template against EU obligations
  groundd ground template.yaml --jurisdiction EU --artifact-type technical_documentation

  # Allow the LLM fallback for slots the cheap strategies cannot ground
  groundd ground template.yaml --jurisdiction EU --use-llm

  # Emit the full result as JSON
  groundd ground template.yaml --jurisdiction EU --json`,
	Args: cobra.ExactArgs(1),
	RunE: runGround,
}

func init() {
	groundCmd.Flags().StringSliceVar(&groundJurisdictions, "jurisdiction", nil, "jurisdiction to validate against (repeatable)")
	groundCmd.Flags().StringVar(&groundArtifactType, "artifact-type", "", "artifact type the template produces")
	groundCmd.Flags().BoolVar(&groundUseLLM, "use-llm", false, "enable the LLM fallback matcher")
	groundCmd.Flags().Float64Var(&groundThreshold, "threshold", 0, "confidence threshold override (0,1]")
	groundCmd.Flags().BoolVar(&groundStrict, "strict", true, "map uncovered mandatory obligations to BLOCKED")
	groundCmd.Flags().BoolVar(&groundJSON, "json", false, "emit the full result as JSON")
	groundCmd.Flags().BoolVar(&groundDryRun, "dry-run", false, "report the result without persisting mappings or audit entries")
}

// templateFile is the on-disk template shape the CLI accepts.
type templateFile struct {
	TemplateID    string               `yaml:"template_id"`
	ArtifactType  string               `yaml:"artifact_type"`
	Jurisdictions []string             `yaml:"jurisdictions"`
	Slots         []obligation.RawSlot `yaml:"slots"`
}

func loadTemplateFile(path string) (*templateFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading template file: %w", err)
	}
	var tpl templateFile
	if err := yaml.Unmarshal(data, &tpl); err != nil {
		return nil, fmt.Errorf("parsing template file: %w", err)
	}
	if tpl.TemplateID == "" {
		return nil, fmt.Errorf("template file missing template_id")
	}
	return &tpl, nil
}

func runGround(cmd *cobra.Command, args []string) error {
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

	jurisdictions := groundJurisdictions
	if len(jurisdictions) == 0 {
		jurisdictions = tpl.Jurisdictions
	}
	artifactType := groundArtifactType
	if artifactType == "" {
		artifactType = tpl.ArtifactType
	}

	engine, err := buildEngine(cfg, s, logger)
	if err != nil {
		return err
	}

	opts := grounding.DefaultOptions()
	opts.StrictMode = groundStrict && cfg.Grounding.StrictMode
	opts.UseLLMAnalysis = groundUseLLM || cfg.Grounding.UseLLMAnalysis
	opts.ConfidenceThreshold = cfg.Grounding.ConfidenceThreshold
	if groundThreshold != 0 {
		opts.ConfidenceThreshold = groundThreshold
	}

	result, err := engine.Ground(cmd.Context(), grounding.Request{
		TemplateID:    tpl.TemplateID,
		Slots:         tpl.Slots,
		Jurisdictions: jurisdictions,
		ArtifactType:  artifactType,
		Actor:         "cli",
		Options:       opts,
	})
	if err != nil {
		return fmt.Errorf("grounding failed: %w", err)
	}

	if groundJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	printGroundingResult(result)
	if result.Status == grounding.StatusBlocked {
		return fmt.Errorf("grounding blocked for template %s", result.TemplateID)
	}
	return nil
}

// buildEngine wires the matching strategies from config. The semantic
// strategy and the LLM fallback need provider credentials; without them the
// engine runs on the deterministic strategies alone.
func buildEngine(cfg *config.Config, s *store.Store, logger *zap.Logger) (*grounding.Engine, error) {
	strategies := []matcher.Strategy{
		matcher.NewEvidenceOverlapMatcher(),
		matcher.NewCitationMatcher(),
	}

	if cfg.Embeddings.APIKey != "" {
		provider, err := embeddings.NewOpenAIProvider(embeddings.OpenAIConfig{
			APIKey:  cfg.Embeddings.APIKey,
			Model:   cfg.Embeddings.Model,
			BaseURL: cfg.Embeddings.BaseURL,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("creating embedding provider: %w", err)
		}
		cached, err := embeddings.NewCachingProvider(provider, cfg.Embeddings.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("creating embedding cache: %w", err)
		}
		strategies = append(strategies, matcher.NewSemanticMatcher(cached, logger))
	} else {
		logger.Info("no embeddings API key configured, semantic matching disabled")
	}

	// Dry runs keep the log-backed default trace and skip persistence, so a
	// run leaves no trace in the store.
	var engineOpts []grounding.EngineOption
	if !groundDryRun {
		engineOpts = append(engineOpts,
			grounding.WithPersistence(s),
			grounding.WithTrace(s),
		)
	}

	if cfg.LLM.APIKey != "" {
		completions, err := llm.NewOpenAIProvider(llm.OpenAIConfig{
			APIKey:  cfg.LLM.APIKey,
			Model:   cfg.LLM.Model,
			BaseURL: cfg.LLM.BaseURL,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("creating completion provider: %w", err)
		}
		engineOpts = append(engineOpts, grounding.WithLLMFallback(matcher.NewLLMFallbackMatcher(completions, logger)))
	}

	return grounding.NewEngine(s, strategies, logger, engineOpts...)
}

func printGroundingResult(result *grounding.Result) {
	fmt.Printf("Template:         %s\n", result.TemplateID)
	fmt.Printf("Status:           %s\n", result.Status)
	fmt.Printf("Compliance score: %d\n", result.ComplianceScore)
	fmt.Printf("Covered:          %d obligation(s)\n", len(result.CoveredObligationIDs))

	grounded := 0
	for _, sr := range result.SlotResults {
		if sr.IsGrounded {
			grounded++
		}
	}
	fmt.Printf("Slots grounded:   %d/%d\n", grounded, len(result.SlotResults))

	for _, u := range result.UncoveredObligations {
		fmt.Printf("Uncovered:        %s (%s)\n", u.Obligation.ID, u.Obligation.Title)
	}
	for _, w := range result.Warnings {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", w)
	}
	for _, b := range result.BlockingErrors {
		fmt.Fprintf(os.Stderr, "Blocking: %s\n", b)
	}
}
