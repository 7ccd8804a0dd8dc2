package store

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/complykit/groundd/internal/obligation"
)

type obligationDocument struct {
	Obligations []obligationRecord `yaml:"obligations"`
}

type obligationRecord struct {
	ID                    string   `yaml:"id"`
	Jurisdiction          string   `yaml:"jurisdiction"`
	ArtifactType          string   `yaml:"artifact_type"`
	Kind                  string   `yaml:"kind"`
	Title                 string   `yaml:"title"`
	Text                  string   `yaml:"text"`
	SourceCitation        string   `yaml:"source_citation"`
	Mandatory             bool     `yaml:"mandatory"`
	RequiredEvidenceTypes []string `yaml:"required_evidence_types"`
}

// ImportResult summarizes an obligation import.
type ImportResult struct {
	Imported int
	Skipped  int
}

// ImportObligationsFile loads obligations from a YAML file into the store.
// Invalid records are skipped with a warning rather than failing the import.
func ImportObligationsFile(ctx context.Context, s *Store, path string, logger *zap.Logger) (ImportResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ImportResult{}, fmt.Errorf("reading obligations file: %w", err)
	}
	return ImportObligations(ctx, s, data, logger)
}

// ImportObligations loads obligations from YAML bytes into the store.
func ImportObligations(ctx context.Context, s *Store, data []byte, logger *zap.Logger) (ImportResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var doc obligationDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return ImportResult{}, fmt.Errorf("parsing obligations: %w", err)
	}

	var result ImportResult
	for _, rec := range doc.Obligations {
		kind := obligation.Kind(rec.Kind)
		if rec.Kind == "" {
			kind = obligation.KindObligation
		}
		obl := obligation.Obligation{
			ID:                    rec.ID,
			Jurisdiction:          rec.Jurisdiction,
			ArtifactType:          rec.ArtifactType,
			Kind:                  kind,
			Title:                 rec.Title,
			Text:                  rec.Text,
			SourceCitation:        rec.SourceCitation,
			Mandatory:             rec.Mandatory,
			RequiredEvidenceTypes: rec.RequiredEvidenceTypes,
		}
		if err := s.PutObligation(ctx, obl); err != nil {
			logger.Warn("skipping invalid obligation record",
				zap.String("id", rec.ID),
				zap.Error(err))
			result.Skipped++
			continue
		}
		result.Imported++
	}

	logger.Info("obligation import complete",
		zap.Int("imported", result.Imported),
		zap.Int("skipped", result.Skipped))
	return result, nil
}
