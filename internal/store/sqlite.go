// Package store provides the SQLite-backed regulatory knowledge store:
// obligations, persisted slot-obligation mappings, manual overrides, and the
// audit trail.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/complykit/groundd/internal/audit"
	"github.com/complykit/groundd/internal/matcher"
	"github.com/complykit/groundd/internal/obligation"
	"github.com/complykit/groundd/internal/override"
)

// Store is the SQLite-backed knowledge store. It implements
// grounding.ObligationStore, grounding.PersistenceLayer, override.Store and
// audit.Trace.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the store at the given path. ":memory:"
// opens an ephemeral in-memory database.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// modernc sqlite serializes through a single connection; multiple
	// connections to :memory: would each see their own database.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS obligations (
		id TEXT PRIMARY KEY,
		jurisdiction TEXT NOT NULL,
		artifact_type TEXT NOT NULL,
		kind TEXT NOT NULL,
		title TEXT NOT NULL,
		text TEXT NOT NULL,
		source_citation TEXT,
		mandatory INTEGER NOT NULL,
		required_evidence_types TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_obligations_jurisdiction ON obligations(jurisdiction);
	CREATE INDEX IF NOT EXISTS idx_obligations_artifact ON obligations(artifact_type);

	CREATE TABLE IF NOT EXISTS slot_mappings (
		template_id TEXT NOT NULL,
		slot_id TEXT NOT NULL,
		obligation_id TEXT NOT NULL,
		confidence REAL NOT NULL,
		method TEXT NOT NULL,
		reasoning TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_mappings_template ON slot_mappings(template_id);

	CREATE TABLE IF NOT EXISTS overrides (
		template_id TEXT NOT NULL,
		slot_id TEXT NOT NULL,
		obligation_ids TEXT NOT NULL,
		justification TEXT NOT NULL,
		actor TEXT,
		created_at DATETIME NOT NULL,
		PRIMARY KEY (template_id, slot_id)
	);

	CREATE TABLE IF NOT EXISTS audit_entries (
		id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		actor TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		decision TEXT NOT NULL,
		human_summary TEXT NOT NULL,
		output_data TEXT,
		recorded_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_audit_entity ON audit_entries(entity_id);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("initializing schema: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// PutObligation inserts or replaces an obligation record.
func (s *Store) PutObligation(ctx context.Context, obl obligation.Obligation) error {
	if err := obl.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO obligations
		(id, jurisdiction, artifact_type, kind, title, text, source_citation, mandatory, required_evidence_types)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		obl.ID, obl.Jurisdiction, obl.ArtifactType, string(obl.Kind), obl.Title, obl.Text,
		obl.SourceCitation, boolToInt(obl.Mandatory), strings.Join(obl.RequiredEvidenceTypes, ","),
	)
	if err != nil {
		return fmt.Errorf("storing obligation %s: %w", obl.ID, err)
	}
	return nil
}

// GetMandatoryObligations returns the mandatory obligations registered for
// the given jurisdictions and artifact type. An empty artifact type matches
// all artifact types. The templateID parameter is accepted for
// template-scoped obligation sets; the store currently keys obligations by
// jurisdiction and artifact type only.
func (s *Store) GetMandatoryObligations(ctx context.Context, jurisdictions []string, artifactType, _ string) ([]obligation.Obligation, error) {
	if len(jurisdictions) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(jurisdictions)), ",")
	query := fmt.Sprintf(`
		SELECT id, jurisdiction, artifact_type, kind, title, text, source_citation, mandatory, required_evidence_types
		FROM obligations
		WHERE mandatory = 1 AND jurisdiction IN (%s)`, placeholders)

	args := make([]any, 0, len(jurisdictions)+1)
	for _, j := range jurisdictions {
		args = append(args, j)
	}
	if artifactType != "" {
		query += " AND artifact_type = ?"
		args = append(args, artifactType)
	}
	query += " ORDER BY jurisdiction, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying obligations: %w", err)
	}
	defer rows.Close()

	var out []obligation.Obligation
	for rows.Next() {
		var obl obligation.Obligation
		var kind, evidence string
		var mandatory int
		var citation sql.NullString
		if err := rows.Scan(&obl.ID, &obl.Jurisdiction, &obl.ArtifactType, &kind, &obl.Title,
			&obl.Text, &citation, &mandatory, &evidence); err != nil {
			return nil, fmt.Errorf("scanning obligation: %w", err)
		}
		obl.Kind = obligation.Kind(kind)
		obl.SourceCitation = citation.String
		obl.Mandatory = mandatory != 0
		if evidence != "" {
			obl.RequiredEvidenceTypes = strings.Split(evidence, ",")
		}
		out = append(out, obl)
	}
	return out, rows.Err()
}

// ReplaceMappings atomically replaces the template's persisted mappings:
// delete-then-insert in one transaction. Concurrent calls for the same
// template are last-writer-wins.
func (s *Store) ReplaceMappings(ctx context.Context, templateID string, matches []matcher.Match) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM slot_mappings WHERE template_id = ?`, templateID); err != nil {
		return fmt.Errorf("deleting previous mappings: %w", err)
	}
	for _, m := range matches {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO slot_mappings (template_id, slot_id, obligation_id, confidence, method, reasoning)
			VALUES (?, ?, ?, ?, ?, ?)`,
			templateID, m.SlotID, m.ObligationID, m.Confidence, string(m.Method), m.Reasoning,
		); err != nil {
			return fmt.Errorf("inserting mapping %s->%s: %w", m.SlotID, m.ObligationID, err)
		}
	}
	return tx.Commit()
}

// GetMappings returns the persisted mappings for a template.
func (s *Store) GetMappings(ctx context.Context, templateID string) ([]matcher.Match, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT slot_id, obligation_id, confidence, method, reasoning
		FROM slot_mappings WHERE template_id = ? ORDER BY slot_id, confidence DESC`, templateID)
	if err != nil {
		return nil, fmt.Errorf("querying mappings: %w", err)
	}
	defer rows.Close()

	var out []matcher.Match
	for rows.Next() {
		var m matcher.Match
		var method string
		var reasoning sql.NullString
		if err := rows.Scan(&m.SlotID, &m.ObligationID, &m.Confidence, &method, &reasoning); err != nil {
			return nil, fmt.Errorf("scanning mapping: %w", err)
		}
		m.Method = matcher.Method(method)
		m.Reasoning = reasoning.String
		out = append(out, m)
	}
	return out, rows.Err()
}

// Save stores an override, superseding any previous one for the pair.
func (s *Store) Save(ctx context.Context, ov override.Override) error {
	ids, err := json.Marshal(ov.ObligationIDs)
	if err != nil {
		return fmt.Errorf("encoding obligation IDs: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO overrides (template_id, slot_id, obligation_ids, justification, actor, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		ov.TemplateID, ov.SlotID, string(ids), ov.Justification, ov.Actor, ov.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("storing override: %w", err)
	}
	return nil
}

// Get retrieves the override for a (template, slot) pair.
func (s *Store) Get(ctx context.Context, templateID, slotID string) (override.Override, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT template_id, slot_id, obligation_ids, justification, actor, created_at
		FROM overrides WHERE template_id = ? AND slot_id = ?`, templateID, slotID)

	ov, err := scanOverride(row)
	if errors.Is(err, sql.ErrNoRows) {
		return override.Override{}, override.ErrNotFound
	}
	return ov, err
}

// ListForTemplate returns all overrides for a template.
func (s *Store) ListForTemplate(ctx context.Context, templateID string) ([]override.Override, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT template_id, slot_id, obligation_ids, justification, actor, created_at
		FROM overrides WHERE template_id = ? ORDER BY slot_id`, templateID)
	if err != nil {
		return nil, fmt.Errorf("querying overrides: %w", err)
	}
	defer rows.Close()

	var out []override.Override
	for rows.Next() {
		ov, err := scanOverride(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ov)
	}
	return out, rows.Err()
}

// Delete removes the override for a pair.
func (s *Store) Delete(ctx context.Context, templateID, slotID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM overrides WHERE template_id = ? AND slot_id = ?`, templateID, slotID)
	return err
}

// Record persists an audit entry. Best-effort by contract: callers log and
// continue on error.
func (s *Store) Record(ctx context.Context, entry audit.Entry) error {
	outputData, err := json.Marshal(entry.OutputData)
	if err != nil {
		return fmt.Errorf("encoding output data: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_entries (id, event_type, actor, entity_id, decision, human_summary, output_data, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.EventType, entry.Actor, entry.EntityID, entry.Decision,
		entry.HumanSummary, string(outputData), entry.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("recording audit entry: %w", err)
	}
	return nil
}

// ListAuditEntries returns audit entries for an entity, newest first.
func (s *Store) ListAuditEntries(ctx context.Context, entityID string) ([]audit.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_type, actor, entity_id, decision, human_summary, output_data, recorded_at
		FROM audit_entries WHERE entity_id = ? ORDER BY recorded_at DESC`, entityID)
	if err != nil {
		return nil, fmt.Errorf("querying audit entries: %w", err)
	}
	defer rows.Close()

	var out []audit.Entry
	for rows.Next() {
		var e audit.Entry
		var outputData sql.NullString
		if err := rows.Scan(&e.ID, &e.EventType, &e.Actor, &e.EntityID, &e.Decision,
			&e.HumanSummary, &outputData, &e.RecordedAt); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		if outputData.Valid && outputData.String != "" && outputData.String != "null" {
			if err := json.Unmarshal([]byte(outputData.String), &e.OutputData); err != nil {
				return nil, fmt.Errorf("decoding output data: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOverride(row rowScanner) (override.Override, error) {
	var ov override.Override
	var ids string
	var actor sql.NullString
	var createdAt time.Time
	if err := row.Scan(&ov.TemplateID, &ov.SlotID, &ids, &ov.Justification, &actor, &createdAt); err != nil {
		return override.Override{}, err
	}
	if err := json.Unmarshal([]byte(ids), &ov.ObligationIDs); err != nil {
		return override.Override{}, fmt.Errorf("decoding obligation IDs: %w", err)
	}
	ov.Actor = actor.String
	ov.CreatedAt = createdAt
	return ov, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
