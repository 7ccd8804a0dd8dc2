package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/complykit/groundd/internal/logging"
	"github.com/complykit/groundd/internal/override"
)

var (
	overrideObligations   []string
	overrideJustification string
	overrideActor         string
)

var overrideCmd = &cobra.Command{
	Use:   "override",
	Short: "Manage manual slot-obligation overrides",
}

var overrideSetCmd = &cobra.Command{
	Use:   "set <template-id> <slot-id>",
	Short: "Set a manual override for a slot",
	Long: `Record a manual override mapping a slot to one or more obligations with
confidence 1.0. Overrides supersede automated matches for the slot and
require a justification.

Example:
  groundd override set tpl-eu-docs risk-summary \
    --obligation eu-ai-act-art-9 --justification "confirmed in legal review" \
    --actor reviewer@example.com`,
	Args: cobra.ExactArgs(2),
	RunE: runOverrideSet,
}

var overrideRemoveCmd = &cobra.Command{
	Use:   "remove <template-id> <slot-id>",
	Short: "Remove a manual override",
	Args:  cobra.ExactArgs(2),
	RunE:  runOverrideRemove,
}

var overrideListCmd = &cobra.Command{
	Use:   "list <template-id>",
	Short: "List the overrides recorded for a template",
	Args:  cobra.ExactArgs(1),
	RunE:  runOverrideList,
}

func init() {
	overrideSetCmd.Flags().StringSliceVar(&overrideObligations, "obligation", nil, "obligation ID to map (repeatable)")
	overrideSetCmd.Flags().StringVar(&overrideJustification, "justification", "", "reason for the override (required)")
	overrideSetCmd.Flags().StringVar(&overrideActor, "actor", "", "who is recording the override")
	overrideCmd.AddCommand(overrideSetCmd)
	overrideCmd.AddCommand(overrideRemoveCmd)
	overrideCmd.AddCommand(overrideListCmd)
}

func runOverrideSet(cmd *cobra.Command, args []string) error {
	_, logger, s, err := setup()
	if err != nil {
		return err
	}
	defer logging.Sync(logger)
	defer s.Close()

	registry := override.NewRegistry(s)
	ov := override.Override{
		TemplateID:    args[0],
		SlotID:        args[1],
		ObligationIDs: overrideObligations,
		Justification: overrideJustification,
		Actor:         overrideActor,
		CreatedAt:     time.Now().UTC(),
	}
	if err := registry.Put(cmd.Context(), ov); err != nil {
		return fmt.Errorf("recording override: %w", err)
	}

	fmt.Printf("Override recorded for %s/%s -> %v\n", ov.TemplateID, ov.SlotID, ov.ObligationIDs)
	return nil
}

func runOverrideRemove(cmd *cobra.Command, args []string) error {
	_, logger, s, err := setup()
	if err != nil {
		return err
	}
	defer logging.Sync(logger)
	defer s.Close()

	registry := override.NewRegistry(s)
	if err := registry.Remove(cmd.Context(), args[0], args[1]); err != nil {
		return fmt.Errorf("removing override: %w", err)
	}

	fmt.Printf("Override removed for %s/%s\n", args[0], args[1])
	return nil
}

func runOverrideList(cmd *cobra.Command, args []string) error {
	_, logger, s, err := setup()
	if err != nil {
		return err
	}
	defer logging.Sync(logger)
	defer s.Close()

	overrides, err := s.ListForTemplate(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("listing overrides: %w", err)
	}
	if len(overrides) == 0 {
		fmt.Println("No overrides recorded")
		return nil
	}

	for _, ov := range overrides {
		fmt.Printf("%-30s -> %v\n", ov.SlotID, ov.ObligationIDs)
		fmt.Printf("  justification: %s\n", ov.Justification)
		if ov.Actor != "" {
			fmt.Printf("  actor:         %s\n", ov.Actor)
		}
	}
	return nil
}
