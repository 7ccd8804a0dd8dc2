// Package matcher implements the per-slot matching strategies that ground
// template slots in regulatory obligations, and the aggregator that merges
// their outputs into one ranked result per slot.
//
// Four strategies run in fixed order: evidence-type overlap, citation
// parsing, embedding similarity, and an LLM fallback that only runs when the
// cheaper strategies leave the slot below the acceptance threshold. Each
// strategy scores candidates independently on a single 0..1 confidence scale;
// the aggregator deduplicates by obligation, keeping the highest-confidence
// match with a deterministic method tie-break.
//
// Strategies are pure with respect to their inputs except for provider I/O
// (embeddings, completions). Provider failures never fail a slot: the
// affected pair or strategy is skipped with a warning and matching continues.
package matcher
