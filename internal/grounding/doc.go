// Package grounding orchestrates slot-obligation matching across a template
// and gates document generation on the outcome.
//
// The Engine fetches the mandatory obligation snapshot for the requested
// jurisdictions, runs the matching strategies per slot in fixed order
// (evidence, citation, semantic, then LLM fallback only when the slot is
// still below the acceptance threshold), aggregates matches, and computes
// obligation coverage. The CoverageValidator turns coverage into one of three
// terminal states: PASS, WARNING, or BLOCKED. BLOCKED is authoritative:
// downstream compilation must not proceed past it, and blocking errors are
// always self-sufficient human-readable messages.
package grounding
