// Package alignment aligns non-canonical ("custom") template slots to a
// canonical reference-standard template, deriving obligation coverage
// transitively through the reference standard's pre-built slot-obligation
// map. Custom slots are never matched directly against obligations.
//
// Alignment runs four stages per slot in order: explicit reference-slot-id
// match, name equality or containment, evidence-requirement overlap, and an
// optional embedding-based fallback. Scores are computed internally on the
// same 0..1 confidence scale the grounding engine uses; the public result
// reports the conventional 0-100 alignment score, converted explicitly at
// that boundary.
package alignment
