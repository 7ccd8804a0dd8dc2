// Package obligation defines the core data model for regulatory grounding:
// obligations supplied by the regulatory knowledge store and the template
// slots they are matched against.
//
// Obligations and slots are immutable per grounding run. Source templates
// arrive with loosely-typed slot records (alternative field names,
// string-typed conditional markers); NormalizeSlot converts them into one
// canonical Slot shape at the ingestion boundary so the matching core never
// sees the union shape.
package obligation
