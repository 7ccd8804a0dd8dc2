// Package embeddings provides text embedding for semantic slot-obligation
// matching.
//
// The Provider interface is the capability contract consumed by the matching
// core; the OpenAI implementation is the default. CachingProvider wraps any
// Provider with a bounded, content-addressed LRU cache shared across
// grounding runs, so identical obligation texts are embedded once per
// process. The cache is safe for concurrent use.
package embeddings
