// Package generation defines the boundary between the application and the
// external language-model provider. It owns the request and result types of
// a single generation, the error taxonomy callers branch on, prompt
// enrichment with web sources, and the labeling step that turns a raw
// provider payload into the stable, sanitized envelope every caller receives.
//
// Implementations of the Generator interface live under internal/platform.
package generation
