// Package search queries a web search API and returns a small, normalized
// set of sources suitable for grounding a prompt. Successful lookups are
// cached per query for a configurable TTL.
package search
