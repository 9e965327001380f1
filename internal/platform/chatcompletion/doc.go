// Package chatcompletion implements generation.Generator against an
// OpenAI-compatible chat-completion endpoint.
//
// A logical request is made of up to 1+MaxRetries HTTP attempts. Each failed
// attempt is classified into a decision (retry or stop, and with which error
// kind) by a pure function, and retryable failures are separated by an
// exponential backoff that starts at one second and doubles. The caller's
// context bounds the whole loop; every attempt additionally has its own
// timeout.
package chatcompletion
