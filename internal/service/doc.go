// Package service contains the application's use cases. ChatService turns
// a user's prompt into a generated answer: it optionally grounds the prompt
// with web sources, calls the generator, guards retries against duplicates
// and records the exchange in the user's conversation history.
//
// Services depend on the store interfaces and on generation.Generator, never
// on concrete infrastructure.
package service
