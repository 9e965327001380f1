// Package store defines interfaces for data persistence operations.
// These interfaces keep the chat service independent of the database that
// backs conversations and messages.
package store
