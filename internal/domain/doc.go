// Package domain contains the core entities of the application: users'
// conversations with the assistant and the messages exchanged in them.
// It has no knowledge of storage or transport.
package domain
