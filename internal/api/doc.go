// Package api exposes the chat service over HTTP. Handlers decode and
// validate requests, call service.ChatService and translate its results and
// errors into JSON responses with stable status codes.
package api
