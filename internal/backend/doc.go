// Package backend defines the bridge's view of the chat-session
// backend.
//
// Ownership boundary:
// - domain types (channels, messages, members, unread state)
// - the Session and Provider collaborator interfaces
// - the event feed primitives
//
// The backend itself (network connection, persistence, nicklist
// maintenance) lives behind these interfaces and is out of scope; the
// memory subpackage provides the test double and demo implementation.
package backend
