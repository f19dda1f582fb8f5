// Package matrix binds the relay to a Matrix homeserver.
//
// It provides both halves of the relay's transport boundary: Gateway
// implements the capability surface the engine consumes (direct sends,
// copy-forwards, thread creation), and Bridge is the event source that
// syncs the homeserver and classifies inbound messages.
//
// Mapping onto Matrix: the log channel is a room; a thread is an m.thread
// relation rooted at the thread's opening message, so thread identifiers
// are event IDs; operator replies are messages in the log room carrying a
// thread relation. Direct messages use a per-user DM room, remembered from
// the room the user wrote in and recreated on demand after a restart.
package matrix
