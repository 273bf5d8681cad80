// Package chat defines the chat-platform client contract consumed by the
// intake engine, plus the HTTP implementation.
//
// The engine treats the platform as an unreliable collaborator: reaction
// attachment retries on rate limits using the server-supplied retry hint, and
// every failure is tagged with a services sentinel (permission, not-found,
// rate-limited, transient) so orchestration code can classify it without
// parsing message text.
package chat
