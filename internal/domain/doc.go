// Package domain holds the chat and document model shared by the store, the
// state manager, and the websocket server: the ChatMessage type, its durable
// line format, and the error taxonomy used across event boundaries.
package domain
