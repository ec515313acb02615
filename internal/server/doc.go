// Package server implements the websocket fan-out core of collabchat.
//
// A Hub tracks live connections, each Client runs a read pump and a write
// pump over its websocket, and a Router turns inbound events into State
// Manager calls and fans the committed result out through the Hub. The HTTP
// handlers in this package expose the websocket endpoint plus a small read
// and write surface over the same state.
package server
