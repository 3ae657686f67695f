// Package chat persists live chat messages for the stream platform.
//
// The WebSocket transport is a separate process; this package is the
// message store it and the moderation engine share. The engine deletes
// through it when an admin removes a message, and the admin API reads
// recent messages from it.
package chat
