// Package protocol defines the JSON wire frames exchanged over a trollbox
// WebSocket connection.
//
// Frames are dispatched on a "type" discriminator:
//   - client → server: auth, message, changeUsername, ping
//   - server → client: authenticated, usernameChanged, message, tradeAlert,
//     error, pong
//
// ParseClientFrame rejects unknown or malformed frames up front so handlers
// only ever see one of the closed set of client frame types.
package protocol
