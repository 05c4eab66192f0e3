// Package hub implements the server side of the trollbox: it upgrades
// WebSocket connections, drives one session per connection, and fans
// validated chat messages and trade alerts out to every open connection.
//
// Sessions authenticate by binding a client-supplied wallet address (no
// signature is verified; see package identity). Authoritative state lives in
// the identity registry and referral ledger; the hub itself only tracks the
// connection set. Broadcast is fire-and-forget per connection: a slow or dead
// peer has its frame dropped rather than delaying the others.
package hub
