// Package client implements the client-side connection manager: one logical
// trollbox session per Manager, kept alive across transport failures.
//
// The manager owns at most one WebSocket at a time. Connect is idempotent,
// unexpected closes are retried with exponential backoff, and a keep-alive
// ping frame goes out every PingInterval while the socket is open. Incoming
// frames fan out to registered listeners; listeners survive reconnects and
// one listener's panic never stops notification of the others.
//
// Managers are constructed explicitly (no package-level singleton) so tests
// can run several side by side; production binaries hold one per process.
package client
