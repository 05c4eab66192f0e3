// Package identity binds wallet addresses to display names under the
// username-change cooldown policy.
//
// The first rename for an address is free; every successful rename after that
// starts a cooldown twice as long as the previous one (24h, 48h, 96h, ...).
// Rejected attempts never mutate state, and identities persist for the process
// lifetime so reconnecting does not reset the clock.
//
// Addresses are supplied by the client without cryptographic proof. This is
// not a security boundary; callers that need real authentication must verify
// a signature before handing the address to this package.
package identity
