// Package referral maintains the two-way referral ledger: codes to referrer
// addresses, and referrer addresses to the set of addresses they referred.
//
// Codes are normalized before every lookup or insert, so a code is never
// stored under two spellings. All conflicts resolve first-write-wins: the
// earliest mapping is authoritative and later conflicting writes are
// rejected, never merged or silently overwritten.
//
// The ledger snapshots to (and loads from) the v2 JSON document shape, and
// Migrate replays heterogeneous legacy flat-file records into it.
package referral
