package identity

import (
	"errors"
	"strings"
	"sync"
	"time"
)

// Errors
var (
	ErrCooldownActive = errors.New("username change cooldown active")
	ErrUnknownAddress = errors.New("unknown address")
)

// InitialCooldown is the window started by an address's second rename.
// Each successful rename after that doubles the window.
const InitialCooldown = 24 * time.Hour

// Status describes an identity as reported to the client.
type Status struct {
	Username          string
	CanChangeUsername bool
	CooldownRemaining time.Duration // zero when a change is allowed now
}

// record is the per-address authoritative state.
type record struct {
	username     string
	lastChangeAt time.Time     // zero until the first successful rename
	cooldown     time.Duration // zero means the next rename is free
}

// Registry maps wallet addresses to identities. All methods are safe for
// concurrent use; check-then-mutate sequences hold the lock for their full
// duration so concurrent renames for one address cannot both pass the
// cooldown check.
type Registry struct {
	mu      sync.Mutex
	records map[string]*record

	now func() time.Time
}

// NewRegistry creates an empty identity registry.
func NewRegistry() *Registry {
	return &Registry{
		records: make(map[string]*record),
		now:     time.Now,
	}
}

// Authenticate resolves the identity for an address, creating one on first
// sight. For a known address the requested username is ignored and the stored
// identity is returned unchanged, so reconnects keep both the display name
// and the cooldown clock.
func (r *Registry) Authenticate(address, requested string) Status {
	addr := CanonicalAddress(address)

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[addr]
	if !ok {
		username := strings.TrimSpace(requested)
		if username == "" {
			username = placeholderName(addr)
		}
		rec = &record{username: username}
		r.records[addr] = rec
	}

	return r.statusLocked(rec)
}

// ChangeUsername renames a known address. It fails with ErrCooldownActive
// (mutating nothing) while the current window is open; on success the next
// window is started at double the previous length. The returned Status is
// valid in both cases and carries the remaining cooldown.
func (r *Registry) ChangeUsername(address, next string) (Status, error) {
	addr := CanonicalAddress(address)
	next = strings.TrimSpace(next)

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[addr]
	if !ok {
		return Status{}, ErrUnknownAddress
	}

	status := r.statusLocked(rec)
	if !status.CanChangeUsername {
		return status, ErrCooldownActive
	}

	rec.username = next
	rec.lastChangeAt = r.now()
	if rec.cooldown == 0 {
		rec.cooldown = InitialCooldown
	} else {
		rec.cooldown *= 2
	}

	return r.statusLocked(rec), nil
}

// Lookup returns the current status for an address without creating one.
func (r *Registry) Lookup(address string) (Status, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[CanonicalAddress(address)]
	if !ok {
		return Status{}, false
	}
	return r.statusLocked(rec), true
}

// statusLocked computes the visible status for a record. Caller holds r.mu.
func (r *Registry) statusLocked(rec *record) Status {
	s := Status{Username: rec.username, CanChangeUsername: true}
	if rec.lastChangeAt.IsZero() {
		return s
	}

	remaining := rec.lastChangeAt.Add(rec.cooldown).Sub(r.now())
	if remaining > 0 {
		s.CanChangeUsername = false
		s.CooldownRemaining = remaining
	}
	return s
}

// CanonicalAddress lowercases and trims an address. All lookups and inserts
// go through this so mixed-case spellings of one address share an identity.
func CanonicalAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// ReferralCodeFor derives the stable short referral code for an address:
// the first 8 hex characters after stripping the 0x prefix.
func ReferralCodeFor(address string) string {
	addr := strings.TrimPrefix(CanonicalAddress(address), "0x")
	if len(addr) > 8 {
		addr = addr[:8]
	}
	return addr
}

// placeholderName generates a default username for an address that
// authenticated without requesting one.
func placeholderName(addr string) string {
	tail := strings.TrimPrefix(addr, "0x")
	if len(tail) > 6 {
		tail = tail[:6]
	}
	return "anon-" + tail
}
