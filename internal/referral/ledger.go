package referral

import (
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"trollbox/internal/identity"
)

// Errors
var (
	ErrCodeConflict    = errors.New("referral code already claimed by another referrer")
	ErrAlreadyReferred = errors.New("address already referred")
	ErrSelfReferral    = errors.New("address cannot refer itself")
)

// ReferrerEntry is the per-referrer side of the ledger.
type ReferrerEntry struct {
	Code     string   `json:"code"`
	Referred []string `json:"referred"`
}

// ReferredUser is the per-referred-address side of the ledger.
type ReferredUser struct {
	Referrer     string `json:"referrer"`
	ReferralCode string `json:"referralCode"`
	Timestamp    int64  `json:"timestamp"` // epoch milliseconds
}

// Stats summarizes ledger size for operational logging.
type Stats struct {
	Codes     int
	Referrers int
	Referred  int
}

// Ledger is the in-memory authoritative referral state. Methods are safe for
// concurrent use; first-write-wins checks and their inserts run under one
// lock so two racing attributions for the same address cannot both succeed.
type Ledger struct {
	mu        sync.Mutex
	codes     map[string]string         // normalized code → referrer address
	referrers map[string]*ReferrerEntry // referrer address → entry
	referred  map[string]ReferredUser   // referred address → record

	logger *slog.Logger
	now    func() time.Time
}

// NewLedger creates an empty ledger.
func NewLedger(logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		codes:     make(map[string]string),
		referrers: make(map[string]*ReferrerEntry),
		referred:  make(map[string]ReferredUser),
		logger:    logger,
		now:       time.Now,
	}
}

// NormalizeCode canonicalizes a referral code. Short codes (≤ 10 characters)
// drop any 0x prefix; legacy long-form codes keep (or gain) one. Applied
// before every lookup and insert, and idempotent.
func NormalizeCode(raw string) string {
	code := strings.ToLower(strings.TrimSpace(raw))
	if len(code) <= 10 {
		return strings.TrimPrefix(code, "0x")
	}
	if !strings.HasPrefix(code, "0x") {
		code = "0x" + code
	}
	return code
}

// RecordReferral upserts the code → referrer mapping. A code already claimed
// by a different referrer fails with ErrCodeConflict and leaves the existing
// mapping untouched. A referrer keeps its first-seen canonical code; later
// codes for the same referrer become lookup aliases.
func (l *Ledger) RecordReferral(code, referrerAddress string) error {
	code = NormalizeCode(code)
	referrer := identity.CanonicalAddress(referrerAddress)

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.recordLocked(code, referrer)
}

func (l *Ledger) recordLocked(code, referrer string) error {
	if existing, ok := l.codes[code]; ok {
		if existing != referrer {
			return ErrCodeConflict
		}
		return nil
	}
	l.codes[code] = referrer

	if _, ok := l.referrers[referrer]; !ok {
		l.referrers[referrer] = &ReferrerEntry{Code: code, Referred: []string{}}
	}
	return nil
}

// Attribute records that referredAddress was brought in by referrerAddress
// via code. The first attribution for an address wins; later attempts fail
// with ErrAlreadyReferred and change nothing.
func (l *Ledger) Attribute(referredAddress, referrerAddress, code string) error {
	referred := identity.CanonicalAddress(referredAddress)
	referrer := identity.CanonicalAddress(referrerAddress)
	code = NormalizeCode(code)

	if referred == referrer {
		return ErrSelfReferral
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.attributeLocked(referred, referrer, code, l.now().UnixMilli())
}

func (l *Ledger) attributeLocked(referred, referrer, code string, ts int64) error {
	if _, ok := l.referred[referred]; ok {
		return ErrAlreadyReferred
	}

	if err := l.recordLocked(code, referrer); err != nil {
		return err
	}

	l.referred[referred] = ReferredUser{
		Referrer:     referrer,
		ReferralCode: code,
		Timestamp:    ts,
	}
	l.referrers[referrer].Referred = append(l.referrers[referrer].Referred, referred)
	return nil
}

// ResolveCode returns the referrer that owns a code.
func (l *Ledger) ResolveCode(code string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	referrer, ok := l.codes[NormalizeCode(code)]
	return referrer, ok
}

// ReferredBy returns the attribution record for an address, if any.
func (l *Ledger) ReferredBy(address string) (ReferredUser, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.referred[identity.CanonicalAddress(address)]
	return rec, ok
}

// Referred returns the set of addresses attributed to a referrer.
func (l *Ledger) Referred(referrerAddress string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.referrers[identity.CanonicalAddress(referrerAddress)]
	if !ok {
		return nil
	}
	out := make([]string, len(entry.Referred))
	copy(out, entry.Referred)
	return out
}

// Stats returns current ledger sizes.
func (l *Ledger) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	return Stats{
		Codes:     len(l.codes),
		Referrers: len(l.referrers),
		Referred:  len(l.referred),
	}
}
