package referral

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Document is the persisted v2 ledger shape.
type Document struct {
	Referrers     map[string]ReferrerEntry `json:"referrers"`
	ReferredUsers map[string]ReferredUser  `json:"referred_users"`
}

// Snapshot copies the ledger into its persisted document shape.
func (l *Ledger) Snapshot() Document {
	l.mu.Lock()
	defer l.mu.Unlock()

	doc := Document{
		Referrers:     make(map[string]ReferrerEntry, len(l.referrers)),
		ReferredUsers: make(map[string]ReferredUser, len(l.referred)),
	}
	for addr, entry := range l.referrers {
		referred := make([]string, len(entry.Referred))
		copy(referred, entry.Referred)
		doc.Referrers[addr] = ReferrerEntry{Code: entry.Code, Referred: referred}
	}
	for addr, rec := range l.referred {
		doc.ReferredUsers[addr] = rec
	}
	return doc
}

// Load replaces the ledger contents with a persisted document. Codes are
// re-normalized on the way in so documents written by older tooling merge
// into canonical spellings.
func (l *Ledger) Load(doc Document) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.codes = make(map[string]string, len(doc.Referrers))
	l.referrers = make(map[string]*ReferrerEntry, len(doc.Referrers))
	l.referred = make(map[string]ReferredUser, len(doc.ReferredUsers))

	for addr, entry := range doc.Referrers {
		code := NormalizeCode(entry.Code)
		if existing, ok := l.codes[code]; ok && existing != addr {
			return fmt.Errorf("%w: code %q claimed by %s and %s", ErrCodeConflict, code, existing, addr)
		}
		l.codes[code] = addr
		referred := make([]string, len(entry.Referred))
		copy(referred, entry.Referred)
		l.referrers[addr] = &ReferrerEntry{Code: code, Referred: referred}
	}

	for addr, rec := range doc.ReferredUsers {
		rec.ReferralCode = NormalizeCode(rec.ReferralCode)
		l.referred[addr] = rec
	}
	return nil
}

// SaveFile atomically writes the ledger snapshot as indented JSON.
func (l *Ledger) SaveFile(path string) error {
	data, err := json.MarshalIndent(l.Snapshot(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal ledger: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create ledger dir: %w", err)
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write ledger: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace ledger: %w", err)
	}
	return nil
}

// LoadFile reads a persisted document into the ledger.
func (l *Ledger) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read ledger: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse ledger: %w", err)
	}
	return l.Load(doc)
}
