package referral

import (
	"encoding/json"
	"fmt"
	"strings"

	"trollbox/internal/identity"
)

// LegacyRecord is one entry from an older flat-file ledger: a code, its
// referrer, and the addresses attributed under it (empty for the plain
// code→referrer form).
type LegacyRecord struct {
	Code     string
	Referrer string
	Referred []string
}

// MigrateResult counts the outcome of a legacy replay.
type MigrateResult struct {
	CodesRecorded int
	Attributed    int
	Conflicts     int
}

// ParseLegacy decodes either legacy flat-file shape:
//
//	{"<code>": "<referrer>"}                     plain form
//	{"<code>:<referrer>": ["<referred>", ...]}   grouped form
//
// The two forms may be mixed in one file.
func ParseLegacy(data []byte) ([]LegacyRecord, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse legacy ledger: %w", err)
	}

	records := make([]LegacyRecord, 0, len(raw))
	for key, value := range raw {
		var referrer string
		if err := json.Unmarshal(value, &referrer); err == nil {
			records = append(records, LegacyRecord{Code: key, Referrer: referrer})
			continue
		}

		var referred []string
		if err := json.Unmarshal(value, &referred); err != nil {
			return nil, fmt.Errorf("parse legacy ledger entry %q: %w", key, err)
		}

		code, ref, ok := strings.Cut(key, ":")
		if !ok {
			return nil, fmt.Errorf("parse legacy ledger entry %q: grouped key missing referrer", key)
		}
		records = append(records, LegacyRecord{Code: code, Referrer: ref, Referred: referred})
	}
	return records, nil
}

// Migrate replays legacy records into the ledger under the same
// first-write-wins rules as live traffic. Conflicts are logged and counted,
// never fatal to the batch.
func (l *Ledger) Migrate(records []LegacyRecord) MigrateResult {
	var result MigrateResult

	l.mu.Lock()
	defer l.mu.Unlock()

	for _, rec := range records {
		code := NormalizeCode(rec.Code)
		referrer := identity.CanonicalAddress(rec.Referrer)

		if err := l.recordLocked(code, referrer); err != nil {
			result.Conflicts++
			l.logger.Warn("legacy code conflict, keeping earliest mapping",
				"code", code,
				"existing", l.codes[code],
				"claimed_by", referrer,
			)
			continue
		}
		result.CodesRecorded++

		for _, referred := range rec.Referred {
			referred = identity.CanonicalAddress(referred)
			if referred == referrer {
				result.Conflicts++
				l.logger.Warn("legacy self-referral skipped", "address", referred)
				continue
			}
			if err := l.attributeLocked(referred, referrer, code, l.now().UnixMilli()); err != nil {
				result.Conflicts++
				l.logger.Warn("legacy attribution conflict, keeping earliest record",
					"address", referred,
					"code", code,
					"error", err,
				)
				continue
			}
			result.Attributed++
		}
	}
	return result
}
