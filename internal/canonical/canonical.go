// Package canonical derives the UUID-shaped primary keys used by the v4
// store from arbitrary v3 document keys, with no lookup table.
package canonical

import (
	"crypto/sha256"
	"strings"

	"github.com/google/uuid"
)

// ID maps a source document key to its canonical identifier.
//
// Already-UUID-shaped input passes through (lowercased). Empty input maps
// to the all-zero sentinel. Anything else is hashed with SHA-256 and the
// first 16 bytes are formatted as a UUID with the version nibble forced to
// 4 and the variant to RFC 4122. The hash must stay SHA-256: a weaker or
// non-cryptographic hash risks two distinct v3 keys colliding on one v4
// primary key, and changing it would orphan every already-migrated row.
func ID(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return uuid.Nil.String()
	}
	if len(raw) == 36 {
		if parsed, err := uuid.Parse(raw); err == nil {
			return parsed.String()
		}
	}

	sum := sha256.Sum256([]byte(raw))
	var id uuid.UUID
	copy(id[:], sum[:16])
	id[6] = (id[6] & 0x0f) | 0x40
	id[8] = (id[8] & 0x3f) | 0x80
	return id.String()
}
