package batch

import (
	"fmt"
	"strconv"
	"strings"
)

// Correlation tokens re-associate a provider result with its JobItem
// independent of response ordering. The token is the item's stable id slug
// followed by "-<stable_index>"; the index suffix is the only part the
// decoder trusts.
//
// Decoding fails closed: a token whose suffix is not an exact base-10 uint
// is dropped rather than risk mis-associating content with the wrong file.

const tokenFallbackPrefix = "item"

// EncodeToken builds the correlation token for an item.
func EncodeToken(item JobItem) string {
	prefix := slugify(item.StableID)
	if prefix == "" {
		prefix = tokenFallbackPrefix
	}
	return fmt.Sprintf("%s-%d", prefix, item.StableIndex)
}

// DecodeToken extracts the stable index from a correlation token.
//
// The token format is provider-opaque except for the trailing "-<index>"
// suffix. The suffix must round-trip through ParseUint/FormatUint so that
// ambiguous forms (empty, signed, leading zeros) are rejected.
func DecodeToken(token string) (uint, error) {
	token = strings.TrimSpace(token)
	cut := strings.LastIndexByte(token, '-')
	if cut < 0 || cut == len(token)-1 {
		return 0, fmt.Errorf("token %q has no index suffix", token)
	}
	suffix := token[cut+1:]
	n, err := strconv.ParseUint(suffix, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("token %q has non-numeric index suffix: %w", token, err)
	}
	if strconv.FormatUint(n, 10) != suffix {
		return 0, fmt.Errorf("token %q has ambiguous index suffix %q", token, suffix)
	}
	return uint(n), nil
}

// StableIDFor derives a stable id from a path relative to the package root.
// Separators are normalized so the id is identical across platforms.
func StableIDFor(relPath string) string {
	return slugify(relPath)
}

// slugify reduces s to a token-safe charset: letters, digits, underscore.
// Everything else (path separators, dots) becomes '-'. Runs of '-' collapse
// and leading/trailing '-' are trimmed so the index suffix stays parseable.
func slugify(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastDash := true
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}
