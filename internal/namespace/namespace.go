// Package namespace derives cache collection identifiers from tenant and
// scope identifiers.
//
// The underlying cache engine constrains collection names to 3-63 characters
// of alphanumerics, underscores and hyphens, starting and ending with an
// alphanumeric. Resolve is a pure function over its inputs: any caller can
// compute the same namespace without coordination, and distinct inputs map
// to distinct namespaces with overwhelming probability even after
// truncation.
package namespace

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
)

const (
	// MaxLength is the hard cap on namespace length, inherited from the
	// cache engine's collection name constraint.
	MaxLength = 63

	// MinLength is the hard floor on namespace length.
	MinLength = 3

	// prefix marks document cache namespaces.
	prefix = "doc"

	// pad guarantees the minimum length when every input sanitizes away.
	pad = "ns0"

	// kindSuffixMax bounds the human-readable kind suffix on hashed names.
	kindSuffixMax = 12
)

// Kind identifies which class of collection a namespace addresses.
type Kind string

const (
	// KindDocuments is the per-scope document chunk collection.
	KindDocuments Kind = "documents"

	// KindLegacy is the tenant-scoped collection written by the old sync
	// path. Retained for the retrieval fallback chain until migrated.
	KindLegacy Kind = "project_docs"
)

// Resolve returns the collection namespace for (tenantID, scopeID, kind).
//
// It first attempts the readable template doc_{tenant}_{scope}_{kind} built
// from sanitized components. If that exceeds MaxLength it falls back to a
// 128-bit digest of the raw, unsanitized inputs combined with a short kind
// suffix for debuggability, and finally to a pure digest name. Every tier
// independently satisfies the length and charset invariants; Resolve never
// fails, it always returns some valid namespace.
func Resolve(tenantID, scopeID string, kind Kind) string {
	// Every component keeps its positional slot even when it sanitizes to
	// nothing. Collapsing empty slots would let different inputs collide on
	// the same readable name, e.g. an all-stripped tenant with scope "a"
	// against tenant "a" with an empty scope.
	parts := []string{
		prefix,
		sanitizeComponent(tenantID),
		sanitizeComponent(scopeID),
		sanitizeComponent(string(kind)),
	}

	name := strings.Join(parts, "_")
	if valid(name) {
		return name
	}

	// Digest the raw inputs so names that differ only in stripped
	// characters still diverge.
	sum := md5.Sum([]byte(tenantID + "\x00" + scopeID + "\x00" + string(kind)))
	digest := hex.EncodeToString(sum[:])

	kindSuffix := sanitizeComponent(string(kind))
	if len(kindSuffix) > kindSuffixMax {
		kindSuffix = strings.Trim(kindSuffix[:kindSuffixMax], "_-")
	}
	if kindSuffix != "" {
		hashed := prefix + "_" + digest[:16] + "_" + kindSuffix
		if valid(hashed) {
			return hashed
		}
	}

	pure := prefix + "_" + digest
	if len(pure) > MaxLength {
		pure = pure[:MaxLength]
	}
	pure = strings.TrimRight(pure, "_-")
	if len(pure) < MinLength {
		pure += pad
	}
	return pure
}

// sanitizeComponent lowercases a single input component and strips it to the
// allowed charset: alphanumerics, underscore, hyphen. Runs of replaced
// characters collapse to one underscore and edges are trimmed to
// alphanumerics.
func sanitizeComponent(s string) string {
	s = strings.ToLower(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}

	out := b.String()
	for strings.Contains(out, "__") {
		out = strings.ReplaceAll(out, "__", "_")
	}
	return strings.Trim(out, "_-")
}

// valid reports whether name satisfies the cache engine constraints:
// length in [MinLength, MaxLength], allowed charset, alphanumeric first and
// last characters.
func valid(name string) bool {
	if len(name) < MinLength || len(name) > MaxLength {
		return false
	}
	for _, r := range name {
		ok := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '_' || r == '-'
		if !ok {
			return false
		}
	}
	return alnum(rune(name[0])) && alnum(rune(name[len(name)-1]))
}

func alnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// Valid is the exported form of the namespace validity check, used by
// callers that receive namespace strings from configuration.
func Valid(name string) bool {
	return valid(name)
}
