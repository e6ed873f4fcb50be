package scrape

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Fingerprint derives a stable identity for a review from the reviewer
// identity and the normalized review text. Pagination dedup keys on it, so
// the same review served on two pages contributes one item.
func Fingerprint(reviewer, text string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(reviewer)) + "\x00" + normalizeText(text)))
	return hex.EncodeToString(sum[:])
}

// ReviewFingerprint fingerprints an extracted review record.
func ReviewFingerprint(r Review) string {
	return Fingerprint(r.Reviewer, r.Text)
}

// normalizeText lowercases and collapses runs of whitespace so cosmetic
// re-rendering of the same review does not defeat dedup.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
