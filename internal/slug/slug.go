// Package slug builds URL-safe identifiers from free text.
package slug

import (
	"crypto/rand"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// SuffixLen is the length of the random suffix appended by WithSuffix.
const SuffixLen = 6

// Make lowercases s, folds accents to ASCII, and joins the remaining
// alphanumeric runs with single dashes. It returns "" when nothing survives.
func Make(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	lower := strings.NewReplacer("đ", "d", "ß", "ss").Replace(strings.ToLower(folded))

	var b strings.Builder
	b.Grow(len(lower))
	pendingDash := false
	for _, r := range lower {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
			continue
		}
		pendingDash = true
	}
	return b.String()
}

// MakeOr is Make with a fallback for input that produces an empty slug.
func MakeOr(s, fallback string) string {
	if out := Make(s); out != "" {
		return out
	}
	return fallback
}

// WithSuffix appends a dash and SuffixLen random base36 characters.
func WithSuffix(base string) string {
	return base + "-" + Random(SuffixLen)
}

// Random returns n random base36 characters.
func Random(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic("slug: reading random bytes: " + err.Error())
	}
	for i, v := range buf {
		buf[i] = alphabet[int(v)%len(alphabet)]
	}
	return string(buf)
}

// Username derives a username from a display name and a user id.
func Username(displayName, userID string) string {
	id := strings.ReplaceAll(userID, "-", "")
	if len(id) > SuffixLen {
		id = id[:SuffixLen]
	}
	return MakeOr(displayName, "user") + "-" + strings.ToLower(id)
}
