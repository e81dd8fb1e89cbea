package donation

import (
	"path"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var foldMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// BlobKey is foodDonations/{donorID}/{unixMillis}_{name}.
func BlobKey(donorID, filename string, at time.Time) string {
	return path.Join("foodDonations", donorID, strconv.FormatInt(at.UnixMilli(), 10)+"_"+SanitizeFilename(filename))
}

// SanitizeFilename reduces a client-supplied name to a single safe path
// segment: accents are folded, anything outside [A-Za-z0-9._-] becomes '_'.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(strings.TrimSpace(name))
	if folded, _, err := transform.String(foldMarks, name); err == nil {
		name = folded
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.TrimLeft(b.String(), ".")
	if out == "" || out == "_" {
		return "image"
	}
	if len(out) > 100 {
		out = out[len(out)-100:]
	}
	return out
}
