package export

import (
	"crypto/rand"
	"regexp"
	"strings"
	"time"
)

const tokenAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slug lower-cases s and collapses every run of characters outside [a-z0-9]
// into a single hyphen, trimming hyphens at both ends. It returns "" when
// nothing usable remains.
func Slug(s string) string {
	s = nonSlug.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "-")
	return strings.Trim(s, "-")
}

// Filenames builds export filenames. The zero value uses the wall clock and
// crypto/rand.
type Filenames struct {
	// Now returns the current time; its local date is used.
	Now func() time.Time
	// Rand fills b with random bytes.
	Rand func(b []byte) error
}

// Name returns "dotspan-<suffix>-<YYYY-MM-DD>.<ext>". The suffix is the slug
// of name, or "export-" plus six random characters when the slug is empty.
func (f Filenames) Name(name string, format Format) string {
	suffix := Slug(name)
	if suffix == "" {
		suffix = "export-" + f.token(6)
	}
	return "dotspan-" + suffix + "-" + f.now().Format(time.DateOnly) + "." + format.Extension()
}

// Name builds a filename with the default [Filenames].
func Name(name string, format Format) string {
	return Filenames{}.Name(name, format)
}

func (f Filenames) now() time.Time {
	if f.Now != nil {
		return f.Now().Local()
	}
	return time.Now()
}

func (f Filenames) token(n int) string {
	b := make([]byte, n)
	read := f.Rand
	if read == nil {
		read = func(b []byte) error { _, err := rand.Read(b); return err }
	}
	if err := read(b); err != nil {
		// Fall back to the clock so a name is always produced.
		ns := time.Now().UnixNano()
		for i := range b {
			b[i] = byte(ns >> (8 * i))
		}
	}
	for i, v := range b {
		b[i] = tokenAlphabet[int(v)%len(tokenAlphabet)]
	}
	return string(b)
}

// OnDisk rewrites a name built by [Filenames.Name] to the extension of the
// bytes actually produced, so the print document is saved as .html.
func OnDisk(filename string, format Format) string {
	ext := "." + format.Extension()
	if format.FileExtension() == format.Extension() || !strings.HasSuffix(filename, ext) {
		return filename
	}
	return strings.TrimSuffix(filename, ext) + "." + format.FileExtension()
}
