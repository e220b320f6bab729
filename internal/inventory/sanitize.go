package inventory

import (
	"regexp"
	"strings"
)

var (
	repeatedQuotes = regexp.MustCompile("[\"'`]{2,}")
	repeatedBraces = regexp.MustCompile(`[{}]{2,}`)
	whitespaceRun  = regexp.MustCompile(`\s+`)

	quoteReplacer       = strings.NewReplacer(`"`, `'`)
	structuralReplacer  = strings.NewReplacer(`\`, `/`, `{`, ``, `}`, ``)
	punctuationReplacer = strings.NewReplacer(`:`, ``, `,`, ``, `[`, ``, `]`, ``)
)

// Sanitize turns an arbitrary string coming from vCenter into a value that is
// safe to embed in JSON and YAML inventories. The result is printable ASCII
// without quotes, braces, backslashes or parser punctuation and
// Sanitize(Sanitize(s)) == Sanitize(s).
func Sanitize(s string) string {
	if s == "" {
		return ""
	}

	s = strings.Map(func(r rune) rune {
		if r < 0x20 || (r >= 0x7f && r <= 0x9f) {
			return -1
		}
		return r
	}, s)

	s = repeatedQuotes.ReplaceAllString(s, "")
	s = repeatedBraces.ReplaceAllString(s, "")

	s = quoteReplacer.Replace(s)
	s = strings.Map(func(r rune) rune {
		switch r {
		case '\'', '"', '`':
			return -1
		}
		return r
	}, s)

	s = structuralReplacer.Replace(s)

	// punctuation goes before whitespace folding so removed characters
	// never leave a double space behind
	s = punctuationReplacer.Replace(s)

	s = strings.Map(func(r rune) rune {
		if r == ' ' || (r > 0x20 && r < 0x7f) {
			return r
		}
		return -1
	}, s)
	s = whitespaceRun.ReplaceAllString(s, " ")

	return strings.TrimSpace(s)
}

// sanitizePtr sanitizes s and returns nil when nothing is left.
func sanitizePtr(s string) *string {
	v := Sanitize(s)
	if v == "" {
		return nil
	}
	return &v
}

// GroupName converts a free-form label into an inventory group name.
func GroupName(prefix, label string) string {
	v := strings.ToLower(Sanitize(label))
	if v == "" {
		return ""
	}
	return prefix + strings.ReplaceAll(v, " ", "_")
}
