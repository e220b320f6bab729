package reconcile

import (
	"strings"
	"unicode"
)

// Slug is the natural key of tenants, cluster types and roles.
func Slug(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), " ", "-")
}

// SiteSlug additionally folds underscores.
func SiteSlug(name string) string {
	return strings.ReplaceAll(Slug(name), "_", "-")
}

// PlatformSlug keeps only ASCII letters, digits and dashes.
func PlatformSlug(name string) string {
	s := strings.NewReplacer("(", "", ")", "").Replace(Slug(name))
	return strings.Map(func(r rune) rune {
		if r == '-' || (r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r))) {
			return r
		}
		return -1
	}, s)
}
