package inventory

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	// A trailing "x" only counts as a multiplier artifact when it stands
	// alone or hangs off an emphasis marker; "Fox" keeps its x.
	trailingX      = regexp.MustCompile(`(?:[*_]+\s*|\s+)x$`)
	quantityRe     = regexp.MustCompile(`(\d+)x`)
	categoryPrefix = regexp.MustCompile(`(?i)^(seeds|gear|egg)\b`)
)

// CleanName strips page markup artifacts from a raw item label: emphasis
// markers, a trailing lone "x", surrounding underscores. Inner underscores
// become spaces.
func CleanName(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	s = trailingX.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "*", "")
	s = strings.Trim(strings.TrimSpace(s), "_")
	s = strings.ReplaceAll(s, "_", " ")
	return strings.TrimSpace(s)
}

// ExtractQuantity returns the count of the first "<digits>x" token in
// text, or 0 when there is none or it does not fit an int.
func ExtractQuantity(text string) int {
	m := quantityRe.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}

// StripCategoryPrefix removes a leading "Seeds", "Gear" or "Egg" word,
// preserving the case of the rest.
func StripCategoryPrefix(name string) string {
	s := strings.TrimSpace(name)
	return strings.TrimSpace(categoryPrefix.ReplaceAllString(s, ""))
}

// NormalizeKey is the identity used to merge records within a bucket.
func NormalizeKey(name string) string {
	s := strings.ReplaceAll(name, "*", "")
	return strings.ToLower(StripCategoryPrefix(s))
}
